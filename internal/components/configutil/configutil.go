package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// ReadConfig reads a json5 configuration file into a copy of `defaults`. `name` should come
// with a file extension, it is lopped off to find the local override file.
//
// The following files are merged, where a higher number is more prioritized:
// 0. defaults
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned if neither file exists.
func ReadConfig[T any](name string, defaults T) (T, error) {
	out := defaults
	allNotFound := true

	ext := filepath.Ext(name)
	localPath := fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)

	for _, path := range []string{name, localPath} {
		contents, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("read config %s: %w", path, err)
		}
		allNotFound = false
		if len(contents) == 0 {
			continue
		}

		var override T
		err = json5.Unmarshal(contents, &override)
		if err != nil {
			return out, fmt.Errorf("parse config %s: %w", path, err)
		}
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge config %s: %w", path, err)
		}
		if path == localPath {
			slog.Info("merging config with local overrides", "local", localPath)
		}
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig but it goes up the filesystem from the working directory
// until the root to find a configuration file matching the name.
func ReadRecursively[T any](name string, defaults T) (T, error) {
	current, err := os.Getwd()
	if err != nil {
		return defaults, err
	}

	for {
		config, err := ReadConfig(filepath.Join(current, name), defaults)
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return defaults, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return defaults, os.ErrNotExist
		}
		current = parent
	}
}
