package main

import (
	"errors"
	"fmt"
	"os"

	"automarket-backend/internal/components/configutil"
	"automarket-backend/internal/components/telemetry"
	"automarket-backend/internal/db"
	"automarket-backend/internal/scrapers/registry"
)

type Config struct {
	Port int `json:"port"`
	// AccessToken guards every procedure but GetHistory, an empty token disables them.
	AccessToken string          `json:"access_token"`
	Database    db.Config       `json:"database"`
	Registry    registry.Config `json:"registry"`
	// RetryFailedCron is a cron spec for retrying failed histories, empty disables it.
	RetryFailedCron string           `json:"retry_failed_cron"`
	Telemetry       telemetry.Config `json:"telemetry"`
}

func defaultConfig() Config {
	return Config{
		Port: 8000,
		Database: db.Config{
			File: "automarket.db",
		},
		Registry: registry.DefaultConfig(),
	}
}

func loadConfig(path string) (Config, error) {
	config, err := configutil.ReadConfig(path, defaultConfig())
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("no configuration found at %s", path)
	}
	if err != nil {
		return Config{}, err
	}
	if config.Port <= 0 || config.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", config.Port)
	}
	return config, nil
}
