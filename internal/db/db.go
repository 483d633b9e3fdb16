package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Config describes where the database lives. If Url is set a remote libsql server is used,
// otherwise File is opened with the embedded sqlite driver (":memory:" is allowed).
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// Open opens the database described by config and applies the schema.
func Open(ctx context.Context, config Config) (*sql.DB, error) {
	var (
		dbtx *sql.DB
		err  error
	)
	if config.Url != "" {
		dbtx, err = openLibsql(config)
	} else {
		dbtx, err = openSqlite(ctx, config.File)
	}
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	err = Migrate(ctx, dbtx)
	if err != nil {
		dbtx.Close()
		return nil, wrapOpenDB(err)
	}
	return dbtx, nil
}

func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, err
		}
	}

	dbtx, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only allows a single writer, this also keeps ":memory:" databases alive
	// since they are scoped to a connection.
	// see: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	dbtx.SetMaxOpenConns(1)
	dbtx.SetConnMaxLifetime(0)

	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		_, err = dbtx.ExecContext(ctx, pragma)
		if err != nil {
			dbtx.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return dbtx, nil
}

func openLibsql(config Config) (*sql.DB, error) {
	dsn, err := url.Parse(config.Url)
	if err != nil {
		return nil, err
	}
	if config.AuthToken != "" {
		query := dsn.Query()
		query.Set("authToken", config.AuthToken)
		dsn.RawQuery = query.Encode()
	}
	return sql.Open("libsql", dsn.String())
}

// Migrate applies Schema, every statement in it is idempotent.
func Migrate(ctx context.Context, dbtx *sql.DB) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		_, err := dbtx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func stripComments(stmt string) string {
	var out strings.Builder
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}
