package main

import (
	"os"
	"path/filepath"
	"testing"

	"automarket-backend/internal/scrapers/registry"

	"github.com/stretchr/testify/require"
)

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	writeFile(t, path, `{
		// shared between deployments
		registry: {
			api_version: "1.0.18",
		},
		retry_failed_cron: "0 */6 * * *",
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{
		port: 9000,
		access_token: "local-token",
	}`)

	config, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 9000, config.Port)
	require.Equal(t, "local-token", config.AccessToken)
	require.Equal(t, "automarket.db", config.Database.File)
	require.Equal(t, "0 */6 * * *", config.RetryFailedCron)
	require.Equal(t, registry.DefaultBaseUrl, config.Registry.BaseUrl)
	require.Equal(t, registry.DefaultAppName, config.Registry.AppName)
	require.Equal(t, "1.0.18", config.Registry.ApiVersion)
	require.Equal(t, registry.DefaultTimeoutSeconds, config.Registry.TimeoutSeconds)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorContains(t, err, "no configuration found")
}

func TestLoadConfigInvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	writeFile(t, path, `{port: 70000}`)

	_, err := loadConfig(path)
	require.ErrorContains(t, err, "invalid port")
}
