package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with CONFIG_PATH unset, so no
// config file is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "steam-arena.db", cfg.Database.Path)
	assert.Equal(t, 6*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.Sync.SnapshotInterval)
	assert.Equal(t, "https://store.steampowered.com/api", cfg.Steam.StoreURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Steam.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/arena.db")
	t.Setenv("STEAM_API_KEY", "secret")
	t.Setenv("SYNC_INTERVAL", "30m")
	t.Setenv("SYNC_CONCURRENCY", "8")
	t.Setenv("SYNC_SNAPSHOT_INTERVAL", "0s")
	t.Setenv("STEAM_STORE_URL", "http://localhost:9999/api")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/arena.db", cfg.Database.Path)
	assert.True(t, cfg.Steam.Enabled())
	assert.Equal(t, 30*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, time.Duration(0), cfg.Sync.SnapshotInterval)
	assert.Equal(t, "http://localhost:9999/api", cfg.Steam.StoreURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "arena.yaml")
	yaml := `
server:
  port: 7000
  cors_origins:
    - https://yaml.example
sync:
  interval: 0s
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"https://yaml.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
	assert.Equal(t, "error", cfg.Logging.Level, "environment wins over the file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "PORT", "70000"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"zero concurrency", "SYNC_CONCURRENCY", "0"},
		{"bad base url", "STEAM_BASE_URL", "not a url"},
		{"bad store url", "STEAM_STORE_URL", "not a url"},
		{"negative snapshot interval", "SYNC_SNAPSHOT_INTERVAL", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "steam.api_key", envTransformFunc("STEAM_API_KEY"))
	assert.Equal(t, "server.port", envTransformFunc("port"))
	assert.Equal(t, "", envTransformFunc("HOME"))
}
