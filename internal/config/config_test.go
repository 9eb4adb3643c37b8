package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Runs.Timeout)
	assert.Equal(t, time.Second, cfg.Tracking.TickInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.OutboxEnabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: ":9090"
runs:
  url: https://runs.example.com/api
  timeout: 5s
outbox:
  interval: 1m
database:
  path: ""
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("RUNS_API_TOKEN", "secret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", ":7070")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, "https://runs.example.com/api", cfg.Runs.URL)
	assert.Equal(t, "secret", cfg.Runs.Token)
	assert.Equal(t, 5*time.Second, cfg.Runs.Timeout)
	assert.Equal(t, time.Minute, cfg.Outbox.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.OutboxEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvTransformIgnoresUnknown(t *testing.T) {
	assert.Equal(t, "runs.url", envTransformFunc("RUNS_API_URL"))
	assert.Equal(t, "", envTransformFunc("HOME"))
}
