package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/secrets/internal/config"
)

// runApp runs the CLI with args and returns the config handed to run.
func runApp(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var got *config.Config
	app := newApp(func(_ context.Context, cfg *config.Config) error {
		got = cfg
		return nil
	})
	err := app.Run(append([]string{"secrets"}, args...))
	return got, err
}

func TestLoadConfig_Flags(t *testing.T) {
	cfg, err := runApp(t,
		"--port", "8080",
		"--database-url", "sqlite://:memory:",
		"--google-client-id", "gid",
		"--google-client-secret", "gsecret",
		"--cookie-secure",
	)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite://:memory:", cfg.DatabaseURL)
	assert.True(t, cfg.GoogleEnabled())
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 24*time.Hour, cfg.SessionLifetime, "default kept")
}

func TestLoadConfig_EnvironmentAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 4000
database_url = "sqlite://from-file.db"
session_lifetime = "1h"
`), 0o600))
	t.Setenv("SESSION_LIFETIME", "2h")

	cfg, err := runApp(t, "--config", path, "--port", "5000")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port, "flag beats file")
	assert.Equal(t, "sqlite://from-file.db", cfg.DatabaseURL, "file beats default")
	assert.Equal(t, 2*time.Hour, cfg.SessionLifetime, "environment beats file")
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := runApp(t, "--database-url", "sqlite://:memory:", "--session-secret", "short")
	assert.Error(t, err)

	_, err = runApp(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
