package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notakto.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvToken, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Empty(t, cfg.Server.URL)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.PollInterval())
	assert.Equal(t, 15*time.Minute, cfg.MaxWait())
}

func TestLoadFileFillsUnsetValues(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvToken, "")

	path := writeConfig(t, `
server {
  url = "https://api.notakto.test"
}

auth {}

game {
  boards     = 2
  difficulty = 4
}

payment {
  max_wait = "0s"
}

ui {
  log_level = "debug"
  mute      = true
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.notakto.test", cfg.Server.URL)
	assert.Equal(t, 2, cfg.Game.Boards)
	assert.Equal(t, 3, cfg.Game.BoardSize)
	assert.Equal(t, 4, cfg.Game.Difficulty)
	assert.Equal(t, time.Duration(0), cfg.MaxWait())
	assert.Equal(t, "notakto.log", cfg.UI.LogFile)
	assert.True(t, cfg.UI.Mute)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://localhost:3000")
	t.Setenv(EnvToken, "tok")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Server.URL)
	assert.Equal(t, "tok", cfg.Auth.Token)
}

func TestLoadInvalidHCL(t *testing.T) {
	_, err := Load(writeConfig(t, `server {`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"boards", func(c *Config) { c.Game.Boards = 9 }},
		{"board size", func(c *Config) { c.Game.BoardSize = 1 }},
		{"difficulty", func(c *Config) { c.Game.Difficulty = 0 }},
		{"coins", func(c *Config) { c.Payment.Coins = -1 }},
		{"duration", func(c *Config) { c.Payment.MaxWait = "soon" }},
		{"poll interval", func(c *Config) { c.Payment.PollInterval = "0s" }},
		{"log level", func(c *Config) { c.UI.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
