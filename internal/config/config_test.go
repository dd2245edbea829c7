package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tessera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8480, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./patterns", cfg.Runtime.PatternDir)
	assert.Equal(t, 30*time.Second, cfg.Runtime.StepTimeout)
	assert.Equal(t, 5, cfg.Runtime.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Runtime.BreakerCooldown)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  shutdown_timeout: 5s
runtime:
  pattern_dir: /srv/patterns
  ownership_file: /srv/ownership.yaml
  step_timeout: 45s
  breaker_threshold: 3
  breaker_cooldown: 1m
redis:
  addr: localhost:6379
  db: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/srv/patterns", cfg.Runtime.PatternDir)
	assert.Equal(t, "/srv/ownership.yaml", cfg.Runtime.OwnershipFile)
	assert.Equal(t, 45*time.Second, cfg.Runtime.StepTimeout)
	assert.Equal(t, 3, cfg.Runtime.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.Runtime.BreakerCooldown)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)
	t.Setenv("TESSERA_SERVER_PORT", "7070")
	t.Setenv("TESSERA_RUNTIME_STEP_TIMEOUT", "15s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Runtime.StepTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "negative step timeout",
			mutate:  func(c *Config) { c.Runtime.StepTimeout = -time.Second },
			wantErr: "step_timeout",
		},
		{
			name:    "zero breaker threshold",
			mutate:  func(c *Config) { c.Runtime.BreakerThreshold = -1 },
			wantErr: "breaker_threshold",
		},
		{
			name:    "negative cooldown",
			mutate:  func(c *Config) { c.Runtime.BreakerCooldown = -time.Minute },
			wantErr: "breaker_cooldown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
