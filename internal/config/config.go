// Package config provides configuration loading for the tessera runtime.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TESSERA_SERVER_PORT, TESSERA_RUNTIME_STEP_TIMEOUT, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TESSERA_"

// Config holds the complete runtime configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Runtime RuntimeConfig `koanf:"runtime"`
	Redis   RedisConfig   `koanf:"redis"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RuntimeConfig holds orchestration runtime configuration.
type RuntimeConfig struct {
	PatternDir       string        `koanf:"pattern_dir"`
	OwnershipFile    string        `koanf:"ownership_file"`
	StepTimeout      time.Duration `koanf:"step_timeout"`
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// RedisConfig holds the optional shared-cache backend. An empty address
// disables the shared tier; the per-request cache always runs.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Load reads configuration from an optional YAML file, overridden by
// TESSERA_* environment variables, on top of defaults.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	// TESSERA_SERVER_PORT -> server.port
	// TESSERA_RUNTIME_STEP_TIMEOUT -> runtime.step_timeout
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8480
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Runtime.PatternDir == "" {
		cfg.Runtime.PatternDir = "./patterns"
	}
	if cfg.Runtime.StepTimeout == 0 {
		cfg.Runtime.StepTimeout = 30 * time.Second
	}
	if cfg.Runtime.BreakerThreshold == 0 {
		cfg.Runtime.BreakerThreshold = 5
	}
	if cfg.Runtime.BreakerCooldown == 0 {
		cfg.Runtime.BreakerCooldown = 30 * time.Second
	}
}

// Validate rejects configurations the runtime cannot serve.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Runtime.StepTimeout <= 0 {
		return fmt.Errorf("runtime.step_timeout must be positive")
	}
	if c.Runtime.BreakerThreshold < 1 {
		return fmt.Errorf("runtime.breaker_threshold must be at least 1")
	}
	if c.Runtime.BreakerCooldown <= 0 {
		return fmt.Errorf("runtime.breaker_cooldown must be positive")
	}
	return nil
}
