// Package config provides 12-factor configuration management for the backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Store: Adapter process spawn settings (timeouts, breaker, console buffer)
//   - State: Persistent state directory (pane layouts)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	State     StateConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8200"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// StoreConfig holds session store (adapter process) configuration.
type StoreConfig struct {
	BootTimeoutSeconds int `envconfig:"BOOT_TIMEOUT_SECONDS" default:"60"`
	// Consecutive spawn failures per adapter command before the breaker opens.
	SpawnFailureThreshold int `envconfig:"SPAWN_FAILURE_THRESHOLD" default:"5"`
	SpawnBreakerSeconds   int `envconfig:"SPAWN_BREAKER_SECONDS" default:"30"`
	ConsoleBufferBytes    int `envconfig:"CONSOLE_BUFFER_BYTES" default:"1048576"`
}

// StateConfig holds persistent state locations.
type StateConfig struct {
	Dir string `envconfig:"STATE_DIR" default:"/tmp/debugos-state"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8200",
			Host: "0.0.0.0",
		},
		Store: StoreConfig{
			BootTimeoutSeconds:    60,
			SpawnFailureThreshold: 5,
			SpawnBreakerSeconds:   30,
			ConsoleBufferBytes:    1 << 20,
		},
		State: StateConfig{
			Dir: "/tmp/debugos-state",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
