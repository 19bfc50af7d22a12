// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// SessionSecret signs the admin principal cookie.
	SessionSecret string `env:"SESSION_SECRET" default:"kiosk-development-secret"`

	// RedisURL enables presence persistence when set; empty keeps
	// presence purely in memory.
	RedisURL string `env:"REDIS_URL"`

	// PingInterval is the per-connection liveness ping cadence.
	PingInterval time.Duration `env:"PING_INTERVAL" default:"30s"`

	// DefaultHeartbeatInterval applies to heartbeats that do not state
	// their own cadence.
	DefaultHeartbeatInterval time.Duration `env:"DEFAULT_HEARTBEAT_INTERVAL" default:"60s"`

	// OutboundBufferSize is the per-connection outbound event buffer.
	OutboundBufferSize int `env:"OUTBOUND_BUFFER_SIZE" default:"16"`

	// MaxConnections caps concurrent long-lived connections per instance.
	MaxConnections int64 `env:"MAX_CONNECTIONS" default:"10000"`

	// HeartbeatRatePerSecond rate-limits the heartbeat endpoint per IP.
	HeartbeatRatePerSecond float64 `env:"HEARTBEAT_RATE_PER_SECOND" default:"10"`
	HeartbeatRateBurst     int     `env:"HEARTBEAT_RATE_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive, got %s", cfg.PingInterval)
	}
	if cfg.DefaultHeartbeatInterval <= 0 {
		return fmt.Errorf("DEFAULT_HEARTBEAT_INTERVAL must be positive, got %s", cfg.DefaultHeartbeatInterval)
	}
	if cfg.OutboundBufferSize < 1 {
		return fmt.Errorf("OUTBOUND_BUFFER_SIZE must be at least 1, got %d", cfg.OutboundBufferSize)
	}
	if cfg.MaxConnections < 1 {
		return fmt.Errorf("MAX_CONNECTIONS must be at least 1, got %d", cfg.MaxConnections)
	}
	if cfg.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must not be empty")
	}
	return nil
}
