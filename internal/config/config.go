// Package config loads relay settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	Addr        string `env:"RELAY_ADDR" default:"127.0.0.1:8080"`
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	QueueCapacity    int           `env:"QUEUE_CAPACITY" default:"10"`
	MaxLineLength    int           `env:"MAX_LINE_LENGTH" default:"65536"`
	AcceptRetryLimit int           `env:"ACCEPT_RETRY_LIMIT" default:"10"`
	AcceptBackoffMax time.Duration `env:"ACCEPT_BACKOFF_MAX" default:"1s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" default:"5s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that env parsing alone cannot. It is exported so
// command-line overrides can be re-checked.
func (cfg *Config) Validate() error {
	if cfg.Addr == "" {
		return errors.New("RELAY_ADDR is required")
	}
	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be at least 1, got %d", cfg.QueueCapacity)
	}
	// bufio cannot buffer fewer than 16 bytes.
	if cfg.MaxLineLength < 16 {
		return fmt.Errorf("MAX_LINE_LENGTH must be at least 16, got %d", cfg.MaxLineLength)
	}
	if cfg.AcceptRetryLimit < 1 {
		return fmt.Errorf("ACCEPT_RETRY_LIMIT must be at least 1, got %d", cfg.AcceptRetryLimit)
	}
	if cfg.AcceptBackoffMax <= 0 {
		return fmt.Errorf("ACCEPT_BACKOFF_MAX must be positive, got %s", cfg.AcceptBackoffMax)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", cfg.ShutdownTimeout)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
