package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// MustLoad parses environment variables into cfg and exits the process
// on failure. Intended for use from main.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
}
