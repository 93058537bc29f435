// Package config reads remolder settings from the environment and builds
// the logger the rest of the program is handed.
package config

import (
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-hclog"
)

// Config holds the environment settings. Command-line flags override them.
type Config struct {
	// Manifest is the path of the remolder manifest.
	Manifest string `env:"REMOLDER_MANIFEST" envDefault:"remolders.yaml"`
	// Pack overrides the pack id of the source; empty uses the source name.
	Pack     string `env:"REMOLDER_PACK"`
	Workers  int    `env:"REMOLDER_WORKERS" envDefault:"0"`
	LogLevel string `env:"REMOLDER_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"REMOLDER_LOG_JSON"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and checks the log level.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Workers < 0 {
		return Config{}, fmt.Errorf("REMOLDER_WORKERS must not be negative, got %d", cfg.Workers)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseLevel(s string) (hclog.Level, error) {
	level := hclog.LevelFromString(s)
	if level == hclog.NoLevel {
		return hclog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogger builds the root logger writing to w.
func (c Config) NewLogger(w io.Writer) hclog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "remolder",
		Level:      level,
		Output:     w,
		JSONFormat: c.LogJSON,
	})
}
