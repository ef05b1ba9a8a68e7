// Package config loads the engine's YAML configuration file: database
// path, busy timeout, log level, and default query timeout.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of config.yaml.
type Config struct {
	Database      string        `yaml:"database"`
	BusyTimeout   time.Duration `yaml:"busy_timeout"`
	LogLevel      string        `yaml:"log_level"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
}

// Default returns the configuration used when no config.yaml exists.
func Default() *Config {
	return &Config{
		Database:     "graphdb.db",
		BusyTimeout:  5 * time.Second,
		LogLevel:     "info",
		QueryTimeout: 30 * time.Second,
	}
}

// Load reads and parses a config.yaml at path, filling in defaults for
// any field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Database == "" {
		cfg.Database = "graphdb.db"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	return cfg, nil
}

// SlogLevel parses LogLevel into a slog.Level, defaulting to Info for
// an empty or unrecognized value.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
