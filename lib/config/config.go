// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads client configuration for Peerway tools.
//
// Configuration comes from a single YAML file passed explicitly (the
// --config flag); there is no automatic discovery. Absent fields fall
// back to protocol defaults, and command-line flags may override
// loaded values after the fact.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peerway/peerway/signaling"
)

// Config is the client configuration file.
type Config struct {
	// Server locates the coordination server.
	Server ServerConfig `yaml:"server"`

	// PingInterval is the primary transport keep-alive interval.
	// Zero disables the ping cycle.
	PingInterval time.Duration `yaml:"ping_interval"`

	// Log configures diagnostics output.
	Log LogConfig `yaml:"log"`
}

// ServerConfig locates the coordination server.
type ServerConfig struct {
	// Secure selects TLS (https/wss).
	Secure bool `yaml:"secure"`

	// Host is the server hostname. Required.
	Host string `yaml:"host"`

	// Port is the server port. Zero means 443 with Secure, 80 without.
	Port int `yaml:"port"`

	// Path is the server mount point. Empty means "/".
	Path string `yaml:"path"`

	// Key is the API key segment. Empty means "peerway".
	Key string `yaml:"key"`
}

// LogConfig configures diagnostics output.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	loaded.ApplyDefaults()
	return &loaded, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// ApplyDefaults fills absent fields with protocol defaults. Load does
// this automatically; callers assembling a Config from flags alone
// must call it themselves after validation.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		if c.Server.Secure {
			c.Server.Port = 443
		} else {
			c.Server.Port = 80
		}
	}
	if c.Server.Path == "" {
		c.Server.Path = "/"
	}
	if c.Server.Key == "" {
		c.Server.Key = "peerway"
	}
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Signaling converts the file into the signaling endpoint
// configuration.
func (c *Config) Signaling(logger *slog.Logger) signaling.Config {
	return signaling.Config{
		Secure:       c.Server.Secure,
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		Path:         c.Server.Path,
		Key:          c.Server.Key,
		PingInterval: c.PingInterval,
		Logger:       logger,
	}
}
