// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peerway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  secure: true
  host: signal.example.com
  path: /apps
  key: demo
ping_interval: 5s
log:
  level: debug
`)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if loaded.Server.Host != "signal.example.com" {
		t.Errorf("host = %q", loaded.Server.Host)
	}
	if loaded.Server.Port != 443 {
		t.Errorf("default secure port = %d, want 443", loaded.Server.Port)
	}
	if loaded.Server.Key != "demo" {
		t.Errorf("key = %q", loaded.Server.Key)
	}
	if loaded.PingInterval != 5*time.Second {
		t.Errorf("ping interval = %v", loaded.PingInterval)
	}
	if loaded.LogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", loaded.LogLevel())
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  host: localhost\n")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if loaded.Server.Port != 80 {
		t.Errorf("default port = %d, want 80", loaded.Server.Port)
	}
	if loaded.Server.Path != "/" {
		t.Errorf("default path = %q, want /", loaded.Server.Path)
	}
	if loaded.Server.Key != "peerway" {
		t.Errorf("default key = %q, want peerway", loaded.Server.Key)
	}
	if loaded.LogLevel() != slog.LevelInfo {
		t.Errorf("default log level = %v, want info", loaded.LogLevel())
	}
}

func TestApplyDefaultsOnFlagBuiltConfig(t *testing.T) {
	// A config assembled from flags alone, never through Load.
	built := &Config{Server: ServerConfig{Host: "localhost"}}
	built.ApplyDefaults()

	if built.Server.Port != 80 {
		t.Errorf("default port = %d, want 80", built.Server.Port)
	}
	if built.Server.Path != "/" {
		t.Errorf("default path = %q, want /", built.Server.Path)
	}
	if built.Server.Key != "peerway" {
		t.Errorf("default key = %q, want peerway", built.Server.Key)
	}

	secure := &Config{Server: ServerConfig{Host: "localhost", Secure: true}}
	secure.ApplyDefaults()
	if secure.Server.Port != 443 {
		t.Errorf("default secure port = %d, want 443", secure.Server.Port)
	}

	// Explicit values survive.
	set := &Config{Server: ServerConfig{Host: "localhost", Port: 9000, Key: "demo"}}
	set.ApplyDefaults()
	if set.Server.Port != 9000 || set.Server.Key != "demo" {
		t.Errorf("explicit values overwritten: port=%d key=%q", set.Server.Port, set.Server.Key)
	}
}

func TestLoadRejectsMissingHost(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a config without server.host")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "server:\n  host: localhost\nlog:\n  level: loud\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unknown log level")
	}
}

func TestSignalingConversion(t *testing.T) {
	path := writeConfig(t, `
server:
  host: localhost
  port: 9000
  path: app
  key: demo
`)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	signalingConfig := loaded.Signaling(slog.Default())
	if signalingConfig.Host != "localhost" || signalingConfig.Port != 9000 {
		t.Errorf("endpoint = %s:%d", signalingConfig.Host, signalingConfig.Port)
	}
	if signalingConfig.Key != "demo" {
		t.Errorf("key = %q", signalingConfig.Key)
	}
}
