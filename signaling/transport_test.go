// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import "testing"

func TestConfigNormalizedPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"apps", "/apps/"},
		{"/apps", "/apps/"},
		{"apps/", "/apps/"},
		{"/apps/", "/apps/"},
	}
	for _, c := range cases {
		config := Config{Path: c.path}
		if got := config.normalizedPath(); got != c.want {
			t.Errorf("normalizedPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestConfigBaseURL(t *testing.T) {
	config := Config{Host: "signal.example.com", Port: 9000, Path: "apps", Key: "demo"}
	if got := config.baseURL(); got != "http://signal.example.com:9000/apps/demo" {
		t.Errorf("baseURL = %q", got)
	}

	config.Secure = true
	config.Port = 443
	if got := config.baseURL(); got != "https://signal.example.com:443/apps/demo" {
		t.Errorf("secure baseURL = %q", got)
	}
}

func TestConfigSocketURL(t *testing.T) {
	config := Config{Host: "localhost", Port: 9000, Key: "demo"}
	want := "ws://localhost:9000/ws?key=demo&id=session-1&token=token-1"
	if got := config.socketURL("session-1", "token-1"); got != want {
		t.Errorf("socketURL = %q, want %q", got, want)
	}

	config.Secure = true
	if got := config.socketURL("session-1", "token-1"); got[:3] != "wss" {
		t.Errorf("secure socketURL = %q, want wss scheme", got)
	}
}

func TestNewSelectsTransport(t *testing.T) {
	config := Config{Host: "localhost", Port: 9000, Key: "demo", Logger: testLogger()}

	if _, ok := New(config, false).(*SocketTransport); !ok {
		t.Error("New without fallback did not return the socket transport")
	}
	if _, ok := New(config, true).(*Channel); !ok {
		t.Error("New with fallback did not return a channel")
	}
}
