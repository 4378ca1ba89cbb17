// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/peerway/peerway/lib/clock"
)

// Transport is a reliable, ordered, bidirectional message channel to
// the coordination server. [SocketTransport] is the low-latency
// primary, [PollTransport] the chained long-poll fallback, and
// [Channel] composes the two behind this same interface.
type Transport interface {
	// Start binds the transport to a server-assigned session identity
	// and begins delivering events. Calling Start on a running
	// transport is a no-op.
	Start(id, token string) error

	// Send transmits one message to the server. Behavior before the
	// session is fully established is transport-specific (see the
	// concrete types); after Close, Send is a no-op.
	Send(message Message) error

	// Close tears the transport down: all pending timers are canceled
	// and outstanding requests aborted before Close returns. No events
	// are delivered afterward. Close is idempotent.
	Close() error

	// Subscribe registers the event listener set. At most one
	// subscriber is supported; a second call replaces the first.
	// Subscribe before Start, or events may be missed.
	Subscribe(events Events)
}

// Events is the listener set a Transport reports into. Nil fields are
// skipped. Callbacks are invoked sequentially — a transport never runs
// two of them concurrently — but always from internal goroutines, so
// they must not block.
type Events struct {
	// Message delivers one inbound server message.
	Message func(Message)

	// Disconnected reports that the transport is gone and will not
	// recover. Fired at most once.
	Disconnected func()

	// Error reports a non-recoverable local error, such as an outbound
	// message with no type. The transport itself stays usable.
	Error func(err error)
}

func (e Events) emitMessage(message Message) {
	if e.Message != nil {
		e.Message(message)
	}
}

func (e Events) emitDisconnected() {
	if e.Disconnected != nil {
		e.Disconnected()
	}
}

func (e Events) emitError(err error) {
	if e.Error != nil {
		e.Error(err)
	}
}

// Config describes the coordination server endpoint. The same Config
// feeds both transports; only the URL scheme differs between them.
type Config struct {
	// Secure selects https/wss over http/ws.
	Secure bool

	// Host and Port locate the server.
	Host string
	Port int

	// Path is the server mount point. Normalized to have a leading and
	// trailing slash ("/" for a server mounted at the root).
	Path string

	// Key is the API key segment appended to the path.
	Key string

	// PingInterval is the primary transport's keep-alive interval.
	// Zero disables the ping cycle.
	PingInterval time.Duration

	// HTTPClient is used by the fallback transport. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives structured diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// Clock drives every timeout. Nil means clock.Real().
	Clock clock.Clock
}

// normalizedPath returns Path with leading and trailing slashes
// guaranteed.
func (c Config) normalizedPath() string {
	path := c.Path
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// baseURL builds the fallback transport's URL prefix:
// {http|https}://{host}:{port}{path}{key}.
func (c Config) baseURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s%s", scheme, c.Host, c.Port, c.normalizedPath(), c.Key)
}

// socketURL builds the primary transport's WebSocket endpoint:
// {ws|wss}://{host}:{port}{path}ws?key=...&id=...&token=...
func (c Config) socketURL(id, token string) string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%sws?key=%s&id=%s&token=%s",
		scheme, c.Host, c.Port, c.normalizedPath(), c.Key, id, token)
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) clock() clock.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return clock.Real()
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// New builds the server connection. With fallback enabled it returns a
// [Channel] that starts on the primary transport and downgrades to
// chained polling when the primary does not come up; otherwise it
// returns the primary transport alone. Either way the caller holds the
// same Transport contract and never needs to know which was chosen.
func New(config Config, fallback bool) Transport {
	primary := NewSocketTransport(config)
	if !fallback {
		return primary
	}
	return NewChannel(primary, NewPollTransport(config), config.clock(), config.logger())
}
