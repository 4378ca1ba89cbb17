// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/peerway/peerway/lib/clock"
	"github.com/peerway/peerway/lib/netutil"
)

// heartbeatType is the keep-alive message the socket sends on the
// configured ping interval.
const heartbeatType = "HEARTBEAT"

// Compile-time interface check.
var _ Transport = (*SocketTransport)(nil)

// SocketTransport is the low-latency primary transport: one persistent
// WebSocket carrying JSON message frames in both directions.
//
// Dialing is asynchronous — Start returns immediately and the first
// server message (or a Disconnected event) reports the outcome.
// Messages sent while the dial is still in flight are buffered and
// flushed the moment the socket opens; this native-level buffering is
// unrelated to the fallback transport's pre-session queue, which is
// deliberately never flushed.
type SocketTransport struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger

	// writeMu serializes frame writes; gorilla/websocket allows at
	// most one concurrent writer.
	writeMu sync.Mutex

	mu           sync.Mutex
	events       Events
	started      bool
	closed       bool
	disconnected bool
	conn         *websocket.Conn
	pending      []Message
	pingTicker   *clock.Ticker
	done         chan struct{}
}

// NewSocketTransport creates the primary transport from the endpoint
// configuration. Start opens the socket.
func NewSocketTransport(config Config) *SocketTransport {
	return &SocketTransport{
		config: config,
		clock:  config.clock(),
		logger: config.logger(),
		done:   make(chan struct{}),
	}
}

// Subscribe registers the listener set. Call before Start.
func (t *SocketTransport) Subscribe(events Events) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = events
}

// Start dials the server in the background. A no-op if already
// started.
func (t *SocketTransport) Start(id, token string) error {
	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	go t.connect(t.config.socketURL(id, token))
	return nil
}

// connect dials the socket, flushes frames buffered during the dial,
// and starts the read and ping loops.
func (t *SocketTransport) connect(url string) {
	conn, response, err := websocket.DefaultDialer.Dial(url, nil)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		t.logger.Warn("socket dial failed", "error", err)
		t.handleLost()
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	pending := t.pending
	t.pending = nil
	interval := t.config.PingInterval
	if interval > 0 {
		t.pingTicker = t.clock.NewTicker(interval)
	}
	ticker := t.pingTicker
	t.mu.Unlock()

	for _, message := range pending {
		if err := t.write(conn, message); err != nil {
			t.logger.Warn("flushing buffered message failed", "error", err)
		}
	}

	if ticker != nil {
		go t.pingLoop(ticker)
	}
	go t.readLoop(conn)
}

// readLoop delivers inbound frames until the socket dies.
func (t *SocketTransport) readLoop(conn *websocket.Conn) {
	for {
		var message Message
		if err := conn.ReadJSON(&message); err != nil {
			if !t.isClosed() && !netutil.IsExpectedCloseError(err) &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("socket read failed", "error", err)
			}
			t.handleLost()
			return
		}

		t.mu.Lock()
		closed := t.closed
		events := t.events
		t.mu.Unlock()
		if closed {
			return
		}
		events.emitMessage(message)
	}
}

// pingLoop sends a heartbeat frame on every tick until Close.
func (t *SocketTransport) pingLoop(ticker *clock.Ticker) {
	for {
		select {
		case <-ticker.C:
			if err := t.Send(Message{Type: heartbeatType}); err != nil {
				t.logger.Warn("heartbeat failed", "error", err)
			}
		case <-t.done:
			return
		}
	}
}

// Send writes one JSON frame. Before the socket is open the frame is
// buffered; after Close it is silently dropped.
func (t *SocketTransport) Send(message Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	conn := t.conn
	if conn == nil {
		t.pending = append(t.pending, message)
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	return t.write(conn, message)
}

func (t *SocketTransport) write(conn *websocket.Conn, message Message) error {
	encoded, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", message.Type, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
		return fmt.Errorf("writing %s message: %w", message.Type, err)
	}
	return nil
}

// Close tears the socket down. Idempotent; no events afterward.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	ticker := t.pingTicker
	t.pingTicker = nil
	t.mu.Unlock()

	close(t.done)
	if ticker != nil {
		ticker.Stop()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// handleLost reports the socket as gone, exactly once, unless Close
// already made the loss expected.
func (t *SocketTransport) handleLost() {
	t.mu.Lock()
	if t.closed || t.disconnected {
		t.mu.Unlock()
		return
	}
	t.disconnected = true
	events := t.events
	t.mu.Unlock()

	events.emitDisconnected()
}

func (t *SocketTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
