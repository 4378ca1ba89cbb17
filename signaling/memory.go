// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import "sync"

// Compile-time interface check.
var _ Transport = (*MemoryTransport)(nil)

// MemoryTransport is an in-process Transport for tests. It records
// everything sent through it and lets the test inject inbound events,
// standing in for either side of the channel without any network.
type MemoryTransport struct {
	mu        sync.Mutex
	events    Events
	started   bool
	closed    bool
	sessionID string
	token     string
	sent      []Message
}

// NewMemoryTransport creates an idle in-process transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) Subscribe(events Events) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = events
}

func (t *MemoryTransport) Start(id, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	t.started = true
	t.sessionID = id
	t.token = token
	return nil
}

func (t *MemoryTransport) Send(message Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.sent = append(t.sent, message)
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Started reports whether Start has been called, and with what
// session identity.
func (t *MemoryTransport) Started() (bool, string, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started, t.sessionID, t.token
}

// Closed reports whether Close has been called.
func (t *MemoryTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Sent returns a copy of every message sent through the transport, in
// call order.
func (t *MemoryTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

// InjectMessage delivers an inbound message to the subscriber, as the
// server would.
func (t *MemoryTransport) InjectMessage(message Message) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	events.emitMessage(message)
}

// InjectDisconnect delivers a transport-loss event to the subscriber.
func (t *MemoryTransport) InjectDisconnect() {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	events.emitDisconnected()
}

// InjectError delivers a transport error to the subscriber.
func (t *MemoryTransport) InjectError(err error) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	events.emitError(err)
}
