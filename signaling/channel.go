// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/peerway/peerway/lib/clock"
)

// primaryOpenTimeout is how long the primary transport has to produce
// a first message before the channel silently downgrades to the
// fallback transport.
const primaryOpenTimeout = 5 * time.Second

// channelState tracks which transport is authoritative.
type channelState int

const (
	// channelIdle: created, Start not yet called.
	channelIdle channelState = iota

	// channelPrimaryPending: primary started, open timer armed.
	channelPrimaryPending

	// channelPrimaryActive: the primary produced a message within the
	// open window and stays authoritative for the session.
	channelPrimaryActive

	// channelFallback: the primary was closed and the fallback is
	// authoritative. There is no way back within a session.
	channelFallback

	// channelClosed: terminally closed.
	channelClosed
)

func (s channelState) String() string {
	switch s {
	case channelIdle:
		return "idle"
	case channelPrimaryPending:
		return "primary-pending"
	case channelPrimaryActive:
		return "primary-active"
	case channelFallback:
		return "fallback"
	case channelClosed:
		return "closed"
	}
	return fmt.Sprintf("channelState(%d)", int(s))
}

// Compile-time interface check.
var _ Transport = (*Channel)(nil)

// Channel composes a primary transport and a fallback transport and
// keeps exactly one of them authoritative at any instant. It starts on
// the primary with a 5s open window; if no message arrives in time, or
// the primary disconnects before producing one, the channel closes the
// primary and restarts the session on the fallback. The downgrade
// happens at most once per session.
//
// The channel subscribes to both inner transports and forwards only
// the events of the currently authoritative one — events from the
// other transport are swallowed, so the brief overlap at failover time
// can never surface duplicate or stale events.
type Channel struct {
	primary  Transport
	fallback Transport
	clock    clock.Clock
	logger   *slog.Logger

	mu        sync.Mutex
	state     channelState
	current   Transport
	openTimer *clock.Timer
	events    Events
	id        string
	token     string
}

// NewChannel wires a primary and a fallback transport into a resilient
// channel. Use the [New] factory unless the transports themselves need
// substituting (tests do).
func NewChannel(primary, fallback Transport, cl clock.Clock, logger *slog.Logger) *Channel {
	channel := &Channel{
		primary:  primary,
		fallback: fallback,
		clock:    cl,
		logger:   logger,
	}

	primary.Subscribe(Events{
		Message:      func(m Message) { channel.handleMessage(primary, m) },
		Disconnected: func() { channel.handleDisconnected(primary) },
		Error:        func(err error) { channel.handleError(primary, err) },
	})
	fallback.Subscribe(Events{
		Message:      func(m Message) { channel.handleMessage(fallback, m) },
		Disconnected: func() { channel.handleDisconnected(fallback) },
		Error:        func(err error) { channel.handleError(fallback, err) },
	})

	return channel
}

// Subscribe registers the channel's own listener set.
func (c *Channel) Subscribe(events Events) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
}

// Start records the session identity and attempts the primary
// transport, arming the open window. A no-op once started.
func (c *Channel) Start(id, token string) error {
	if id == "" || token == "" {
		return fmt.Errorf("signaling: session id and token are required")
	}

	c.mu.Lock()
	if c.state != channelIdle {
		c.mu.Unlock()
		return nil
	}
	c.id = id
	c.token = token
	c.state = channelPrimaryPending
	c.current = c.primary
	c.openTimer = c.clock.AfterFunc(primaryOpenTimeout, c.handleOpenTimeout)
	c.mu.Unlock()

	return c.primary.Start(id, token)
}

// Send forwards to the authoritative transport. With none current
// (before Start, after Close), Send is a no-op.
func (c *Channel) Send(message Message) error {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current == nil {
		return nil
	}
	return current.Send(message)
}

// Close cancels the open window, closes the authoritative transport,
// and clears it. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == channelClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = channelClosed
	timer := c.openTimer
	c.openTimer = nil
	current := c.current
	c.current = nil
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if current != nil {
		return current.Close()
	}
	return nil
}

// handleOpenTimeout fires when the primary produced nothing inside the
// open window.
func (c *Channel) handleOpenTimeout() {
	c.mu.Lock()
	if c.state != channelPrimaryPending {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Info("primary transport open timed out, falling back",
		"timeout", primaryOpenTimeout,
	)
	c.failover()
}

// failover performs the one-way downgrade: close the primary, make the
// fallback authoritative, and restart the session on it. Messages in
// flight on the primary at this instant are lost; the fallback's chain
// starts fresh at the same session identity.
func (c *Channel) failover() {
	c.mu.Lock()
	if c.state != channelPrimaryPending {
		c.mu.Unlock()
		return
	}
	c.state = channelFallback
	timer := c.openTimer
	c.openTimer = nil
	c.current = c.fallback
	id, token := c.id, c.token
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	c.primary.Close()

	if err := c.fallback.Start(id, token); err != nil {
		c.logger.Error("starting fallback transport failed", "error", err)
	}
}

// handleMessage forwards a message if it came from the authoritative
// transport. The first primary message disarms the open window for the
// rest of the session.
func (c *Channel) handleMessage(from Transport, message Message) {
	c.mu.Lock()
	if c.state == channelClosed || from != c.current {
		c.mu.Unlock()
		return
	}
	if c.state == channelPrimaryPending && from == c.primary {
		c.state = channelPrimaryActive
		if c.openTimer != nil {
			c.openTimer.Stop()
			c.openTimer = nil
		}
	}
	events := c.events
	c.mu.Unlock()

	events.emitMessage(message)
}

// handleDisconnected routes a transport loss: during the open window a
// primary loss triggers failover instead of surfacing; anywhere else a
// loss of the authoritative transport surfaces as the channel's own
// disconnect.
func (c *Channel) handleDisconnected(from Transport) {
	c.mu.Lock()
	if c.state == channelClosed || from != c.current {
		c.mu.Unlock()
		return
	}
	if c.state == channelPrimaryPending && from == c.primary {
		c.mu.Unlock()
		c.logger.Info("primary transport disconnected before opening, falling back")
		c.failover()
		return
	}
	events := c.events
	c.mu.Unlock()

	events.emitDisconnected()
}

// handleError forwards errors from the authoritative transport only.
func (c *Channel) handleError(from Transport, err error) {
	c.mu.Lock()
	if c.state == channelClosed || from != c.current {
		c.mu.Unlock()
		return
	}
	events := c.events
	c.mu.Unlock()

	events.emitError(err)
}
