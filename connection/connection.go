// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

// Package connection provides the shared lifecycle for logical peer
// connections riding on a signaling channel.
//
// Every connection kind — [Data] for data channels, [Media] for media
// streams — shares the same open/reconnect bookkeeping, supplied by
// [Lifecycle]: an open flag and a single-slot close-grace timer that
// bridges native-level reconnects. When the underlying transport
// suspects a drop, the owner arms the grace timer with SetCloseTimeout;
// if the native layer re-establishes in time, ClearCloseTimeout disarms
// it, otherwise the connection is closed for good. Connections are
// independent of which signaling transport is currently active — they
// only care about the logical channel being open.
//
// The connection kind is an explicit [Kind] tag. Callers that must
// branch on kind switch on the tag rather than type-asserting.
package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/peerway/peerway/lib/clock"
	"github.com/peerway/peerway/signaling"
)

// closeGraceTimeout is how long a reconnectable connection waits for
// the native transport to re-establish before giving up and closing.
const closeGraceTimeout = 15 * time.Second

// Kind discriminates connection kinds.
type Kind string

const (
	// KindData is a reliable, ordered byte channel between peers.
	KindData Kind = "data"

	// KindMedia is an audio/video stream between peers.
	KindMedia Kind = "media"
)

// Provider is the owning channel surface a connection needs: a way to
// send signaling messages to its remote peer.
type Provider interface {
	Send(message signaling.Message) error
}

// Connection is one logical peer connection.
type Connection interface {
	// ID is the connection identity, unique within the session.
	ID() string

	// Kind reports the connection kind tag.
	Kind() Kind

	// Peer is the remote peer's session id.
	Peer() string

	// Open reports whether the connection is currently usable.
	Open() bool

	// SetCloseTimeout arms the close-grace timer. Returns false — and
	// arms nothing — unless the connection is reconnectable and open.
	// While a timer is pending, further calls do nothing.
	SetCloseTimeout() bool

	// ClearCloseTimeout cancels a pending close-grace timer. Always
	// safe to call.
	ClearCloseTimeout()

	// Close tears the connection down. Terminal and idempotent.
	Close() error

	// HandleMessage dispatches one signaling message addressed to this
	// connection.
	HandleMessage(message signaling.Message) error
}

// Options configures the shared part of a connection.
type Options struct {
	// ID identifies the connection within the session.
	ID string

	// Peer is the remote peer's session id.
	Peer string

	// Provider sends signaling messages on behalf of the connection.
	Provider Provider

	// Reconnectable marks the connection as able to survive a
	// native-level drop. Only reconnectable connections get the
	// close-grace window.
	Reconnectable bool

	// Metadata is an opaque application payload carried alongside the
	// connection (negotiation metadata, labels). Never inspected.
	Metadata map[string]any

	// Clock drives the close-grace timer. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives structured diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) clock() clock.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return clock.Real()
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Lifecycle is the shared open/reconnect bookkeeping embedded by every
// concrete connection kind. The concrete kind binds its teardown with
// bindCloser and flips the open flag with markOpen.
type Lifecycle struct {
	id       string
	kind     Kind
	peer     string
	provider Provider
	metadata map[string]any
	clock    clock.Clock
	logger   *slog.Logger

	// closer is the concrete kind's teardown, invoked when the grace
	// window expires with the connection still open.
	closer func()

	mu            sync.Mutex
	open          bool
	reconnectable bool
	closeTimer    *clock.Timer
}

func newLifecycle(kind Kind, options Options) Lifecycle {
	return Lifecycle{
		id:            options.ID,
		kind:          kind,
		peer:          options.Peer,
		provider:      options.Provider,
		metadata:      options.Metadata,
		clock:         options.clock(),
		logger:        options.logger(),
		reconnectable: options.Reconnectable,
	}
}

// bindCloser sets the teardown hook. Called once, during construction
// of the concrete kind.
func (l *Lifecycle) bindCloser(closer func()) { l.closer = closer }

// ID returns the connection identity.
func (l *Lifecycle) ID() string { return l.id }

// Kind returns the connection kind tag.
func (l *Lifecycle) Kind() Kind { return l.kind }

// Peer returns the remote peer's session id.
func (l *Lifecycle) Peer() string { return l.peer }

// Metadata returns the opaque application payload.
func (l *Lifecycle) Metadata() map[string]any { return l.metadata }

// Open reports whether the connection is currently usable.
func (l *Lifecycle) Open() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// markOpen flips the open flag. Concrete kinds call this from their
// native open/close callbacks.
func (l *Lifecycle) markOpen(open bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = open
}

// SetCloseTimeout arms the single close-grace slot: if the connection
// is still open when the window expires, it is closed. Returns false
// and arms nothing unless the connection is reconnectable and open.
// A call while a timer is already pending does nothing.
func (l *Lifecycle) SetCloseTimeout() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.reconnectable || !l.open {
		return false
	}
	if l.closeTimer != nil {
		return true
	}
	l.closeTimer = l.clock.AfterFunc(closeGraceTimeout, l.handleCloseTimeout)
	return true
}

// ClearCloseTimeout cancels the pending grace timer, if any. Called on
// confirmed native re-establishment.
func (l *Lifecycle) ClearCloseTimeout() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closeTimer != nil {
		l.closeTimer.Stop()
		l.closeTimer = nil
	}
}

// handleCloseTimeout fires when the grace window expires. A no-op
// unless the connection is still reconnectable and open.
func (l *Lifecycle) handleCloseTimeout() {
	l.mu.Lock()
	l.closeTimer = nil
	expired := l.open && l.reconnectable
	closer := l.closer
	l.mu.Unlock()

	if !expired || closer == nil {
		return
	}
	l.logger.Info("reconnect grace expired, closing connection",
		"connection", l.id,
		"kind", l.kind,
	)
	closer()
}
