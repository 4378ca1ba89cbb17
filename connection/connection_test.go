// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/peerway/peerway/lib/clock"
	"github.com/peerway/peerway/signaling"
)

// sendFunc adapts a function to the Provider interface.
type sendFunc func(signaling.Message) error

func (f sendFunc) Send(message signaling.Message) error { return f(message) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestLifecycle(t *testing.T, reconnectable bool) (*Lifecycle, *clock.FakeClock, *int) {
	t.Helper()
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	lifecycle := newLifecycle(KindData, Options{
		ID:            "dc-1",
		Peer:          "peer-2",
		Provider:      sendFunc(func(signaling.Message) error { return nil }),
		Reconnectable: reconnectable,
		Clock:         fakeClock,
		Logger:        testLogger(),
	})
	closes := 0
	lifecycle.bindCloser(func() {
		closes++
		lifecycle.markOpen(false)
	})
	return &lifecycle, fakeClock, &closes
}

func TestLifecycleAccessors(t *testing.T) {
	lifecycle, _, _ := newTestLifecycle(t, true)

	if lifecycle.ID() != "dc-1" || lifecycle.Kind() != KindData || lifecycle.Peer() != "peer-2" {
		t.Errorf("identity = (%q, %q, %q)", lifecycle.ID(), lifecycle.Kind(), lifecycle.Peer())
	}
	if lifecycle.Open() {
		t.Error("fresh lifecycle reports open")
	}
	lifecycle.markOpen(true)
	if !lifecycle.Open() {
		t.Error("lifecycle not open after markOpen")
	}
}

func TestSetCloseTimeoutRequiresReconnectableAndOpen(t *testing.T) {
	// Not open yet.
	lifecycle, fakeClock, _ := newTestLifecycle(t, true)
	if lifecycle.SetCloseTimeout() {
		t.Error("timer armed on a connection that never opened")
	}

	// Open but not reconnectable.
	fixed, _, _ := newTestLifecycle(t, false)
	fixed.markOpen(true)
	if fixed.SetCloseTimeout() {
		t.Error("timer armed on a non-reconnectable connection")
	}

	// Both: arms.
	lifecycle.markOpen(true)
	if !lifecycle.SetCloseTimeout() {
		t.Error("timer not armed on an open reconnectable connection")
	}
	if fakeClock.PendingCount() != 1 {
		t.Errorf("pending timers = %d, want 1", fakeClock.PendingCount())
	}
}

func TestSetCloseTimeoutSingleSlot(t *testing.T) {
	lifecycle, fakeClock, closes := newTestLifecycle(t, true)
	lifecycle.markOpen(true)

	lifecycle.SetCloseTimeout()
	// A second arm while pending is a no-op: the original deadline
	// stands.
	fakeClock.Advance(10 * time.Second)
	if !lifecycle.SetCloseTimeout() {
		t.Error("re-arm while pending reported failure")
	}
	if fakeClock.PendingCount() != 1 {
		t.Errorf("pending timers = %d, want 1", fakeClock.PendingCount())
	}

	// 5 more seconds completes the original 15s window.
	fakeClock.Advance(5 * time.Second)
	if *closes != 1 {
		t.Errorf("closer invoked %d times, want 1", *closes)
	}
}

func TestCloseTimeoutFiresAfterGraceWindow(t *testing.T) {
	lifecycle, fakeClock, closes := newTestLifecycle(t, true)
	lifecycle.markOpen(true)
	lifecycle.SetCloseTimeout()

	fakeClock.Advance(14 * time.Second)
	if *closes != 0 {
		t.Fatal("closer invoked before the grace window expired")
	}

	fakeClock.Advance(time.Second)
	if *closes != 1 {
		t.Errorf("closer invoked %d times, want 1", *closes)
	}
	if lifecycle.Open() {
		t.Error("connection still open after grace expiry")
	}
}

func TestClearCloseTimeoutDisarms(t *testing.T) {
	lifecycle, fakeClock, closes := newTestLifecycle(t, true)
	lifecycle.markOpen(true)
	lifecycle.SetCloseTimeout()

	lifecycle.ClearCloseTimeout()
	fakeClock.Advance(time.Minute)
	if *closes != 0 {
		t.Error("closer invoked after the timer was cleared")
	}

	// Clearing with no pending timer is safe.
	lifecycle.ClearCloseTimeout()

	// The slot is free again.
	if !lifecycle.SetCloseTimeout() {
		t.Error("timer not re-armable after a clear")
	}
	fakeClock.Advance(closeGraceTimeout)
	if *closes != 1 {
		t.Errorf("closer invoked %d times after re-arm, want 1", *closes)
	}
}

func TestCloseTimeoutNoOpWhenAlreadyClosed(t *testing.T) {
	lifecycle, fakeClock, closes := newTestLifecycle(t, true)
	lifecycle.markOpen(true)
	lifecycle.SetCloseTimeout()

	// The connection closes through another path before expiry.
	lifecycle.markOpen(false)
	fakeClock.Advance(closeGraceTimeout)
	if *closes != 0 {
		t.Error("closer invoked on an already-closed connection")
	}
}
