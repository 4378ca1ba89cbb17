// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that
// timeout-driven state machines can be tested without wall-clock
// sleeps.
//
// Production code accepts a Clock instead of calling time.AfterFunc or
// time.NewTicker directly. Real() delegates to the time package;
// Fake() stands still until Advance is called, firing pending timers
// deterministically in deadline order.
package clock

import "time"

// Clock schedules time-based callbacks. Every component that arms a
// timeout holds a Clock field; production wiring injects Real() and
// tests inject a *FakeClock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d elapses. The returned
	// Timer cancels the pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on C every d.
	// Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a single pending callback. Stop is safe to call multiple
// times and after the timer has fired.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending callback. Returns true if the call
// prevented the callback from running, false if it already ran or was
// already stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. Call Stop to release it; Stop
// does not close C.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns the ticker off. No ticks are delivered after Stop returns.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the standard time package.
func Real() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stop: timer.Stop}
}

func (systemClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}
