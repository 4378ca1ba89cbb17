// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Timers registered
// through it fire only when Advance moves the clock past their
// deadline.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{now: initial}
	fake.changed = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is a deterministic Clock for tests. Callbacks run
// synchronously inside Advance, in deadline order, so a test that
// advances past a timeout observes the full effect of that timeout
// before Advance returns.
//
// Do not call Advance from inside a timer callback; that deadlocks.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	entries []*fakeEntry
	changed *sync.Cond
}

// fakeEntry is one scheduled timer or ticker.
type fakeEntry struct {
	when     time.Time
	fn       func()         // one-shot callback (AfterFunc)
	tick     chan time.Time // tick delivery (NewTicker)
	period   time.Duration  // non-zero for tickers
	canceled bool
	done     bool
}

// Now returns the frozen current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock advances past now+d.
// If d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	entry := &fakeEntry{when: c.now.Add(d), fn: f}
	c.entries = append(c.entries, entry)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if entry.canceled || entry.done {
			return false
		}
		entry.canceled = true
		return true
	}}
}

// NewTicker registers a periodic entry. Ticks that find the channel
// buffer full are dropped, matching time.Ticker.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	entry := &fakeEntry{
		when:   c.now.Add(d),
		tick:   make(chan time.Time, 1),
		period: d,
	}
	c.entries = append(c.entries, entry)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Ticker{
		C: entry.tick,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.canceled = true
		},
	}
}

// Advance moves the clock forward by d, firing every entry whose
// deadline falls within the new time. One-shot callbacks run
// synchronously in the calling goroutine; tickers are rescheduled and
// fire once per elapsed period.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		entry := c.nextExpired(target)
		if entry == nil {
			return
		}
		if entry.fn != nil {
			entry.fn()
		} else {
			select {
			case entry.tick <- target:
			default:
			}
		}
	}
}

// nextExpired pops the earliest live entry due at or before target,
// rescheduling it first if it is a ticker. Returns nil when nothing
// further is due.
func (c *FakeClock) nextExpired(target time.Time) *fakeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var earliest *fakeEntry
	for _, entry := range c.entries {
		if entry.canceled || entry.done || entry.when.After(target) {
			continue
		}
		if earliest == nil || entry.when.Before(earliest.when) {
			earliest = entry
		}
	}
	if earliest == nil {
		return nil
	}
	if earliest.period > 0 {
		earliest.when = earliest.when.Add(earliest.period)
	} else {
		earliest.done = true
	}
	return earliest
}

// WaitForTimers blocks until at least n entries are pending. Use this
// to close the race between a goroutine arming a timer and the test
// advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount reports the number of live pending entries.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, entry := range c.entries {
		if !entry.canceled && !entry.done {
			count++
		}
	}
	return count
}
