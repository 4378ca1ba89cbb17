// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeClock_AfterFuncFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	fake.AfterFunc(5*time.Second, func() { fired = true })

	fake.Advance(4 * time.Second)
	if fired {
		t.Fatal("timer fired before its deadline")
	}

	fake.Advance(1 * time.Second)
	if !fired {
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeClock_StopPreventsFiring(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	timer := fake.AfterFunc(5*time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}

	fake.Advance(10 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var order []string
	fake.AfterFunc(3*time.Second, func() { order = append(order, "late") })
	fake.AfterFunc(1*time.Second, func() { order = append(order, "early") })

	fake.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("firing order = %v, want [early late]", order)
	}
}

func TestFakeClock_TickerFiresPerPeriod(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after one period")
	}

	ticker.Stop()
	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("tick delivered after Stop")
	default:
	}
}

func TestFakeClock_AfterFuncImmediate(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	fake.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Fatal("zero-delay callback did not run synchronously")
	}
}

func TestFakeClock_PendingCount(t *testing.T) {
	fake := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	timer := fake.AfterFunc(time.Second, func() {})
	if got := fake.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}

	timer.Stop()
	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after Stop = %d, want 0", got)
	}
}
