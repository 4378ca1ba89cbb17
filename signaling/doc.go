// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling keeps a reliable, ordered, bidirectional message
// channel open between a peer-to-peer client and its coordination
// server.
//
// The package defines one interface, [Transport], with three
// implementations. [SocketTransport] is the primary: a persistent
// WebSocket carrying JSON frames. [PollTransport] is the fallback: it
// simulates a server-push stream over plain HTTP by issuing
// overlapping chained poll requests, each picking up where its
// predecessor left off, with ordered reassembly of newline-delimited
// messages from incrementally streamed response bodies.
// [MemoryTransport] is the in-process implementation for tests.
//
// [Channel] composes the primary and the fallback behind the same
// Transport contract. It starts on the primary with a fixed open
// window; if the primary produces no message in time, or disconnects
// before producing one, the channel silently closes it and restarts
// the session on the fallback. The downgrade is one-way — a session
// that has fallen back stays on the fallback until closed. The channel
// subscribes to both inner transports and forwards only the events of
// the currently authoritative one, so the brief overlap at failover
// time can never surface duplicate or stale events.
//
// The [New] factory selects between "primary only" and "primary with
// fallback"; callers hold the same contract either way.
//
// All timeouts are protocol constants (primary open 5s, poll open 5s,
// poll idle 25s) and every timer is an owned, cancelable lib/clock
// task — tests drive the state machines with a FakeClock instead of
// wall-clock sleeps.
package signaling
