// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/peerway/peerway/signaling"
)

// Compile-time interface check.
var _ Connection = (*Data)(nil)

// ErrConnectionClosed is returned by sends on a terminally closed
// connection.
var ErrConnectionClosed = errors.New("connection closed")

// Data is a reliable, ordered byte channel to a remote peer over a
// pion data channel. Payloads sent before the channel opens are
// buffered and flushed on open.
type Data struct {
	Lifecycle

	pc      *webrtc.PeerConnection
	channel *webrtc.DataChannel

	mu      sync.Mutex
	closed  bool
	pending [][]byte
	onData  func([]byte)
}

// NewData wraps an established peer connection and its data channel as
// a managed connection. The caller performs the initial offer/answer
// exchange; the connection takes over candidate publishing, ICE-driven
// close-grace handling, and inbound signal dispatch.
func NewData(options Options, pc *webrtc.PeerConnection, channel *webrtc.DataChannel) *Data {
	data := &Data{
		Lifecycle: newLifecycle(KindData, options),
		pc:        pc,
		channel:   channel,
	}
	data.bindCloser(func() { data.Close() })

	channel.OnOpen(func() {
		data.markOpen(true)
		data.ClearCloseTimeout()
		data.flushPending()
	})
	channel.OnClose(func() {
		data.markOpen(false)
	})
	channel.OnMessage(func(message webrtc.DataChannelMessage) {
		data.mu.Lock()
		handler := data.onData
		data.mu.Unlock()
		if handler != nil {
			handler(message.Data)
		}
	})

	publishCandidates(pc, &data.Lifecycle)
	watchICE(pc, &data.Lifecycle)
	return data
}

// OnData registers the inbound payload handler. At most one handler;
// a second call replaces the first.
func (d *Data) OnData(handler func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onData = handler
}

// SendData transmits one payload to the peer, buffering it if the
// channel has not opened yet.
func (d *Data) SendData(payload []byte) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrConnectionClosed
	}
	if !d.Open() {
		d.pending = append(d.pending, payload)
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	return d.channel.Send(payload)
}

// flushPending drains payloads buffered before the channel opened, in
// send order.
func (d *Data) flushPending() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, payload := range pending {
		if err := d.channel.Send(payload); err != nil {
			d.logger.Warn("flushing buffered payload failed",
				"connection", d.id,
				"error", err,
			)
		}
	}
}

// HandleMessage dispatches a connection-scoped signaling message.
func (d *Data) HandleMessage(message signaling.Message) error {
	return applyRemoteSignal(d.pc, message)
}

// Close tears the data channel and its peer connection down. Terminal
// and idempotent.
func (d *Data) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.ClearCloseTimeout()
	d.markOpen(false)
	d.channel.Close()
	return d.pc.Close()
}
