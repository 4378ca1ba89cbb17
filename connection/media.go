// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/peerway/peerway/signaling"
)

// Compile-time interface check.
var _ Connection = (*Media)(nil)

// Media is an audio/video stream to a remote peer. It opens when the
// first remote track arrives and exposes the received tracks; media
// plumbing beyond track bookkeeping belongs to the caller.
type Media struct {
	Lifecycle

	pc *webrtc.PeerConnection

	mu      sync.Mutex
	closed  bool
	tracks  []*webrtc.TrackRemote
	onTrack func(*webrtc.TrackRemote)
}

// NewMedia wraps an established peer connection as a managed media
// connection.
func NewMedia(options Options, pc *webrtc.PeerConnection) *Media {
	media := &Media{
		Lifecycle: newLifecycle(KindMedia, options),
		pc:        pc,
	}
	media.bindCloser(func() { media.Close() })

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		media.markOpen(true)
		media.ClearCloseTimeout()

		media.mu.Lock()
		media.tracks = append(media.tracks, track)
		handler := media.onTrack
		media.mu.Unlock()

		if handler != nil {
			handler(track)
		}
	})

	publishCandidates(pc, &media.Lifecycle)
	watchICE(pc, &media.Lifecycle)
	return media
}

// OnTrack registers the remote-track handler. At most one handler; a
// second call replaces the first.
func (m *Media) OnTrack(handler func(*webrtc.TrackRemote)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrack = handler
}

// Tracks returns the remote tracks received so far.
func (m *Media) Tracks() []*webrtc.TrackRemote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*webrtc.TrackRemote(nil), m.tracks...)
}

// HandleMessage dispatches a connection-scoped signaling message.
func (m *Media) HandleMessage(message signaling.Message) error {
	return applyRemoteSignal(m.pc, message)
}

// Close tears the peer connection down. Terminal and idempotent.
func (m *Media) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.ClearCloseTimeout()
	m.markOpen(false)
	return m.pc.Close()
}
