// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/peerway/peerway/signaling"
)

// Signaling message types a connection exchanges with its peer.
const (
	typeOffer     = "OFFER"
	typeAnswer    = "ANSWER"
	typeCandidate = "CANDIDATE"
)

// signalPayload is the payload of connection-scoped signaling
// messages. ConnectionID routes the message to the right connection on
// the remote side; exactly one of SDP and Candidate is set.
type signalPayload struct {
	ConnectionID string                     `json:"connectionId"`
	SDP          *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate    *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// applyRemoteSignal feeds one inbound signaling message into the peer
// connection: an answer sets the remote description, a candidate is
// added to the ICE agent.
func applyRemoteSignal(pc *webrtc.PeerConnection, message signaling.Message) error {
	var payload signalPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return fmt.Errorf("decoding %s payload: %w", message.Type, err)
	}

	switch message.Type {
	case typeAnswer, typeOffer:
		if payload.SDP == nil {
			return fmt.Errorf("%s message without sdp", message.Type)
		}
		if err := pc.SetRemoteDescription(*payload.SDP); err != nil {
			return fmt.Errorf("setting remote description: %w", err)
		}
		return nil

	case typeCandidate:
		if payload.Candidate == nil {
			return fmt.Errorf("%s message without candidate", message.Type)
		}
		if err := pc.AddICECandidate(*payload.Candidate); err != nil {
			return fmt.Errorf("adding ICE candidate: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unexpected %s message for %s connection", message.Type, payload.ConnectionID)
	}
}

// publishCandidates forwards locally gathered ICE candidates to the
// remote peer through the signaling provider.
func publishCandidates(pc *webrtc.PeerConnection, lifecycle *Lifecycle) {
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		payload, err := json.Marshal(signalPayload{
			ConnectionID: lifecycle.id,
			Candidate:    &init,
		})
		if err != nil {
			lifecycle.logger.Error("encoding ICE candidate failed", "error", err)
			return
		}
		message := signaling.Message{
			Type:    typeCandidate,
			Dst:     lifecycle.peer,
			Payload: payload,
		}
		if err := lifecycle.provider.Send(message); err != nil {
			lifecycle.logger.Warn("publishing ICE candidate failed",
				"connection", lifecycle.id,
				"error", err,
			)
		}
	})
}

// watchICE ties the peer connection's ICE state to the close-grace
// window: a suspected drop arms the timer, a recovery disarms it, and
// a terminal failure closes the connection immediately.
func watchICE(pc *webrtc.PeerConnection, lifecycle *Lifecycle) {
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		lifecycle.logger.Debug("ICE state change",
			"connection", lifecycle.id,
			"state", state.String(),
		)
		switch state {
		case webrtc.ICEConnectionStateDisconnected:
			// Often transient; give the native layer the grace window
			// to re-establish.
			lifecycle.SetCloseTimeout()

		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			lifecycle.ClearCloseTimeout()

		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
			if lifecycle.closer != nil {
				lifecycle.closer()
			}
		}
	})
}
