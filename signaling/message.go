// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"encoding/json"
	"errors"
)

// Message is one unit exchanged with the coordination server. The
// protocol only constrains the envelope: every outbound message must
// carry a Type (it selects the server-side endpoint on the fallback
// transport), and everything else is opaque to the channel.
type Message struct {
	// Type discriminates the message (e.g. "OFFER", "ANSWER",
	// "CANDIDATE", "HEARTBEAT"). Required on every outbound message.
	Type string `json:"type"`

	// Src and Dst identify the logical peers of the exchange. Optional;
	// the channel never inspects them.
	Src string `json:"src,omitempty"`
	Dst string `json:"dst,omitempty"`

	// Payload is the free-form message body. Opaque to the channel.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrInvalidMessage is reported when an outbound message has no Type.
// The message is dropped — never queued, never retried.
var ErrInvalidMessage = errors.New("invalid message")
