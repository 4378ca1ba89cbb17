// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/peerway/peerway/lib/clock"
	"github.com/peerway/peerway/lib/netutil"
)

// pollIdleTimeout is how long a poll request is allowed to idle before
// the next chain position is issued. Rotating the chain before the
// server or an intermediary can drop the connection is what keeps the
// stream effectively continuous.
const pollIdleTimeout = 25 * time.Second

// Compile-time interface check.
var _ Transport = (*PollTransport)(nil)

// PollTransport simulates a server-push stream over plain HTTP by
// issuing overlapping sequential poll requests, each picking up where
// the previous left off (see [pollRequest] for the hand-off rule).
//
// Outbound messages sent before a session id is known are queued in
// call order and never transmitted — not even once the id arrives.
// This mirrors the observed protocol behavior; callers that need the
// queued messages delivered must re-send them. Once the session is
// known, sends are fire-and-forget POSTs, independent of the receive
// chain.
//
// A PollTransport is not resumable: after Close (or a poll failure),
// construct a fresh instance.
type PollTransport struct {
	config Config
	client *http.Client
	clock  clock.Clock
	logger *slog.Logger

	// streamMu serializes snapshot processing and message emission so
	// inbound messages are delivered in server-send order even while
	// two chain positions briefly overlap.
	streamMu sync.Mutex

	mu           sync.Mutex
	events       Events
	id           string
	token        string
	started      bool
	disconnected bool
	queue        []Message
	request      *pollRequest
	idleTimer    *clock.Timer
}

// NewPollTransport creates the fallback transport. Start arms the
// first poll cycle.
func NewPollTransport(config Config) *PollTransport {
	return &PollTransport{
		config: config,
		client: config.httpClient(),
		clock:  config.clock(),
		logger: config.logger(),
	}
}

// Subscribe registers the listener set. Call before Start.
func (t *PollTransport) Subscribe(events Events) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = events
}

// Start records the session identity and begins the poll chain at
// position zero. A no-op if the transport is already running.
func (t *PollTransport) Start(id, token string) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.id = id
	t.token = token
	t.mu.Unlock()

	t.startStream(0, nil)
	return nil
}

// Send transmits one message out-of-band from the receive chain. With
// no session id yet, the message is queued (and stays queued — see the
// type comment). A message without a Type is rejected: one Error event,
// dropped, never queued.
func (t *PollTransport) Send(message Message) error {
	t.mu.Lock()
	if t.disconnected {
		t.mu.Unlock()
		return nil
	}
	if t.id == "" {
		t.queue = append(t.queue, message)
		t.mu.Unlock()
		return nil
	}
	events := t.events
	id, token := t.id, t.token
	t.mu.Unlock()

	if message.Type == "" {
		events.emitError(ErrInvalidMessage)
		return ErrInvalidMessage
	}

	encoded, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", message.Type, err)
	}

	url := fmt.Sprintf("%s/%s/%s/%s", t.config.baseURL(), id, token, strings.ToLower(message.Type))
	go t.post(url, encoded)
	return nil
}

// post delivers one outbound message. Failures are logged and dropped;
// the receive chain is unaffected.
func (t *PollTransport) post(url string, body []byte) {
	response, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.logger.Warn("outbound message failed", "error", err)
		return
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, netutil.MaxBodySize))

	if response.StatusCode != http.StatusOK {
		t.logger.Warn("outbound message rejected", "status", response.StatusCode)
	}
}

// Close aborts the idle timer and the in-flight poll chain and marks
// the transport disconnected. Idempotent; no events are delivered
// afterward. A transport that already failed may still hold an
// outstanding request, so Close always drains the fields rather than
// returning early on the disconnected flag.
func (t *PollTransport) Close() error {
	t.mu.Lock()
	t.disconnected = true
	timer := t.idleTimer
	t.idleTimer = nil
	request := t.request
	t.request = nil
	t.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if request != nil {
		request.abort()
	}
	return nil
}

// startStream issues the poll request at the given chain position,
// retaining the expiring request as its predecessor so the hand-off
// rule can drain its tail before aborting it.
func (t *PollTransport) startStream(streamIndex int, previous *pollRequest) {
	t.mu.Lock()
	if t.disconnected {
		t.mu.Unlock()
		return
	}
	url := fmt.Sprintf("%s/%s/%s/id?i=%d", t.config.baseURL(), t.id, t.token, streamIndex)
	request := &pollRequest{
		streamIndex: streamIndex,
		url:         url,
		client:      t.client,
		clock:       t.clock,
		logger:      t.logger,
		previous:    previous,
		onProgress:  t.handleProgress,
		onFailure:   t.handleFailure,
	}
	t.request = request
	t.mu.Unlock()

	// A predecessor that never reached headers has no tail to drain;
	// abort it immediately rather than letting it linger.
	if request.needsClearPreviousRequest() {
		request.clearPreviousRequest()
	}

	if err := request.send(); err != nil {
		// Local construction failure. Non-fatal: the idle timer below
		// still rotates the chain to a fresh attempt.
		t.logger.Warn("issuing poll request failed",
			"stream_index", streamIndex,
			"error", err,
		)
	}

	t.armIdleTimer()
}

// armIdleTimer (re)arms the single idle slot after a poll is sent.
func (t *PollTransport) armIdleTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disconnected {
		return
	}
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = t.clock.AfterFunc(pollIdleTimeout, t.handleIdle)
}

// handleIdle rotates the chain: the expiring request becomes the
// predecessor of the next position and keeps streaming until the new
// request's headers arrive.
func (t *PollTransport) handleIdle() {
	t.mu.Lock()
	if t.disconnected {
		t.mu.Unlock()
		return
	}
	expiring := t.request
	t.mu.Unlock()

	next := 0
	if expiring != nil {
		next = expiring.streamIndex + 1
	}
	t.startStream(next, expiring)
}

// handleFailure surfaces a failed poll as a disconnect and stops the
// chain: the idle timer is canceled and the outstanding request —
// with its predecessor, via the cascade — is aborted before the event
// is emitted. Fired at most once; a failure after Close is swallowed.
func (t *PollTransport) handleFailure(err error) {
	t.mu.Lock()
	if t.disconnected {
		t.mu.Unlock()
		return
	}
	t.disconnected = true
	timer := t.idleTimer
	t.idleTimer = nil
	request := t.request
	t.request = nil
	events := t.events
	t.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if request != nil {
		request.abort()
	}
	t.logger.Warn("poll transport failed", "error", err)
	events.emitDisconnected()
}

// handleProgress extracts complete messages from the request's latest
// body snapshot. Deferred offsets drain strictly before fresh lines;
// within fresh lines, a tail with no trailing newline is deferred for
// the next snapshot, and a complete-but-malformed line is logged and
// dropped.
func (t *PollTransport) handleProgress(request *pollRequest) {
	t.streamMu.Lock()
	defer t.streamMu.Unlock()

	t.mu.Lock()
	disconnected := t.disconnected
	events := t.events
	t.mu.Unlock()

	if disconnected || !request.isSuccess() {
		return
	}

	messages := request.getMessages()

	// Deferred offsets first. A line that still does not parse goes
	// back to the front of the FIFO and stops the drain — it may
	// complete in a later snapshot, and emitting past it would break
	// ordering.
	for request.hasBufferedIndices() {
		index := request.popBufferedIndex()
		var message Message
		if err := json.Unmarshal([]byte(messages[index]), &message); err != nil {
			request.unshiftIndexToBuffer(index)
			break
		}
		events.emitMessage(message)
	}

	// Fresh lines.
	for {
		index := request.nextLineIndex()
		if index >= len(messages) {
			break
		}
		line := messages[index]
		if line == "" {
			break
		}
		request.advanceLineIndex()

		if request.nextLineIndex() == len(messages) {
			// No trailing newline: the tail may still be growing.
			// Defer the offset, not the content — the next snapshot
			// re-reads the line in its more complete form.
			request.pushIndexToBuffer(index)
			break
		}

		var message Message
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			// A fresh line followed by a newline is complete; if it
			// does not parse now it never will.
			t.logger.Warn("invalid server message", "line", line)
			continue
		}
		events.emitMessage(message)
	}
}
