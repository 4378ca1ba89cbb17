// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/peerway/peerway/lib/clock"
	"github.com/peerway/peerway/lib/netutil"
)

// pollOpenTimeout bounds how long a poll request may sit without a
// response header before it is aborted and reported as failed.
const pollOpenTimeout = 5 * time.Second

// pollReadChunk is the read size for the streaming poll body. Each
// chunk triggers one snapshot pass over the accumulated body.
const pollReadChunk = 4096

// pollRequest is one position in the rolling poll chain. The server
// holds the request open and appends newline-delimited messages to the
// response body as they arrive; the request accumulates the body and
// reports each growth to its owner, which extracts complete messages.
//
// A request retains at most one predecessor. The moment this request
// sees response headers — proof the server has picked up the new chain
// position — the predecessor is aborted and released, so no more than
// two requests are ever outstanding.
type pollRequest struct {
	streamIndex int
	url         string
	client      *http.Client
	clock       clock.Clock
	logger      *slog.Logger

	// onProgress fires after every body growth and at end of body.
	// onFailure fires once if the request errors or times out before
	// completing. Both are invoked without internal locks held.
	onProgress func(*pollRequest)
	onFailure  func(error)

	mu            sync.Mutex
	body          []byte
	status        int
	headerArrived bool
	aborted       bool

	// index is the offset of the next unread line in the body
	// snapshot. buffer is the FIFO of line offsets whose content could
	// not yet be parsed as a complete message; they are re-read from
	// the latest snapshot on the next pass.
	index  int
	buffer []int

	// previous is the predecessor in the chain. Abort authority over
	// it belongs exclusively to this request.
	previous *pollRequest

	cancel    context.CancelFunc
	openTimer *clock.Timer
}

// send issues the poll request and starts the body reader. A
// construction error is returned synchronously; everything after that
// is reported through onProgress/onFailure.
func (r *pollRequest) send() error {
	ctx, cancel := context.WithCancel(context.Background())

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("building poll request %d: %w", r.streamIndex, err)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.openTimer = r.clock.AfterFunc(pollOpenTimeout, r.handleOpenTimeout)
	r.mu.Unlock()

	go r.run(request)
	return nil
}

// handleOpenTimeout aborts the request if no response header arrived
// within pollOpenTimeout. The predecessor is torn down too: a failed
// successor is the end of the chain, and nothing else holds abort
// authority over the predecessor.
func (r *pollRequest) handleOpenTimeout() {
	r.mu.Lock()
	if r.headerArrived || r.aborted {
		r.mu.Unlock()
		return
	}
	r.aborted = true
	cancel := r.cancel
	previous := r.previous
	r.previous = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if previous != nil {
		previous.abort()
	}
	r.onFailure(fmt.Errorf("poll request %d: no response within %s", r.streamIndex, pollOpenTimeout))
}

// run performs the HTTP exchange and the incremental body read. Runs
// on its own goroutine.
func (r *pollRequest) run(request *http.Request) {
	response, err := r.client.Do(request)
	if err != nil {
		// A failed exchange tears this request down with the same
		// cascade abort() performs: the predecessor must go too, since
		// this request held exclusive abort authority over it.
		r.mu.Lock()
		alreadyAborted := r.aborted
		r.aborted = true
		timer := r.openTimer
		previous := r.previous
		r.previous = nil
		r.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if previous != nil {
			previous.abort()
		}
		if !alreadyAborted {
			r.onFailure(fmt.Errorf("poll request %d: %w", r.streamIndex, err))
		}
		return
	}
	defer response.Body.Close()

	r.mu.Lock()
	r.headerArrived = true
	r.status = response.StatusCode
	timer := r.openTimer
	r.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}

	// Headers are in: the server has picked up this chain position, so
	// the predecessor's window is fully covered and it can go.
	r.clearPreviousRequest()

	if response.StatusCode != http.StatusOK {
		// Not a transport failure — the idle cycle will rotate the
		// chain to a fresh attempt.
		r.logger.Warn("poll request rejected",
			"stream_index", r.streamIndex,
			"status", response.StatusCode,
		)
		return
	}

	chunk := make([]byte, pollReadChunk)
	for {
		n, err := response.Body.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			r.body = append(r.body, chunk[:n]...)
			r.mu.Unlock()
			r.onProgress(r)
		}
		if err != nil {
			if r.isAborted() || isBodyEnd(err) {
				return
			}
			r.onFailure(fmt.Errorf("poll request %d: reading body: %w", r.streamIndex, err))
			return
		}
	}
}

// isSuccess reports whether the response progressed past headers with
// a 200 status and a non-empty body.
func (r *pollRequest) isSuccess() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headerArrived && r.status == http.StatusOK && len(r.body) > 0
}

// needsClearPreviousRequest reports whether the predecessor should be
// aborted now: either this request has reached the header-received
// state, or the predecessor itself is still stuck before headers and
// would otherwise linger.
func (r *pollRequest) needsClearPreviousRequest() bool {
	r.mu.Lock()
	previous := r.previous
	headerArrived := r.headerArrived
	r.mu.Unlock()

	if previous == nil {
		return false
	}
	return headerArrived || !previous.headerReceived()
}

// clearPreviousRequest aborts and releases the predecessor, if any.
func (r *pollRequest) clearPreviousRequest() {
	r.mu.Lock()
	previous := r.previous
	r.previous = nil
	r.mu.Unlock()

	if previous != nil {
		previous.abort()
	}
}

func (r *pollRequest) headerReceived() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headerArrived
}

// abort cancels the in-flight exchange and its open timer. Idempotent.
func (r *pollRequest) abort() {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return
	}
	r.aborted = true
	cancel := r.cancel
	timer := r.openTimer
	previous := r.previous
	r.previous = nil
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if previous != nil {
		previous.abort()
	}
}

func (r *pollRequest) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// getMessages splits the current body snapshot on newline boundaries.
// The final element is empty exactly when the body ends in a trailing
// newline, i.e. the stream is complete up to a message boundary.
func (r *pollRequest) getMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Split(string(r.body), "\n")
}

// Deferred-offset FIFO. Offsets are buffered when the line at that
// position could not be parsed as a complete message; they are retried
// against the next snapshot of the same exchange.

func (r *pollRequest) hasBufferedIndices() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer) > 0
}

func (r *pollRequest) popBufferedIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	index := r.buffer[0]
	r.buffer = r.buffer[1:]
	return index
}

func (r *pollRequest) pushIndexToBuffer(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, index)
}

// unshiftIndexToBuffer returns a popped offset to the front of the
// FIFO, preserving its turn for the next snapshot.
func (r *pollRequest) unshiftIndexToBuffer(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append([]int{index}, r.buffer...)
}

func (r *pollRequest) nextLineIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

func (r *pollRequest) advanceLineIndex() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index++
}

// isBodyEnd reports whether err marks the normal end of a poll body:
// the server closed the response after its last message, or the
// request context was canceled by a successor taking over.
func isBodyEnd(err error) bool {
	return errors.Is(err, context.Canceled) || netutil.IsExpectedCloseError(err)
}
