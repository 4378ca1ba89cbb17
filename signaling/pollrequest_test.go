// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/peerway/peerway/lib/clock"
)

func newIdleRequest() *pollRequest {
	return &pollRequest{
		client: http.DefaultClient,
		clock:  clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		logger: testLogger(),
	}
}

func TestPollRequest_GetMessagesTrailingNewline(t *testing.T) {
	request := newIdleRequest()

	// A trailing newline leaves an empty final element: the snapshot
	// ends on a message boundary.
	request.body = []byte("{\"type\":\"A\"}\n{\"type\":\"B\"}\n")
	lines := request.getMessages()
	if len(lines) != 3 || lines[2] != "" {
		t.Errorf("complete snapshot split = %q, want empty final element", lines)
	}

	// Without it, the final element is the partial tail.
	request.body = []byte("{\"type\":\"A\"}\n{\"type\":\"B")
	lines = request.getMessages()
	if len(lines) != 2 || lines[1] != "{\"type\":\"B" {
		t.Errorf("partial snapshot split = %q", lines)
	}
}

func TestPollRequest_BufferIsFIFO(t *testing.T) {
	request := newIdleRequest()

	if request.hasBufferedIndices() {
		t.Fatal("fresh request has buffered indices")
	}

	request.pushIndexToBuffer(1)
	request.pushIndexToBuffer(2)
	if got := request.popBufferedIndex(); got != 1 {
		t.Errorf("first pop = %d, want 1", got)
	}

	// Unshift restores a popped offset ahead of everything else.
	request.unshiftIndexToBuffer(1)
	if got := request.popBufferedIndex(); got != 1 {
		t.Errorf("pop after unshift = %d, want 1", got)
	}
	if got := request.popBufferedIndex(); got != 2 {
		t.Errorf("final pop = %d, want 2", got)
	}
	if request.hasBufferedIndices() {
		t.Error("buffer not drained")
	}
}

func TestPollRequest_NeedsClearPreviousRequest(t *testing.T) {
	request := newIdleRequest()
	if request.needsClearPreviousRequest() {
		t.Error("request with no predecessor wants a clear")
	}

	// A predecessor stuck before headers is cleared immediately.
	stuck := newIdleRequest()
	request.previous = stuck
	if !request.needsClearPreviousRequest() {
		t.Error("stuck predecessor not flagged for clearing")
	}

	// A predecessor that reached headers is kept until this request
	// reaches headers itself.
	stuck.headerArrived = true
	if request.needsClearPreviousRequest() {
		t.Error("live predecessor flagged before successor headers")
	}
	request.headerArrived = true
	if !request.needsClearPreviousRequest() {
		t.Error("predecessor kept after successor headers")
	}
}

func TestPollRequest_AbortCascadesAndIsIdempotent(t *testing.T) {
	older := newIdleRequest()
	newer := newIdleRequest()
	newer.previous = older

	canceled := 0
	newer.cancel = func() { canceled++ }

	newer.abort()
	if !newer.isAborted() || !older.isAborted() {
		t.Error("abort did not cascade to the predecessor")
	}
	if newer.previous != nil {
		t.Error("abort did not release the predecessor")
	}

	newer.abort()
	if canceled != 1 {
		t.Errorf("cancel invoked %d times, want 1", canceled)
	}
}

func TestPollRequest_IsSuccess(t *testing.T) {
	request := newIdleRequest()
	if request.isSuccess() {
		t.Error("fresh request reports success")
	}

	request.headerArrived = true
	request.status = http.StatusOK
	if request.isSuccess() {
		t.Error("empty-body request reports success")
	}

	request.body = []byte("{\"type\":\"A\"}\n")
	if !request.isSuccess() {
		t.Error("delivered request not reported as success")
	}

	request.status = http.StatusNotFound
	if request.isSuccess() {
		t.Error("non-200 request reports success")
	}
}

func TestIsBodyEnd(t *testing.T) {
	for _, err := range []error{context.Canceled, io.EOF, io.ErrUnexpectedEOF} {
		if !isBodyEnd(err) {
			t.Errorf("isBodyEnd(%v) = false", err)
		}
	}
	if isBodyEnd(errors.New("connection reset by server proxy")) {
		t.Error("arbitrary error treated as body end")
	}
}
