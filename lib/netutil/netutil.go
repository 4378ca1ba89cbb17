// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides small network I/O helpers shared by the
// signaling transports.
//
// Response-body reads are bounded at MaxBodySize so a misbehaving
// server cannot exhaust memory through a single reply. The limit does
// not apply to the streaming poll body, which is read incrementally in
// fixed-size chunks by its owner.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// MaxBodySize bounds non-streaming HTTP response reads: 16 MB. Server
// replies on the signaling protocol are tiny; the bound exists purely
// as a safety valve.
const MaxBodySize int64 = 16 << 20

// ReadBody reads an HTTP response body up to MaxBodySize bytes. Use
// instead of io.ReadAll for signaling API responses.
func ReadBody(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxBodySize))
}

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection
// reset. A transport that is being shut down sees these on its
// in-flight reads and should not log them as failures.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
