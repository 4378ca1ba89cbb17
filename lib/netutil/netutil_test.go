// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestReadBody(t *testing.T) {
	data, err := ReadBody(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("ReadBody error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("body = %q, want %q", data, "hello")
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	expected := []error{
		io.EOF,
		io.ErrUnexpectedEOF,
		net.ErrClosed,
		syscall.EPIPE,
		syscall.ECONNRESET,
	}
	for _, err := range expected {
		if !IsExpectedCloseError(err) {
			t.Errorf("IsExpectedCloseError(%v) = false, want true", err)
		}
	}

	unexpected := []error{
		nil,
		errors.New("dial tcp: connection refused"),
		syscall.EINVAL,
	}
	for _, err := range unexpected {
		if IsExpectedCloseError(err) {
			t.Errorf("IsExpectedCloseError(%v) = true, want false", err)
		}
	}
}
