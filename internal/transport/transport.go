// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

// Package transport provides the Transport trait the orchestrator streams
// through, and the serial, WebSocket-bridge, and simulated implementations
// of it. Replacing a dry_run boolean branch with a trait (Design Notes §9)
// means the flow controller and dispatcher never need to know which
// implementation they're driving.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// ErrClosed is returned by the simulated transport's ReadLine/WriteLine/
// WriteRealtime once Close has been called; the serial and WebSocket
// transports return the underlying I/O error instead.
var ErrClosed = errors.New("transport: closed")

// Transport is the seam between the driver's flow controller/dispatcher and
// whatever actually moves bytes: a serial port, a WebSocket bridge, or an
// in-memory simulator. WriteRealtime and WriteLine share a single write
// mutex so that a realtime byte is never interleaved mid-line with a
// buffered line, but WriteRealtime is never subject to the buffer-fill
// bound the caller enforces around WriteLine (P4).
type Transport interface {
	// ReadLine blocks until a complete line (without its terminator) is
	// available, ctx is canceled, or the transport is closed.
	ReadLine(ctx context.Context) (string, error)

	// WriteLine writes one line plus its terminator to the wire.
	WriteLine(l grbl.Line) error

	// WriteRealtime writes a single control byte, bypassing any queueing.
	WriteRealtime(b byte) error

	// Describe returns a short human-readable identification of the
	// endpoint, e.g. "serial:/dev/ttyUSB0@115200".
	Describe() string

	io.Closer
}

// lineReader wraps a bufio.Reader to split on '\n', used by the serial
// transport (the simulated transport keeps its own response queue, and the
// WebSocket transport gets whole messages and implements its own framing).
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 4096)}
}

// readLine blocks on the underlying reader; ctx cancellation is honored
// only between reads since bufio.Reader has no cancellable Read, matching
// the teacher's own blocking-read posture for serial ports.
func (lr *lineReader) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := lr.r.ReadString('\n')
	if err != nil {
		if line != "" {
			return trimTerminator(line), nil
		}
		return "", err
	}
	return trimTerminator(line), nil
}

func trimTerminator(s string) string {
	n := len(s)
	for n > 0 && (s[n-1] == '\n' || s[n-1] == '\r') {
		n--
	}
	return s[:n]
}

// writeMutex serializes WriteLine and WriteRealtime against a single
// io.Writer, guaranteeing a realtime byte never lands in the middle of a
// buffered line's bytes.
type writeMutex struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *writeMutex) writeLine(l grbl.Line) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(l.WireBytes())
	return err
}

func (w *writeMutex) writeRealtime(b byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write([]byte{b})
	return err
}

// wrapWriteErr gives write failures a consistent, component-tagged shape.
func wrapWriteErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("transport: %s write failed: %w", kind, err)
}
