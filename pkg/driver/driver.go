// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

// Package driver implements the orchestrator: component lifecycle, event
// dispatch to the embedder's callback, and the full public command
// surface (spec.md §4.7, §6).
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grblhost/grblhost/internal/stream"
	"github.com/grblhost/grblhost/internal/transport"
	"github.com/grblhost/grblhost/pkg/grbl"
)

// Options configures a Driver's flow-control and polling behavior. The
// zero value is valid: Capacity/StreamingMode/PollInterval each fall back
// to grbl's defaults.
type Options struct {
	Capacity      int
	StreamingMode grbl.StreamingMode
	PollInterval  time.Duration
	AllowEEPROM   bool
}

// Driver is the orchestrator: it owns a Transport, the response Parser,
// the FirmwareState mirror, and the stream.Controller, and serializes
// event dispatch to exactly one embedder callback at a time (P5).
type Driver struct {
	mu sync.Mutex

	transport    transport.Transport
	parser       *grbl.Parser
	state        *grbl.State
	controller   *stream.Controller
	feedOverride *stream.FeedOverridePreprocessor

	logger *zap.Logger

	handler      grbl.Handler
	namedHandler grbl.NamedHandler
	eventCh      chan grbl.Event

	pollInterval time.Duration
	pollCtx      context.Context
	pollCancel   context.CancelFunc
	pollWG       sync.WaitGroup

	readCtx    context.Context
	readCancel context.CancelFunc
	readWG     sync.WaitGroup

	dispatchWG sync.WaitGroup

	connected bool
	chClosed  bool
}

// New returns a Driver with no active connection. Call Connect/
// ConnectWebSocket/ConnectSimulated before streaming anything.
func New(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		parser:       grbl.NewParser(),
		state:        grbl.NewState(),
		logger:       logger,
		eventCh:      make(chan grbl.Event, 256),
		feedOverride: &stream.FeedOverridePreprocessor{},
		pollInterval: grbl.DefaultPollInterval,
	}
}

// SetHandler installs the embedder's tagged-variant callback. Per P5, no
// two invocations of handler ever overlap.
func (d *Driver) SetHandler(h grbl.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// SetNamedHandler installs the fallback string-named callback retained for
// embedders that prefer to treat every event uniformly.
func (d *Driver) SetNamedHandler(h grbl.NamedHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.namedHandler = h
}

// Logger returns the ambient structured logger; every on_log dispatch is
// also written through it.
func (d *Driver) Logger() *zap.Logger { return d.logger }

// State returns a point-in-time copy of the firmware state mirror, safe
// to read from any goroutine.
func (d *Driver) State() grbl.Snapshot {
	return d.state.Snapshot()
}

// connectLocked wires a freshly opened transport into a new Controller and
// starts the three long-lived goroutines. Callers must hold d.mu.
func (d *Driver) connectLocked(t transport.Transport, opts Options) error {
	if d.connected {
		return fmt.Errorf("driver: already connected")
	}

	capacity := opts.Capacity
	if capacity == 0 {
		capacity = grbl.DefaultCapacity
	}
	mode := opts.StreamingMode
	if opts.PollInterval > 0 {
		d.pollInterval = opts.PollInterval
	}

	d.transport = t
	d.parser = grbl.NewParser()
	d.state = grbl.NewState()
	d.controller = stream.New(capacity, mode, opts.AllowEEPROM, t, stream.DefaultPipeline(d.feedOverride), d.emit)

	d.readCtx, d.readCancel = context.WithCancel(context.Background())
	d.readWG.Add(1)
	go d.readLoop()

	d.dispatchWG.Add(1)
	go d.dispatchLoop()

	d.connected = true
	return nil
}

// Connect opens a real serial port and starts streaming infrastructure.
func (d *Driver) Connect(device string, baud int, opts Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := transport.OpenSerial(device, baud)
	if err != nil {
		return fmt.Errorf("driver: connect: %w", err)
	}
	return d.connectLocked(t, opts)
}

// ConnectWebSocket opens a WebSocket bridge connection.
func (d *Driver) ConnectWebSocket(url, username, password string, skipSSLVerify bool, opts Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := transport.OpenWebSocket(url, username, password, skipSSLVerify)
	if err != nil {
		return fmt.Errorf("driver: connect websocket: %w", err)
	}
	return d.connectLocked(t, opts)
}

// ConnectSimulated wires an in-memory grbl stand-in instead of a real
// transport — the Design Notes' "transport trait with two [here, three]
// implementations" in place of a dry_run boolean.
func (d *Driver) ConnectSimulated(opts Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectLocked(transport.NewSimulated(), opts)
}

// Disconnect performs the orderly shutdown sequence of spec.md §5: stop
// the poller, cancel the reader's context, close the transport (which is
// what actually unblocks a ReadLine parked in a blocking syscall on a real
// serial port), join the reader, then drain and stop the dispatcher.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.connected = false
	t := d.transport
	d.mu.Unlock()

	d.PollStop()

	if d.readCancel != nil {
		d.readCancel()
	}

	var closeErr error
	if t != nil {
		closeErr = t.Close()
	}

	d.readWG.Wait()

	d.mu.Lock()
	d.chClosed = true
	ch := d.eventCh
	d.mu.Unlock()
	close(ch)
	d.dispatchWG.Wait()

	d.mu.Lock()
	d.chClosed = false
	d.eventCh = make(chan grbl.Event, 256)
	d.mu.Unlock()

	d.emitDirect(grbl.Event{Kind: grbl.EventDisconnected})
	return closeErr
}

// emit is the Controller's sink and the readLoop's event producer. It
// holds d.mu across the channel send so it can never race a concurrent
// Disconnect's close(ch): that send unblocks the instant dispatchLoop
// receives (which needs no lock of its own), so holding the lock here
// costs Disconnect at most one pending send's worth of delay.
func (d *Driver) emit(e grbl.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chClosed {
		return
	}
	d.eventCh <- e
}

// emitDirect invokes the handlers synchronously, used only for the final
// on_disconnected after the dispatch goroutine has already been joined.
func (d *Driver) emitDirect(e grbl.Event) {
	d.mu.Lock()
	h, nh := d.handler, d.namedHandler
	d.mu.Unlock()
	if h != nil {
		h(e)
	}
	if nh != nil {
		nh(e.Kind.String(), e)
	}
}
