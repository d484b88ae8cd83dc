// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package stream

import (
	"errors"
	"sync"

	"github.com/grblhost/grblhost/internal/transport"
	"github.com/grblhost/grblhost/pkg/grbl"
)

// ControllerState is one of the five streaming states spec.md §4.6 names.
type ControllerState int

const (
	StateIdle ControllerState = iota
	StateStreaming
	StatePaused
	StateHalted
	StateDraining
)

func (s ControllerState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateHalted:
		return "halted"
	case StateDraining:
		return "draining"
	default:
		return "idle"
	}
}

// ErrHalted is returned by Stream when new work is submitted while the
// controller is halted; the embedder must Unstash (or SoftReset) first.
var ErrHalted = errors.New("stream: controller is halted")

// Controller is the streaming flow-control engine: it owns StreamQueue,
// PriorityQueue, InflightLog, and the buffer-fill counter F, and drains
// them against a transport.Transport under either streaming discipline.
// Grounded on the pack's character-counting reference implementation: send
// while F+len(L)+1 <= C, restore F on each FIFO acknowledgement.
type Controller struct {
	mu sync.Mutex

	capacity    int
	mode        grbl.StreamingMode
	allowEEPROM bool

	transport    transport.Transport
	preprocessor Preprocessor
	sink         func(grbl.Event)

	priorityQ lineDeque
	streamQ   streamDeque
	inflight  *inflightLog
	f         int

	state ControllerState
	stash Stash

	processedCount int
	totalQueued    int

	transportFailed bool
}

// New returns a Controller ready to stream, idle until Stream or
// SendImmediately is called. allowEEPROM controls whether StreamQueue-
// sourced lines that write EEPROM settings mid-job are rejected; lines
// submitted via SendImmediately are never subject to this policy, since an
// embedder reaching for send_immediately is asking for the line to go out
// as written.
func New(capacity int, mode grbl.StreamingMode, allowEEPROM bool, t transport.Transport, pp Preprocessor, sink func(grbl.Event)) *Controller {
	return &Controller{
		capacity:     capacity,
		mode:         mode,
		allowEEPROM:  allowEEPROM,
		transport:    t,
		preprocessor: pp,
		sink:         sink,
		inflight:     newInflightLog(),
		state:        StateIdle,
	}
}

// State returns the controller's current state.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FillBytes and Capacity let the orchestrator compute rx_fill_percent for
// the state mirror (spec.md §4.5) without the state mirror itself reaching
// into the controller's internals.
func (c *Controller) FillBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f
}

func (c *Controller) Capacity() int { return c.capacity }

// SetStreamingMode switches between incremental and character-counting
// disciplines; a pending send opportunity is retried immediately since the
// new mode may relax or tighten the fit check.
func (c *Controller) SetStreamingMode(mode grbl.StreamingMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.attemptSendLocked()
}

// Stream appends lines to the StreamQueue. Starting a new stream from Idle
// resets progress accounting to 0 (P3); appending to an already-running
// stream simply grows the total.
func (c *Controller) Stream(lines []grbl.Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalted {
		return ErrHalted
	}
	if c.state == StateIdle {
		c.processedCount = 0
		c.totalQueued = 0
		c.state = StateStreaming
	}
	for _, l := range lines {
		c.streamQ.pushBack(queueItem{line: l})
	}
	c.totalQueued += len(lines)

	c.attemptSendLocked()
	return nil
}

// SendImmediately appends a line to the PriorityQueue, bypassing
// preprocessing and StreamQueue ordering but still obeying the buffer-fill
// bound (P1).
func (c *Controller) SendImmediately(line grbl.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priorityQ.pushBack(line)
	c.attemptSendLocked()
}

// Pause sends the real-time feed-hold byte and stops new dispatches while
// preserving InflightLog, per spec.md's Streaming->Paused transition.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming {
		return nil
	}
	c.state = StatePaused
	return c.transport.WriteRealtime(grbl.RealtimeFeedHold)
}

// Resume sends the real-time cycle-start byte and resumes dispatching from
// exactly the next queue position.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return nil
	}
	c.state = StateStreaming
	if err := c.transport.WriteRealtime(grbl.RealtimeCycleStart); err != nil {
		return err
	}
	c.attemptSendLocked()
	return nil
}

// Halt captures the unsent StreamQueue into a Stash and clears it,
// leaving InflightLog to drain naturally (Open Question resolution: the
// stash never includes InflightLog). Halting an idle controller is a
// documented no-op (P6).
func (c *Controller) Halt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming && c.state != StatePaused {
		return
	}
	c.stash = Stash{items: c.streamQ.clear()}
	c.state = StateHalted
}

// Unstash restores a prior Halt's Stash and resumes streaming. A no-op if
// the controller is not halted (P6: halt+unstash on an idle controller is
// a no-op, since Halt never entered StateHalted in that case).
func (c *Controller) Unstash() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateHalted {
		return
	}
	c.streamQ.pushFrontAll(c.stash.items)
	c.stash = Stash{}
	c.state = StateStreaming
	c.attemptSendLocked()
}

// SoftReset flushes every queue and InflightLog, zeroes F, and transmits
// the real-time soft-reset byte. Convergence (P7: F=0, both queues empty
// once Boot is observed) holds immediately since the flush is synchronous;
// the caller still waits for the firmware's Boot line before resuming
// normal operation.
func (c *Controller) SoftReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priorityQ = lineDeque{}
	c.streamQ = streamDeque{}
	c.inflight.reset()
	c.f = 0
	c.stash = Stash{}
	c.state = StateIdle
	c.transportFailed = false
	return c.transport.WriteRealtime(grbl.RealtimeSoftReset)
}

// Ack processes one "ok"/"error:N" acknowledgement: it pops InflightLog's
// head (P2), frees its bytes from F, emits ProcessedCommand or Error plus
// an updated ProgressPercent, attempts further sends, and emits
// JobCompleted if this was the final line of a finished stream. JobCompleted
// is always emitted after this ack's ProcessedCommand/Error (the Design
// Notes' Open Question resolution).
func (c *Controller) Ack(isError bool, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.inflight.popHead()
	if !ok {
		// A stray ok/error with nothing inflight is a protocol oddity, not
		// a controller bug; nothing to free or report.
		return
	}
	c.f -= entry.bytes
	c.processedCount++

	if isError {
		c.sink(grbl.Event{Kind: grbl.EventError, Index: entry.index, Text: entry.text, Code: code})
	} else {
		c.sink(grbl.Event{Kind: grbl.EventProcessedCommand, Index: entry.index, Text: entry.text})
	}
	c.sink(grbl.Event{Kind: grbl.EventProgressPercent, Percent: c.progressPercent()})

	c.attemptSendLocked()

	if (c.state == StateStreaming || c.state == StateDraining) && c.streamQ.len() == 0 {
		c.state = StateDraining
		if c.inflight.len() == 0 {
			c.state = StateIdle
			c.sink(grbl.Event{Kind: grbl.EventJobCompleted})
		}
	}
}

func (c *Controller) progressPercent() int {
	if c.totalQueued == 0 {
		return 0
	}
	pct := c.processedCount * 100 / c.totalQueued
	if pct > 100 {
		pct = 100
	}
	return pct
}

// canSendLocked reports whether a candidate line of n wire bytes may be
// dispatched right now under the active streaming discipline.
func (c *Controller) canSendLocked(n int) bool {
	if c.mode == grbl.StreamingIncremental {
		return c.inflight.len() == 0
	}
	return c.f+n <= c.capacity
}

// attemptSendLocked drains PriorityQueue then StreamQueue while capacity
// allows, never interleaving the bytes of two lines and never dispatching
// while paused, halted, or after a fatal transport failure.
func (c *Controller) attemptSendLocked() {
	for {
		if c.transportFailed || c.state == StatePaused || c.state == StateHalted {
			return
		}

		if line, ok := c.priorityQ.popFront(); ok {
			if !c.canSendLocked(line.WireLen()) {
				c.priorityQ.items = append([]grbl.Line{line}, c.priorityQ.items...)
				return
			}
			if _, fatal := c.commitLocked(line, false); fatal {
				return
			}
			continue
		}

		if c.state != StateStreaming {
			return
		}

		item, ok := c.streamQ.popFront()
		if !ok {
			return
		}

		var line grbl.Line
		if item.processed {
			line = item.line
		} else {
			outputs := c.preprocessor.Process(item.line)
			if len(outputs) == 0 {
				continue
			}
			if len(outputs) > 1 {
				rest := make([]queueItem, len(outputs)-1)
				for i, o := range outputs[1:] {
					rest[i] = queueItem{line: o, processed: true}
				}
				c.streamQ.pushFrontAll(rest)
			}
			line = outputs[0]
		}

		if !c.canSendLocked(line.WireLen()) {
			c.streamQ.pushFrontAll([]queueItem{{line: line, processed: true}})
			return
		}

		if _, fatal := c.commitLocked(line, true); fatal {
			return
		}
	}
}

// commitLocked validates, writes, and accounts for one line. sent is false
// when the line was dropped for being malformed (the loop should try the
// next candidate); fatal is true when the transport write itself failed
// (the loop must stop entirely). streamSourced distinguishes a StreamQueue
// line, which is subject to the EEPROM-write policy, from a PriorityQueue
// line sent via SendImmediately, which is not.
func (c *Controller) commitLocked(line grbl.Line, streamSourced bool) (sent bool, fatal bool) {
	if err := grbl.ValidateLine(line); err != nil {
		c.sink(grbl.Event{Kind: grbl.EventLog, Text: err.Error()})
		return false, false
	}
	if streamSourced {
		if err := grbl.ValidateEEPROMPolicy(line, c.allowEEPROM); err != nil {
			c.sink(grbl.Event{Kind: grbl.EventLog, Text: err.Error()})
			return false, false
		}
	}

	n := line.WireLen()
	grbl.CheckCapacity(c.f+n, c.capacity)

	c.sink(grbl.Event{Kind: grbl.EventWrite, Bytes: []byte(line)})
	if err := c.transport.WriteLine(line); err != nil {
		c.transportFailed = true
		c.sink(grbl.Event{Kind: grbl.EventDisconnected})
		return false, true
	}

	c.f += n
	idx := c.inflight.push(string(line), n)
	c.sink(grbl.Event{Kind: grbl.EventLineSent, Index: idx, Text: string(line)})
	return true, false
}
