// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package stream

import (
	"context"
	"testing"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// fakeTransport records every written line/byte and never answers on its
// own; tests drive acknowledgements explicitly through Controller.Ack.
type fakeTransport struct {
	lines    []string
	realtime []byte
	failNext bool
}

func (f *fakeTransport) ReadLine(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (f *fakeTransport) WriteLine(l grbl.Line) error {
	if f.failNext {
		return errWriteFailed
	}
	f.lines = append(f.lines, string(l))
	return nil
}

func (f *fakeTransport) WriteRealtime(b byte) error {
	f.realtime = append(f.realtime, b)
	return nil
}

func (f *fakeTransport) Describe() string { return "fake" }
func (f *fakeTransport) Close() error     { return nil }

type stubErr string

func (e stubErr) Error() string { return string(e) }

const errWriteFailed = stubErr("write failed")

func collectEvents() (func(grbl.Event), *[]grbl.Event) {
	var events []grbl.Event
	return func(e grbl.Event) { events = append(events, e) }, &events
}

func TestScenarioTwoCharacterCountingStreamAndCompletion(t *testing.T) {
	ft := &fakeTransport{}
	sink, events := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingCharacterCounting, false, ft, CommentStripPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"G00Y3", ""}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(ft.lines) != 2 || ft.lines[0] != "G00Y3" || ft.lines[1] != "" {
		t.Fatalf("wire lines = %v, want [G00Y3 \"\"]", ft.lines)
	}

	var sentIdx []int
	for _, e := range *events {
		if e.Kind == grbl.EventLineSent {
			sentIdx = append(sentIdx, e.Index)
		}
	}
	if len(sentIdx) != 2 || sentIdx[0] != 1 || sentIdx[1] != 2 {
		t.Fatalf("on_line_sent indices = %v, want [1 2]", sentIdx)
	}

	c.Ack(false, "")
	c.Ack(false, "")

	if c.State() != StateIdle {
		t.Fatalf("State() = %v, want Idle after draining", c.State())
	}

	var sawCompleted bool
	var processedCount int
	for i, e := range *events {
		if e.Kind == grbl.EventProcessedCommand {
			processedCount++
		}
		if e.Kind == grbl.EventJobCompleted {
			sawCompleted = true
			if processedCount != 2 {
				t.Fatalf("JobCompleted emitted after only %d ProcessedCommand events", processedCount)
			}
			// Open Question resolution: JobCompleted follows the final
			// ProcessedCommand, so the immediately preceding event in this
			// sequence (ignoring the interleaved ProgressPercent) must be it.
			if i == 0 || (*events)[i-1].Kind != grbl.EventProgressPercent {
				t.Fatalf("unexpected event immediately before JobCompleted: %+v", (*events)[i-1])
			}
		}
	}
	if !sawCompleted {
		t.Fatal("never saw on_job_completed")
	}
}

func TestScenarioThreePriorityJumpsQueue(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	queued := make([]grbl.Line, 10)
	for i := range queued {
		queued[i] = grbl.Line("G1 X1")
	}
	if err := c.Stream(queued); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(ft.lines) != 1 {
		t.Fatalf("incremental mode should have sent exactly 1 line, got %d", len(ft.lines))
	}

	c.SendImmediately(grbl.Line("G0 X200"))
	c.Ack(false, "")

	if len(ft.lines) < 2 || ft.lines[1] != "G0 X200" {
		t.Fatalf("wire lines = %v, want priority line to jump the queue at position 1", ft.lines)
	}
}

func TestScenarioFiveFeedOverrideRewritesWord(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	override := &FeedOverridePreprocessor{}
	override.SetEnabled(true)
	override.SetFeed(800)

	c := New(grbl.DefaultCapacity, grbl.StreamingCharacterCounting, false, ft, DefaultPipeline(override), sink)

	if err := c.Stream([]grbl.Line{"F100 G1 X210"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(ft.lines) != 1 {
		t.Fatalf("wire lines = %v, want exactly 1", ft.lines)
	}
	if ft.lines[0] != "F800.000 G1 X210" {
		t.Fatalf("wire line = %q, want the F word rewritten to 800", ft.lines[0])
	}
}

func TestScenarioSixPauseResume(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"G1 X1", "G1 X2"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(ft.lines) != 1 {
		t.Fatalf("expected exactly one line sent before pausing, got %d", len(ft.lines))
	}

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if len(ft.realtime) != 1 || ft.realtime[0] != grbl.RealtimeFeedHold {
		t.Fatalf("realtime bytes = %v, want [!]", ft.realtime)
	}

	c.Ack(false, "")
	if len(ft.lines) != 1 {
		t.Fatalf("no further on_line_sent expected while paused, got %d lines sent", len(ft.lines))
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(ft.realtime) != 2 || ft.realtime[1] != grbl.RealtimeCycleStart {
		t.Fatalf("realtime bytes = %v, want [! ~]", ft.realtime)
	}
	if len(ft.lines) != 2 || ft.lines[1] != "G1 X2" {
		t.Fatalf("dispatch did not resume from the exact next queue position: %v", ft.lines)
	}
}

func TestInvariantP1NeverExceedsCapacity(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	capacity := 20
	c := New(capacity, grbl.StreamingCharacterCounting, false, ft, PassthroughPreprocessor{}, sink)

	lines := make([]grbl.Line, 20)
	for i := range lines {
		lines[i] = "G1 X1 Y1"
	}
	if err := c.Stream(lines); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if got := c.FillBytes(); got > capacity {
		t.Fatalf("FillBytes() = %d, exceeds capacity %d", got, capacity)
	}

	for i := 0; i < len(lines); i++ {
		c.Ack(false, "")
		if got := c.FillBytes(); got > capacity {
			t.Fatalf("FillBytes() = %d, exceeds capacity %d after ack %d", got, capacity, i)
		}
	}
}

func TestInvariantP4RealtimeBytesNeverCountedInF(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"G1 X1"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	want := grbl.Line("G1 X1").WireLen()

	before := c.FillBytes()
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	after := c.FillBytes()
	if len(ft.realtime) != 2 {
		t.Fatalf("realtime bytes = %v, want [! ~]", ft.realtime)
	}
	if before != want || after != want {
		t.Fatalf("F changed from realtime bytes: before=%d after=%d, want %d", before, after, want)
	}
}

func TestInvariantP6HaltUnstashIdempotentWhenIdle(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	if c.State() != StateIdle {
		t.Fatal("controller should start Idle")
	}
	c.Halt()
	if c.State() != StateIdle {
		t.Fatalf("Halt() on an idle controller changed state to %v", c.State())
	}
	c.Unstash()
	if c.State() != StateIdle {
		t.Fatalf("Unstash() on an idle controller changed state to %v", c.State())
	}
}

func TestInvariantP7SoftResetConvergence(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingCharacterCounting, false, ft, PassthroughPreprocessor{}, sink)

	lines := make([]grbl.Line, 5)
	for i := range lines {
		lines[i] = "G1 X1"
	}
	if err := c.Stream(lines); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if err := c.SoftReset(); err != nil {
		t.Fatalf("SoftReset() error = %v", err)
	}

	if got := c.FillBytes(); got != 0 {
		t.Fatalf("FillBytes() = %d after SoftReset, want 0", got)
	}
	if c.State() != StateIdle {
		t.Fatalf("State() = %v after SoftReset, want Idle", c.State())
	}
	if len(ft.realtime) == 0 || ft.realtime[len(ft.realtime)-1] != grbl.RealtimeSoftReset {
		t.Fatalf("realtime bytes = %v, want a trailing soft-reset byte", ft.realtime)
	}
}

func TestHaltStashesOnlyUnsentPortion(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"G1 X1", "G1 X2", "G1 X3"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	// Incremental mode sent exactly one line; it stays inflight across Halt.
	c.Halt()
	if c.State() != StateHalted {
		t.Fatalf("State() = %v, want Halted", c.State())
	}
	if c.inflight.len() != 1 {
		t.Fatalf("inflight.len() = %d, want 1 (Halt must not touch InflightLog)", c.inflight.len())
	}

	c.Unstash()
	if c.State() != StateStreaming {
		t.Fatalf("State() = %v after Unstash, want Streaming", c.State())
	}
}

func TestCommitRejectsOverlengthLine(t *testing.T) {
	ft := &fakeTransport{}
	sink, events := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	long := make([]byte, grbl.MaxLineBytes+10)
	for i := range long {
		long[i] = 'x'
	}
	if err := c.Stream([]grbl.Line{grbl.Line(long)}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(ft.lines) != 0 {
		t.Fatalf("overlength line was written to the wire: %v", ft.lines)
	}

	var sawLog bool
	for _, e := range *events {
		if e.Kind == grbl.EventLog {
			sawLog = true
		}
	}
	if !sawLog {
		t.Fatal("expected an on_log event reporting the rejected line")
	}
}

func TestCommitRejectsEEPROMWriteFromStreamQueueUnlessAllowed(t *testing.T) {
	ft := &fakeTransport{}
	sink, events := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"$100=250.000", "G1 X1"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(ft.lines) != 1 || ft.lines[0] != "G1 X1" {
		t.Fatalf("wire lines = %v, want only the non-EEPROM line written", ft.lines)
	}

	var sawLog bool
	for _, e := range *events {
		if e.Kind == grbl.EventLog {
			sawLog = true
		}
	}
	if !sawLog {
		t.Fatal("expected an on_log event reporting the rejected EEPROM write")
	}
}

func TestCommitAllowsEEPROMWriteFromStreamQueueWhenPermitted(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, true, ft, PassthroughPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"$100=250.000"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(ft.lines) != 1 || ft.lines[0] != "$100=250.000" {
		t.Fatalf("wire lines = %v, want the EEPROM write allowed through", ft.lines)
	}
}

func TestSendImmediatelyBypassesEEPROMPolicy(t *testing.T) {
	ft := &fakeTransport{}
	sink, _ := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	c.SendImmediately("$100=250.000")
	if len(ft.lines) != 1 || ft.lines[0] != "$100=250.000" {
		t.Fatalf("wire lines = %v, want the priority write unaffected by EEPROM policy", ft.lines)
	}
}

func TestTransportWriteErrorStopsDispatch(t *testing.T) {
	ft := &fakeTransport{failNext: true}
	sink, events := collectEvents()
	c := New(grbl.DefaultCapacity, grbl.StreamingIncremental, false, ft, PassthroughPreprocessor{}, sink)

	if err := c.Stream([]grbl.Line{"G1 X1"}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var sawDisconnected bool
	for _, e := range *events {
		if e.Kind == grbl.EventDisconnected {
			sawDisconnected = true
		}
	}
	if !sawDisconnected {
		t.Fatal("expected on_disconnected after a transport write failure")
	}

	ft.failNext = false
	c.SendImmediately(grbl.Line("G1 X2"))
	if len(ft.lines) != 0 {
		t.Fatalf("dispatch resumed after a fatal transport failure: %v", ft.lines)
	}
}
