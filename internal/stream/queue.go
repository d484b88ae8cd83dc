// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

// Package stream implements the streaming flow-control engine: the
// StreamQueue/PriorityQueue/InflightLog data model and the Controller that
// drives them against a transport.Transport, grounded on the pack's
// character-counting reference implementation (send while
// available-len(line)-1 >= 0, restore available on each FIFO
// acknowledgement).
package stream

import "github.com/grblhost/grblhost/pkg/grbl"

// queueItem is one StreamQueue entry. processed distinguishes a raw
// embedder-supplied line (still needs the preprocessor) from a line the
// preprocessor already expanded and pushed back to the queue's head,
// which must not be preprocessed a second time.
type queueItem struct {
	line      grbl.Line
	processed bool
}

// streamDeque is an ordered, append-at-tail, pop/push-at-head sequence of
// queueItem, backing StreamQueue. It is not safe for concurrent use on its
// own; Controller guards it with its own mutex.
type streamDeque struct {
	items []queueItem
}

func (d *streamDeque) pushBack(item queueItem) {
	d.items = append(d.items, item)
}

func (d *streamDeque) pushFrontAll(items []queueItem) {
	d.items = append(items, d.items...)
}

func (d *streamDeque) popFront() (queueItem, bool) {
	if len(d.items) == 0 {
		return queueItem{}, false
	}
	item := d.items[0]
	d.items = d.items[1:]
	return item, true
}

func (d *streamDeque) len() int { return len(d.items) }

func (d *streamDeque) clear() []queueItem {
	old := d.items
	d.items = nil
	return old
}

// lineDeque is the PriorityQueue's backing store: plain grbl.Line values,
// since send_immediately lines bypass preprocessing entirely.
type lineDeque struct {
	items []grbl.Line
}

func (d *lineDeque) pushBack(l grbl.Line) { d.items = append(d.items, l) }

func (d *lineDeque) popFront() (grbl.Line, bool) {
	if len(d.items) == 0 {
		return "", false
	}
	l := d.items[0]
	d.items = d.items[1:]
	return l, true
}

func (d *lineDeque) len() int { return len(d.items) }

// inflightEntry is one (line-text, byte-length) pair sent but not yet
// acknowledged.
type inflightEntry struct {
	index int
	text  string
	bytes int
}

// inflightLog is the ordered sequence of unacknowledged lines. index
// counts every line ever committed across the controller's lifetime
// (reset only by SoftReset), matching the on_line_sent/on_processed_command
// index the spec's scenarios correlate on.
type inflightLog struct {
	entries  []inflightEntry
	nextIdx  int
}

func newInflightLog() *inflightLog {
	return &inflightLog{nextIdx: 1}
}

// push appends a newly committed line and returns its 1-based index.
func (l *inflightLog) push(text string, byteLen int) int {
	idx := l.nextIdx
	l.nextIdx++
	l.entries = append(l.entries, inflightEntry{index: idx, text: text, bytes: byteLen})
	return idx
}

// popHead removes and returns the oldest unacknowledged entry (P2: the
// line acknowledged by an ok/error is exactly the head of InflightLog).
func (l *inflightLog) popHead() (inflightEntry, bool) {
	if len(l.entries) == 0 {
		return inflightEntry{}, false
	}
	e := l.entries[0]
	l.entries = l.entries[1:]
	return e, true
}

func (l *inflightLog) totalBytes() int {
	total := 0
	for _, e := range l.entries {
		total += e.bytes
	}
	return total
}

func (l *inflightLog) len() int { return len(l.entries) }

func (l *inflightLog) reset() {
	l.entries = nil
	l.nextIdx = 1
}

// Stash is an immutable snapshot of the unsent StreamQueue portion captured
// at halt time. It deliberately excludes InflightLog (Design Notes' Open
// Question resolution: the host stashes only what was never transmitted;
// whatever was already committed to the wire drains on its own and still
// satisfies P1/P2 while draining).
type Stash struct {
	items []queueItem
}

// Empty reports whether this Stash carries no unsent work (the stash a
// halt of an idle controller captures).
func (s Stash) Empty() bool { return len(s.items) == 0 }
