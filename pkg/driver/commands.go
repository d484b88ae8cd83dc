// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package driver

import (
	"fmt"
	"strings"
	"time"

	"github.com/grblhost/grblhost/internal/stream"
	"github.com/grblhost/grblhost/pkg/grbl"
)

// StreamLines queues lines for streaming through the preprocessor pipeline
// and flow controller, appending to an already-running job rather than
// resetting progress if one is in progress.
func (d *Driver) StreamLines(lines []string) error {
	ls := make([]grbl.Line, len(lines))
	for i, l := range lines {
		ls[i] = grbl.Line(l)
	}
	return d.withController(func(c *stream.Controller) error { return c.Stream(ls) })
}

// Stream splits text into newline-delimited lines and queues them, the
// convenience form used when streaming a whole G-Code file's contents. A
// single trailing newline is a terminator, not a separator introducing a
// further empty line, mirroring how a text editor reports a file's line
// count.
func (d *Driver) Stream(text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return d.StreamLines(strings.Split(text, "\n"))
}

// SendImmediately enqueues one line on the PriorityQueue, bypassing
// StreamQueue ordering but still obeying the buffer-fill bound (P1).
func (d *Driver) SendImmediately(line string) error {
	return d.withController(func(c *stream.Controller) error {
		c.SendImmediately(grbl.Line(line))
		return nil
	})
}

// Pause sends a feed-hold and stops dispatching new lines.
func (d *Driver) Pause() error {
	return d.withController(func(c *stream.Controller) error { return c.Pause() })
}

// Resume sends a cycle-start and resumes dispatching from the next queue
// position.
func (d *Driver) Resume() error {
	return d.withController(func(c *stream.Controller) error { return c.Resume() })
}

// Halt stashes the unsent portion of the current stream and stops
// dispatching; a no-op when idle (P6).
func (d *Driver) Halt() error {
	return d.withController(func(c *stream.Controller) error { c.Halt(); return nil })
}

// Unstash restores a prior Halt's stash and resumes streaming; a no-op
// when not halted.
func (d *Driver) Unstash() error {
	return d.withController(func(c *stream.Controller) error { c.Unstash(); return nil })
}

// SoftReset flushes every queue and InflightLog and transmits the
// real-time soft-reset byte (P7). The caller should expect an on_boot
// event once the firmware finishes rebooting.
func (d *Driver) SoftReset() error {
	return d.withController(func(c *stream.Controller) error { return c.SoftReset() })
}

// SetStreamingMode switches the active flow-control discipline.
func (d *Driver) SetStreamingMode(mode grbl.StreamingMode) error {
	return d.withController(func(c *stream.Controller) error { c.SetStreamingMode(mode); return nil })
}

// SetFeedOverride enables or disables the feed-override preprocessor.
func (d *Driver) SetFeedOverride(enabled bool) {
	d.feedOverride.SetEnabled(enabled)
}

// RequestFeed sets the feed value substituted into every F word while the
// override is enabled.
func (d *Driver) RequestFeed(feed float64) {
	d.feedOverride.SetFeed(feed)
}

// RequestSettings writes "$$" and arms the parser to accumulate the
// resulting dump into a single on_settings_downloaded event.
func (d *Driver) RequestSettings() error {
	return d.sendQuery(func() { d.parser.NotifySettingsRequested() }, grbl.SettingsQueryLine())
}

// RequestHashState writes "$#" and arms the parser to accumulate the
// resulting dump into a single on_hash_stateupdate event.
func (d *Driver) RequestHashState() error {
	return d.sendQuery(func() { d.parser.NotifyHashRequested() }, grbl.HashStateQueryLine())
}

// RequestGCodeParserState writes "$G"; its single-line response needs no
// prior arming since the parser recognizes a "[...]" parser-state line on
// sight.
func (d *Driver) RequestGCodeParserState() error {
	return d.sendQuery(func() {}, grbl.ParserStateQueryLine())
}

func (d *Driver) sendQuery(arm func(), line grbl.Line) error {
	return d.withController(func(c *stream.Controller) error {
		arm()
		c.SendImmediately(line)
		return nil
	})
}

// LoadProfile parses and validates a MachineProfile document and returns
// the Options it implies, for the caller to pass to Connect.
func LoadProfile(data []byte) (Options, grbl.MachineProfile, error) {
	profile, err := grbl.ParseMachineProfile(data)
	if err != nil {
		return Options{}, grbl.MachineProfile{}, err
	}

	opts := Options{
		Capacity:      profile.Capacity,
		StreamingMode: profile.StreamingModeValue(),
		AllowEEPROM:   profile.AllowEEPROM,
	}
	if profile.PollInterval != "" {
		if interval, err := time.ParseDuration(profile.PollInterval); err == nil {
			opts.PollInterval = interval
		}
	}
	return opts, profile, nil
}

// ExportSettingsSnapshot captures the current settings/hash-state
// sub-state as a checksummed, portable byte blob.
func (d *Driver) ExportSettingsSnapshot(machineName string) ([]byte, error) {
	snap := grbl.NewSettingsSnapshot(machineName, d.State())
	return snap.Encode()
}

// ImportSettingsSnapshot decodes a previously exported blob without
// applying it to the live firmware — applying settings back to the
// controller is a deliberate, explicit operation the embedder performs by
// issuing SettingWriteLine commands itself, not an implicit side effect of
// importing a snapshot.
func ImportSettingsSnapshot(data []byte) (grbl.SettingsSnapshot, error) {
	return grbl.DecodeSettingsSnapshot(data)
}

// withController runs fn against the live controller under a recover guard:
// fn executes on the caller's own goroutine (Stream/SendImmediately/etc are
// called directly by the embedder, not by one of the three worker
// goroutines), so a *grbl.BufferOverflowAttempt panic here would otherwise
// propagate out of the library entirely. Recovering it and reporting
// on_disconnected matches the shutdown the same panic produces when it
// instead occurs on the reader goroutine (see handleParsedRecovered).
func (d *Driver) withController(fn func(*stream.Controller) error) (err error) {
	d.mu.Lock()
	ctl, connected := d.controller, d.connected
	d.mu.Unlock()
	if ctl == nil || !connected {
		return fmt.Errorf("driver: not connected")
	}

	defer func() {
		if r := recover(); r != nil {
			d.emit(grbl.Event{Kind: grbl.EventLog, Text: fmt.Sprintf("recovered: %v", r)})
			d.emit(grbl.Event{Kind: grbl.EventDisconnected})
			err = fmt.Errorf("driver: %v", r)
		}
	}()
	return fn(ctl)
}
