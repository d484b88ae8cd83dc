// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package driver

import (
	"errors"
	"fmt"

	"github.com/grblhost/grblhost/internal/transport"
	"github.com/grblhost/grblhost/pkg/grbl"
)

// readLoop is the sole writer of State and the sole caller of
// Controller.Ack: every inbound line is parsed, folded into the firmware
// state mirror, and turned into zero or more Events here, before being
// handed to emit (and from there to the single dispatch goroutine, which
// is what actually guarantees P5 — this goroutine may run concurrently
// with dispatchLoop, but it never itself calls a Handler).
func (d *Driver) readLoop() {
	defer d.readWG.Done()

	for {
		raw, err := d.transport.ReadLine(d.readCtx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || d.readCtx.Err() != nil {
				return
			}
			d.emit(grbl.Event{Kind: grbl.EventDisconnected})
			return
		}

		p := d.parser.Parse(raw)
		if !d.handleParsedRecovered(p) {
			return
		}
	}
}

// handleParsedRecovered runs handleParsed under a recover guard: a
// *grbl.BufferOverflowAttempt panic is an invariant violation inside the
// flow controller, not a condition the caller can trigger through the
// public API (spec.md §7). Catching it here turns it into the same
// session-ending shutdown a transport error produces, rather than taking
// down the embedding process. Returns false if the loop should exit.
func (d *Driver) handleParsedRecovered(p grbl.Parsed) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.emit(grbl.Event{Kind: grbl.EventLog, Text: fmt.Sprintf("recovered: %v", r)})
			d.emit(grbl.Event{Kind: grbl.EventDisconnected})
			ok = false
		}
	}()
	d.handleParsed(p)
	return true
}

// handleParsed folds one classified line into State/Controller and emits
// the Events it implies. Settings/hash/parser-state queries are noted on
// the parser before the corresponding query line is written, so the
// accumulation here is purely reactive.
func (d *Driver) handleParsed(p grbl.Parsed) {
	switch p.Kind {
	case grbl.ParsedOk:
		d.controller.Ack(false, "")

	case grbl.ParsedError:
		d.controller.Ack(true, p.Code)

	case grbl.ParsedAlarm:
		d.state.Reset()
		d.emit(grbl.Event{Kind: grbl.EventAlarm, Code: p.Code})

	case grbl.ParsedBoot:
		d.parser.Boot()
		d.state.Reset()
		d.emit(grbl.Event{Kind: grbl.EventBoot, Version: p.Version})
		// A boot line means the firmware's settings and work-coordinate
		// offsets may have changed underneath us; re-download both
		// without waiting for the embedder to ask. gerbil.py's
		// _on_bootup does not do this on its own.
		if err := d.RequestSettings(); err != nil {
			d.emit(grbl.Event{Kind: grbl.EventLog, Text: "boot: " + err.Error()})
		}
		if err := d.RequestHashState(); err != nil {
			d.emit(grbl.Event{Kind: grbl.EventLog, Text: "boot: " + err.Error()})
		}

	case grbl.ParsedStatus:
		fill := 0
		if capacity := d.controller.Capacity(); capacity > 0 {
			fill = d.controller.FillBytes() * 100 / capacity
		}
		trans := d.state.ApplyStatus(p, fill)

		d.emit(grbl.Event{
			Kind: grbl.EventStatusUpdate,
			Mode: trans.NewMode,
			MPos: p.MPos,
			WPos: p.WPos,
			Feed: trans.NewFeed,
		})
		d.emit(grbl.Event{Kind: grbl.EventRxBufferPercent, Percent: fill})

		if trans.FeedChanged {
			d.emit(grbl.Event{Kind: grbl.EventFeedChange, Feed: trans.NewFeed})
		}
		if trans.EnteredRun {
			d.emit(grbl.Event{Kind: grbl.EventMovement})
		}
		if trans.LeftRun {
			d.emit(grbl.Event{Kind: grbl.EventStandstill})
		}

	case grbl.ParsedSettingsDownloaded:
		d.state.ApplySettingsDownloaded(p.Settings)
		d.emit(grbl.Event{Kind: grbl.EventSettingsDownloaded, Settings: p.Settings})
		// The "ok" that closes a $$ dump is reinterpreted as this Kind by
		// the parser, so the InflightLog slot it would otherwise have
		// freed must be freed here instead.
		d.controller.Ack(false, "")

	case grbl.ParsedHashStateUpdate:
		d.state.ApplyHashStateUpdate(p.HashState)
		d.emit(grbl.Event{Kind: grbl.EventHashStateUpdate, HashState: p.HashState})

	case grbl.ParsedParserState:
		d.state.ApplyParserState(p.ParserModes)
		d.emit(grbl.Event{Kind: grbl.EventGcodeParserStateUpdate, ParserState: p.ParserModes})

	case grbl.ParsedProbe:
		d.emit(grbl.Event{Kind: grbl.EventProbe, Probe: p.Probe})

	case grbl.ParsedSettingLine:
		// Individual $N=V lines are absorbed into the settings dump (or,
		// outside one, reported as plain read/log text); no event of
		// their own carries useful information beyond the final dump.
		d.emit(grbl.Event{Kind: grbl.EventRead, Text: p.Raw})

	case grbl.ParsedHashLine:
		d.emit(grbl.Event{Kind: grbl.EventRead, Text: p.Raw})

	default:
		d.emit(grbl.Event{Kind: grbl.EventUnknownLine, Text: p.Raw})
	}
}
