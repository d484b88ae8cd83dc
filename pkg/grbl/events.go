// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

// EventKind tags the variant carried by an Event. Re-architected per the
// Design Notes: the original dynamic callback with a variadic payload is
// replaced by a single tagged-variant type, one kind per event name, with
// typed payload fields instead of positional interface{} args.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventBoot
	EventDisconnected
	EventLog
	EventRead
	EventWrite
	EventStatusUpdate
	EventHashStateUpdate
	EventGcodeParserStateUpdate
	EventSettingsDownloaded
	EventFeedChange
	EventMovement
	EventStandstill
	EventLineSent
	EventProcessedCommand
	EventProgressPercent
	EventRxBufferPercent
	EventBufsizeChange
	EventVarsChange
	EventJobCompleted
	EventAlarm
	EventError
	EventProbe
	EventUnknownLine
)

func (k EventKind) String() string {
	switch k {
	case EventBoot:
		return "on_boot"
	case EventDisconnected:
		return "on_disconnected"
	case EventLog:
		return "on_log"
	case EventRead:
		return "on_read"
	case EventWrite:
		return "on_write"
	case EventStatusUpdate:
		return "on_stateupdate"
	case EventHashStateUpdate:
		return "on_hash_stateupdate"
	case EventGcodeParserStateUpdate:
		return "on_gcode_parser_stateupdate"
	case EventSettingsDownloaded:
		return "on_settings_downloaded"
	case EventFeedChange:
		return "on_feed_change"
	case EventMovement:
		return "on_movement"
	case EventStandstill:
		return "on_standstill"
	case EventLineSent:
		return "on_line_sent"
	case EventProcessedCommand:
		return "on_processed_command"
	case EventProgressPercent:
		return "on_progress_percent"
	case EventRxBufferPercent:
		return "on_rx_buffer_percent"
	case EventBufsizeChange:
		return "on_bufsize_change"
	case EventVarsChange:
		return "on_vars_change"
	case EventJobCompleted:
		return "on_job_completed"
	case EventAlarm:
		return "on_alarm"
	case EventError:
		return "on_error"
	case EventProbe:
		return "on_probe"
	case EventUnknownLine:
		return "on_read"
	default:
		return "on_unknown"
	}
}

// SettingEntry is one row of grbl's $$ settings table.
type SettingEntry struct {
	Value   string
	Comment string
}

// ProbeResult is the parsed payload of a [PRB:...] line.
type ProbeResult struct {
	Position Position
	Success  bool
}

// Event is the single tagged-variant type dispatched to the embedder's
// Handler. Only the fields relevant to Kind are populated; the rest carry
// their zero value.
type Event struct {
	Kind EventKind

	Text    string // on_log, on_read, on_unknown_line
	Bytes   []byte // on_write
	Index   int    // on_line_sent, on_processed_command, on_error (InflightLog position)
	Code    string // on_alarm, on_error (firmware code / error code)
	Percent int    // on_progress_percent, on_rx_buffer_percent

	Mode Mode     // on_stateupdate
	MPos Position // on_stateupdate
	WPos Position // on_stateupdate
	Feed float64  // on_stateupdate, on_feed_change

	HashState    map[string][]float64     // on_hash_stateupdate
	ParserState  []string                 // on_gcode_parser_stateupdate
	Settings     map[int]SettingEntry     // on_settings_downloaded
	Vars         map[string]string        // on_vars_change
	Probe        ProbeResult              // on_probe
	BufferSize   int                      // on_bufsize_change
	Version      string                   // on_boot
}

// Handler is the embedder-supplied callback. The orchestrator guarantees no
// two invocations of Handler overlap in time (P5).
type Handler func(Event)

// NamedHandler is the string-named fallback retained for embedders that
// prefer to treat every event uniformly (Design Notes: "a fallback
// string-named channel can be retained").
type NamedHandler func(name string, payload Event)
