// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

// ParsedKind tags the internal classification produced by the Parser for a
// single inbound line. This is distinct from Event: Event is the
// embedder-facing tagged union (pkg/grbl/events.go); Parsed is the
// plumbing signal consumed by the state mirror and the flow controller
// before any embedder event is derived from it. Rules are applied in the
// order documented on Parser.Parse.
type ParsedKind int

const (
	ParsedUnknown ParsedKind = iota
	ParsedOk
	ParsedError
	ParsedAlarm
	ParsedBoot
	ParsedStatus
	ParsedSettingLine
	ParsedSettingsDownloaded
	ParsedHashLine
	ParsedHashStateUpdate
	ParsedParserState
	ParsedProbe
)

// Parsed is the structured result of classifying one inbound line.
type Parsed struct {
	Kind ParsedKind
	Raw  string

	Code    string // ParsedError, ParsedAlarm
	Version string // ParsedBoot

	Mode       Mode     // ParsedStatus
	MPos, WPos Position // ParsedStatus
	HasWPos    bool     // ParsedStatus: WPos field was present on the wire
	Feed       float64  // ParsedStatus
	HasFeed    bool
	BufferFree int // ParsedStatus: Bf: planner/serial slots free, if present
	HasBuffer  bool
	LineNumber int // ParsedStatus: Ln: field, if present
	HasLine    bool

	SettingID      int    // ParsedSettingLine
	SettingValue   string // ParsedSettingLine
	SettingComment string // ParsedSettingLine
	Settings       map[int]SettingEntry // ParsedSettingsDownloaded

	HashPrefix string               // ParsedHashLine
	HashValues []float64            // ParsedHashLine
	HashState  map[string][]float64 // ParsedHashStateUpdate

	ParserModes []string // ParsedParserState

	Probe ProbeResult // ParsedProbe
}
