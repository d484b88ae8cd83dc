// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

// Package grbl provides a reference Go implementation of the grbl 0.9/1.x
// host-side wire protocol: line classification, typed events, firmware state
// projection, and command/query construction.
package grbl

import "time"

// Real-time control bytes. These are never counted against the firmware's
// receive buffer (P4) and bypass any line queueing.
const (
	RealtimeStatus    = '?'
	RealtimeFeedHold  = '!'
	RealtimeCycleStart = '~'
	RealtimeSoftReset = 0x18
)

// Query strings. Each is transmitted like a normal line (newline-terminated)
// but triggers a multi-line structured response handled by the parser.
const (
	QuerySettings     = "$$"
	QueryHashState    = "$#"
	QueryParserState  = "$G"
)

// DefaultCapacity is grbl's default serial receive buffer size in bytes.
const DefaultCapacity = 128

// MaxLineBytes is the largest payload grbl accepts on a single line,
// excluding the trailing newline.
const MaxLineBytes = 127

// DefaultPollInterval is how often the poller sends RealtimeStatus.
const DefaultPollInterval = 200 * time.Millisecond

// Mode is the firmware's reported machine mode (the first field of a status
// report, and the mode grbl enters on ALARM/boot).
type Mode int

const (
	ModeUnknown Mode = iota
	ModeIdle
	ModeRun
	ModeHold
	ModeQueue
	ModeAlarm
	ModeCheck
	ModeHome
	ModeJog
	ModeDoor
	ModeSleep
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "Idle"
	case ModeRun:
		return "Run"
	case ModeHold:
		return "Hold"
	case ModeQueue:
		return "Queue"
	case ModeAlarm:
		return "Alarm"
	case ModeCheck:
		return "Check"
	case ModeHome:
		return "Home"
	case ModeJog:
		return "Jog"
	case ModeDoor:
		return "Door"
	case ModeSleep:
		return "Sleep"
	default:
		return "Unknown"
	}
}

// ParseMode maps a status report's leading token to a Mode.
func ParseMode(s string) Mode {
	switch s {
	case "Idle":
		return ModeIdle
	case "Run":
		return ModeRun
	case "Hold", "Hold:0", "Hold:1":
		return ModeHold
	case "Queue":
		return ModeQueue
	case "Check":
		return ModeCheck
	case "Home":
		return ModeHome
	case "Jog":
		return ModeJog
	case "Door", "Door:0", "Door:1", "Door:2", "Door:3":
		return ModeDoor
	case "Sleep":
		return ModeSleep
	default:
		if len(s) >= 5 && s[:5] == "Alarm" {
			return ModeAlarm
		}
		if len(s) >= 5 && s[:5] == "ALARM" {
			return ModeAlarm
		}
		return ModeUnknown
	}
}

// HashPrefixes lists the coordinate-system names reported by $#, in the
// order grbl emits them.
var HashPrefixes = []string{"G54", "G55", "G56", "G57", "G58", "G59", "G28", "G30", "G92", "TLO", "PRB"}

// StreamingMode selects the flow-control discipline used by the controller.
type StreamingMode int

const (
	StreamingIncremental StreamingMode = iota
	StreamingCharacterCounting
)

func (m StreamingMode) String() string {
	if m == StreamingIncremental {
		return "incremental"
	}
	return "character-counting"
}
