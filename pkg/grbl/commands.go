// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "fmt"

// The functions in this file build the wire representations of grbl's
// control requests. Buffered commands return a Line for the flow
// controller to queue; real-time commands return the single byte that
// must bypass the queue entirely (spec §4.2, invariant P4).

// SoftResetByte is the single byte that aborts the current job and reboots
// the parser state. It is never counted against the receive buffer.
func SoftResetByte() byte { return RealtimeSoftReset }

// StatusQueryByte requests an immediate "<...>" status report.
func StatusQueryByte() byte { return byte(RealtimeStatus) }

// FeedHoldByte pauses motion without clearing the planner buffer.
func FeedHoldByte() byte { return byte(RealtimeFeedHold) }

// CycleStartByte resumes motion after a feed hold.
func CycleStartByte() byte { return byte(RealtimeCycleStart) }

// SettingsQueryLine requests a "$$" dump of every $N=V setting.
func SettingsQueryLine() Line { return Line(QuerySettings) }

// HashStateQueryLine requests a "$#" dump of work coordinate offsets.
func HashStateQueryLine() Line { return Line(QueryHashState) }

// ParserStateQueryLine requests a "$G" dump of the active modal state.
func ParserStateQueryLine() Line { return Line(QueryParserState) }

// FeedOverrideLine builds a "F<value>" word in the same format that
// FeedOverridePreprocessor substitutes into a line's existing F word, or
// appends.
func FeedOverrideLine(feed float64) string {
	return fmt.Sprintf("F%.3f", feed)
}

// SettingWriteLine builds a "$N=V" line to persist one setting.
func SettingWriteLine(id int, value string) Line {
	return Line(fmt.Sprintf("$%d=%s", id, value))
}

// JogLine builds a "$J=..." incremental jog command.
func JogLine(gcode string) Line {
	return Line("$J=" + gcode)
}

// HomeLine builds the "$H" homing cycle command.
func HomeLine() Line { return Line("$H") }

// UnlockLine builds the "$X" alarm-unlock command.
func UnlockLine() Line { return Line("$X") }
