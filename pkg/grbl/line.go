// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "fmt"

// Position holds a three-axis coordinate, as reported in MPos/WPos fields.
type Position struct {
	X, Y, Z float64
}

func (p Position) String() string {
	return fmt.Sprintf("%.3f,%.3f,%.3f", p.X, p.Y, p.Z)
}

// Line is a transmittable unit of text with no terminator of its own; the
// transport appends exactly one newline when it is written to the wire.
type Line string

// WireBytes returns the bytes actually placed on the wire for this line,
// including the trailing newline the firmware counts against its receive
// buffer.
func (l Line) WireBytes() []byte {
	b := make([]byte, len(l)+1)
	copy(b, l)
	b[len(l)] = '\n'
	return b
}

// WireLen is len(l)+1: the number of bytes this line consumes in the
// firmware's receive buffer once sent (ReceiveBuffer invariant P1).
func (l Line) WireLen() int {
	return len(l) + 1
}
