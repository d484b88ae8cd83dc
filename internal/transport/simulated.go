// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/256dpi/gcode"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// SimulatedTransport is an in-memory grbl stand-in for dry-run mode and
// tests, adapted from a minimal line-at-a-time grbl simulator: it answers
// "?" with a synthesized status line, "$$"/"$#"/"$G" with canned tables,
// and plain G-code with "ok" after updating a toy work position.
type SimulatedTransport struct {
	mu sync.Mutex

	mode grbl.Mode
	wpos grbl.Position

	settings map[int]string
	hash     map[string][3]float64

	out []string // queued outbound lines, consumed by ReadLine
	cv  *sync.Cond

	closed bool
}

// NewSimulated returns a SimulatedTransport preloaded with a small, fixed
// settings table and a default G54 work offset, enough to exercise the
// settings/hash download paths without a real controller attached.
func NewSimulated() *SimulatedTransport {
	s := &SimulatedTransport{
		mode: grbl.ModeIdle,
		settings: map[int]string{
			0:   "10",
			1:   "25",
			110: "500.000",
			111: "500.000",
			112: "500.000",
		},
		hash: map[string][3]float64{
			"G54": {0, 0, 0},
		},
	}
	s.cv = sync.NewCond(&s.mu)
	return s
}

func (s *SimulatedTransport) ReadLine(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.out) == 0 && !s.closed {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.cv.Wait()
	}
	if len(s.out) == 0 {
		return "", ErrClosed
	}
	line := s.out[0]
	s.out = s.out[1:]
	return line, nil
}

func (s *SimulatedTransport) push(line string) {
	s.out = append(s.out, line)
	s.cv.Broadcast()
}

func (s *SimulatedTransport) WriteLine(l grbl.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.processLine(string(l))
	return nil
}

func (s *SimulatedTransport) WriteRealtime(b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch b {
	case grbl.RealtimeStatus:
		s.pushStatus()
	case grbl.RealtimeFeedHold:
		s.mode = grbl.ModeHold
	case grbl.RealtimeCycleStart:
		if s.mode == grbl.ModeHold {
			s.mode = grbl.ModeIdle
		}
	case grbl.RealtimeSoftReset:
		s.mode = grbl.ModeIdle
		s.push("")
		s.push("Grbl 1.1h ['$' for help]")
	}
	return nil
}

func (s *SimulatedTransport) pushStatus() {
	s.push(fmt.Sprintf("<%s,MPos:%.3f,%.3f,%.3f,WPos:%.3f,%.3f,%.3f,Bf:15,128,F:0.0>",
		s.mode, s.wpos.X, s.wpos.Y, s.wpos.Z, s.wpos.X, s.wpos.Y, s.wpos.Z))
}

func (s *SimulatedTransport) processLine(line string) {
	switch {
	case line == grbl.QueryParserState:
		s.push("[GC:G0 G54 G17 G21 G90 G94 M5 M9 T0 F0 S0]")
		s.push("ok")

	case line == string(grbl.SettingsQueryLine()):
		for id, v := range s.settings {
			s.push(fmt.Sprintf("$%d=%s", id, v))
		}
		s.push("ok")

	case line == grbl.QueryHashState:
		for prefix, v := range s.hash {
			s.push(fmt.Sprintf("[%s:%.3f,%.3f,%.3f]", prefix, v[0], v[1], v[2]))
		}
		s.push("[PRB:0.000,0.000,0.000:1]")
		s.push("ok")

	case strings.HasPrefix(line, "$"):
		s.push("ok")

	default:
		s.applyMotion(line)
		s.push("ok")
	}
}

// applyMotion updates the toy work position for G0/G1/G2/G3 moves, using
// the same word parser the preprocessors use on outbound G-code.
func (s *SimulatedTransport) applyMotion(line string) {
	gc, err := gcode.ParseLine(line)
	if err != nil {
		return
	}
	g := -1
	pos := s.wpos
	for _, code := range gc.Codes {
		switch code.Letter {
		case "G":
			g = int(code.Value)
		case "X":
			pos.X = code.Value
		case "Y":
			pos.Y = code.Value
		case "Z":
			pos.Z = code.Value
		}
	}
	if g == 0 || g == 1 || g == 2 || g == 3 {
		s.wpos = pos
	}
}

func (s *SimulatedTransport) Describe() string { return "simulated" }

func (s *SimulatedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cv.Broadcast()
	return nil
}
