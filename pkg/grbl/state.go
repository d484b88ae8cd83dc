// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "sync"

// State is the mirrored firmware state (spec's FirmwareState). It follows a
// single-writer, multi-reader discipline: all Apply* methods are called only
// from the driver's reader goroutine; any goroutine may call
// Snapshot, which returns a copy rather than a shared reference.
type State struct {
	mu sync.RWMutex

	mode Mode

	machinePosition Position
	workingPosition Position

	feedCurrent   float64
	rxFillPercent int

	settings map[int]SettingEntry

	parserModes []string

	hashOffsets map[string][]float64
}

// Snapshot is an immutable copy of State at one instant.
type Snapshot struct {
	Mode            Mode
	MachinePosition Position
	WorkingPosition Position
	FeedCurrent     float64
	RxFillPercent   int
	Settings        map[int]SettingEntry
	ParserModes     []string
	HashOffsets     map[string][]float64
}

// NewState returns an empty mirror, as created at connect time.
func NewState() *State {
	return &State{
		mode:        ModeUnknown,
		settings:    map[int]SettingEntry{},
		hashOffsets: map[string][]float64{},
	}
}

// Snapshot returns a deep copy safe for any goroutine to read.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := make(map[int]SettingEntry, len(s.settings))
	for k, v := range s.settings {
		settings[k] = v
	}
	hash := make(map[string][]float64, len(s.hashOffsets))
	for k, v := range s.hashOffsets {
		cp := make([]float64, len(v))
		copy(cp, v)
		hash[k] = cp
	}
	modes := make([]string, len(s.parserModes))
	copy(modes, s.parserModes)

	return Snapshot{
		Mode:            s.mode,
		MachinePosition: s.machinePosition,
		WorkingPosition: s.workingPosition,
		FeedCurrent:     s.feedCurrent,
		RxFillPercent:   s.rxFillPercent,
		Settings:        settings,
		ParserModes:     modes,
		HashOffsets:     hash,
	}
}

// Reset clears all state, as happens on Boot detection (spec §3 Lifecycle).
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeIdle
	s.machinePosition = Position{}
	s.workingPosition = Position{}
	s.feedCurrent = 0
	s.rxFillPercent = 0
	s.settings = map[int]SettingEntry{}
	s.parserModes = nil
	s.hashOffsets = map[string][]float64{}
}

// StatusTransition describes how applying a status update changed mode, for
// the orchestrator to derive on_movement/on_standstill and (in conjunction
// with the flow controller's queue state) on_job_completed.
type StatusTransition struct {
	PreviousMode   Mode
	NewMode        Mode
	FeedChanged    bool
	NewFeed        float64
	EnteredRun     bool // mode transitioned into Run from something else
	LeftRun        bool // mode transitioned out of Run
}

// ApplyStatus updates mode/position/feed from a ParsedStatus line and
// recomputes rx_fill_percent from the caller-supplied fill ratio (owned by
// the flow controller, not State itself).
func (s *State) ApplyStatus(p Parsed, rxFillPercent int) StatusTransition {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevMode := s.mode
	prevFeed := s.feedCurrent

	s.mode = p.Mode
	s.machinePosition = p.MPos
	if p.HasWPos {
		s.workingPosition = p.WPos
	}
	if p.HasFeed {
		s.feedCurrent = p.Feed
	}
	s.rxFillPercent = rxFillPercent

	return StatusTransition{
		PreviousMode: prevMode,
		NewMode:      s.mode,
		FeedChanged:  p.HasFeed && s.feedCurrent != prevFeed,
		NewFeed:      s.feedCurrent,
		EnteredRun:   s.mode == ModeRun && prevMode != ModeRun,
		LeftRun:      prevMode == ModeRun && s.mode != ModeRun,
	}
}

// ApplySettingsDownloaded overwrites the settings sub-state.
func (s *State) ApplySettingsDownloaded(settings map[int]SettingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// ApplyHashStateUpdate overwrites the hash-offset sub-state.
func (s *State) ApplyHashStateUpdate(hash map[string][]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashOffsets = hash
}

// ApplyParserState overwrites the parser-modes sub-state.
func (s *State) ApplyParserState(modes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parserModes = modes
}

// Mode returns the current mirrored mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}
