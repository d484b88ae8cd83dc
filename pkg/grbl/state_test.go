// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "testing"

func TestStateApplyStatusTransitions(t *testing.T) {
	s := NewState()
	p := NewParser()

	idle := p.Parse("<Idle,MPos:0.000,0.000,0.000,F:0.0>")
	tr := s.ApplyStatus(idle, 0)
	if tr.EnteredRun || tr.LeftRun {
		t.Fatalf("unexpected transition on first status: %+v", tr)
	}

	run := p.Parse("<Run,MPos:1.000,0.000,0.000,F:500.0>")
	tr = s.ApplyStatus(run, 10)
	if !tr.EnteredRun {
		t.Error("EnteredRun = false, want true on Idle->Run")
	}
	if !tr.FeedChanged || tr.NewFeed != 500 {
		t.Errorf("FeedChanged/NewFeed = %v/%v, want true/500", tr.FeedChanged, tr.NewFeed)
	}

	backToIdle := p.Parse("<Idle,MPos:2.000,0.000,0.000,F:0.0>")
	tr = s.ApplyStatus(backToIdle, 0)
	if !tr.LeftRun {
		t.Error("LeftRun = false, want true on Run->Idle")
	}

	snap := s.Snapshot()
	if snap.Mode != ModeIdle {
		t.Errorf("Snapshot Mode = %v, want ModeIdle", snap.Mode)
	}
	if snap.MachinePosition != (Position{2, 0, 0}) {
		t.Errorf("Snapshot MachinePosition = %v", snap.MachinePosition)
	}
}

func TestStateSnapshotIsACopy(t *testing.T) {
	s := NewState()
	s.ApplySettingsDownloaded(map[int]SettingEntry{0: {Value: "10"}})

	snap := s.Snapshot()
	snap.Settings[0] = SettingEntry{Value: "mutated"}

	again := s.Snapshot()
	if again.Settings[0].Value != "10" {
		t.Fatalf("mutating a returned Snapshot leaked into State: got %q", again.Settings[0].Value)
	}
}

func TestStateResetClearsEverything(t *testing.T) {
	s := NewState()
	p := NewParser()
	s.ApplyStatus(p.Parse("<Run,MPos:1.000,2.000,3.000,F:100.0>"), 50)
	s.ApplySettingsDownloaded(map[int]SettingEntry{0: {Value: "10"}})
	s.ApplyHashStateUpdate(map[string][]float64{"G54": {1, 2, 3}})

	s.Reset()

	snap := s.Snapshot()
	if snap.Mode != ModeIdle {
		t.Errorf("Mode after Reset = %v, want ModeIdle", snap.Mode)
	}
	if snap.MachinePosition != (Position{}) {
		t.Errorf("MachinePosition after Reset = %v, want zero", snap.MachinePosition)
	}
	if len(snap.Settings) != 0 || len(snap.HashOffsets) != 0 {
		t.Errorf("sub-state not cleared by Reset: %+v", snap)
	}
}
