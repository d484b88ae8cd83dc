// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "testing"

func TestParseOk(t *testing.T) {
	p := NewParser()
	got := p.Parse("ok")
	if got.Kind != ParsedOk {
		t.Fatalf("Kind = %v, want ParsedOk", got.Kind)
	}
}

func TestParseError(t *testing.T) {
	p := NewParser()
	got := p.Parse("error:9")
	if got.Kind != ParsedError || got.Code != "9" {
		t.Fatalf("got %+v, want ParsedError code 9", got)
	}
}

func TestParseAlarm(t *testing.T) {
	p := NewParser()
	got := p.Parse("ALARM:1")
	if got.Kind != ParsedAlarm || got.Code != "1" {
		t.Fatalf("got %+v, want ParsedAlarm code 1", got)
	}
}

func TestParseBoot(t *testing.T) {
	p := NewParser()
	got := p.Parse("Grbl 1.1h ['$' for help]")
	if got.Kind != ParsedBoot {
		t.Fatalf("Kind = %v, want ParsedBoot", got.Kind)
	}
	if got.Version != "1.1h ['$' for help]" {
		t.Fatalf("Version = %q", got.Version)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantMode Mode
		wantMPos Position
		wantWPos Position
		hasWPos  bool
		wantFeed float64
		hasFeed  bool
		wantBuf  int
		hasBuf   bool
	}{
		{
			name:     "idle with mpos and buffer",
			line:     "<Idle,MPos:0.000,0.000,0.000,Bf:15,0,F:0.0>",
			wantMode: ModeIdle,
			wantMPos: Position{0, 0, 0},
			wantFeed: 0,
			hasFeed:  true,
			wantBuf:  0,
			hasBuf:   true,
		},
		{
			name:     "run with wpos and line number",
			line:     "<Run,MPos:1.000,2.000,3.000,WPos:0.500,0.500,0.000,F:500.0,Ln:42>",
			wantMode: ModeRun,
			wantMPos: Position{1, 2, 3},
			wantWPos: Position{0.5, 0.5, 0},
			hasWPos:  true,
			wantFeed: 500,
			hasFeed:  true,
		},
		{
			name:     "hold substate",
			line:     "<Hold:0,MPos:0.000,0.000,0.000>",
			wantMode: ModeHold,
			wantMPos: Position{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			got := p.Parse(tt.line)
			if got.Kind != ParsedStatus {
				t.Fatalf("Kind = %v, want ParsedStatus", got.Kind)
			}
			if got.Mode != tt.wantMode {
				t.Errorf("Mode = %v, want %v", got.Mode, tt.wantMode)
			}
			if got.MPos != tt.wantMPos {
				t.Errorf("MPos = %v, want %v", got.MPos, tt.wantMPos)
			}
			if got.HasWPos != tt.hasWPos {
				t.Errorf("HasWPos = %v, want %v", got.HasWPos, tt.hasWPos)
			}
			if tt.hasWPos && got.WPos != tt.wantWPos {
				t.Errorf("WPos = %v, want %v", got.WPos, tt.wantWPos)
			}
			if got.HasFeed != tt.hasFeed {
				t.Errorf("HasFeed = %v, want %v", got.HasFeed, tt.hasFeed)
			}
		})
	}
}

func TestParseSettingsDump(t *testing.T) {
	p := NewParser()
	p.NotifySettingsRequested()

	line1 := p.Parse("$0=10 (step pulse, usec)")
	if line1.Kind != ParsedSettingLine || line1.SettingID != 0 {
		t.Fatalf("got %+v", line1)
	}
	line2 := p.Parse("$1=25")
	if line2.Kind != ParsedSettingLine || line2.SettingValue != "25" {
		t.Fatalf("got %+v", line2)
	}

	done := p.Parse("ok")
	if done.Kind != ParsedSettingsDownloaded {
		t.Fatalf("Kind = %v, want ParsedSettingsDownloaded", done.Kind)
	}
	if len(done.Settings) != 2 {
		t.Fatalf("Settings = %v, want 2 entries", done.Settings)
	}
	if done.Settings[0].Comment != "step pulse, usec" {
		t.Errorf("Settings[0].Comment = %q", done.Settings[0].Comment)
	}

	// A subsequent "ok" is not part of a dump and classifies normally.
	plain := p.Parse("ok")
	if plain.Kind != ParsedOk {
		t.Fatalf("Kind = %v, want ParsedOk after dump drains", plain.Kind)
	}
}

func TestParseHashStateDump(t *testing.T) {
	p := NewParser()
	p.NotifyHashRequested()

	p.Parse("[G54:0.000,0.000,0.000]")
	got := p.Parse("[PRB:1.000,2.000,3.000:1]")
	if got.Kind != ParsedHashStateUpdate {
		t.Fatalf("Kind = %v, want ParsedHashStateUpdate", got.Kind)
	}
	if len(got.HashState["G54"]) != 3 {
		t.Errorf("HashState[G54] = %v", got.HashState["G54"])
	}
	if len(got.HashState["PRB"]) != 3 {
		t.Errorf("HashState[PRB] = %v", got.HashState["PRB"])
	}
}

func TestParseStandaloneProbe(t *testing.T) {
	p := NewParser()
	got := p.Parse("[PRB:10.000,20.000,5.000:1]")
	if got.Kind != ParsedProbe {
		t.Fatalf("Kind = %v, want ParsedProbe", got.Kind)
	}
	if !got.Probe.Success {
		t.Error("Probe.Success = false, want true")
	}
	if got.Probe.Position != (Position{10, 20, 5}) {
		t.Errorf("Probe.Position = %v", got.Probe.Position)
	}
}

func TestParseMissedProbe(t *testing.T) {
	p := NewParser()
	got := p.Parse("[PRB:0.000,0.000,0.000:0]")
	if got.Kind != ParsedProbe || got.Probe.Success {
		t.Fatalf("got %+v, want failed probe", got)
	}
}

func TestParseParserState(t *testing.T) {
	p := NewParser()
	got := p.Parse("[GC:G0 G54 G17 G21 G90 G94 M0 M5 M9 T0 F0 S0]")
	if got.Kind != ParsedParserState {
		t.Fatalf("Kind = %v, want ParsedParserState", got.Kind)
	}
	if len(got.ParserModes) != 12 {
		t.Fatalf("ParserModes = %v", got.ParserModes)
	}
	if got.ParserModes[0] != "0" {
		t.Errorf("ParserModes[0] = %q, want %q", got.ParserModes[0], "0")
	}
}

func TestParseInformationalBracketNotMisclassified(t *testing.T) {
	p := NewParser()
	got := p.Parse("[MSG:Caution: Unlocked]")
	if got.Kind != ParsedUnknown {
		t.Fatalf("Kind = %v, want ParsedUnknown for an [MSG:...] line", got.Kind)
	}
}

func TestParseUnknownLine(t *testing.T) {
	p := NewParser()
	got := p.Parse("garbage from a flaky cable")
	if got.Kind != ParsedUnknown {
		t.Fatalf("Kind = %v, want ParsedUnknown", got.Kind)
	}
}

func TestBootClearsAccumulation(t *testing.T) {
	p := NewParser()
	p.NotifySettingsRequested()
	p.Parse("$0=10")
	p.Boot()

	// Without Boot, a trailing "ok" would complete the stale dump; after
	// Boot it must not.
	got := p.Parse("ok")
	if got.Kind != ParsedOk {
		t.Fatalf("Kind = %v, want ParsedOk after Boot cleared accumulation", got.Kind)
	}
}
