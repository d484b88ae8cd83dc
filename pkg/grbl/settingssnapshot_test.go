// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "testing"

func TestSettingsSnapshotRoundTrip(t *testing.T) {
	want := SettingsSnapshot{
		MachineName: "shapeoko",
		Settings:    map[int]SettingEntry{0: {Value: "10", Comment: "step pulse, usec"}},
		HashState:   map[string][]float64{"G54": {1, 2, 3}},
	}

	encoded, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := DecodeSettingsSnapshot(encoded)
	if err != nil {
		t.Fatalf("DecodeSettingsSnapshot() error = %v", err)
	}

	if got.MachineName != want.MachineName {
		t.Errorf("MachineName = %q, want %q", got.MachineName, want.MachineName)
	}
	if got.Settings[0].Value != "10" {
		t.Errorf("Settings[0].Value = %q", got.Settings[0].Value)
	}
	if len(got.HashState["G54"]) != 3 {
		t.Errorf("HashState[G54] = %v", got.HashState["G54"])
	}
}

func TestSettingsSnapshotRejectsCorruptPayload(t *testing.T) {
	snap := NewSettingsSnapshot("test", Snapshot{})
	encoded, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	encoded[0] ^= 0xFF

	if _, err := DecodeSettingsSnapshot(encoded); err == nil {
		t.Fatal("expected crc mismatch error on corrupted payload")
	}
}
