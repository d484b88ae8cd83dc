// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import "testing"

func TestParseMachineProfileAppliesDefaults(t *testing.T) {
	doc := []byte("name: shapeoko\nport: /dev/ttyUSB0\n")
	p, err := ParseMachineProfile(doc)
	if err != nil {
		t.Fatalf("ParseMachineProfile() error = %v", err)
	}
	if p.Capacity != DefaultCapacity {
		t.Errorf("Capacity = %d, want %d", p.Capacity, DefaultCapacity)
	}
	if p.StreamingModeValue() != StreamingIncremental {
		t.Errorf("StreamingModeValue() = %v, want StreamingIncremental", p.StreamingModeValue())
	}
}

func TestParseMachineProfileRejectsMissingPort(t *testing.T) {
	doc := []byte("name: shapeoko\n")
	if _, err := ParseMachineProfile(doc); err == nil {
		t.Fatal("expected validation error for missing port")
	}
}

func TestParseMachineProfileCharacterCounting(t *testing.T) {
	doc := []byte("name: shapeoko\nport: /dev/ttyUSB0\nstreaming_mode: character_counting\n")
	p, err := ParseMachineProfile(doc)
	if err != nil {
		t.Fatalf("ParseMachineProfile() error = %v", err)
	}
	if p.StreamingModeValue() != StreamingCharacterCounting {
		t.Errorf("StreamingModeValue() = %v, want StreamingCharacterCounting", p.StreamingModeValue())
	}
}
