// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SettingsSnapshot is a portable, checksummed export of a machine's full
// $$ settings table plus its $# work-offset table, suitable for archiving
// alongside a MachineProfile or diffing between two controllers. The wire
// encoding is CBOR with a trailing CRC16 over the encoded payload, the same
// defense-in-depth shape the binary control protocol this one descends
// from used for its own frames.
type SettingsSnapshot struct {
	MachineName string                `cbor:"machine_name"`
	Settings    map[int]SettingEntry  `cbor:"settings"`
	HashState   map[string][]float64  `cbor:"hash_state"`
}

// NewSettingsSnapshot captures the settings and hash-state sub-state of a
// Snapshot under a caller-supplied machine name.
func NewSettingsSnapshot(name string, s Snapshot) SettingsSnapshot {
	return SettingsSnapshot{
		MachineName: name,
		Settings:    s.Settings,
		HashState:   s.HashOffsets,
	}
}

// Encode serializes the snapshot as CBOR followed by a 2-byte big-endian
// CRC16/CCITT-FALSE of the CBOR bytes.
func (s SettingsSnapshot) Encode() ([]byte, error) {
	body, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings snapshot: %w", err)
	}
	sum := crc16(body)
	out := make([]byte, len(body)+2)
	copy(out, body)
	out[len(body)] = byte(sum >> 8)
	out[len(body)+1] = byte(sum)
	return out, nil
}

// DecodeSettingsSnapshot verifies the trailing CRC16 and deserializes the
// CBOR payload that precedes it.
func DecodeSettingsSnapshot(data []byte) (SettingsSnapshot, error) {
	if len(data) < 3 {
		return SettingsSnapshot{}, fmt.Errorf("decode settings snapshot: payload too short")
	}
	body := data[:len(data)-2]
	want := uint16(data[len(data)-2])<<8 | uint16(data[len(data)-1])
	if got := crc16(body); got != want {
		return SettingsSnapshot{}, fmt.Errorf("decode settings snapshot: crc mismatch (got %04x, want %04x)", got, want)
	}
	var s SettingsSnapshot
	if err := cbor.Unmarshal(body, &s); err != nil {
		return SettingsSnapshot{}, fmt.Errorf("decode settings snapshot: %w", err)
	}
	return s, nil
}

// crc16 computes CRC16/CCITT-FALSE (poly 0x1021, init 0xFFFF) over the
// snapshot's encoded body.
func crc16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
