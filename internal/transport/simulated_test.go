// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package transport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/grblhost/grblhost/pkg/grbl"
)

func TestSimulatedTransportAnswersOk(t *testing.T) {
	s := NewSimulated()
	if err := s.WriteLine(grbl.Line("G1 X10 Y10 F100")); err != nil {
		t.Fatalf("WriteLine() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	line, err := s.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine() error = %v", err)
	}
	if line != "ok" {
		t.Fatalf("ReadLine() = %q, want ok", line)
	}
}

func TestSimulatedTransportStatusQuery(t *testing.T) {
	s := NewSimulated()
	if err := s.WriteRealtime(grbl.RealtimeStatus); err != nil {
		t.Fatalf("WriteRealtime() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	line, err := s.ReadLine(ctx)
	if err != nil {
		t.Fatalf("ReadLine() error = %v", err)
	}
	if !strings.HasPrefix(line, "<Idle,") {
		t.Fatalf("ReadLine() = %q, want a status report", line)
	}
}

func TestSimulatedTransportSettingsDump(t *testing.T) {
	s := NewSimulated()
	if err := s.WriteLine(grbl.SettingsQueryLine()); err != nil {
		t.Fatalf("WriteLine() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var lines []string
	for {
		line, err := s.ReadLine(ctx)
		if err != nil {
			t.Fatalf("ReadLine() error = %v", err)
		}
		lines = append(lines, line)
		if line == "ok" {
			break
		}
	}
	if len(lines) < 2 {
		t.Fatalf("got %d lines, want at least a setting line plus ok", len(lines))
	}
}

func TestSimulatedTransportCloseUnblocksReadLine(t *testing.T) {
	s := NewSimulated()
	done := make(chan error, 1)
	go func() {
		_, err := s.ReadLine(context.Background())
		done <- err
	}()

	s.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("ReadLine() error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadLine did not unblock after Close")
	}
}
