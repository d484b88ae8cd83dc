// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package driver

import (
	"context"
	"time"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// PollStart begins periodically writing the real-time status-query byte,
// grounded on the pack's ticker-driven Poller (mutex-guarded start/stop,
// idempotent double-start). Per P4, the poll byte never touches the
// buffer-fill accounting the flow controller enforces around WriteLine.
func (d *Driver) PollStart() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pollCancel != nil {
		return
	}
	interval := d.pollInterval
	if interval <= 0 {
		interval = grbl.DefaultPollInterval
	}

	d.pollCtx, d.pollCancel = context.WithCancel(context.Background())
	ctx := d.pollCtx
	d.pollWG.Add(1)
	go d.pollLoop(ctx, interval)
}

// PollStop halts the status-query ticker; idempotent if not running.
func (d *Driver) PollStop() {
	d.mu.Lock()
	cancel := d.pollCancel
	d.pollCancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.pollWG.Wait()
}

func (d *Driver) pollLoop(ctx context.Context, interval time.Duration) {
	defer d.pollWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			t := d.transport
			d.mu.Unlock()
			if t == nil {
				continue
			}
			if err := t.WriteRealtime(grbl.RealtimeStatus); err != nil {
				d.emit(grbl.Event{Kind: grbl.EventLog, Text: "poll: " + err.Error()})
			}
		}
	}
}
