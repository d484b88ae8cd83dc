// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package driver

import "github.com/grblhost/grblhost/pkg/grbl"

// OnKind wraps SetHandler with a per-EventKind filter, for embedders that
// only care about a handful of the tagged-variant's cases and would
// otherwise write a large switch themselves. Registering a new OnKind
// handler replaces the handler installed by any previous call to OnKind
// or SetHandler.
func (d *Driver) OnKind(kinds []grbl.EventKind, fn grbl.Handler) {
	want := make(map[grbl.EventKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	d.SetHandler(func(e grbl.Event) {
		if want[e.Kind] {
			fn(e)
		}
	})
}

// OnStatus is a convenience wrapper for the common case of wanting live
// FirmwareState updates without handling every other event kind.
func (d *Driver) OnStatus(fn func(grbl.Event)) {
	d.OnKind([]grbl.EventKind{grbl.EventStatusUpdate}, fn)
}

// OnJobCompleted fires fn each time a stream fully drains (StreamQueue and
// InflightLog both empty).
func (d *Driver) OnJobCompleted(fn func(grbl.Event)) {
	d.OnKind([]grbl.EventKind{grbl.EventJobCompleted}, fn)
}

// OnAlarmOrError is a convenience wrapper for embedders that want a single
// callback for both fault-signaling event kinds.
func (d *Driver) OnAlarmOrError(fn func(grbl.Event)) {
	d.OnKind([]grbl.EventKind{grbl.EventAlarm, grbl.EventError}, fn)
}
