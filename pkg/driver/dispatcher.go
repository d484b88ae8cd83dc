// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package driver

import "github.com/grblhost/grblhost/pkg/grbl"

// dispatchLoop is the single consumer of eventCh. It is what actually
// guarantees P5 (no two Handler invocations overlap): every Event, whether
// produced by readLoop, the Controller's sink, or the poller's error path,
// passes through this one goroutine before reaching the embedder.
func (d *Driver) dispatchLoop() {
	defer d.dispatchWG.Done()

	for e := range d.eventCh {
		d.mu.Lock()
		h, nh, logger := d.handler, d.namedHandler, d.logger
		d.mu.Unlock()

		if e.Kind == grbl.EventLog && logger != nil {
			logger.Info(e.Text)
		}

		if h != nil {
			h(e)
		}
		if nh != nil {
			nh(e.Kind.String(), e)
		}
	}
}
