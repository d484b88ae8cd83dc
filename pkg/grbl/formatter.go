// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import (
	"fmt"
	"sort"
	"strings"
)

// FormatEventKind renders an EventKind the way a human-facing log line or
// TUI status bar would, rather than the wire-protocol name returned by
// String().
func FormatEventKind(k EventKind) string {
	switch k {
	case EventStatusUpdate:
		return "status update"
	case EventHashStateUpdate:
		return "work offsets updated"
	case EventGcodeParserStateUpdate:
		return "parser state updated"
	case EventSettingsDownloaded:
		return "settings downloaded"
	case EventFeedChange:
		return "feed changed"
	case EventMovement:
		return "movement started"
	case EventStandstill:
		return "movement stopped"
	case EventJobCompleted:
		return "job completed"
	case EventAlarm:
		return "ALARM"
	case EventError:
		return "error"
	case EventProbe:
		return "probe result"
	case EventBoot:
		return "firmware booted"
	case EventDisconnected:
		return "disconnected"
	default:
		return k.String()
	}
}

// FormatEvent renders an Event as a single human-readable line, in the
// spirit of a diagnostic log rather than a protocol trace.
func FormatEvent(e Event) string {
	switch e.Kind {
	case EventStatusUpdate:
		return fmt.Sprintf("status: mode=%s mpos=%s wpos=%s feed=%.1f", e.Mode, e.MPos, e.WPos, e.Feed)
	case EventAlarm:
		return fmt.Sprintf("ALARM:%s", e.Code)
	case EventError:
		return fmt.Sprintf("error:%s (line %d)", e.Code, e.Index)
	case EventBoot:
		return fmt.Sprintf("boot: %s", e.Version)
	case EventProgressPercent:
		return fmt.Sprintf("progress: %d%%", e.Percent)
	case EventRxBufferPercent:
		return fmt.Sprintf("rx buffer: %d%%", e.Percent)
	case EventProbe:
		status := "miss"
		if e.Probe.Success {
			status = "hit"
		}
		return fmt.Sprintf("probe %s at %s", status, e.Probe.Position)
	case EventSettingsDownloaded:
		return fmt.Sprintf("settings downloaded: %d entries", len(e.Settings))
	case EventHashStateUpdate:
		return fmt.Sprintf("work offsets downloaded: %d entries", len(e.HashState))
	default:
		return FormatEventKind(e.Kind)
	}
}

// FormatSettings renders a settings table sorted by id, one "$N=V (comment)"
// per line, matching the wire format grbl itself emits for $$.
func FormatSettings(settings map[int]SettingEntry) string {
	ids := make([]int, 0, len(settings))
	for id := range settings {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		e := settings[id]
		if e.Comment != "" {
			fmt.Fprintf(&b, "$%d=%s (%s)\n", id, e.Value, e.Comment)
		} else {
			fmt.Fprintf(&b, "$%d=%s\n", id, e.Value)
		}
	}
	return b.String()
}

// FormatHashState renders work-offset table entries sorted by prefix, in
// HashPrefixes order, matching grbl's own $# ordering.
func FormatHashState(hash map[string][]float64) string {
	var b strings.Builder
	for _, prefix := range HashPrefixes {
		values, ok := hash[prefix]
		if !ok {
			continue
		}
		strs := make([]string, len(values))
		for i, v := range values {
			strs[i] = fmt.Sprintf("%.3f", v)
		}
		fmt.Fprintf(&b, "[%s:%s]\n", prefix, strings.Join(strs, ","))
	}
	return b.String()
}
