// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"
)

const maxLogEntries = 100

// logEntry is one line of a TUI event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for information
}

// eventLog keeps the most recent maxLogEntries entries
type eventLog struct {
	entries []logEntry
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, logEntry{timestamp: time.Now(), message: message, isError: isError})
	if n := len(l.entries); n > maxLogEntries {
		l.entries = l.entries[n-maxLogEntries:]
	}
}

func (l *eventLog) count() int { return len(l.entries) }

// render draws the last height entries in a box of the given width
func (l *eventLog) render(height, width int) string {
	var sb strings.Builder
	if len(l.entries) == 0 {
		sb.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, e := range l.entries[max(0, len(l.entries)-height):] {
		icon, style := "ℹ", warningStyle
		if e.isError {
			icon, style = "✗", errorStyle
		}
		fmt.Fprintf(&sb, "%s %s %s\n", headerStyle.Render(e.timestamp.Format("15:04:05.000")), style.Render(icon), e.message)
	}
	return boxStyle.Width(width).Render(strings.TrimSuffix(sb.String(), "\n"))
}

// formatUptime renders d as "3d 04:05:06", the day part only when non-zero
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	clock := fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	if days > 0 {
		return fmt.Sprintf("%dd %s", days, clock)
	}
	return clock
}
