// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rdmresponder/pkg/pixel"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

const (
	previewInterval = 100 * time.Millisecond
	previewWidth    = 64
)

var (
	previewLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("14"))

	previewIdentifyStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("11"))

	previewDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// runPreview redraws the strip on w whenever it latches new pixels or
// identify changes. identify must be safe to call from this goroutine.
func runPreview(ctx context.Context, w io.Writer, b *board, identify func() bool, uid rdm.UID) {
	ticker := time.NewTicker(previewInterval)
	defer ticker.Stop()

	lastUpdates := -1
	lastIdentify := false
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return
		case <-ticker.C:
		}

		updates := b.strip.Updates()
		on := identify()
		if updates == lastUpdates && on == lastIdentify {
			continue
		}
		lastUpdates, lastIdentify = updates, on

		header := previewLabelStyle.Render(uid.String())
		if on {
			header += " " + previewIdentifyStyle.Render(" IDENTIFY ")
		}
		fmt.Fprintf(w, "\r\033[2K%s %s", header, renderStrip(b.strip.Pixels(), previewWidth))
	}
}

// renderStrip draws up to width pixels as coloured cells. White is mixed
// into the cell for 4-channel types.
func renderStrip(pixels []pixel.Colour, width int) string {
	var sb strings.Builder
	for i, c := range pixels {
		if i == width {
			sb.WriteString(previewDimStyle.Render(fmt.Sprintf(" +%d", len(pixels)-width)))
			break
		}
		r, g, bl := mixWhite(c.R, c.W), mixWhite(c.G, c.W), mixWhite(c.B, c.W)
		cell := lipgloss.NewStyle().Background(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		sb.WriteString(cell.Render(" "))
	}
	return sb.String()
}

func mixWhite(v, w uint8) uint8 {
	sum := int(v) + int(w)
	if sum > 0xFF {
		return 0xFF
	}
	return uint8(sum)
}
