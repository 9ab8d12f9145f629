// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// responderActivity is what the bus has shown of one responder
type responderActivity struct {
	uid       rdm.UID
	responses uint64
	nacks     uint64
	lastPID   uint16
	lastSeen  time.Time
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	started       time.Time
	lastSummary   time.Time
	stats         *rdm.Statistics
	events        eventLog
	synchronized  bool
	skipped       int
	responders    map[rdm.UID]*responderActivity
	width         int
	height        int
	quitting      bool
	lostErr       error
}

// Messages
type tickMsg time.Time
type frameMsg frameAnalysis
type syncMsg struct {
	invalidBytes int
}
type connectionLostMsg struct {
	err error
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		started:       time.Now(),
		lastSummary:   time.Now(),
		stats:         rdm.NewStatistics(),
		responders:    make(map[rdm.UID]*responderActivity),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.responders = make(map[rdm.UID]*responderActivity)
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		if m.statsInterval > 0 && time.Since(m.lastSummary) >= time.Duration(m.statsInterval)*time.Second {
			m.lastSummary = time.Now()
			m.addLogEntry(fmt.Sprintf("%d frames, %.1f frames/s, %d errors", m.stats.TotalFrames, m.stats.FrameRate, m.stats.ErrorCount()), false)
		}
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.skipped = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid frames", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionLostMsg:
		m.lostErr = msg.err
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)

	case frameMsg:
		a := frameAnalysis(msg)
		a.record(m.stats)

		switch {
		case a.decodeErr != nil:
			m.addLogEntry(a.summary(), true)
		case len(a.verrs) > 0:
			name := rdm.FormatPID(a.message.PID)
			for _, err := range a.verrs {
				m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		default:
			if a.message != nil && a.message.IsResponse() {
				m.trackResponse(a)
				if reason, nack := a.message.NackReason(); nack {
					m.addLogEntry(fmt.Sprintf("NACK %s from %s: %s", rdm.FormatPID(a.message.PID),
						a.message.Source, rdm.FormatNackReason(reason)), false)
					break
				}
			}
			if m.showAll {
				m.addLogEntry(a.summary(), false)
			}
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	m.events.add(message, isError)
}

// trackResponse updates the activity of the responder that sent a.message
func (m *model) trackResponse(a frameAnalysis) {
	r, ok := m.responders[a.message.Source]
	if !ok {
		r = &responderActivity{uid: a.message.Source}
		m.responders[a.message.Source] = r
	}
	r.responses++
	if a.message.PortID == rdm.ResponseTypeNackReason {
		r.nacks++
	}
	r.lastPID = a.message.PID
	r.lastSeen = a.timestamp
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("RDMRESPONDER - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All messages"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up: %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatUptime(time.Since(m.started)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.lostErr != nil:
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid frames)", m.skipped)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	totalErrors := m.stats.ErrorCount()
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidMessages) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidMessages, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("DISC:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Discovery)),
		statsLabelStyle.Render("GET:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Gets)),
		statsLabelStyle.Render("SET:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Sets)),
		statsLabelStyle.Render("Responses:"), statsValueStyle.Render(fmt.Sprintf("%d (%d NACK, %d DUB)",
			m.stats.Responses, m.stats.Nacks, m.stats.DiscoveryResponses)),
	))

	if m.stats.ChecksumErrors > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}

	if m.stats.MalformedMessages > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.MalformedMessages)),
		))
		if m.stats.LengthMismatches > 0 {
			statsContent.WriteString(fmt.Sprintf(" (%s: %d)",
				headerStyle.Render("PDL mismatches"), m.stats.LengthMismatches,
			))
		}
		statsContent.WriteString("\n")
	}

	if m.stats.AnomalousValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.AnomalousValues)),
		))
		if m.stats.BroadcastGets > 0 {
			statsContent.WriteString(fmt.Sprintf(" (%s: %d)",
				headerStyle.Render("broadcast GET"), m.stats.BroadcastGets,
			))
		}
		statsContent.WriteString("\n")
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Responders that answered, ordered by UID
	if len(m.responders) > 0 {
		s.WriteString(statsLabelStyle.Render("Responders:"))
		s.WriteString("\n")

		list := make([]*responderActivity, 0, len(m.responders))
		for _, r := range m.responders {
			list = append(list, r)
		}
		slices.SortFunc(list, func(a, b *responderActivity) int {
			return cmp.Compare(a.uid.Uint64(), b.uid.Uint64())
		})

		respContent := strings.Builder{}
		for _, r := range list {
			nacks := statsValueStyle.Render("0 NACK")
			if r.nacks > 0 {
				nacks = warningStyle.Render(fmt.Sprintf("%d NACK", r.nacks))
			}
			respContent.WriteString(fmt.Sprintf("%s %s %s %s\n",
				statsLabelStyle.Render(r.uid.String()),
				statsValueStyle.Render(fmt.Sprintf("%d responses", r.responses)),
				nacks,
				headerStyle.Render(fmt.Sprintf("last %s at %s", rdm.FormatPID(r.lastPID), r.lastSeen.Format("15:04:05"))),
			))
		}
		s.WriteString(boxStyle.Render(strings.TrimSuffix(respContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := max(m.height-15-len(m.responders), 5)
	s.WriteString(m.events.render(logHeight, m.width-4))

	return s.String()
}
