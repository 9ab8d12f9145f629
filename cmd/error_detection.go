// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/pkg/link"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed RDM traffic",
	Long: `Track link errors, malformed RDM messages and anomalous values with statistics.

This command validates each RDM message and detects:
  - Link CRC errors and framing failures
  - RDM checksum errors and undecodable messages
  - Malformed messages (invalid command class, PDL mismatch, bad response type)
  - Anomalous values (broadcast GET, start address out of range,
    DISC_UNIQUE_BRANCH lower > upper, unknown NACK reasons)
  - Statistics and trends (frame rate, error rate, NACKs, discovery replies)

By default, only errors are displayed. Use --show-all to display valid messages too.

Messages are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// frameAnalysis is one link frame after RDM decoding and validation
type frameAnalysis struct {
	timestamp time.Time
	port      uint8
	message   *rdm.Message
	discovery bool
	uid       rdm.UID
	decodeErr error
	verrs     []rdm.ValidationError
}

// analyzeFrame decodes and validates an RDM or discovery response frame.
// DMX and alternate start code frames are not analyzed.
func analyzeFrame(frame *link.Frame, err error) (frameAnalysis, bool) {
	if err != nil {
		if errors.Is(err, link.ErrCRC) {
			err = fmt.Errorf("%w: %w", rdm.ErrChecksum, err)
		}
		return frameAnalysis{timestamp: time.Now(), decodeErr: err}, true
	}

	a := frameAnalysis{timestamp: frame.Timestamp(), port: frame.Port()}
	switch frame.StartCode() {
	case link.StartCodeRDM:
		a.message, a.decodeErr = rdm.Parse(frame.Data())
		if a.decodeErr == nil {
			a.verrs = rdm.ValidateMessage(a.message)
		}
	case link.StartCodeDiscovery:
		a.discovery = true
		a.uid, a.decodeErr = rdm.DecodeDiscoveryResponse(frame.Data())
	default:
		return frameAnalysis{}, false
	}
	return a, true
}

// record adds the analysis to stats
func (a frameAnalysis) record(stats *rdm.Statistics) {
	if a.discovery {
		stats.UpdateDiscoveryResponse(a.decodeErr)
		return
	}
	stats.Update(a.message, a.decodeErr, a.verrs)
}

// summary is a one-line description used by the event log
func (a frameAnalysis) summary() string {
	switch {
	case a.decodeErr != nil:
		return fmt.Sprintf("DECODE ERROR: %v", a.decodeErr)
	case a.discovery:
		return fmt.Sprintf("DISCOVERY_RESPONSE %s", a.uid)
	default:
		return fmt.Sprintf("%s %s %s -> %s", rdm.FormatCommandClass(a.message.CommandClass),
			rdm.FormatPID(a.message.PID), a.message.Source, a.message.Destination)
	}
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(a frameAnalysis) {
	timestamp := a.timestamp.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, a.decodeErr)
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printNack prints a NACK response, valid but worth seeing
func printNack(m *rdm.Message, reason uint16, timestamp time.Time) {
	fmt.Printf("[%s] \033[1;35mNACK:\033[0m %s %s from %s reason=%s\n\n",
		timestamp.Format("15:04:05.000"), rdm.FormatCommandClass(m.CommandClass),
		rdm.FormatPID(m.PID), m.Source, rdm.FormatNackReason(reason))
}

// printValidationErrors prints validation errors for a message
func printValidationErrors(a frameAnalysis) {
	timestamp := a.timestamp.Format("15:04:05.000")
	m := a.message

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s %s (0x%04X)\n", timestamp,
		rdm.FormatCommandClass(m.CommandClass), rdm.FormatPID(m.PID), m.PID)
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range a.verrs {
		switch err.Type {
		case rdm.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if pdl, ok := err.Details["pdl"].(int); ok {
				if expected, ok := err.Details["expected"].(int); ok {
					fmt.Printf("    PDL: received=%d, expected=%d\n", pdl, expected)
				}
			}

		case rdm.AnomalyInvalidCommandClass, rdm.AnomalyInvalidResponseType:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case rdm.AnomalyBroadcastGet:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			fmt.Printf("    Broadcast requests are never answered\n")

		case rdm.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if address, ok := err.Details["address"].(uint16); ok {
				fmt.Printf("    Address=%d (valid: 1 to 512)\n", address)
			}
			if lower, ok := err.Details["lower"].(string); ok {
				fmt.Printf("    Range: %s to %s\n", lower, err.Details["upper"])
			}

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  %s -> %s tn=%d sub=%d\n", m.Source, m.Destination, m.TransactionNumber, m.SubDevice)
	fmt.Printf("  >>> MESSAGE REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string) error {
	decoder := link.NewDecoder()
	synchronized := false
	skippedBeforeSync := 0

	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					p.Send(connectionLostMsg{err: err})
					return
				}
				logger.Debug("read error", "error", err)
				continue
			}

			decoder.Decode(buf[:n], func(frame *link.Frame, decodeErr error) {
				// decode errors before the first frame are line noise
				if decodeErr != nil && !synchronized {
					skippedBeforeSync++
					return
				}
				if decodeErr == nil && !synchronized {
					synchronized = true
					p.Send(syncMsg{invalidBytes: skippedBeforeSync})
				}

				if a, ok := analyzeFrame(frame, decodeErr); ok {
					p.Send(frameMsg(a))
				}
			})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string) error {
	fmt.Printf("rdmresponder - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := link.NewDecoder()
	stats := rdm.NewStatistics()

	// decode errors are ignored until the first valid frame
	synchronized := false
	skippedBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	readBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, ErrConnectionClosed) {
					readErr <- err
					return
				}
				logger.Debug("read error", "error", err)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			readBuf <- data
		}
	}()

	for {
		select {
		case data := <-readBuf:
			decoder.Decode(data, func(frame *link.Frame, decodeErr error) {
				if decodeErr != nil && !synchronized {
					skippedBeforeSync++
					return
				}
				if decodeErr == nil && !synchronized {
					synchronized = true
					if skippedBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid frames\n\n", skippedBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				a, ok := analyzeFrame(frame, decodeErr)
				if !ok {
					return
				}
				a.record(stats)

				switch {
				case a.decodeErr != nil:
					printDecodeError(a)
				case len(a.verrs) > 0:
					printValidationErrors(a)
				case a.message != nil && a.message.IsResponse():
					if reason, nack := a.message.NackReason(); nack {
						printNack(a.message, reason, a.timestamp)
					} else if showAll {
						fmt.Print(rdm.FormatMessage(a.message))
					}
				case showAll:
					fmt.Printf("[%s] %s\n", a.timestamp.Format("15:04:05.000"), a.summary())
				}
			})

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			return err

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
