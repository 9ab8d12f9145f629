// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/pkg/link"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// dmxPreviewSlots is how many slot values raw_log prints per DMX frame
const dmxPreviewSlots = 16

var rawLogDmx bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display link traffic in human-readable format",
	Long: `Continuously decode and display link frames as they arrive.

Each RDM message is printed with its command class, PID, addressing and
decoded parameter data. Discovery responses are printed with the UID they
carry. DMX frames are summarised with --dmx.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogDmx, "dmx", false, "Also print DMX frames")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("rdmresponder - Raw Link Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := link.NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// a WebSocket read error means the connection is gone for good
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("connection closed")
				return nil
			}
			logger.Warn("read error", "error", err)
			continue
		}

		decoder.Decode(buf[:n], func(frame *link.Frame, err error) {
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				return
			}
			if frame.IsDMX() && !rawLogDmx {
				return
			}
			fmt.Print(formatFrame(frame))
		})
	}
}

// formatFrame renders one link frame with its decoded payload
func formatFrame(frame *link.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] port %d ", frame.Timestamp().Format("15:04:05.000"), frame.Port())

	data := frame.Data()
	switch frame.StartCode() {
	case link.StartCodeRDM:
		m, err := rdm.Parse(data)
		if err != nil {
			fmt.Fprintf(&b, "RDM [ERROR] %v (%d bytes)\n", err, len(data))
			break
		}
		b.WriteString(rdm.FormatMessage(m))

	case link.StartCodeDiscovery:
		uid, err := rdm.DecodeDiscoveryResponse(data)
		if err != nil {
			fmt.Fprintf(&b, "DISCOVERY_RESPONSE [ERROR] %v\n", err)
			break
		}
		fmt.Fprintf(&b, "DISCOVERY_RESPONSE uid=%s\n", uid)

	case link.StartCodeDMX:
		slots := data[1:]
		fmt.Fprintf(&b, "DMX %d slots:", len(slots))
		for i, v := range slots {
			if i == dmxPreviewSlots {
				b.WriteString(" ...")
				break
			}
			fmt.Fprintf(&b, " %3d", v)
		}
		b.WriteString("\n")

	default:
		fmt.Fprintf(&b, "START_CODE_0x%02X %d bytes\n", frame.StartCode(), len(data))
	}
	return b.String()
}
