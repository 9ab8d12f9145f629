// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/pkg/link"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid RDM message",
	Long: `Wait for a valid RDM message on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a link
frame carrying an RDM message that decodes and passes validation. Invalid
bytes, DMX frames and malformed messages are skipped and counted.

Exit codes:
  0 - Valid RDM message received before timeout
  1 - Connection or read error
  2 - Timeout reached without receiving a valid RDM message

Useful for testing connectivity to a transceiver or WebSocket gateway.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a message")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Link)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("rdmresponder - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid RDM message...\n\n")

	msgChan := make(chan *rdm.Message, 1)
	errChan := make(chan error, 1)

	go func() {
		decoder := link.NewDecoder()
		buf := make([]byte, 256)
		skipped := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					skipped++
					continue
				}
				if frame == nil || frame.StartCode() != link.StartCodeRDM {
					continue
				}
				m, err := rdm.Parse(frame.Data())
				if err != nil {
					skipped++
					continue
				}
				if verrs := rdm.ValidateMessage(m); len(verrs) > 0 {
					fmt.Printf("(skipped message with %d anomalies: %s)\n", len(verrs), verrs[0].Message)
					skipped++
					continue
				}
				if skipped > 0 {
					fmt.Printf("(skipped %d invalid frames before a valid message)\n", skipped)
				}
				msgChan <- m
				return
			}
		}
	}()

	select {
	case m := <-msgChan:
		fmt.Printf("SUCCESS: Received valid RDM message\n")
		fmt.Printf("  Command class: %s\n", rdm.FormatCommandClass(m.CommandClass))
		fmt.Printf("  PID: %s (0x%04X)\n", rdm.FormatPID(m.PID), m.PID)
		fmt.Printf("  Source: %s\n", m.Source)
		fmt.Printf("  Destination: %s\n", m.Destination)
		fmt.Printf("  Length: %d bytes\n", m.Length())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(1)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid RDM message received within %d seconds\n", packetTestTimeout)
		os.Exit(2)
	}

	return nil
}
