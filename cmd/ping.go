// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping <uid>",
	Short: "Measure request round trips to one responder",
	Long: `Send GET DEVICE_INFO to a responder repeatedly and report each round trip.

This is useful for verifying:
  - The link (serial or WebSocket bridge) carries traffic both ways
  - HTTP Basic authentication works
  - The responder answers within the RDM response window
  - Post-transmit delays configured on the responder

A NACK still counts as a reply.

Exit codes:
  0 - Every request answered
  1 - One or more requests timed out
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of requests to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between requests")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	uid, err := rdm.ParseUID(args[0])
	if err != nil {
		return err
	}
	if uid.IsBroadcast() {
		return fmt.Errorf("broadcast requests are never answered")
	}

	c, session, err := openController(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer session.Close()

	fmt.Printf("rdmresponder - Ping\n")
	fmt.Printf("Connection: %s\n", session.desc)
	fmt.Printf("Target: %s\n\n", uid)

	var (
		replies int
		total   time.Duration
		slowest time.Duration
	)
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Request %d/%d: ", i, pingCount)

		start := time.Now()
		resp, err := c.get(uid, rdm.RootDevice, rdm.PIDDeviceInfo, nil)
		rtt := time.Since(start)

		switch {
		case err == nil:
			fmt.Printf("ACK from %s, rtt=%v\n", resp.Source, rtt.Round(time.Microsecond))
		case errors.Is(err, ErrNack):
			fmt.Printf("NACK from %s (%v), rtt=%v\n", resp.Source, err, rtt.Round(time.Microsecond))
		default:
			fmt.Printf("TIMEOUT (%v)\n", err)
		}
		if resp != nil {
			replies++
			total += rtt
			slowest = max(slowest, rtt)
		}

		if err := cmd.Context().Err(); err != nil {
			break
		}
		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d requests sent, %d replies received, %.0f%% loss\n",
		pingCount, replies, float64(pingCount-replies)/float64(pingCount)*100)
	if replies > 0 {
		fmt.Printf("rtt avg=%v max=%v\n", (total / time.Duration(replies)).Round(time.Microsecond), slowest.Round(time.Microsecond))
	}

	if replies < pingCount {
		os.Exit(1)
	}
	return nil
}
