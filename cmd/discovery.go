// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var (
	discoveryInfo bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover RDM responders on the bus",
	Long: `Run RDM discovery as a controller on the configured link port.

All responders are un-muted with a broadcast DISC_UN_MUTE, then the UID
space is searched with DISC_UNIQUE_BRANCH. A range that returns a clean
discovery response is resolved by muting that responder. A collision splits
the range in half and both halves are searched.

With --info, DEVICE_INFO and DEVICE_LABEL are read from every responder
found.

Examples:
  rdmresponder discovery --port /dev/ttyUSB0
  rdmresponder discovery --url ws://gateway.local/rdm --info

Exit codes:
  0 - Discovery successful (at least one responder found)
  1 - No responders found
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().BoolVar(&discoveryInfo, "info", false, "Read DEVICE_INFO and DEVICE_LABEL from each responder")
}

// controllerUID is the source UID of requests sent by the controller tools
func controllerUID() (rdm.UID, error) {
	serial, err := cfg.Responder.Serial()
	if err != nil {
		return rdm.UID{}, err
	}
	return rdm.NewUID(cfg.Responder.ManufacturerID, serial), nil
}

// openController opens the link and returns a controller on the
// configured port index
func openController(ctx context.Context) (*controller, *linkSession, error) {
	src, err := controllerUID()
	if err != nil {
		return nil, nil, err
	}
	session, err := openLink(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newController(session.port, cfg.Link.PortIndex, src), session, nil
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	c, session, err := openController(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer session.Close()

	fmt.Printf("rdmresponder - Device Discovery\n")
	fmt.Printf("Connection: %s\n", session.desc)
	fmt.Printf("Controller UID: %s\n\n", c.src)

	start := time.Now()
	uids, err := c.discover(func(uid rdm.UID) {
		fmt.Printf("Found %s\n", uid)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "DISCOVERY FAILED: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Responders found: %d in %s\n", len(uids), time.Since(start).Round(time.Millisecond))

	for _, uid := range uids {
		fmt.Printf("\n%s\n", uid)
		if !discoveryInfo {
			continue
		}
		info, err := c.deviceInfo(uid)
		if err != nil {
			fmt.Printf("  DEVICE_INFO: %v\n", err)
			continue
		}
		fmt.Print(rdm.FormatDeviceInfo(info))
		if label, err := c.label(uid); err == nil {
			fmt.Printf("  Label: %q\n", label)
		}
	}

	if len(uids) == 0 {
		fmt.Printf("No responders discovered. Check connection and device power.\n")
		os.Exit(1)
	}

	return nil
}
