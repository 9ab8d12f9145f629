// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var requestSubDevice uint16

var getCmd = &cobra.Command{
	Use:   "get <uid> <pid> [hex param data]",
	Short: "Send one GET request and print the response",
	Long: `Send a GET_COMMAND to a responder and print the decoded response.

The UID is written MMMM:DDDDDDDD. The PID is a name such as DEVICE_INFO or
a number (0x0060). Parameter data is given as hex bytes.

Examples:
  rdmresponder get 7FF0:12345678 DEVICE_INFO --port /dev/ttyUSB0
  rdmresponder get 7FF0:12345678 SENSOR_DEFINITION 00
  rdmresponder get 7FF0:12345678 0x8500

Exit codes:
  0 - ACK received
  1 - Connection error or no response
  2 - NACK received`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, args, rdm.GetCommand)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <uid> <pid> [hex param data]",
	Short: "Send one SET request and print the response",
	Long: `Send a SET_COMMAND to a responder and print the decoded response.

A broadcast UID (FFFF:FFFFFFFF, or MMMM:FFFFFFFF for one manufacturer)
is accepted. Broadcast requests are never answered.

Examples:
  rdmresponder set 7FF0:12345678 DMX_START_ADDRESS 0065
  rdmresponder set 7FF0:12345678 IDENTIFY_DEVICE 01
  rdmresponder set 7FF0:12345678 DEVICE_LABEL "$(printf 'Stage left' | xxd -p)"

Exit codes:
  0 - ACK received, or broadcast sent
  1 - Connection error or no response
  2 - NACK received`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, args, rdm.SetCommand)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	for _, c := range []*cobra.Command{getCmd, setCmd} {
		c.Flags().Uint16Var(&requestSubDevice, "sub-device", rdm.RootDevice, "Sub-device number (0 = root)")
	}
}

// parseRequest decodes the uid, pid and optional hex data arguments
func parseRequest(args []string) (rdm.UID, uint16, []byte, error) {
	uid, err := rdm.ParseUID(args[0])
	if err != nil {
		return rdm.UID{}, 0, nil, err
	}
	pid, err := rdm.ParsePID(args[1])
	if err != nil {
		return rdm.UID{}, 0, nil, err
	}

	var pd []byte
	if len(args) == 3 {
		pd, err = hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(args[2]))
		if err != nil {
			return rdm.UID{}, 0, nil, fmt.Errorf("invalid parameter data: %w", err)
		}
		if len(pd) > rdm.MaxParamDataLength {
			return rdm.UID{}, 0, nil, fmt.Errorf("parameter data is %d bytes, at most %d allowed", len(pd), rdm.MaxParamDataLength)
		}
	}
	return uid, pid, pd, nil
}

func runRequest(cmd *cobra.Command, args []string, cc uint8) error {
	uid, pid, pd, err := parseRequest(args)
	if err != nil {
		return err
	}

	c, session, err := openController(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	if uid.IsBroadcast() {
		if cc == rdm.GetCommand {
			return fmt.Errorf("GET cannot be broadcast")
		}
		if err := c.send(rdm.NewSetRequest(uid, c.src, c.nextTN(), requestSubDevice, pid, pd)); err != nil {
			return err
		}
		fmt.Printf("Broadcast %s sent to %s\n", rdm.FormatPID(pid), uid)
		return nil
	}

	var resp *rdm.Message
	if cc == rdm.GetCommand {
		resp, err = c.get(uid, requestSubDevice, pid, pd)
	} else {
		resp, err = c.set(uid, requestSubDevice, pid, pd)
	}
	if resp != nil {
		fmt.Print(rdm.FormatMessage(resp))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if resp != nil {
			os.Exit(2)
		}
		os.Exit(1)
	}
	if resp.MessageCount > 0 {
		fmt.Printf("%d queued message(s) pending, read with: get %s QUEUED_MESSAGE 02\n", resp.MessageCount, uid)
	}
	return nil
}
