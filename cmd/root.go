// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rdmresponder/internal/config"
	"github.com/Thermoquad/rdmresponder/internal/logging"
)

const version = "0.3.0"

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	cfg    = config.Default()
	logger = logging.Default()
)

var rootCmd = &cobra.Command{
	Use:   "rdmresponder",
	Short: "RDM responder and controller tools",
	Long: `rdmresponder - An E1.20 RDM responder and a set of controller-side tools
speaking RDM over a framed serial or WebSocket link to a DMX/RDM transceiver.

The respond command runs the responder. The remaining commands act as a
controller or bus analyzer on the same link.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (YAML) and RDMRESPONDER_* environment
variables. Flags given on the command line take precedence.

For WebSocket authentication, the password is read from the
RDMRESPONDER_PASSWORD environment variable, or prompted interactively if
not set.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (YAML)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig reads the configuration, then applies the flags that were
// set explicitly
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Link.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Link.Baud = baudRate
	}
	if flags.Changed("url") {
		loaded.Link.URL = wsURL
	}
	if flags.Changed("username") {
		loaded.Link.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.Link.NoSSLVerify = wsNoSSLVerify
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	logger = logging.New(cfg.Logging, version)
	return nil
}

// Execute runs the root command. Interrupt and terminate signals cancel
// the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
