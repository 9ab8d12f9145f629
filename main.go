// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rdmresponder - E1.20 RDM responder and bus tools
//
// Runs an RDM responder for a pixel controller on a serial or WebSocket
// link, and carries the controller side tools used to test it.

package main

import (
	"os"

	"github.com/Thermoquad/rdmresponder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
