// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import (
	"time"

	"github.com/Thermoquad/rdmresponder/pkg/device"
)

// DmxSignalTimeout is how long the receiver waits for a DMX frame before
// treating the signal as lost
const DmxSignalTimeout = time.Second

// dmxReceiver feeds received universes to the current root output
type dmxReceiver struct {
	source   DmxSource
	port     uint32
	output   device.DmxOutput
	disabled bool

	active    bool
	lastFrame time.Time
}

// run polls for a new universe. It returns the universe when one arrived
// and reports lost while there is no DMX signal.
func (d *dmxReceiver) run(now time.Time, doUpdate bool) (data []byte, lost bool) {
	if d.source == nil {
		return nil, true
	}

	data = d.source.DmxAvailable(d.port)
	if data == nil {
		if d.active && now.Sub(d.lastFrame) > DmxSignalTimeout {
			d.stop()
		}
		return nil, !d.active
	}

	d.lastFrame = now
	if d.output != nil && !d.disabled {
		d.output.SetData(d.port, data, doUpdate)
		if !d.active {
			d.output.Start(d.port)
		}
	}
	d.active = true
	return data, false
}

// setOutput rebinds the receiver after a personality change. The new
// output is started by the next frame.
func (d *dmxReceiver) setOutput(out device.DmxOutput) {
	d.stop()
	d.output = out
}

func (d *dmxReceiver) stop() {
	if d.active && d.output != nil {
		d.output.Stop(d.port)
	}
	d.active = false
}
