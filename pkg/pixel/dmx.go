// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pixel

import (
	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var slotCategories = [...]uint16{
	rdm.SlotColorAddRed,
	rdm.SlotColorAddGreen,
	rdm.SlotColorAddBlue,
	rdm.SlotColorAddWhite,
}

// Dmx renders DMX slots into a Sink. One group of GroupingCount pixels
// takes LedsPerPixel slots starting at the start address.
//
// Dmx carries the pixel manufacturer PIDs, so a responder exposes them
// while a Dmx personality is selected.
type Dmx struct {
	*PIDs

	cfg          Config
	sink         Sink
	startAddress uint16
	started      bool
	blackout     bool
}

// NewDmx creates the pixel output for cfg. The sink is blacked out.
func NewDmx(cfg Config, sink Sink, pids *PIDs) *Dmx {
	if sink == nil {
		panic("pixel: nil sink")
	}

	d := &Dmx{
		PIDs:         pids,
		cfg:          cfg.Validate(),
		sink:         sink,
		startAddress: device.StartAddressDefault,
	}
	sink.Blackout()
	return d
}

// Config returns the validated strip configuration
func (d *Dmx) Config() Config {
	return d.cfg
}

func (d *Dmx) DmxFootprint() uint16 {
	return d.cfg.DmxFootprint()
}

func (d *Dmx) DmxStartAddress() uint16 {
	return d.startAddress
}

// SetDmxStartAddress accepts address when the whole footprint fits the
// universe
func (d *Dmx) SetDmxStartAddress(address uint16) bool {
	if address == d.startAddress {
		return true
	}
	if !device.ValidStartAddress(address, d.DmxFootprint()) {
		return false
	}
	d.startAddress = address
	return true
}

// SlotInfo describes slot offset as a primary colour slot
func (d *Dmx) SlotInfo(offset uint16) (device.SlotInfo, bool) {
	if offset >= d.DmxFootprint() {
		return device.SlotInfo{}, false
	}
	return device.SlotInfo{
		Type:     rdm.SlotTypePrimary,
		Category: slotCategories[offset%d.cfg.Type.LedsPerPixel()],
	}, true
}

// SetData renders one universe. The sink is only updated when doUpdate
// is set and the output is not blacked out.
func (d *Dmx) SetData(_ uint32, data []byte, doUpdate bool) {
	leds := int(d.cfg.Type.LedsPerPixel())
	groups := int(d.cfg.Groups())
	grouping := int(d.cfg.GroupingCount)
	offsets := mapOffsets[d.cfg.Map]

	pos := int(d.startAddress) - 1
	for j := 0; j < groups && pos+leds <= len(data); j++ {
		var c Colour
		if leds == 4 {
			c = Colour{R: data[pos], G: data[pos+1], B: data[pos+2], W: data[pos+3]}
		} else {
			c = Colour{R: data[pos+offsets[0]], G: data[pos+offsets[1]], B: data[pos+offsets[2]]}
		}
		for k := 0; k < grouping; k++ {
			d.sink.SetPixel(j*grouping+k, c)
		}
		pos += leds
	}

	if doUpdate && !d.blackout {
		d.sink.Update()
	}
}

func (d *Dmx) Start(uint32) {
	d.started = true
}

func (d *Dmx) Stop(uint32) {
	d.started = false
}

// Running reports whether the output is started
func (d *Dmx) Running() bool {
	return d.started
}

// Blackout turns the strip off and holds it off until Blackout(false)
func (d *Dmx) Blackout(on bool) {
	d.blackout = on
	if on {
		d.sink.Blackout()
	} else {
		d.sink.Update()
	}
}
