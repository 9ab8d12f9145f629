// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import "github.com/Thermoquad/rdmresponder/pkg/rdm"

// DmxUniverseSize is the number of slots in a DMX512 universe
const DmxUniverseSize = 512

// StartAddressNone is reported when a personality has no DMX footprint
const StartAddressNone = 0xFFFF

// StartAddressDefault is the factory start address of an output
const StartAddressDefault = 1

// SlotInfo describes one slot of a DMX footprint
type SlotInfo struct {
	Type     uint8
	Category uint16
}

// DmxOutput owns the DMX slots of one personality.
//
// SetData receives the full universe (without start code). doUpdate is
// false while discovery is running, when outputs should only latch data.
type DmxOutput interface {
	DmxFootprint() uint16
	DmxStartAddress() uint16
	SetDmxStartAddress(address uint16) bool
	SlotInfo(offset uint16) (SlotInfo, bool)
	SetData(port uint32, data []byte, doUpdate bool)
	Start(port uint32)
	Stop(port uint32)
}

// ValidStartAddress reports whether a footprint fits the universe at address
func ValidStartAddress(address, footprint uint16) bool {
	if address == 0 || address > DmxUniverseSize {
		return false
	}
	return uint32(address)+uint32(footprint)-1 <= DmxUniverseSize
}

// Footprint is a DmxOutput with a fixed number of slots of one category.
// It keeps the last window of data it was given.
type Footprint struct {
	footprint    uint16
	startAddress uint16
	slot         SlotInfo
	data         []byte
	running      bool
}

// NewFootprint creates a fixed footprint output at the default start address
func NewFootprint(footprint uint16, category uint16) *Footprint {
	return &Footprint{
		footprint:    footprint,
		startAddress: StartAddressDefault,
		slot:         SlotInfo{Type: rdm.SlotTypePrimary, Category: category},
		data:         make([]byte, footprint),
	}
}

func (f *Footprint) DmxFootprint() uint16 {
	return f.footprint
}

func (f *Footprint) DmxStartAddress() uint16 {
	return f.startAddress
}

func (f *Footprint) SetDmxStartAddress(address uint16) bool {
	if !ValidStartAddress(address, f.footprint) {
		return false
	}
	f.startAddress = address
	return true
}

func (f *Footprint) SlotInfo(offset uint16) (SlotInfo, bool) {
	if offset >= f.footprint {
		return SlotInfo{}, false
	}
	return f.slot, true
}

func (f *Footprint) SetData(_ uint32, data []byte, _ bool) {
	start := int(f.startAddress) - 1
	if start >= len(data) {
		return
	}
	copy(f.data, data[start:])
}

func (f *Footprint) Start(uint32) {
	f.running = true
}

func (f *Footprint) Stop(uint32) {
	f.running = false
}

// Data returns the latched slot window
func (f *Footprint) Data() []byte {
	return f.data
}

// Running reports whether Start was called more recently than Stop
func (f *Footprint) Running() bool {
	return f.running
}
