// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pixel

import (
	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// Config mode slots, relative to the start address
const (
	SlotType = iota
	SlotCount
	SlotGroupingCount
	SlotMap
	SlotTestPattern
	SlotProgram

	ParamsRdmFootprint
)

// ProgramValue in the PROGRAM slot writes the other slots to the store
const ProgramValue = 0xFF

// ParamsRdm is the config-mode output. A console sets the strip
// configuration through six DMX slots and commits it by raising PROGRAM
// to 0xFF. TYPE and MAP carry the index plus one. Values of zero, or out
// of range, leave a setting unchanged.
type ParamsRdm struct {
	*PIDs

	store        Store
	startAddress uint16
	slots        [ParamsRdmFootprint]byte
	programmed   int
	armed        bool
}

// NewParamsRdm creates the config-mode output writing to store
func NewParamsRdm(store Store, pids *PIDs) *ParamsRdm {
	if store == nil {
		store = NopStore{}
	}
	return &ParamsRdm{
		PIDs:         pids,
		store:        store,
		startAddress: device.StartAddressDefault,
		armed:        true,
	}
}

func (p *ParamsRdm) DmxFootprint() uint16 {
	return ParamsRdmFootprint
}

func (p *ParamsRdm) DmxStartAddress() uint16 {
	return p.startAddress
}

func (p *ParamsRdm) SetDmxStartAddress(address uint16) bool {
	if !device.ValidStartAddress(address, ParamsRdmFootprint) {
		return false
	}
	p.startAddress = address
	return true
}

func (p *ParamsRdm) SlotInfo(offset uint16) (device.SlotInfo, bool) {
	if offset >= ParamsRdmFootprint {
		return device.SlotInfo{}, false
	}
	return device.SlotInfo{Type: rdm.SlotTypePrimary, Category: rdm.SlotUndefined}, true
}

// SetData latches the config slots. Slots past the end of a short
// universe read as zero. PROGRAM commits once per rising edge to 0xFF.
func (p *ParamsRdm) SetData(_ uint32, data []byte, _ bool) {
	n := 0
	if start := int(p.startAddress) - 1; start < len(data) {
		n = copy(p.slots[:], data[start:])
	}
	clear(p.slots[n:])

	if p.slots[SlotProgram] != ProgramValue {
		p.armed = true
		return
	}
	if !p.armed {
		return
	}
	p.armed = false
	p.program()
}

func (p *ParamsRdm) program() {
	next := DefaultType
	if p.PIDs != nil {
		next = p.PIDs.next
	}
	if v := p.slots[SlotType]; v != 0 && Type(v-1) < TypeUndefined {
		next = Type(v - 1)
		p.store.SaveType(next)
		if p.PIDs != nil {
			p.PIDs.next = next
		}
	}

	limit := next.MaxCount()
	if v := uint16(p.slots[SlotCount]); v != 0 && v <= limit {
		p.store.SaveCount(v)
	}
	if v := uint16(p.slots[SlotGroupingCount]); v != 0 && v <= limit {
		p.store.SaveGroupingCount(v)
	}
	if v := p.slots[SlotMap]; v != 0 && Map(v-1) < MapUndefined {
		p.store.SaveMap(Map(v - 1))
	}
	p.store.SaveTestPattern(p.slots[SlotTestPattern])
	p.programmed++
}

func (p *ParamsRdm) Start(uint32) {}
func (p *ParamsRdm) Stop(uint32)  {}

// Slots returns the last latched config slots
func (p *ParamsRdm) Slots() [ParamsRdmFootprint]byte {
	return p.slots
}

// Programmed returns how many times the configuration was committed
func (p *ParamsRdm) Programmed() int {
	return p.programmed
}
