// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pixel

import (
	"encoding/binary"
	"slices"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// Manufacturer-specific PIDs
const (
	PIDPixelType          = 0x8500
	PIDPixelCount         = 0x8501
	PIDPixelGroupingCount = 0x8502
	PIDPixelMap           = 0x8503
)

// Store persists pixel configuration changes. They take effect after
// the next restart.
type Store interface {
	SaveType(t Type)
	SaveCount(count uint16)
	SaveGroupingCount(count uint16)
	SaveMap(m Map)
	SaveTestPattern(pattern uint8)
}

// NopStore discards every change
type NopStore struct{}

func (NopStore) SaveType(Type)            {}
func (NopStore) SaveCount(uint16)         {}
func (NopStore) SaveGroupingCount(uint16) {}
func (NopStore) SaveMap(Map)              {}
func (NopStore) SaveTestPattern(uint8)    {}

var parameterDescriptions = []rdm.ParameterDescription{
	{
		PID:          PIDPixelType,
		PDLSize:      rdm.ParameterDescriptionMaxLength,
		DataType:     rdm.DataTypeASCII,
		CommandClass: rdm.CCGetSet,
		Unit:         rdm.UnitsNone,
		Prefix:       rdm.PrefixNone,
		Description:  "Pixel type",
	},
	{
		PID:          PIDPixelCount,
		PDLSize:      2,
		DataType:     rdm.DataTypeUnsignedWord,
		CommandClass: rdm.CCGetSet,
		Unit:         rdm.UnitsNone,
		Prefix:       rdm.PrefixNone,
		Min:          1,
		Max:          MaxCountRGB,
		Default:      DefaultCount,
		Description:  "Pixel count",
	},
	{
		PID:          PIDPixelGroupingCount,
		PDLSize:      2,
		DataType:     rdm.DataTypeUnsignedWord,
		CommandClass: rdm.CCGetSet,
		Unit:         rdm.UnitsNone,
		Prefix:       rdm.PrefixNone,
		Min:          1,
		Max:          MaxCountRGB,
		Default:      DefaultGroupingCount,
		Description:  "Pixel grouping count",
	},
	{
		PID:          PIDPixelMap,
		PDLSize:      rdm.ParameterDescriptionMaxLength,
		DataType:     rdm.DataTypeASCII,
		CommandClass: rdm.CCGetSet,
		Unit:         rdm.UnitsNone,
		Prefix:       rdm.PrefixNone,
		Description:  "Pixel map",
	},
}

// PIDs serves the pixel manufacturer PIDs. GET reports the running
// configuration; SET only persists to the store.
type PIDs struct {
	cfg   Config
	store Store

	// next is the type the strip runs after the next reset. It bounds
	// the counts a SET accepts.
	next Type
}

// NewPIDs creates the PID handlers for the running configuration cfg
func NewPIDs(cfg Config, store Store) *PIDs {
	if store == nil {
		store = NopStore{}
	}
	cfg = cfg.Validate()
	return &PIDs{cfg: cfg, store: store, next: cfg.Type}
}

// ParameterDescriptions returns the PARAMETER_DESCRIPTION records. The
// count maximum follows the next pixel type.
func (p *PIDs) ParameterDescriptions() []rdm.ParameterDescription {
	if p == nil {
		return nil
	}
	descs := slices.Clone(parameterDescriptions)
	for i := range descs {
		if descs[i].PID == PIDPixelCount || descs[i].PID == PIDPixelGroupingCount {
			descs[i].Max = uint32(p.next.MaxCount())
		}
	}
	return descs
}

func (p *PIDs) description(pid uint16) (rdm.ParameterDescription, bool) {
	for _, d := range p.ParameterDescriptions() {
		if d.PID == pid {
			return d, true
		}
	}
	return rdm.ParameterDescription{}, false
}

// GetManufacturerPID returns the parameter data of a GET
func (p *PIDs) GetManufacturerPID(pid uint16) ([]byte, error) {
	if p == nil {
		return nil, rdm.Nack(rdm.NackUnknownPID)
	}

	switch pid {
	case PIDPixelType:
		return []byte(p.cfg.Type.String()), nil
	case PIDPixelCount:
		return binary.BigEndian.AppendUint16(nil, p.cfg.Count), nil
	case PIDPixelGroupingCount:
		return binary.BigEndian.AppendUint16(nil, p.cfg.GroupingCount), nil
	case PIDPixelMap:
		return []byte(p.cfg.Map.String()), nil
	default:
		return nil, rdm.Nack(rdm.NackUnknownPID)
	}
}

// SetManufacturerPID validates and persists a SET. Broadcast requests
// are always rejected without touching the store.
func (p *PIDs) SetManufacturerPID(broadcast bool, pid uint16, data []byte) error {
	if p == nil {
		return rdm.Nack(rdm.NackUnknownPID)
	}
	if broadcast {
		return rdm.Nack(rdm.NackUnsupportedCommandClass)
	}

	switch pid {
	case PIDPixelType:
		if len(data) == 0 || len(data) > rdm.ParameterDescriptionMaxLength {
			return rdm.Nack(rdm.NackFormatError)
		}
		t := ParseType(string(data))
		if t == TypeUndefined {
			return rdm.Nack(rdm.NackDataOutOfRange)
		}
		p.store.SaveType(t)
		p.next = t
		return nil

	case PIDPixelCount, PIDPixelGroupingCount:
		if len(data) != 2 {
			return rdm.Nack(rdm.NackFormatError)
		}
		desc, _ := p.description(pid)
		v := binary.BigEndian.Uint16(data)
		if uint32(v) < desc.Min || uint32(v) > desc.Max {
			return rdm.Nack(rdm.NackDataOutOfRange)
		}
		if pid == PIDPixelCount {
			p.store.SaveCount(v)
		} else {
			p.store.SaveGroupingCount(v)
		}
		return nil

	case PIDPixelMap:
		if len(data) != 3 {
			return rdm.Nack(rdm.NackFormatError)
		}
		m := ParseMap(string(data))
		if m == MapUndefined {
			return rdm.Nack(rdm.NackDataOutOfRange)
		}
		p.store.SaveMap(m)
		return nil

	default:
		return rdm.Nack(rdm.NackUnknownPID)
	}
}
