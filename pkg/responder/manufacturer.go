// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import "github.com/Thermoquad/rdmresponder/pkg/rdm"

// ManufacturerPIDs extends the PID table with manufacturer-specific
// parameters in 0x8000-0xFFDF.
//
// Handlers return an rdm.Nack to reject a request. SetManufacturerPID
// must not change state when broadcast is true.
type ManufacturerPIDs interface {
	ParameterDescriptions() []rdm.ParameterDescription
	GetManufacturerPID(pid uint16) ([]byte, error)
	SetManufacturerPID(broadcast bool, pid uint16, data []byte) error
}

// IsManufacturerPID reports whether pid is in the manufacturer-specific range
func IsManufacturerPID(pid uint16) bool {
	return pid >= rdm.PIDManufacturerSpecificLo && pid <= rdm.PIDManufacturerSpecificHi
}

// manufacturerPIDs returns the extensions in lookup order: the ones given
// at construction, then the current root output when it has any.
func (r *Responder) manufacturerPIDs() []ManufacturerPIDs {
	list := r.extensions
	if m, ok := r.dev.Output().(ManufacturerPIDs); ok {
		list = append(list[:len(list):len(list)], m)
	}
	return list
}

func (r *Responder) findManufacturerPID(pid uint16) (ManufacturerPIDs, rdm.ParameterDescription, bool) {
	for _, m := range r.manufacturerPIDs() {
		for _, d := range m.ParameterDescriptions() {
			if d.PID == pid {
				return m, d, true
			}
		}
	}
	return nil, rdm.ParameterDescription{}, false
}

func (r *Responder) handleManufacturerPID(m *rdm.Message, resp *rdm.Message, broadcast bool) error {
	if m.SubDevice != rdm.RootDevice {
		return rdm.Nack(rdm.NackSubDeviceOutOfRange)
	}

	ext, desc, ok := r.findManufacturerPID(m.PID)
	if !ok {
		return rdm.Nack(rdm.NackUnknownPID)
	}

	switch m.CommandClass {
	case rdm.GetCommand:
		if desc.CommandClass&rdm.CCGet == 0 {
			return rdm.Nack(rdm.NackUnsupportedCommandClass)
		}
		data, err := ext.GetManufacturerPID(m.PID)
		if err != nil {
			return err
		}
		resp.ParamData = append(resp.ParamData, data...)
		return nil

	default:
		if desc.CommandClass&rdm.CCSet == 0 {
			return rdm.Nack(rdm.NackUnsupportedCommandClass)
		}
		return ext.SetManufacturerPID(broadcast, m.PID, m.ParamData)
	}
}
