// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/pixel"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// Restore applies the saved device record during DeviceResponder.Init.
// Saved values that are no longer valid are skipped.
type Restore struct {
	record DeviceRecord
}

// Restore returns the Init params for the saved device record
func (s *Store) Restore() Restore {
	return Restore{record: s.Device()}
}

// Set restores the label and product classification
func (p Restore) Set(d *device.Device) {
	if p.record.Has(MaskLabel) {
		d.SetLabel(p.record.Label)
	}
	if p.record.Has(MaskProductCategory) {
		d.SetProductCategory(p.record.ProductCategory)
	}
	if p.record.Has(MaskProductDetail) {
		d.SetProductDetail(p.record.ProductDetail)
	}
}

// SetResponder restores the personality, then the start address
func (p Restore) SetResponder(r *device.DeviceResponder) {
	if p.record.Has(MaskPersonality) {
		n := p.record.Personality
		if n != 0 && n <= r.PersonalityCount(rdm.RootDevice) {
			r.SetPersonalityCurrent(rdm.RootDevice, n)
		}
	}
	if p.record.Has(MaskDmxStartAddress) {
		r.SetDmxStartAddress(rdm.RootDevice, p.record.DmxStartAddress)
	}
}

// PixelConfig overlays the saved pixel record on cfg
func (s *Store) PixelConfig(cfg pixel.Config) pixel.Config {
	r := s.Pixel()
	if r.Has(MaskPixelType) {
		cfg.Type = pixel.Type(r.Type)
	}
	if r.Has(MaskPixelCount) {
		cfg.Count = r.Count
	}
	if r.Has(MaskPixelGroupingCount) {
		cfg.GroupingCount = r.GroupingCount
	}
	if r.Has(MaskPixelMap) {
		cfg.Map = pixel.Map(r.Map)
	}
	if r.Has(MaskPixelTestPattern) {
		cfg.TestPattern = r.TestPattern
	}
	return cfg.Validate()
}
