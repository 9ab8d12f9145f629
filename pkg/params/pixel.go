// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"fmt"
	"path/filepath"

	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/pixel"
)

// PixelParams is the contents of pixel.yaml. Absent keys keep the
// configuration they are applied to.
type PixelParams struct {
	Type            *string `yaml:"type,omitempty"`
	Count           *uint16 `yaml:"count,omitempty"`
	GroupingCount   *uint16 `yaml:"grouping_count,omitempty"`
	Map             *string `yaml:"map,omitempty"`
	TestPattern     *uint8  `yaml:"test_pattern,omitempty"`
	DmxStartAddress *uint16 `yaml:"dmx_start_address,omitempty"`
}

// LoadPixel reads pixel.yaml from dir
func LoadPixel(dir string) (*PixelParams, error) {
	return LoadPixelFile(filepath.Join(dir, PixelFile))
}

func LoadPixelFile(path string) (*PixelParams, error) {
	p := &PixelParams{}
	if _, err := load(path, p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects unknown type and map names and a zero start address.
// Counts are clamped when applied.
func (p *PixelParams) Validate() error {
	if p.Type != nil {
		if pixel.ParseType(*p.Type) == pixel.TypeUndefined {
			return fmt.Errorf("unknown pixel type %q", *p.Type)
		}
	}
	if p.Map != nil {
		if pixel.ParseMap(*p.Map) == pixel.MapUndefined {
			return fmt.Errorf("unknown pixel map %q", *p.Map)
		}
	}
	if p.DmxStartAddress != nil && (*p.DmxStartAddress == 0 || *p.DmxStartAddress > device.DmxUniverseSize) {
		return fmt.Errorf("dmx start address %d out of range", *p.DmxStartAddress)
	}
	return nil
}

// Apply overlays the configured values on cfg. A configured type without
// a map selects the type's default map.
func (p *PixelParams) Apply(cfg pixel.Config) pixel.Config {
	if p.Type != nil {
		if t := pixel.ParseType(*p.Type); t != pixel.TypeUndefined {
			cfg.Type = t
			if p.Map == nil {
				cfg.Map = t.DefaultMap()
			}
		}
	}
	if p.Count != nil {
		cfg.Count = *p.Count
	}
	if p.GroupingCount != nil {
		cfg.GroupingCount = *p.GroupingCount
	}
	if p.Map != nil {
		if m := pixel.ParseMap(*p.Map); m != pixel.MapUndefined {
			cfg.Map = m
		}
	}
	if p.TestPattern != nil {
		cfg.TestPattern = *p.TestPattern
	}
	return cfg.Validate()
}

// StartAddress returns the configured DMX start address
func (p *PixelParams) StartAddress() (uint16, bool) {
	if p.DmxStartAddress == nil {
		return 0, false
	}
	return *p.DmxStartAddress, true
}

func (p *PixelParams) Builder() ([]byte, error) {
	return build(p)
}

// PixelParamsFor renders cfg as a fully populated PixelParams
func PixelParamsFor(cfg pixel.Config, startAddress uint16) *PixelParams {
	t, m := cfg.Type.String(), cfg.Map.String()
	count, grouping, pattern := cfg.Count, cfg.GroupingCount, cfg.TestPattern
	return &PixelParams{
		Type:            &t,
		Count:           &count,
		GroupingCount:   &grouping,
		Map:             &m,
		TestPattern:     &pattern,
		DmxStartAddress: &startAddress,
	}
}
