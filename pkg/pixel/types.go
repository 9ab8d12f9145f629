// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pixel drives addressable LED strips from DMX512.
//
// It provides the pixel configuration (type, count, grouping and colour
// map), the Dmx output that renders received slots into a Sink, the
// ParamsRdm config-mode output and the manufacturer-specific RDM PIDs
// that expose the configuration to controllers.
package pixel

import (
	"fmt"
	"strings"
)

// Type is an LED driver chip
type Type uint8

const (
	TypeWS2801 Type = iota
	TypeWS2811
	TypeWS2812
	TypeWS2812B
	TypeWS2813
	TypeWS2815
	TypeSK6812
	TypeSK6812W
	TypeUCS1903
	TypeUCS2903
	TypeCS8812
	TypeAPA102
	TypeSK9822
	TypeP9813
	TypeUndefined
)

var typeNames = [...]string{
	TypeWS2801:  "WS2801",
	TypeWS2811:  "WS2811",
	TypeWS2812:  "WS2812",
	TypeWS2812B: "WS2812B",
	TypeWS2813:  "WS2813",
	TypeWS2815:  "WS2815",
	TypeSK6812:  "SK6812",
	TypeSK6812W: "SK6812W",
	TypeUCS1903: "UCS1903",
	TypeUCS2903: "UCS2903",
	TypeCS8812:  "CS8812",
	TypeAPA102:  "APA102",
	TypeSK9822:  "SK9822",
	TypeP9813:   "P9813",
}

func (t Type) String() string {
	if t < TypeUndefined {
		return typeNames[t]
	}
	return fmt.Sprintf("UNDEFINED(%d)", uint8(t))
}

// ParseType looks up a type by name, ignoring case. Unknown names give
// TypeUndefined.
func ParseType(s string) Type {
	s = strings.TrimRight(s, "\x00 ")
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return Type(i)
		}
	}
	return TypeUndefined
}

// LedsPerPixel returns the number of colour channels of one pixel
func (t Type) LedsPerPixel() uint16 {
	if t == TypeSK6812W {
		return 4
	}
	return 3
}

// MaxCount returns the most pixels of type t one universe can drive
func (t Type) MaxCount() uint16 {
	if t.LedsPerPixel() == 4 {
		return MaxCountRGBW
	}
	return MaxCountRGB
}

// DefaultMap returns the native channel order of the chip
func (t Type) DefaultMap() Map {
	switch t {
	case TypeWS2801, TypeWS2811, TypeUCS2903, TypeAPA102, TypeSK9822, TypeP9813:
		return MapRGB
	case TypeUCS1903:
		return MapBRG
	case TypeCS8812:
		return MapBGR
	default:
		return MapGRB
	}
}

// Map is the order of the colour channels in the DMX data
type Map uint8

const (
	MapRGB Map = iota
	MapRBG
	MapGRB
	MapGBR
	MapBRG
	MapBGR
	MapUndefined
)

var mapNames = [...]string{
	MapRGB: "RGB",
	MapRBG: "RBG",
	MapGRB: "GRB",
	MapGBR: "GBR",
	MapBRG: "BRG",
	MapBGR: "BGR",
}

// mapOffsets gives the DMX offset of red, green and blue within a pixel
var mapOffsets = [...][3]int{
	MapRGB: {0, 1, 2},
	MapRBG: {0, 2, 1},
	MapGRB: {1, 0, 2},
	MapGBR: {2, 0, 1},
	MapBRG: {1, 2, 0},
	MapBGR: {2, 1, 0},
}

func (m Map) String() string {
	if m < MapUndefined {
		return mapNames[m]
	}
	return fmt.Sprintf("UNDEFINED(%d)", uint8(m))
}

// ParseMap looks up a colour map by name, ignoring case
func ParseMap(s string) Map {
	s = strings.TrimRight(s, "\x00 ")
	for i, name := range mapNames {
		if strings.EqualFold(name, s) {
			return Map(i)
		}
	}
	return MapUndefined
}

// Limits and defaults
const (
	MaxCountRGB  = 170
	MaxCountRGBW = 128

	DefaultType          = TypeWS2812B
	DefaultCount         = 170
	DefaultGroupingCount = 1
)

// Config is the strip configuration
type Config struct {
	Type          Type
	Count         uint16
	GroupingCount uint16
	Map           Map
	TestPattern   uint8
}

// DefaultConfig returns the factory configuration
func DefaultConfig() Config {
	return Config{
		Type:          DefaultType,
		Count:         DefaultCount,
		GroupingCount: DefaultGroupingCount,
		Map:           DefaultType.DefaultMap(),
	}
}

// Validate returns c with every field clamped to a usable value
func (c Config) Validate() Config {
	if c.Type >= TypeUndefined {
		c.Type = DefaultType
	}
	if c.Count == 0 {
		c.Count = DefaultCount
	}
	if limit := c.Type.MaxCount(); c.Count > limit {
		c.Count = limit
	}
	if c.GroupingCount == 0 || c.GroupingCount > c.Count {
		c.GroupingCount = DefaultGroupingCount
	}
	if c.Map >= MapUndefined {
		c.Map = c.Type.DefaultMap()
	}
	return c
}

// Groups returns the number of pixel groups addressed from DMX
func (c Config) Groups() uint16 {
	if c.GroupingCount == 0 {
		return c.Count
	}
	return c.Count / c.GroupingCount
}

// DmxFootprint returns the slots needed to drive every group
func (c Config) DmxFootprint() uint16 {
	return c.Groups() * c.Type.LedsPerPixel()
}

// Description renders the personality description, "WS2812B:170 G1 [GRB]"
func (c Config) Description() string {
	return fmt.Sprintf("%s:%d G%d [%s]", c.Type, c.Count, c.GroupingCount, c.Map)
}
