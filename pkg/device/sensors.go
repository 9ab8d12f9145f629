// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// MaxSensors is the capacity of a Sensors collection
const MaxSensors = 16

// SensorDescriptionMaxLength bounds SENSOR_DEFINITION descriptions
const SensorDescriptionMaxLength = 32

// Recorded value support bits
const (
	SensorRecordSupported  = 0x01
	SensorLowHighSupported = 0x02
)

// SensorDefinition is the static description of a sensor
type SensorDefinition struct {
	Type              uint8
	Unit              uint8
	Prefix            uint8
	RangeMin          int16
	RangeMax          int16
	NormalMin         int16
	NormalMax         int16
	RecordedSupported uint8
	Description       string
}

// SensorValue holds the reported readings of a sensor
type SensorValue struct {
	Present  int16
	Lowest   int16
	Highest  int16
	Recorded int16
}

// SensorReader produces a reading in the sensor's unit and prefix
type SensorReader interface {
	ReadSensor() (int16, error)
}

// Sensor combines a definition with a reader and tracked values
type Sensor struct {
	definition SensorDefinition
	reader     SensorReader
	value      SensorValue
	seen       bool
}

// NewSensor creates a sensor. The description is truncated.
func NewSensor(def SensorDefinition, reader SensorReader) *Sensor {
	if len(def.Description) > SensorDescriptionMaxLength {
		def.Description = def.Description[:SensorDescriptionMaxLength]
	}
	return &Sensor{definition: def, reader: reader}
}

func (s *Sensor) Definition() SensorDefinition {
	return s.definition
}

// Value reads the sensor and updates lowest and highest. A failed read
// keeps the previous present value.
func (s *Sensor) Value() SensorValue {
	v, err := s.reader.ReadSensor()
	if err != nil {
		return s.value
	}

	if !s.seen {
		s.value = SensorValue{Present: v, Lowest: v, Highest: v}
		s.seen = true
		return s.value
	}

	s.value.Present = v
	s.value.Lowest = min(s.value.Lowest, v)
	s.value.Highest = max(s.value.Highest, v)
	return s.value
}

// Record latches the present value
func (s *Sensor) Record() {
	s.value.Recorded = s.Value().Present
}

// Reset restarts lowest, highest and recorded from the present value
func (s *Sensor) Reset() {
	s.seen = false
	v := s.Value()
	s.value.Recorded = v.Present
}

// Sensors is a bounded collection addressed by 0-based sensor number
type Sensors struct {
	list []*Sensor
}

// Add appends a sensor, returning false at capacity
func (c *Sensors) Add(s *Sensor) bool {
	if len(c.list) >= MaxSensors {
		return false
	}
	c.list = append(c.list, s)
	return true
}

func (c *Sensors) Count() uint8 {
	return uint8(len(c.list))
}

// Get returns sensor n, or nil
func (c *Sensors) Get(n uint8) *Sensor {
	if int(n) >= len(c.list) {
		return nil
	}
	return c.list[n]
}

// Record latches sensor n, or all sensors for SensorAll
func (c *Sensors) Record(n uint8) bool {
	return c.each(n, (*Sensor).Record)
}

// Reset resets sensor n, or all sensors for SensorAll
func (c *Sensors) Reset(n uint8) bool {
	return c.each(n, (*Sensor).Reset)
}

func (c *Sensors) each(n uint8, fn func(*Sensor)) bool {
	if n == rdm.SensorAll {
		for _, s := range c.list {
			fn(s)
		}
		return true
	}
	s := c.Get(n)
	if s == nil {
		return false
	}
	fn(s)
	return true
}

// ConstantReader always reads the same value
type ConstantReader int16

func (r ConstantReader) ReadSensor() (int16, error) {
	return int16(r), nil
}

// ThermalZone reads a Linux thermal zone in whole degrees Celsius
type ThermalZone struct {
	Path string
}

// NewThermalZone returns the reader for /sys/class/thermal/thermal_zone<n>/temp
func NewThermalZone(zone int) ThermalZone {
	return ThermalZone{Path: fmt.Sprintf("/sys/class/thermal/thermal_zone%d/temp", zone)}
}

func (z ThermalZone) ReadSensor() (int16, error) {
	raw, err := os.ReadFile(z.Path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone: %w", err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse thermal zone %s: %w", z.Path, err)
	}
	return int16(milli / 1000), nil
}
