// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
	"gopkg.in/yaml.v3"
)

// SensorChip identifies a supported sensor part
type SensorChip uint8

const (
	ChipBH170 SensorChip = iota
	ChipMCP9808
	ChipHTU21D
	ChipINA219
	ChipSI7021
	ChipMCP3424
	ChipThermal
	chipUndefined
)

var chipNames = [...]string{"BH170", "MCP9808", "HTU21D", "INA219", "SI7021", "MCP3424", "THERMAL"}

func (c SensorChip) String() string {
	if c >= chipUndefined {
		return "UNDEFINED"
	}
	return chipNames[c]
}

// ParseSensorChip matches a chip name, case-insensitive
func ParseSensorChip(name string) (SensorChip, bool) {
	for i, n := range chipNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return SensorChip(i), true
		}
	}
	return chipUndefined, false
}

func (c SensorChip) MarshalYAML() (any, error) {
	return c.String(), nil
}

func (c *SensorChip) UnmarshalYAML(node *yaml.Node) error {
	chip, ok := ParseSensorChip(node.Value)
	if !ok {
		return fmt.Errorf("line %d: unknown sensor type %q", node.Line, node.Value)
	}
	*c = chip
	return nil
}

// SensorBus reads one channel of a chip on the I2C bus
type SensorBus interface {
	ReadSensor(chip SensorChip, address uint8, channel uint8) (int16, error)
}

// ErrNoSensorBus is reported for chip sensors configured without a bus
var ErrNoSensorBus = errors.New("no sensor bus")

// Channel definitions per chip, in channel order
var chipChannels = map[SensorChip][]device.SensorDefinition{
	ChipBH170: {
		{Type: rdm.SensorIlluminance, Unit: rdm.UnitsLux, RangeMin: 0, RangeMax: 32767, NormalMin: 0, NormalMax: 32767, Description: "Ambient light"},
	},
	ChipMCP9808: {
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: -40, NormalMax: 125, Description: "Temperature"},
	},
	ChipHTU21D: {
		{Type: rdm.SensorHumidity, Unit: rdm.UnitsNone, RangeMin: 0, RangeMax: 100, NormalMin: 0, NormalMax: 100, Description: "Relative humidity"},
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: -40, NormalMax: 125, Description: "Temperature"},
	},
	ChipINA219: {
		{Type: rdm.SensorCurrent, Unit: rdm.UnitsAmpereDC, Prefix: rdm.PrefixMilli, RangeMin: -3200, RangeMax: 3200, NormalMin: -3200, NormalMax: 3200, Description: "Current"},
		{Type: rdm.SensorPower, Unit: rdm.UnitsWatt, RangeMin: 0, RangeMax: 84, NormalMin: 0, NormalMax: 84, Description: "Power"},
		{Type: rdm.SensorVoltage, Unit: rdm.UnitsVoltsDC, RangeMin: 0, RangeMax: 26, NormalMin: 0, NormalMax: 26, Description: "Voltage"},
	},
	ChipMCP3424: {
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: -40, NormalMax: 125, Description: "Thermistor 1"},
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: -40, NormalMax: 125, Description: "Thermistor 2"},
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: -40, NormalMax: 125, Description: "Thermistor 3"},
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: -40, NormalMax: 125, Description: "Thermistor 4"},
	},
	ChipThermal: {
		{Type: rdm.SensorTemperature, Unit: rdm.UnitsCentigrade, RangeMin: -40, RangeMax: 125, NormalMin: 0, NormalMax: 85, Description: "CPU temperature"},
	},
}

func init() {
	chipChannels[ChipSI7021] = chipChannels[ChipHTU21D]
}

// SensorChannels returns the definitions a chip contributes
func SensorChannels(chip SensorChip) []device.SensorDefinition {
	return chipChannels[chip]
}

// SensorEntry configures one chip. Address is the I2C address, Zone the
// thermal zone for THERMAL entries.
type SensorEntry struct {
	Type    SensorChip `yaml:"type"`
	Address Hex8       `yaml:"address,omitempty"`
	Zone    int        `yaml:"zone,omitempty"`
}

// SensorsParams is the contents of sensors.yaml
type SensorsParams struct {
	Sensors []SensorEntry `yaml:"sensors"`
}

// LoadSensors reads sensors.yaml from dir
func LoadSensors(dir string) (*SensorsParams, error) {
	return LoadSensorsFile(filepath.Join(dir, SensorsFile))
}

func LoadSensorsFile(path string) (*SensorsParams, error) {
	p := &SensorsParams{}
	if _, err := load(path, p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects duplicate chip addresses and configurations with more
// channels than a responder can hold.
func (p *SensorsParams) Validate() error {
	seen := make(map[uint8]SensorChip)
	channels := 0

	for _, e := range p.Sensors {
		if e.Type >= chipUndefined {
			return fmt.Errorf("sensor type %d undefined", e.Type)
		}
		if e.Type != ChipThermal {
			if prev, dup := seen[uint8(e.Address)]; dup {
				return fmt.Errorf("address 0x%02X used by %s and %s", uint8(e.Address), prev, e.Type)
			}
			seen[uint8(e.Address)] = e.Type
		}
		channels += len(chipChannels[e.Type])
	}

	if channels > device.MaxSensors {
		return fmt.Errorf("%d sensor channels configured, at most %d supported", channels, device.MaxSensors)
	}
	return nil
}

type busReader struct {
	bus     SensorBus
	chip    SensorChip
	address uint8
	channel uint8
}

func (r busReader) ReadSensor() (int16, error) {
	return r.bus.ReadSensor(r.chip, r.address, r.channel)
}

// Set adds one sensor per chip channel. Chip entries are skipped when bus
// is nil and the skipped entries are reported in the returned error.
func (p *SensorsParams) Set(sensors *device.Sensors, bus SensorBus) error {
	var errs []error

	for _, e := range p.Sensors {
		if e.Type != ChipThermal && bus == nil {
			errs = append(errs, fmt.Errorf("%s at 0x%02X: %w", e.Type, uint8(e.Address), ErrNoSensorBus))
			continue
		}

		for ch, def := range chipChannels[e.Type] {
			var reader device.SensorReader
			if e.Type == ChipThermal {
				reader = device.NewThermalZone(e.Zone)
			} else {
				reader = busReader{bus: bus, chip: e.Type, address: uint8(e.Address), channel: uint8(ch)}
			}

			if !sensors.Add(device.NewSensor(def, reader)) {
				errs = append(errs, fmt.Errorf("%s channel %d: sensor capacity reached", e.Type, ch))
			}
		}
	}
	return errors.Join(errs...)
}

func (p *SensorsParams) Builder() ([]byte, error) {
	return build(p)
}
