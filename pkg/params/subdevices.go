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

// SubDeviceType identifies a supported SPI sub-device driver
type SubDeviceType uint8

const (
	SubDeviceBW7FETS SubDeviceType = iota
	SubDeviceBWDimmer
	SubDeviceBWDIO
	SubDeviceBWLCD
	SubDeviceBWRelay
	SubDeviceMCP23S08
	SubDeviceMCP23S17
	SubDeviceMCP4822
	SubDeviceMCP4902
	subDeviceUndefined
)

type subDeviceSpec struct {
	name        string
	description string
	footprint   uint16
	digital     bool
	address     uint8
	speedHz     uint32
}

var subDeviceSpecs = [...]subDeviceSpec{
	SubDeviceBW7FETS:  {name: "BW7FETS", description: "BW 7 FETs", footprint: 7, digital: true, address: 0x88, speedHz: 100000},
	SubDeviceBWDimmer: {name: "BWDIMMER", description: "BW Dimmer", footprint: 1, address: 0x9A, speedHz: 100000},
	SubDeviceBWDIO:    {name: "BWDIO", description: "BW DIO", footprint: 7, digital: true, address: 0x84, speedHz: 100000},
	SubDeviceBWLCD:    {name: "BWLCD", description: "BW LCD", footprint: 4, address: 0x82, speedHz: 100000},
	SubDeviceBWRelay:  {name: "BWRELAY", description: "BW Relay", footprint: 2, digital: true, address: 0x8E, speedHz: 100000},
	SubDeviceMCP23S08: {name: "MCP23S08", description: "MCP23S08 GPIO", footprint: 8, digital: true, address: 0x20, speedHz: 10000000},
	SubDeviceMCP23S17: {name: "MCP23S17", description: "MCP23S17 GPIO", footprint: 16, digital: true, address: 0x20, speedHz: 10000000},
	SubDeviceMCP4822:  {name: "MCP4822", description: "MCP4822 DAC", footprint: 2, speedHz: 20000000},
	SubDeviceMCP4902:  {name: "MCP4902", description: "MCP4902 DAC", footprint: 2, speedHz: 20000000},
}

func (t SubDeviceType) String() string {
	if t >= subDeviceUndefined {
		return "UNDEFINED"
	}
	return subDeviceSpecs[t].name
}

// Footprint is the number of DMX slots the driver consumes
func (t SubDeviceType) Footprint() uint16 {
	if t >= subDeviceUndefined {
		return 0
	}
	return subDeviceSpecs[t].footprint
}

// Digital reports whether channel values are switched on or off
func (t SubDeviceType) Digital() bool {
	return t < subDeviceUndefined && subDeviceSpecs[t].digital
}

// ParseSubDeviceType matches a driver name, case-insensitive
func ParseSubDeviceType(name string) (SubDeviceType, bool) {
	name = strings.TrimSpace(name)
	for i := range subDeviceSpecs {
		if strings.EqualFold(subDeviceSpecs[i].name, name) {
			return SubDeviceType(i), true
		}
	}
	return subDeviceUndefined, false
}

func (t SubDeviceType) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *SubDeviceType) UnmarshalYAML(node *yaml.Node) error {
	v, ok := ParseSubDeviceType(node.Value)
	if !ok {
		return fmt.Errorf("line %d: unknown sub-device type %q", node.Line, node.Value)
	}
	*t = v
	return nil
}

// ChannelWriter drives the channel values of one SPI chip
type ChannelWriter interface {
	WriteChannels(chipSelect uint8, address uint8, speedHz uint32, values []byte) error
}

// DigitalThreshold is the lowest slot value that switches a digital channel on
const DigitalThreshold = 0x80

// ChannelOutput is the DmxOutput of an SPI sub-device. It writes the slot
// window to its ChannelWriter when the values change, and zeros on Stop.
type ChannelOutput struct {
	*device.Footprint
	entry  SubDeviceEntry
	writer ChannelWriter
	values []byte
	err    error
}

// NewChannelOutput creates the output of one configured entry
func NewChannelOutput(entry SubDeviceEntry, writer ChannelWriter) *ChannelOutput {
	if writer == nil {
		panic("params: NewChannelOutput requires a ChannelWriter")
	}
	fp := entry.Type.Footprint()
	return &ChannelOutput{
		Footprint: device.NewFootprint(fp, rdm.SlotIntensity),
		entry:     entry,
		writer:    writer,
		values:    make([]byte, fp),
	}
}

func (o *ChannelOutput) SetData(port uint32, data []byte, doUpdate bool) {
	o.Footprint.SetData(port, data, doUpdate)
	if !doUpdate {
		return
	}

	window := o.Footprint.Data()
	values := make([]byte, len(o.values))
	for i := range values {
		if i >= len(window) {
			break
		}
		values[i] = window[i]
		if o.entry.Type.Digital() {
			values[i] = 0
			if window[i] >= DigitalThreshold {
				values[i] = 0xFF
			}
		}
	}

	if string(values) == string(o.values) {
		return
	}
	o.values = values
	o.write(values)
}

func (o *ChannelOutput) Stop(port uint32) {
	o.Footprint.Stop(port)
	clear(o.values)
	o.write(o.values)
}

// Values returns the last values written
func (o *ChannelOutput) Values() []byte {
	return append([]byte(nil), o.values...)
}

// Err returns the last write error
func (o *ChannelOutput) Err() error {
	return o.err
}

func (o *ChannelOutput) write(values []byte) {
	o.err = o.writer.WriteChannels(o.entry.ChipSelect, uint8(o.entry.Address), o.entry.SpeedHz, values)
}

// SubDeviceEntry configures one SPI sub-device. Zero address and speed
// select the driver defaults.
type SubDeviceEntry struct {
	Type            SubDeviceType `yaml:"type"`
	ChipSelect      uint8         `yaml:"chip_select"`
	Address         Hex8          `yaml:"address,omitempty"`
	DmxStartAddress uint16        `yaml:"dmx_start_address,omitempty"`
	SpeedHz         uint32        `yaml:"speed_hz,omitempty"`
}

// SubDevicesParams is the contents of subdevices.yaml
type SubDevicesParams struct {
	SubDevices []SubDeviceEntry `yaml:"subdevices"`
}

// LoadSubDevices reads subdevices.yaml from dir
func LoadSubDevices(dir string) (*SubDevicesParams, error) {
	return LoadSubDevicesFile(filepath.Join(dir, SubDevicesFile))
}

func LoadSubDevicesFile(path string) (*SubDevicesParams, error) {
	p := &SubDevicesParams{}
	if _, err := load(path, p); err != nil {
		return nil, err
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return p, nil
}

func (p *SubDevicesParams) applyDefaults() {
	for i := range p.SubDevices {
		e := &p.SubDevices[i]
		if e.Type >= subDeviceUndefined {
			continue
		}
		spec := subDeviceSpecs[e.Type]
		if e.Address == 0 {
			e.Address = Hex8(spec.address)
		}
		if e.SpeedHz == 0 {
			e.SpeedHz = spec.speedHz
		}
		if e.DmxStartAddress == 0 {
			e.DmxStartAddress = device.StartAddressDefault
		}
	}
}

// Validate checks the count, the start addresses and chip select clashes
func (p *SubDevicesParams) Validate() error {
	if len(p.SubDevices) > device.MaxSubDevices {
		return fmt.Errorf("%d sub-devices configured, at most %d supported", len(p.SubDevices), device.MaxSubDevices)
	}

	type bus struct {
		chipSelect uint8
		address    uint8
	}
	seen := make(map[bus]int)

	for i, e := range p.SubDevices {
		if e.Type >= subDeviceUndefined {
			return fmt.Errorf("sub-device %d: type undefined", i+1)
		}
		if !device.ValidStartAddress(e.DmxStartAddress, e.Type.Footprint()) {
			return fmt.Errorf("sub-device %d: start address %d does not fit footprint %d", i+1, e.DmxStartAddress, e.Type.Footprint())
		}
		key := bus{e.ChipSelect, uint8(e.Address)}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("sub-device %d: chip select %d address 0x%02X used by sub-device %d", i+1, e.ChipSelect, uint8(e.Address), prev)
		}
		seen[key] = i + 1
	}
	return nil
}

// ErrNoChannelWriter is reported when sub-devices are configured without a writer
var ErrNoChannelWriter = errors.New("no channel writer")

// Set adds one sub-device per entry. Each sub-device has a single
// personality named after its driver.
func (p *SubDevicesParams) Set(subDevices *device.SubDevices, writer ChannelWriter) error {
	if len(p.SubDevices) == 0 {
		return nil
	}
	if writer == nil {
		return fmt.Errorf("%d sub-devices skipped: %w", len(p.SubDevices), ErrNoChannelWriter)
	}

	for i, e := range p.SubDevices {
		desc := subDeviceSpecs[e.Type].description
		out := NewChannelOutput(e, writer)
		sd := device.NewSubDevice(desc, e.DmxStartAddress, device.NewPersonality(desc, out))
		if !subDevices.Add(sd) {
			return fmt.Errorf("sub-device %d: capacity reached", i+1)
		}
	}
	return nil
}

func (p *SubDevicesParams) Builder() ([]byte, error) {
	return build(p)
}
