// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/pixel"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

var (
	_ device.Params    = (*RdmDeviceParams)(nil)
	_ device.DmxOutput = (*ChannelOutput)(nil)
)

func writeParams(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	return dir
}

// ============================================================
// Hex values
// ============================================================

func TestHex16(t *testing.T) {
	tests := []struct {
		in   string
		want Hex16
		ok   bool
	}{
		{"0x0100", 0x0100, true},
		{"0X7fff", 0x7FFF, true},
		{"256", 256, true},
		{"0x10000", 0, false},
		{"fixture", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				H Hex16 `yaml:"h"`
			}
			err := yaml.Unmarshal([]byte("h: "+tt.in), &v)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.H)
		})
	}

	out, err := yaml.Marshal(struct {
		H Hex16 `yaml:"h"`
	}{0x0101})
	require.NoError(t, err)
	assert.Equal(t, "h: 0x0101\n", string(out))
}

// ============================================================
// rdm_device.yaml
// ============================================================

func TestRdmDevice_MissingFile(t *testing.T) {
	p, err := LoadRdmDevice(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, p.Mask)

	d := device.NewDevice(device.Config{ManufacturerID: 0x7FF0, Label: "Factory"}, device.NopStore{})
	p.Set(d)
	assert.Equal(t, "Factory", d.Label())
}

func TestRdmDevice_Load(t *testing.T) {
	dir := writeParams(t, RdmDeviceFile, "label: Truss Left\nproduct_category: 0x0100\n")

	p, err := LoadRdmDevice(dir)
	require.NoError(t, err)
	assert.True(t, p.Has(MaskLabel))
	assert.True(t, p.Has(MaskProductCategory))
	assert.False(t, p.Has(MaskProductDetail))

	d := device.NewDevice(device.Config{ManufacturerID: 0x7FF0}, device.NopStore{})
	p.Set(d)
	d.Init()

	assert.Equal(t, "Truss Left", d.Label())
	assert.Equal(t, "Truss Left", d.FactoryLabel())
	assert.Equal(t, uint16(rdm.ProductCategoryFixture), d.ProductCategory())
	assert.Equal(t, uint16(rdm.ProductDetailOther), d.ProductDetail())
}

func TestRdmDevice_ParseError(t *testing.T) {
	dir := writeParams(t, RdmDeviceFile, "product_detail: led\n")

	_, err := LoadRdmDevice(dir)
	assert.ErrorContains(t, err, "invalid 16-bit value")
}

func TestRdmDevice_Builder(t *testing.T) {
	p := &RdmDeviceParams{ProductDetail: rdm.ProductDetailLED, Mask: MaskProductDetail}

	out, err := p.Builder()
	require.NoError(t, err)
	assert.Equal(t, "product_detail: 0x0001\n", string(out))

	path := filepath.Join(t.TempDir(), RdmDeviceFile)
	require.NoError(t, os.WriteFile(path, out, 0o600))
	back, err := LoadRdmDeviceFile(path)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

// ============================================================
// sensors.yaml
// ============================================================

type fakeBus struct {
	reads []uint8
}

func (b *fakeBus) ReadSensor(chip SensorChip, address uint8, channel uint8) (int16, error) {
	b.reads = append(b.reads, address)
	return int16(chip)*100 + int16(channel), nil
}

func TestSensors_Load(t *testing.T) {
	dir := writeParams(t, SensorsFile, `
sensors:
  - type: ina219
    address: 0x40
  - type: MCP9808
    address: 0x18
  - type: THERMAL
    zone: 1
`)

	p, err := LoadSensors(dir)
	require.NoError(t, err)
	require.Len(t, p.Sensors, 3)
	assert.Equal(t, ChipINA219, p.Sensors[0].Type)
	assert.Equal(t, Hex8(0x40), p.Sensors[0].Address)
	assert.Equal(t, 1, p.Sensors[2].Zone)
}

func TestSensors_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"unknown type", "sensors:\n  - type: DS18B20\n", "unknown sensor type"},
		{"duplicate address", "sensors:\n  - {type: MCP9808, address: 0x18}\n  - {type: HTU21D, address: 0x18}\n", "address 0x18"},
		{"too many channels", "sensors:\n" +
			"  - {type: MCP3424, address: 0x68}\n  - {type: MCP3424, address: 0x69}\n" +
			"  - {type: MCP3424, address: 0x6A}\n  - {type: MCP3424, address: 0x6B}\n" +
			"  - {type: MCP9808, address: 0x18}\n", "at most 16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSensors(writeParams(t, SensorsFile, tt.content))
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestSensors_Set(t *testing.T) {
	p := &SensorsParams{Sensors: []SensorEntry{
		{Type: ChipHTU21D, Address: 0x40},
		{Type: ChipBH170, Address: 0x23},
	}}
	bus := &fakeBus{}

	var sensors device.Sensors
	require.NoError(t, p.Set(&sensors, bus))
	require.Equal(t, uint8(3), sensors.Count())

	humidity := sensors.Get(0).Definition()
	assert.Equal(t, uint8(rdm.SensorHumidity), humidity.Type)
	assert.Equal(t, uint8(rdm.SensorTemperature), sensors.Get(1).Definition().Type)
	assert.Equal(t, uint8(rdm.UnitsLux), sensors.Get(2).Definition().Unit)

	assert.Equal(t, int16(ChipHTU21D)*100+1, sensors.Get(1).Value().Present)
	assert.Equal(t, []uint8{0x40}, bus.reads)
}

func TestSensors_SetWithoutBus(t *testing.T) {
	p := &SensorsParams{Sensors: []SensorEntry{
		{Type: ChipMCP9808, Address: 0x18},
		{Type: ChipThermal, Zone: 0},
	}}

	var sensors device.Sensors
	err := p.Set(&sensors, nil)

	assert.ErrorIs(t, err, ErrNoSensorBus)
	require.Equal(t, uint8(1), sensors.Count())
	assert.Equal(t, "CPU temperature", sensors.Get(0).Definition().Description)
}

func TestSensors_SI7021SharesHTU21D(t *testing.T) {
	assert.Equal(t, SensorChannels(ChipHTU21D), SensorChannels(ChipSI7021))
	assert.Len(t, SensorChannels(ChipMCP3424), 4)
	assert.Empty(t, SensorChannels(chipUndefined))
}

// ============================================================
// subdevices.yaml
// ============================================================

type write struct {
	chipSelect uint8
	address    uint8
	values     []byte
}

type fakeWriter struct {
	writes []write
	err    error
}

func (w *fakeWriter) WriteChannels(chipSelect, address uint8, _ uint32, values []byte) error {
	w.writes = append(w.writes, write{chipSelect, address, append([]byte(nil), values...)})
	return w.err
}

func TestSubDeviceType_Footprints(t *testing.T) {
	tests := []struct {
		name      string
		footprint uint16
		digital   bool
	}{
		{"BW7FETS", 7, true},
		{"BWDIMMER", 1, false},
		{"BWDIO", 7, true},
		{"BWLCD", 4, false},
		{"BWRELAY", 2, true},
		{"MCP23S08", 8, true},
		{"MCP23S17", 16, true},
		{"MCP4822", 2, false},
		{"mcp4902", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, ok := ParseSubDeviceType(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.footprint, typ.Footprint())
			assert.Equal(t, tt.digital, typ.Digital())
		})
	}

	_, ok := ParseSubDeviceType("WS2812")
	assert.False(t, ok)
}

func TestSubDevices_LoadDefaults(t *testing.T) {
	dir := writeParams(t, SubDevicesFile, `
subdevices:
  - type: BWDIMMER
    chip_select: 0
  - type: MCP4822
    chip_select: 1
    dmx_start_address: 10
    speed_hz: 1000000
`)

	p, err := LoadSubDevices(dir)
	require.NoError(t, err)
	require.Len(t, p.SubDevices, 2)

	assert.Equal(t, Hex8(0x9A), p.SubDevices[0].Address)
	assert.Equal(t, uint32(100000), p.SubDevices[0].SpeedHz)
	assert.Equal(t, uint16(device.StartAddressDefault), p.SubDevices[0].DmxStartAddress)
	assert.Equal(t, uint16(10), p.SubDevices[1].DmxStartAddress)
	assert.Equal(t, uint32(1000000), p.SubDevices[1].SpeedHz)
}

func TestSubDevices_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"start address", "subdevices:\n  - {type: MCP23S17, chip_select: 0, dmx_start_address: 500}\n", "does not fit"},
		{"same chip", "subdevices:\n  - {type: BWDIO, chip_select: 0}\n  - {type: BWDIO, chip_select: 0}\n", "used by sub-device 1"},
		{"unknown", "subdevices:\n  - {type: BWMOTOR, chip_select: 0}\n", "unknown sub-device type"},
		{"too many", "subdevices:\n" +
			"  - {type: BWDIMMER, chip_select: 0}\n  - {type: BWDIMMER, chip_select: 1}\n" +
			"  - {type: BWDIMMER, chip_select: 2}\n  - {type: BWDIMMER, chip_select: 3}\n" +
			"  - {type: BWDIMMER, chip_select: 4}\n  - {type: BWDIMMER, chip_select: 5}\n" +
			"  - {type: BWDIMMER, chip_select: 6}\n  - {type: BWDIMMER, chip_select: 7}\n" +
			"  - {type: BWDIMMER, chip_select: 8}\n", "at most 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSubDevices(writeParams(t, SubDevicesFile, tt.content))
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestSubDevices_Set(t *testing.T) {
	p := &SubDevicesParams{SubDevices: []SubDeviceEntry{
		{Type: SubDeviceBWRelay, ChipSelect: 0, Address: 0x8E, DmxStartAddress: 5},
		{Type: SubDeviceMCP4902, ChipSelect: 1, DmxStartAddress: 7},
	}}
	w := &fakeWriter{}

	var subs device.SubDevices
	require.NoError(t, p.Set(&subs, w))
	require.Equal(t, uint16(2), subs.Count())

	relay := subs.Get(1)
	assert.Equal(t, "BW Relay", relay.Label())
	assert.Equal(t, uint16(2), relay.DmxFootprint())
	assert.Equal(t, uint16(5), relay.DmxStartAddress())

	universe := make([]byte, 512)
	universe[4], universe[5] = 0x7F, 0x80
	universe[6], universe[7] = 0x12, 0x34
	subs.Start()
	subs.SetData(universe)

	require.Len(t, w.writes, 2)
	assert.Equal(t, write{0, 0x8E, []byte{0x00, 0xFF}}, w.writes[0])
	assert.Equal(t, write{1, 0, []byte{0x12, 0x34}}, w.writes[1])

	// unchanged values are not written again
	subs.SetData(universe)
	assert.Len(t, w.writes, 2)

	subs.Stop()
	require.Len(t, w.writes, 4)
	assert.Equal(t, []byte{0, 0}, w.writes[2].values)
}

func TestSubDevices_SetWithoutWriter(t *testing.T) {
	p := &SubDevicesParams{SubDevices: []SubDeviceEntry{{Type: SubDeviceBWLCD}}}

	var subs device.SubDevices
	err := p.Set(&subs, nil)
	assert.ErrorIs(t, err, ErrNoChannelWriter)
	assert.Zero(t, subs.Count())

	assert.NoError(t, (&SubDevicesParams{}).Set(&subs, nil))
}

func TestChannelOutput_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("spi: busy")}
	out := NewChannelOutput(SubDeviceEntry{Type: SubDeviceBWDimmer}, w)

	out.SetData(0, []byte{0x55}, true)
	assert.EqualError(t, out.Err(), "spi: busy")
	assert.Equal(t, []byte{0x55}, out.Values())

	// latched only while discovery is running
	out.SetData(0, []byte{0x66}, false)
	assert.Len(t, w.writes, 1)
}

// ============================================================
// pixel.yaml
// ============================================================

func TestPixel_MissingFile(t *testing.T) {
	p, err := LoadPixel(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, pixel.DefaultConfig(), p.Apply(pixel.DefaultConfig()))
	_, ok := p.StartAddress()
	assert.False(t, ok)
}

func TestPixel_Apply(t *testing.T) {
	dir := writeParams(t, PixelFile, "type: SK6812W\ncount: 200\ngrouping_count: 4\ndmx_start_address: 33\n")

	p, err := LoadPixel(dir)
	require.NoError(t, err)

	cfg := p.Apply(pixel.DefaultConfig())
	assert.Equal(t, pixel.TypeSK6812W, cfg.Type)
	assert.Equal(t, uint16(pixel.MaxCountRGBW), cfg.Count)
	assert.Equal(t, uint16(4), cfg.GroupingCount)
	assert.Equal(t, pixel.TypeSK6812W.DefaultMap(), cfg.Map)

	addr, ok := p.StartAddress()
	assert.True(t, ok)
	assert.Equal(t, uint16(33), addr)
}

func TestPixel_MapOverridesTypeDefault(t *testing.T) {
	dir := writeParams(t, PixelFile, "type: WS2801\nmap: BGR\n")

	p, err := LoadPixel(dir)
	require.NoError(t, err)
	assert.Equal(t, pixel.MapBGR, p.Apply(pixel.DefaultConfig()).Map)
}

func TestPixel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"type", "type: NEOPIXEL\n", "unknown pixel type"},
		{"map", "map: RGBW\n", "unknown pixel map"},
		{"start address", "dmx_start_address: 0\n", "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPixel(writeParams(t, PixelFile, tt.content))
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestPixel_BuilderRoundTrip(t *testing.T) {
	cfg := pixel.Config{Type: pixel.TypeAPA102, Count: 60, GroupingCount: 2, Map: pixel.MapRGB, TestPattern: 3}

	out, err := PixelParamsFor(cfg, 100).Builder()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), PixelFile)
	require.NoError(t, os.WriteFile(path, out, 0o600))
	p, err := LoadPixelFile(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, p.Apply(pixel.DefaultConfig()))
	addr, _ := p.StartAddress()
	assert.Equal(t, uint16(100), addr)
}
