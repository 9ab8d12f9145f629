// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// recordingStore counts persistence calls
type recordingStore struct {
	labels        []string
	personalities []uint8
	addresses     []uint16
	categories    []uint16
	erased        int
}

func (s *recordingStore) SaveLabel(label string)       { s.labels = append(s.labels, label) }
func (s *recordingStore) SaveProductCategory(c uint16) { s.categories = append(s.categories, c) }
func (s *recordingStore) SaveProductDetail(uint16)     {}
func (s *recordingStore) SavePersonality(p uint8)      { s.personalities = append(s.personalities, p) }
func (s *recordingStore) SaveDmxStartAddress(a uint16) { s.addresses = append(s.addresses, a) }
func (s *recordingStore) SetFactoryDefaults()          { s.erased++ }

type recordingListener struct {
	outputs []DmxOutput
	address int
}

func (l *recordingListener) PersonalityUpdate(out DmxOutput) { l.outputs = append(l.outputs, out) }
func (l *recordingListener) DmxStartAddressUpdate()          { l.address++ }

type labelParams string

func (p labelParams) Set(d *Device) { d.SetLabel(string(p)) }

type restoreParams struct {
	personality uint8
	address     uint16
}

func (p restoreParams) Set(*Device) {}

func (p restoreParams) SetResponder(r *DeviceResponder) {
	r.SetPersonalityCurrent(rdm.RootDevice, p.personality)
	r.SetDmxStartAddress(rdm.RootDevice, p.address)
}

var testSerial = [4]byte{0x12, 0x34, 0x56, 0x78}

func newTestResponder(t *testing.T, store Store, outputs ...DmxOutput) *DeviceResponder {
	t.Helper()
	personalities := make([]*Personality, len(outputs))
	for i, out := range outputs {
		personalities[i] = NewPersonality("mode", out)
	}
	return NewDeviceResponder(ResponderConfig{
		Device: Config{ManufacturerID: 0x7FF0, ManufacturerName: "Thermoquad", Serial: testSerial},
	}, personalities, store)
}

// ============================================================
// Device identity and label
// ============================================================

func TestUIDStability(t *testing.T) {
	d := NewDevice(Config{ManufacturerID: 0x7FF0, Serial: testSerial}, nil)

	want := rdm.UID{0x7F, 0xF0, 0x12, 0x34, 0x56, 0x78}
	for i := 0; i < 3; i++ {
		if got := d.UID(); got != want {
			t.Fatalf("call %d: UID = %s, want %s", i, got, want)
		}
	}
	d.Init()
	d.SetLabel("changed")
	if got := d.UID(); got != want {
		t.Errorf("UID changed after Init: %s", got)
	}
}

func TestDefaultLabelAndCategory(t *testing.T) {
	d := NewDevice(Config{}, nil)

	if d.Label() != DefaultLabel {
		t.Errorf("Label() = %q, want %q", d.Label(), DefaultLabel)
	}
	if d.ProductCategory() != rdm.ProductCategoryOther {
		t.Errorf("ProductCategory() = 0x%04X", d.ProductCategory())
	}
	if d.ProductDetail() != rdm.ProductDetailOther {
		t.Errorf("ProductDetail() = 0x%04X", d.ProductDetail())
	}
}

func TestSetLabelBeforeAndAfterInit(t *testing.T) {
	store := &recordingStore{}
	d := NewDevice(Config{Label: "factory"}, store)

	d.SetLabel("configured factory")
	if d.FactoryLabel() != "configured factory" || d.Label() != "configured factory" {
		t.Fatalf("pre-Init SetLabel: factory=%q live=%q", d.FactoryLabel(), d.Label())
	}
	if len(store.labels) != 0 {
		t.Fatalf("pre-Init SetLabel persisted %v", store.labels)
	}

	d.Init()
	d.SetLabel("live")
	if d.FactoryLabel() != "configured factory" {
		t.Errorf("post-Init SetLabel changed factory label to %q", d.FactoryLabel())
	}
	if d.Label() != "live" {
		t.Errorf("Label() = %q, want live", d.Label())
	}
	if len(store.labels) != 1 || store.labels[0] != "live" {
		t.Errorf("persisted labels = %v", store.labels)
	}
}

func TestSetLabelTruncates(t *testing.T) {
	d := NewDevice(Config{}, nil)
	d.Init()

	long := "0123456789012345678901234567890123456789"
	d.SetLabel(long)
	if len(d.Label()) != LabelMaxLength {
		t.Errorf("len(Label()) = %d, want %d", len(d.Label()), LabelMaxLength)
	}
}

func TestInitAppliesParamsInOrder(t *testing.T) {
	d := NewDevice(Config{}, nil)
	d.Init(labelParams("first"), labelParams("second"))

	if d.Label() != "second" {
		t.Errorf("Label() = %q, want second", d.Label())
	}
	if d.FactoryLabel() != DefaultLabel {
		t.Errorf("params changed the factory label to %q", d.FactoryLabel())
	}
}

func TestInitTwicePanics(t *testing.T) {
	d := NewDevice(Config{}, nil)
	d.Init()

	defer func() {
		if recover() == nil {
			t.Error("second Init did not panic")
		}
	}()
	d.Init()
}

// ============================================================
// Factory defaults and checksums
// ============================================================

func TestFactoryDefaultsRoundTrip(t *testing.T) {
	d := NewDevice(Config{}, nil)
	d.Init()

	if !d.FactoryDefaults() {
		t.Fatal("FactoryDefaults() false after Init")
	}
	d.SetLabel("something else")
	if d.FactoryDefaults() {
		t.Fatal("FactoryDefaults() true after label change")
	}
	d.SetFactoryDefaults()
	if !d.FactoryDefaults() {
		t.Fatal("FactoryDefaults() false after SetFactoryDefaults")
	}
}

func TestLabelChecksum(t *testing.T) {
	tests := []struct {
		label string
		want  uint16
	}{
		{"", 0},
		{"A", 1 + 'A'},
		{"RDM", 3 + 'R' + 'D' + 'M'},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				if got := LabelChecksum(tt.label); got != tt.want {
					t.Errorf("LabelChecksum(%q) = %d, want %d", tt.label, got, tt.want)
				}
			}
		})
	}
}

func TestLabelChecksumWraps(t *testing.T) {
	label := make([]byte, 300)
	for i := range label {
		label[i] = 0xFF
	}
	const want = (300 + 300*0xFF) & 0xFFFF
	if got := LabelChecksum(string(label)); got != want {
		t.Errorf("LabelChecksum = %d, want %d", got, want)
	}
}

func TestResponderFactoryDefaultsLatch(t *testing.T) {
	store := &recordingStore{}
	r := newTestResponder(t, store, NewFootprint(12, rdm.SlotIntensity))
	r.Init()

	if !r.FactoryDefaults() {
		t.Fatal("FactoryDefaults() false after Init")
	}

	r.SetDmxStartAddress(rdm.RootDevice, 100)
	if r.FactoryDefaults() {
		t.Fatal("FactoryDefaults() true after start address change")
	}

	// The latch stays false even when the state is changed back
	r.SetDmxStartAddress(rdm.RootDevice, 1)
	if r.FactoryDefaults() {
		t.Fatal("latch reset without SetFactoryDefaults")
	}

	r.SetFactoryDefaults()
	if !r.FactoryDefaults() {
		t.Fatal("FactoryDefaults() false after SetFactoryDefaults")
	}
	if store.erased != 1 {
		t.Errorf("store erased %d times, want 1", store.erased)
	}
}

// ============================================================
// Personalities
// ============================================================

func TestPersonalityBounds(t *testing.T) {
	outputs := []DmxOutput{
		NewFootprint(3, rdm.SlotIntensity),
		nil,
		NewFootprint(7, rdm.SlotIntensity),
	}
	r := newTestResponder(t, nil, outputs...)
	r.Init()

	for p := uint8(1); p <= r.PersonalityCount(rdm.RootDevice); p++ {
		r.SetPersonalityCurrent(rdm.RootDevice, p)
		if got := r.PersonalityCurrent(rdm.RootDevice); got != p {
			t.Fatalf("PersonalityCurrent() = %d, want %d", got, p)
		}

		out := outputs[p-1]
		wantFootprint, wantAddress := uint16(0), uint16(StartAddressNone)
		if out != nil {
			wantFootprint, wantAddress = out.DmxFootprint(), out.DmxStartAddress()
		}
		if got := r.DmxFootprint(rdm.RootDevice); got != wantFootprint {
			t.Errorf("personality %d: footprint = %d, want %d", p, got, wantFootprint)
		}
		if got := r.DmxStartAddress(rdm.RootDevice); got != wantAddress {
			t.Errorf("personality %d: start address = %d, want %d", p, got, wantAddress)
		}
	}
}

func TestPersonalityOutOfRangePanics(t *testing.T) {
	for _, p := range []uint8{0, 3} {
		r := newTestResponder(t, nil, NewFootprint(3, 0), nil)
		r.Init()

		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("SetPersonalityCurrent(%d) did not panic", p)
				}
			}()
			r.SetPersonalityCurrent(rdm.RootDevice, p)
		}()
	}
}

func TestPersonalityUpdateListener(t *testing.T) {
	store := &recordingStore{}
	out := NewFootprint(3, 0)
	r := newTestResponder(t, store, out, nil)
	l := &recordingListener{}
	r.SetListener(l)
	r.Init()

	r.SetPersonalityCurrent(rdm.RootDevice, 2)
	r.SetPersonalityCurrent(rdm.RootDevice, 1)

	if len(l.outputs) != 2 || l.outputs[0] != nil || l.outputs[1] != DmxOutput(out) {
		t.Errorf("listener outputs = %v", l.outputs)
	}
	if len(store.personalities) != 2 || store.personalities[1] != 1 {
		t.Errorf("persisted personalities = %v", store.personalities)
	}
}

func TestPersonalityDescriptionTruncated(t *testing.T) {
	p := NewPersonality("0123456789012345678901234567890123456789", nil)
	if len(p.Description()) != PersonalityDescriptionMaxLength {
		t.Errorf("len(Description()) = %d", len(p.Description()))
	}
	if p.DmxFootprint() != 0 {
		t.Errorf("nil output footprint = %d", p.DmxFootprint())
	}
	if _, ok := p.SlotInfo(0); ok {
		t.Error("nil output reported slot info")
	}
}

func TestFactoryStartAddressWithoutOutput(t *testing.T) {
	r := newTestResponder(t, nil, nil, NewFootprint(3, 0))
	r.Init()

	info := r.DeviceInfo(rdm.RootDevice)
	if info.DmxFootprint != 0 || info.DmxStartAddress != StartAddressNone {
		t.Errorf("footprint/address = %d/0x%04X", info.DmxFootprint, info.DmxStartAddress)
	}
}

// ============================================================
// DMX start address
// ============================================================

func TestDmxStartAddressValidation(t *testing.T) {
	tests := []struct {
		name      string
		footprint uint16
		address   uint16
		ok        bool
	}{
		{"zero", 1, 0, false},
		{"above universe", 1, 513, false},
		{"first slot", 1, 1, true},
		{"last slot", 1, 512, true},
		{"footprint fits", 12, 501, true},
		{"footprint overflows", 12, 502, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &recordingListener{}
			r := newTestResponder(t, nil, NewFootprint(tt.footprint, 0))
			r.SetListener(l)
			r.Init()
			before := r.DmxStartAddress(rdm.RootDevice)

			ok := r.SetDmxStartAddress(rdm.RootDevice, tt.address)
			if ok != tt.ok {
				t.Fatalf("SetDmxStartAddress(%d) = %v, want %v", tt.address, ok, tt.ok)
			}

			got := r.DmxStartAddress(rdm.RootDevice)
			switch {
			case tt.ok && got != tt.address:
				t.Errorf("start address = %d, want %d", got, tt.address)
			case !tt.ok && got != before:
				t.Errorf("rejected address changed state to %d", got)
			}

			wantHooks := 0
			if tt.ok {
				wantHooks = 1
			}
			if l.address != wantHooks {
				t.Errorf("DmxStartAddressUpdate called %d times, want %d", l.address, wantHooks)
			}
		})
	}
}

func TestDmxStartAddressPersisted(t *testing.T) {
	store := &recordingStore{}
	r := newTestResponder(t, store, NewFootprint(4, 0))
	r.Init()

	r.SetDmxStartAddress(rdm.RootDevice, 42)
	if len(store.addresses) != 1 || store.addresses[0] != 42 {
		t.Errorf("persisted addresses = %v", store.addresses)
	}
}

func TestInitRestoresResponderParams(t *testing.T) {
	r := newTestResponder(t, nil, NewFootprint(3, 0), NewFootprint(6, 0))
	r.Init(labelParams("restored"), restoreParams{personality: 2, address: 10})

	if r.Label() != "restored" {
		t.Errorf("Label() = %q", r.Label())
	}
	if r.PersonalityCurrent(rdm.RootDevice) != 2 || r.DmxStartAddress(rdm.RootDevice) != 10 {
		t.Errorf("personality/address = %d/%d", r.PersonalityCurrent(rdm.RootDevice), r.DmxStartAddress(rdm.RootDevice))
	}
}

// ============================================================
// End to end
// ============================================================

func TestPersonalitySwitchScenario(t *testing.T) {
	r := newTestResponder(t, nil, NewFootprint(12, rdm.SlotColorAddRed), nil)
	r.Init()

	if got := r.DmxFootprint(rdm.RootDevice); got != 12 {
		t.Fatalf("personality 1 footprint = %d, want 12", got)
	}

	r.SetPersonalityCurrent(rdm.RootDevice, 2)
	if got := r.DmxFootprint(rdm.RootDevice); got != 0 {
		t.Errorf("personality 2 footprint = %d, want 0", got)
	}
	if got := r.DmxStartAddress(rdm.RootDevice); got != StartAddressNone {
		t.Errorf("personality 2 start address = 0x%04X, want 0xFFFF", got)
	}
	if r.SetDmxStartAddress(rdm.RootDevice, 100) {
		t.Error("start address accepted without an output")
	}

	r.SetPersonalityCurrent(rdm.RootDevice, 1)
	if !r.SetDmxStartAddress(rdm.RootDevice, 100) {
		t.Fatal("SetDmxStartAddress(100) rejected")
	}

	info := r.DeviceInfo(rdm.RootDevice)
	if info.DmxFootprint != 12 || info.DmxStartAddress != 100 {
		t.Errorf("DEVICE_INFO footprint/address = %d/%d, want 12/100", info.DmxFootprint, info.DmxStartAddress)
	}
	if info.CurrentPersonality != 1 || info.PersonalityCount != 2 {
		t.Errorf("DEVICE_INFO personality = %d/%d", info.CurrentPersonality, info.PersonalityCount)
	}
	if info.ProtocolVersion != rdm.ProtocolVersion {
		t.Errorf("protocol version = 0x%04X", info.ProtocolVersion)
	}
}

// ============================================================
// Sub-devices
// ============================================================

func TestSubDeviceRouting(t *testing.T) {
	r := newTestResponder(t, nil, NewFootprint(3, 0))
	sd := NewSubDevice("relay", 20,
		NewPersonality("2 channel", NewFootprint(2, 0)),
		NewPersonality("4 channel", NewFootprint(4, 0)),
	)
	if !r.SubDevices().Add(sd) {
		t.Fatal("Add failed")
	}
	r.Init()

	info := r.DeviceInfo(1)
	if info.DmxFootprint != 2 || info.DmxStartAddress != 20 || info.PersonalityCount != 2 {
		t.Errorf("sub-device info = %+v", info)
	}
	if info.SubDeviceCount != 1 {
		t.Errorf("sub-device count = %d", info.SubDeviceCount)
	}

	r.SetPersonalityCurrent(1, 2)
	if r.DmxFootprint(1) != 4 || r.PersonalityCurrent(1) != 2 {
		t.Errorf("sub-device personality switch: footprint=%d current=%d", r.DmxFootprint(1), r.PersonalityCurrent(1))
	}
	if r.PersonalityCurrent(rdm.RootDevice) != 1 {
		t.Error("sub-device switch changed the root personality")
	}

	if !r.SetDmxStartAddress(1, 509) {
		t.Error("sub-device address 509 rejected")
	}
	if r.SetDmxStartAddress(1, 510) {
		t.Error("sub-device address 510 accepted with footprint 4")
	}

	r.SetSubDeviceLabel(1, "left relay")
	if r.SubDeviceLabel(1) != "left relay" || r.Label() == "left relay" {
		t.Errorf("labels: sub=%q root=%q", r.SubDeviceLabel(1), r.Label())
	}

	if r.FactoryDefaults() {
		t.Error("FactoryDefaults() true after sub-device changes")
	}
	r.SetFactoryDefaults()
	if sd.Label() != "relay" || sd.DmxStartAddress() != 20 || sd.PersonalityCurrent() != 1 {
		t.Errorf("sub-device after reset: %q %d %d", sd.Label(), sd.DmxStartAddress(), sd.PersonalityCurrent())
	}
	if !r.FactoryDefaults() {
		t.Error("FactoryDefaults() false after reset")
	}
}

func TestSubDevicesCapacity(t *testing.T) {
	var c SubDevices
	for i := 0; i < MaxSubDevices; i++ {
		if !c.Add(NewSubDevice("", 1, NewPersonality("", NewFootprint(1, 0)))) {
			t.Fatalf("Add %d failed", i)
		}
	}
	if c.Add(NewSubDevice("", 1, NewPersonality("", NewFootprint(1, 0)))) {
		t.Error("Add beyond capacity succeeded")
	}
	if c.Get(0) != nil || c.Get(MaxSubDevices+1) != nil {
		t.Error("Get out of range returned a sub-device")
	}
}

func TestSubDeviceDataWindow(t *testing.T) {
	out := NewFootprint(3, 0)
	sd := NewSubDevice("", 5, NewPersonality("", out))

	data := make([]byte, DmxUniverseSize)
	for i := range data {
		data[i] = byte(i + 1)
	}
	sd.Start()
	sd.SetData(data)

	want := []byte{5, 6, 7}
	for i, b := range want {
		if out.Data()[i] != b {
			t.Fatalf("window = %v, want %v", out.Data(), want)
		}
	}
	if !out.Running() {
		t.Error("output not running after Start")
	}
}

func TestUnknownSubDevice(t *testing.T) {
	r := newTestResponder(t, nil, NewFootprint(3, 0))
	r.Init()

	if r.SetDmxStartAddress(4, 10) {
		t.Error("unknown sub-device accepted an address")
	}
	if r.Personality(4, 1) != nil {
		t.Error("unknown sub-device returned a personality")
	}
	if r.DmxStartAddress(4) != StartAddressNone {
		t.Error("unknown sub-device reported a start address")
	}
}

// ============================================================
// Sensors
// ============================================================

type seqReader struct {
	values []int16
	err    error
}

func (r *seqReader) ReadSensor() (int16, error) {
	if r.err != nil {
		return 0, r.err
	}
	v := r.values[0]
	if len(r.values) > 1 {
		r.values = r.values[1:]
	}
	return v, nil
}

func TestSensorValueTracking(t *testing.T) {
	s := NewSensor(SensorDefinition{Type: rdm.SensorTemperature}, &seqReader{values: []int16{20, 25, 15, 18}})

	for i := 0; i < 3; i++ {
		s.Value()
	}
	s.Record()

	v := s.Value()
	if v.Present != 18 || v.Lowest != 15 || v.Highest != 25 || v.Recorded != 18 {
		t.Errorf("value = %+v", v)
	}

	s.Reset()
	v = s.Value()
	if v.Lowest != 18 || v.Highest != 18 || v.Recorded != 18 {
		t.Errorf("after reset = %+v", v)
	}
}

func TestSensorReadFailureKeepsValue(t *testing.T) {
	r := &seqReader{values: []int16{30}}
	s := NewSensor(SensorDefinition{}, r)
	s.Value()

	r.err = errors.New("bus error")
	if v := s.Value(); v.Present != 30 {
		t.Errorf("Present = %d after failed read, want 30", v.Present)
	}
}

func TestSensorsAddressing(t *testing.T) {
	var c Sensors
	c.Add(NewSensor(SensorDefinition{}, ConstantReader(1)))
	c.Add(NewSensor(SensorDefinition{}, ConstantReader(2)))

	if c.Count() != 2 {
		t.Fatalf("Count() = %d", c.Count())
	}
	if c.Get(2) != nil {
		t.Error("Get(2) returned a sensor")
	}
	if !c.Record(rdm.SensorAll) {
		t.Error("Record(all) failed")
	}
	if c.Get(1).Value().Recorded != 2 {
		t.Errorf("recorded = %d", c.Get(1).Value().Recorded)
	}
	if c.Reset(5) {
		t.Error("Reset of unknown sensor succeeded")
	}
}

func TestThermalZone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(path, []byte("42500\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := ThermalZone{Path: path}.ReadSensor()
	if err != nil {
		t.Fatalf("ReadSensor: %v", err)
	}
	if v != 42 {
		t.Errorf("ReadSensor() = %d, want 42", v)
	}

	if _, err := (ThermalZone{Path: filepath.Join(t.TempDir(), "missing")}).ReadSensor(); err == nil {
		t.Error("missing zone read succeeded")
	}
}

// ============================================================
// Language and identify
// ============================================================

func TestLanguage(t *testing.T) {
	r := newTestResponder(t, nil, nil)
	if r.Language() != DefaultLanguage {
		t.Errorf("Language() = %q", r.Language())
	}
	if r.SetLanguage("de") {
		t.Error("unsupported language accepted")
	}
}

func TestIdentifyMode(t *testing.T) {
	r := newTestResponder(t, nil, nil)
	if r.SetIdentifyMode(0x10) {
		t.Error("invalid identify mode accepted")
	}
	if !r.SetIdentifyMode(IdentifyModeLoud) || r.IdentifyMode() != IdentifyModeLoud {
		t.Error("loud identify mode not set")
	}
	r.SetIdentify(true)
	if !r.Identify() {
		t.Error("identify not on")
	}
}
