// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"
	"sync/atomic"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// DefaultPersonality is the personality selected at factory defaults
const DefaultPersonality = 1

// DefaultLanguage is the RDM LANGUAGE code reported until changed
const DefaultLanguage = "en"

// Identify modes
const (
	IdentifyModeQuiet = 0x00
	IdentifyModeLoud  = 0xFF
)

// Listener is told about root personality and start address changes
type Listener interface {
	// PersonalityUpdate receives the new output, nil when the personality
	// has no footprint
	PersonalityUpdate(output DmxOutput)
	DmxStartAddressUpdate()
}

type nopListener struct{}

func (nopListener) PersonalityUpdate(DmxOutput) {}
func (nopListener) DmxStartAddressUpdate()      {}

// ResponderParams restores responder state during Init, after the
// device params have been applied
type ResponderParams interface {
	Params
	SetResponder(r *DeviceResponder)
}

// ResponderConfig holds the static DEVICE_INFO fields
type ResponderConfig struct {
	Device               Config
	DeviceModel          uint16
	DeviceModelDesc      string
	SoftwareVersion      uint32
	SoftwareVersionLabel string
	CurrentPersonality   uint8
	ProductDetailIDs     []uint16
	SupportedLanguages   []string
}

// DeviceResponder is the RDM root device model. Every query is routed by
// sub-device number between the root and its sub-devices.
type DeviceResponder struct {
	*Device

	personalities []*Personality
	info          rdm.DeviceInfo

	subDevices *SubDevices
	sensors    *Sensors

	listener Listener

	deviceModelDesc      string
	softwareVersionLabel string
	productDetailIDs     []uint16
	languages            []string
	language             string

	// identify is read by output drivers outside the serve loop
	identify     atomic.Bool
	identifyMode uint8

	isFactoryDefaults             bool
	checksum                      uint16
	dmxStartAddressFactoryDefault uint16
}

// NewDeviceResponder creates the root device model. It panics without
// personalities or when the current personality is out of range.
func NewDeviceResponder(cfg ResponderConfig, personalities []*Personality, store Store) *DeviceResponder {
	if len(personalities) == 0 || len(personalities) > 0xFF {
		panic(fmt.Sprintf("device: invalid personality count %d", len(personalities)))
	}

	current := cfg.CurrentPersonality
	if current == 0 {
		current = DefaultPersonality
	}
	if int(current) > len(personalities) {
		panic(fmt.Sprintf("device: personality %d out of range [1, %d]", current, len(personalities)))
	}

	languages := cfg.SupportedLanguages
	if len(languages) == 0 {
		languages = []string{DefaultLanguage}
	}

	r := &DeviceResponder{
		Device:                        NewDevice(cfg.Device, store),
		personalities:                 personalities,
		subDevices:                    &SubDevices{},
		sensors:                       &Sensors{},
		listener:                      nopListener{},
		deviceModelDesc:               truncateLabel(cfg.DeviceModelDesc),
		softwareVersionLabel:          truncateLabel(cfg.SoftwareVersionLabel),
		productDetailIDs:              cfg.ProductDetailIDs,
		languages:                     languages,
		language:                      languages[0],
		isFactoryDefaults:             true,
		dmxStartAddressFactoryDefault: StartAddressDefault,
	}

	r.info = rdm.DeviceInfo{
		DeviceModel:        cfg.DeviceModel,
		SoftwareVersion:    cfg.SoftwareVersion,
		CurrentPersonality: current,
		PersonalityCount:   uint8(len(personalities)),
	}

	if personalities[current-1].Output() == nil {
		r.dmxStartAddressFactoryDefault = StartAddressNone
	}

	return r
}

// SetListener replaces the change listener. nil restores the no-op.
func (r *DeviceResponder) SetListener(l Listener) {
	if l == nil {
		l = nopListener{}
	}
	r.listener = l
}

// SubDevices returns the sub-device collection. Add to it before Init.
func (r *DeviceResponder) SubDevices() *SubDevices {
	return r.subDevices
}

// Sensors returns the sensor collection. Add to it before Init.
func (r *DeviceResponder) Sensors() *Sensors {
	return r.sensors
}

// Init initializes the device, applies params and fills DEVICE_INFO
func (r *DeviceResponder) Init(params ...Params) {
	r.Device.Init(params...)

	r.info.ProtocolVersion = rdm.ProtocolVersion
	r.info.ProductCategory = r.ProductCategory()

	if out := r.personalities[r.info.CurrentPersonality-1].Output(); out == nil {
		r.info.DmxFootprint = 0
		r.info.DmxStartAddress = r.dmxStartAddressFactoryDefault
	} else {
		r.info.DmxFootprint = out.DmxFootprint()
		r.info.DmxStartAddress = out.DmxStartAddress()
	}

	r.info.SubDeviceCount = r.subDevices.Count()
	r.info.SensorCount = r.sensors.Count()

	r.checksum = r.calculateChecksum()

	for _, p := range params {
		if rp, ok := p.(ResponderParams); ok {
			rp.SetResponder(r)
		}
	}
}

// DeviceInfo returns the DEVICE_INFO record of the root or a sub-device.
// Unknown sub-devices get the root record.
func (r *DeviceResponder) DeviceInfo(subDevice uint16) rdm.DeviceInfo {
	info := r.info
	info.ProductCategory = r.ProductCategory()

	if subDevice == rdm.RootDevice {
		return info
	}

	if sd := r.subDevices.Get(subDevice); sd != nil {
		sub := sd.Info()
		info.DmxFootprint = sub.DmxFootprint
		info.CurrentPersonality = sub.CurrentPersonality
		info.PersonalityCount = sub.PersonalityCount
		info.DmxStartAddress = sub.DmxStartAddress
		info.SensorCount = sub.SensorCount
	}
	return info
}

// SubDeviceLabel returns the label of the root or a sub-device
func (r *DeviceResponder) SubDeviceLabel(subDevice uint16) string {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.Label()
		}
		return ""
	}
	return r.Label()
}

// SetSubDeviceLabel sets the label of the root or a sub-device
func (r *DeviceResponder) SetSubDeviceLabel(subDevice uint16, label string) {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			sd.SetLabel(label)
		}
		return
	}
	r.SetLabel(label)
}

// SetFactoryDefaults restores the factory state of the root, its
// personality and start address and every sub-device, then erases the
// store.
func (r *DeviceResponder) SetFactoryDefaults() {
	r.Device.SetFactoryDefaults()

	r.SetPersonalityCurrent(rdm.RootDevice, DefaultPersonality)
	r.SetDmxStartAddress(rdm.RootDevice, r.dmxStartAddressFactoryDefault)

	r.subDevices.SetFactoryDefaults()

	r.checksum = r.calculateChecksum()
	r.isFactoryDefaults = true

	r.store.SetFactoryDefaults()
}

// FactoryDefaults reports whether the device is still at factory
// defaults. Once a difference is seen the answer stays false until the
// next SetFactoryDefaults.
func (r *DeviceResponder) FactoryDefaults() bool {
	if !r.isFactoryDefaults {
		return false
	}

	switch {
	case !r.Device.FactoryDefaults(),
		r.checksum != r.calculateChecksum(),
		!r.subDevices.FactoryDefaults():
		r.isFactoryDefaults = false
	}

	return r.isFactoryDefaults
}

func (r *DeviceResponder) Language() string {
	return r.language
}

// SetLanguage selects one of the supported languages
func (r *DeviceResponder) SetLanguage(code string) bool {
	for _, l := range r.languages {
		if l == code {
			r.language = code
			return true
		}
	}
	return false
}

// Languages returns the supported language codes
func (r *DeviceResponder) Languages() []string {
	return r.languages
}

func (r *DeviceResponder) DeviceModelDescription() string {
	return r.deviceModelDesc
}

func (r *DeviceResponder) SoftwareVersionLabel() string {
	return r.softwareVersionLabel
}

func (r *DeviceResponder) ProductDetailIDs() []uint16 {
	if len(r.productDetailIDs) == 0 {
		return []uint16{r.ProductDetail()}
	}
	return r.productDetailIDs
}

// SetDmxStartAddress validates address and routes it to a sub-device or
// the root output. Invalid addresses are ignored. It reports whether the
// address was committed.
func (r *DeviceResponder) SetDmxStartAddress(subDevice, address uint16) bool {
	if address == 0 || address > DmxUniverseSize {
		return false
	}

	if subDevice != rdm.RootDevice {
		sd := r.subDevices.Get(subDevice)
		return sd != nil && sd.SetDmxStartAddress(address)
	}

	out := r.personalities[r.info.CurrentPersonality-1].Output()
	if out == nil || !out.SetDmxStartAddress(address) {
		return false
	}

	r.info.DmxStartAddress = address
	if r.initialized {
		r.store.SaveDmxStartAddress(address)
	}
	r.listener.DmxStartAddressUpdate()
	return true
}

// DmxStartAddress returns the start address of the root or a sub-device
func (r *DeviceResponder) DmxStartAddress(subDevice uint16) uint16 {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.DmxStartAddress()
		}
		return StartAddressNone
	}
	return r.info.DmxStartAddress
}

// DmxFootprint returns the footprint of the root or a sub-device
func (r *DeviceResponder) DmxFootprint(subDevice uint16) uint16 {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.DmxFootprint()
		}
		return 0
	}
	return r.info.DmxFootprint
}

// SlotInfo describes slot offset of the current personality
func (r *DeviceResponder) SlotInfo(subDevice, offset uint16) (SlotInfo, bool) {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.SlotInfo(offset)
		}
		return SlotInfo{}, false
	}
	return r.personalities[r.info.CurrentPersonality-1].SlotInfo(offset)
}

// Personality returns personality n (1-based) of the root or a
// sub-device, or nil when n is out of range
func (r *DeviceResponder) Personality(subDevice uint16, n uint8) *Personality {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.Personality(n)
		}
		return nil
	}
	if n == 0 || n > r.info.PersonalityCount {
		return nil
	}
	return r.personalities[n-1]
}

// PersonalityCount returns the number of personalities of the root or a sub-device
func (r *DeviceResponder) PersonalityCount(subDevice uint16) uint8 {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.PersonalityCount()
		}
		return 0
	}
	return r.info.PersonalityCount
}

// PersonalityCurrent returns the selected personality of the root or a sub-device
func (r *DeviceResponder) PersonalityCurrent(subDevice uint16) uint8 {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			return sd.PersonalityCurrent()
		}
		return 0
	}
	return r.info.CurrentPersonality
}

// SetPersonalityCurrent selects personality n of the root or a
// sub-device. For the root, n outside [1, count] panics: callers range
// check wire input first.
func (r *DeviceResponder) SetPersonalityCurrent(subDevice uint16, n uint8) {
	if subDevice != rdm.RootDevice {
		if sd := r.subDevices.Get(subDevice); sd != nil {
			sd.SetPersonalityCurrent(n)
		}
		return
	}

	if n == 0 || n > r.info.PersonalityCount {
		panic(fmt.Sprintf("device: personality %d out of range [1, %d]", n, r.info.PersonalityCount))
	}

	r.info.CurrentPersonality = n

	out := r.personalities[n-1].Output()
	if out == nil {
		r.info.DmxFootprint = 0
		r.info.DmxStartAddress = StartAddressNone
	} else {
		r.info.DmxFootprint = out.DmxFootprint()
		r.info.DmxStartAddress = out.DmxStartAddress()
	}

	if r.initialized {
		r.store.SavePersonality(n)
	}
	r.listener.PersonalityUpdate(out)
}

// Output returns the DMX output of the current root personality, or nil
func (r *DeviceResponder) Output() DmxOutput {
	return r.personalities[r.info.CurrentPersonality-1].Output()
}

// SetIdentify switches identify mode
func (r *DeviceResponder) SetIdentify(on bool) {
	r.identify.Store(on)
}

func (r *DeviceResponder) Identify() bool {
	return r.identify.Load()
}

// SetIdentifyMode selects quiet or loud identify
func (r *DeviceResponder) SetIdentifyMode(mode uint8) bool {
	if mode != IdentifyModeQuiet && mode != IdentifyModeLoud {
		return false
	}
	r.identifyMode = mode
	return true
}

func (r *DeviceResponder) IdentifyMode() uint8 {
	return r.identifyMode
}

// calculateChecksum is the start address plus the current personality
func (r *DeviceResponder) calculateChecksum() uint16 {
	return r.info.DmxStartAddress + uint16(r.info.CurrentPersonality)
}
