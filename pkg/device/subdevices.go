// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

// MaxSubDevices is the capacity of a SubDevices collection
const MaxSubDevices = 8

// SubDeviceInfo holds the DEVICE_INFO fields a sub-device overrides
type SubDeviceInfo struct {
	DmxFootprint       uint16
	CurrentPersonality uint8
	PersonalityCount   uint8
	DmxStartAddress    uint16
	SensorCount        uint8
}

// SubDevice is an addressable unit inside the root device. Every
// personality of a sub-device must have an output.
type SubDevice struct {
	label        string
	factoryLabel string

	personalities []*Personality
	current       uint8

	startAddress        uint16
	factoryStartAddress uint16

	checksum uint16
}

// NewSubDevice creates a sub-device at startAddress using its first
// personality. It panics without personalities or with a nil output.
func NewSubDevice(label string, startAddress uint16, personalities ...*Personality) *SubDevice {
	if len(personalities) == 0 {
		panic("device: sub-device without personalities")
	}
	for _, p := range personalities {
		if p.Output() == nil {
			panic("device: sub-device personality without output")
		}
	}

	label = truncateLabel(label)
	s := &SubDevice{
		label:               label,
		factoryLabel:        label,
		personalities:       personalities,
		current:             1,
		startAddress:        startAddress,
		factoryStartAddress: startAddress,
	}
	s.output().SetDmxStartAddress(startAddress)
	s.startAddress = s.output().DmxStartAddress()
	s.factoryStartAddress = s.startAddress
	s.checksum = s.calculateChecksum()
	return s
}

func (s *SubDevice) output() DmxOutput {
	return s.personalities[s.current-1].Output()
}

func (s *SubDevice) Label() string {
	return s.label
}

func (s *SubDevice) SetLabel(label string) {
	s.label = truncateLabel(label)
}

func (s *SubDevice) PersonalityCount() uint8 {
	return uint8(len(s.personalities))
}

func (s *SubDevice) PersonalityCurrent() uint8 {
	return s.current
}

// Personality returns personality n (1-based), or nil
func (s *SubDevice) Personality(n uint8) *Personality {
	if n == 0 || int(n) > len(s.personalities) {
		return nil
	}
	return s.personalities[n-1]
}

// SetPersonalityCurrent selects personality n. The start address moves to
// the new output when it fits.
func (s *SubDevice) SetPersonalityCurrent(n uint8) bool {
	if n == 0 || int(n) > len(s.personalities) {
		return false
	}
	s.current = n
	out := s.output()
	if !out.SetDmxStartAddress(s.startAddress) {
		s.startAddress = out.DmxStartAddress()
	}
	return true
}

func (s *SubDevice) DmxFootprint() uint16 {
	return s.output().DmxFootprint()
}

func (s *SubDevice) DmxStartAddress() uint16 {
	return s.startAddress
}

func (s *SubDevice) SetDmxStartAddress(address uint16) bool {
	if !s.output().SetDmxStartAddress(address) {
		return false
	}
	s.startAddress = address
	return true
}

func (s *SubDevice) SlotInfo(offset uint16) (SlotInfo, bool) {
	return s.output().SlotInfo(offset)
}

// SetData hands the universe to the current output
func (s *SubDevice) SetData(data []byte) {
	s.output().SetData(0, data, true)
}

func (s *SubDevice) Start() {
	s.output().Start(0)
}

func (s *SubDevice) Stop() {
	s.output().Stop(0)
}

func (s *SubDevice) Info() SubDeviceInfo {
	return SubDeviceInfo{
		DmxFootprint:       s.DmxFootprint(),
		CurrentPersonality: s.current,
		PersonalityCount:   s.PersonalityCount(),
		DmxStartAddress:    s.startAddress,
	}
}

func (s *SubDevice) SetFactoryDefaults() {
	s.label = s.factoryLabel
	s.SetPersonalityCurrent(1)
	s.SetDmxStartAddress(s.factoryStartAddress)
	s.checksum = s.calculateChecksum()
}

func (s *SubDevice) FactoryDefaults() bool {
	return s.checksum == s.calculateChecksum()
}

func (s *SubDevice) calculateChecksum() uint16 {
	return s.startAddress + uint16(s.current) + LabelChecksum(s.label)
}

// SubDevices is a bounded, 1-based collection of sub-devices
type SubDevices struct {
	list []*SubDevice
}

// Add appends a sub-device, returning false at capacity
func (c *SubDevices) Add(s *SubDevice) bool {
	if len(c.list) >= MaxSubDevices {
		return false
	}
	c.list = append(c.list, s)
	return true
}

func (c *SubDevices) Count() uint16 {
	return uint16(len(c.list))
}

// Get returns sub-device n (1-based), or nil
func (c *SubDevices) Get(n uint16) *SubDevice {
	if n == 0 || int(n) > len(c.list) {
		return nil
	}
	return c.list[n-1]
}

// All returns the sub-devices in address order
func (c *SubDevices) All() []*SubDevice {
	return c.list
}

func (c *SubDevices) Start() {
	for _, s := range c.list {
		s.Start()
	}
}

func (c *SubDevices) Stop() {
	for _, s := range c.list {
		s.Stop()
	}
}

func (c *SubDevices) SetData(data []byte) {
	for _, s := range c.list {
		s.SetData(data)
	}
}

func (c *SubDevices) SetFactoryDefaults() {
	for _, s := range c.list {
		s.SetFactoryDefaults()
	}
}

func (c *SubDevices) FactoryDefaults() bool {
	for _, s := range c.list {
		if !s.FactoryDefaults() {
			return false
		}
	}
	return true
}
