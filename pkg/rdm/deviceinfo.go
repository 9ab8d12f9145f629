// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"encoding/binary"
	"fmt"
)

// DeviceInfoSize is the PDL of a DEVICE_INFO response.
const DeviceInfoSize = 19

// DeviceInfo mirrors the DEVICE_INFO parameter data.
type DeviceInfo struct {
	ProtocolVersion    uint16
	DeviceModel        uint16
	ProductCategory    uint16
	SoftwareVersion    uint32
	DmxFootprint       uint16
	CurrentPersonality uint8
	PersonalityCount   uint8
	DmxStartAddress    uint16
	SubDeviceCount     uint16
	SensorCount        uint8
}

// AppendBinary appends the 19-byte wire form of the record to b.
func (i DeviceInfo) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, i.ProtocolVersion)
	b = binary.BigEndian.AppendUint16(b, i.DeviceModel)
	b = binary.BigEndian.AppendUint16(b, i.ProductCategory)
	b = binary.BigEndian.AppendUint32(b, i.SoftwareVersion)
	b = binary.BigEndian.AppendUint16(b, i.DmxFootprint)
	b = append(b, i.CurrentPersonality, i.PersonalityCount)
	b = binary.BigEndian.AppendUint16(b, i.DmxStartAddress)
	b = binary.BigEndian.AppendUint16(b, i.SubDeviceCount)
	return append(b, i.SensorCount)
}

// Bytes returns the wire form of the record.
func (i DeviceInfo) Bytes() [DeviceInfoSize]byte {
	var out [DeviceInfoSize]byte
	i.AppendBinary(out[:0])
	return out
}

// ParseDeviceInfo decodes DEVICE_INFO parameter data.
func ParseDeviceInfo(data []byte) (DeviceInfo, error) {
	if len(data) < DeviceInfoSize {
		return DeviceInfo{}, fmt.Errorf("%w: DEVICE_INFO needs %d bytes, got %d", ErrShortMessage, DeviceInfoSize, len(data))
	}
	return DeviceInfo{
		ProtocolVersion:    binary.BigEndian.Uint16(data[0:2]),
		DeviceModel:        binary.BigEndian.Uint16(data[2:4]),
		ProductCategory:    binary.BigEndian.Uint16(data[4:6]),
		SoftwareVersion:    binary.BigEndian.Uint32(data[6:10]),
		DmxFootprint:       binary.BigEndian.Uint16(data[10:12]),
		CurrentPersonality: data[12],
		PersonalityCount:   data[13],
		DmxStartAddress:    binary.BigEndian.Uint16(data[14:16]),
		SubDeviceCount:     binary.BigEndian.Uint16(data[16:18]),
		SensorCount:        data[18],
	}, nil
}
