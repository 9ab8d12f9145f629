// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"encoding/binary"
	"fmt"
)

// Nack is an RDM NACK reason carried as an error. Responders return it
// from parameter handlers; it becomes the reason field of the response.
type Nack uint16

func (n Nack) Error() string {
	return "rdm nack: " + FormatNackReason(uint16(n))
}

// Reason returns the wire reason code
func (n Nack) Reason() uint16 {
	return uint16(n)
}

// ParameterDescriptionMaxLength bounds the description text.
const ParameterDescriptionMaxLength = 32

// parameterDescriptionFixedSize is the PDL of a description without text.
const parameterDescriptionFixedSize = 20

// ParameterDescription is the PARAMETER_DESCRIPTION (0x0051) record of a
// manufacturer-specific PID. Min, Max and Default are carried in 32-bit
// fields regardless of PDLSize.
type ParameterDescription struct {
	PID          uint16
	PDLSize      uint8
	DataType     uint8
	CommandClass uint8
	Unit         uint8
	Prefix       uint8
	Min          uint32
	Max          uint32
	Default      uint32
	Description  string
}

// Length returns the PDL of the encoded record.
func (d ParameterDescription) Length() int {
	return parameterDescriptionFixedSize + min(len(d.Description), ParameterDescriptionMaxLength)
}

// AppendBinary appends the wire form of the record to b.
func (d ParameterDescription) AppendBinary(b []byte) []byte {
	desc := d.Description
	if len(desc) > ParameterDescriptionMaxLength {
		desc = desc[:ParameterDescriptionMaxLength]
	}

	b = binary.BigEndian.AppendUint16(b, d.PID)
	b = append(b, d.PDLSize, d.DataType, d.CommandClass, 0x00, d.Unit, d.Prefix)
	b = binary.BigEndian.AppendUint32(b, d.Min)
	b = binary.BigEndian.AppendUint32(b, d.Max)
	b = binary.BigEndian.AppendUint32(b, d.Default)
	return append(b, desc...)
}

// ParseParameterDescription decodes PARAMETER_DESCRIPTION parameter data.
func ParseParameterDescription(data []byte) (ParameterDescription, error) {
	if len(data) < parameterDescriptionFixedSize {
		return ParameterDescription{}, fmt.Errorf("%w: PARAMETER_DESCRIPTION needs %d bytes, got %d",
			ErrShortMessage, parameterDescriptionFixedSize, len(data))
	}
	return ParameterDescription{
		PID:          binary.BigEndian.Uint16(data[0:2]),
		PDLSize:      data[2],
		DataType:     data[3],
		CommandClass: data[4],
		Unit:         data[6],
		Prefix:       data[7],
		Min:          binary.BigEndian.Uint32(data[8:12]),
		Max:          binary.BigEndian.Uint32(data[12:16]),
		Default:      binary.BigEndian.Uint32(data[16:20]),
		Description:  string(data[20:]),
	}, nil
}
