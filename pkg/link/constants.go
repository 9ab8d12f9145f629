// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link carries DMX512 and RDM slot data between the responder and a
// line driver over a byte stream (USB serial adapter or websocket gateway).
//
// Each frame carries one bus transaction for one port, prefixed by its slot
// start code, byte-stuffed and protected by CRC-16-CCITT:
//
//	START stuffed(len_hi len_lo port data... crc_hi crc_lo) END
package link

// Framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxDataSize  = 1 + 512 // start code + one universe
	HeaderSize   = 3       // length + port
	CRCSize      = 2
	MaxFrameSize = HeaderSize + MaxDataSize + CRCSize
)

// Slot start codes carried in Frame.Data[0]
const (
	StartCodeDMX       = 0x00
	StartCodeRDM       = 0xCC
	StartCodeDiscovery = 0xFE
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLengthHi
	stateLengthLo
	statePort
	stateData
	stateCRC1
	stateCRC2
)

// PortDirection is the line driver direction of a port.
type PortDirection int

const (
	PortDirectionInput PortDirection = iota
	PortDirectionOutput
)

func (d PortDirection) String() string {
	if d == PortDirectionOutput {
		return "output"
	}
	return "input"
}
