// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "time"

// Frame is one decoded link frame
type Frame struct {
	port      uint8
	data      []byte
	crc       uint16
	timestamp time.Time
}

// NewFrame creates a frame for port carrying data (start code first)
func NewFrame(port uint8, data []byte) *Frame {
	return &Frame{
		port:      port,
		data:      data,
		timestamp: time.Now(),
	}
}

// Port returns the bus port index
func (f *Frame) Port() uint8 {
	return f.port
}

// Data returns the slot data including the start code
func (f *Frame) Data() []byte {
	return f.data
}

// StartCode returns the slot start code, or 0 for an empty frame
func (f *Frame) StartCode() byte {
	if len(f.data) == 0 {
		return 0
	}
	return f.data[0]
}

// IsDMX returns true for null start code frames
func (f *Frame) IsDMX() bool {
	return len(f.data) > 0 && f.data[0] == StartCodeDMX
}

// IsRDM returns true for RDM or discovery response frames
func (f *Frame) IsRDM() bool {
	return len(f.data) > 0 && (f.data[0] == StartCodeRDM || f.data[0] == StartCodeDiscovery)
}

// CRC returns the received CRC value
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns the decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}
