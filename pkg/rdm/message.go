// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decode errors
var (
	ErrShortMessage    = errors.New("rdm: message too short")
	ErrStartCode       = errors.New("rdm: invalid start code")
	ErrSubStartCode    = errors.New("rdm: invalid sub-start code")
	ErrLength          = errors.New("rdm: invalid message length")
	ErrChecksum        = errors.New("rdm: checksum mismatch")
	ErrParamDataLength = errors.New("rdm: parameter data too long")
)

// Field offsets of the standard message header
const (
	offsetStartCode    = 0
	offsetSubStartCode = 1
	offsetLength       = 2
	offsetDestination  = 3
	offsetSource       = 9
	offsetTransaction  = 15
	offsetPortID       = 16
	offsetMessageCount = 17
	offsetSubDevice    = 18
	offsetCommandClass = 20
	offsetPID          = 21
	offsetPDL          = 23
	offsetParamData    = 24
)

// Message is a decoded RDM request or response.
//
// For responses PortID carries the response type and, for NACKs, the
// parameter data holds the 2-byte reason code.
type Message struct {
	Destination       UID
	Source            UID
	TransactionNumber uint8
	PortID            uint8
	MessageCount      uint8
	SubDevice         uint16
	CommandClass      uint8
	PID               uint16
	ParamData         []byte
}

// Checksum returns the RDM checksum: the 16-bit sum of data.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// Parse decodes a standard RDM message starting with the 0xCC start code.
// Trailing bytes after the checksum are ignored. ParamData aliases frame.
func Parse(frame []byte) (*Message, error) {
	m := &Message{}
	if err := m.UnmarshalBinary(frame); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalBinary decodes frame into m. ParamData aliases frame.
func (m *Message) UnmarshalBinary(frame []byte) error {
	if len(frame) < HeaderSize+ChecksumSize {
		return fmt.Errorf("%w: %d bytes", ErrShortMessage, len(frame))
	}
	if frame[offsetStartCode] != StartCode {
		return fmt.Errorf("%w: 0x%02X", ErrStartCode, frame[offsetStartCode])
	}
	if frame[offsetSubStartCode] != SubStartCode {
		return fmt.Errorf("%w: 0x%02X", ErrSubStartCode, frame[offsetSubStartCode])
	}

	length := int(frame[offsetLength])
	pdl := int(frame[offsetPDL])
	if length < HeaderSize || length != HeaderSize+pdl {
		return fmt.Errorf("%w: length=%d pdl=%d", ErrLength, length, pdl)
	}
	if len(frame) < length+ChecksumSize {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortMessage, len(frame), length+ChecksumSize)
	}

	expected := Checksum(frame[:length])
	received := binary.BigEndian.Uint16(frame[length : length+ChecksumSize])
	if expected != received {
		return fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrChecksum, expected, received)
	}

	copy(m.Destination[:], frame[offsetDestination:offsetSource])
	copy(m.Source[:], frame[offsetSource:offsetTransaction])
	m.TransactionNumber = frame[offsetTransaction]
	m.PortID = frame[offsetPortID]
	m.MessageCount = frame[offsetMessageCount]
	m.SubDevice = binary.BigEndian.Uint16(frame[offsetSubDevice:offsetCommandClass])
	m.CommandClass = frame[offsetCommandClass]
	m.PID = binary.BigEndian.Uint16(frame[offsetPID:offsetPDL])
	m.ParamData = frame[offsetParamData:length]

	return nil
}

// Length returns the message length field: header plus parameter data.
func (m *Message) Length() int {
	return HeaderSize + len(m.ParamData)
}

// ResponseType returns the response type of a response message.
func (m *Message) ResponseType() uint8 {
	return m.PortID
}

// IsBroadcast returns true if the destination is a broadcast UID.
func (m *Message) IsBroadcast() bool {
	return m.Destination.IsBroadcast()
}

// IsResponse returns true for the response command classes.
func (m *Message) IsResponse() bool {
	return m.CommandClass&0x01 != 0
}

// NackReason returns the reason code of a NACK response.
func (m *Message) NackReason() (uint16, bool) {
	if m.PortID != ResponseTypeNackReason || len(m.ParamData) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(m.ParamData), true
}

// MarshalBinary encodes the message including its checksum.
func (m *Message) MarshalBinary() ([]byte, error) {
	return m.AppendBinary(make([]byte, 0, m.Length()+ChecksumSize))
}

// AppendBinary appends the encoded message including its checksum to b.
func (m *Message) AppendBinary(b []byte) ([]byte, error) {
	if len(m.ParamData) > MaxParamDataLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrParamDataLength, len(m.ParamData), MaxParamDataLength)
	}

	start := len(b)
	b = append(b, StartCode, SubStartCode, byte(m.Length()))
	b = append(b, m.Destination[:]...)
	b = append(b, m.Source[:]...)
	b = append(b, m.TransactionNumber, m.PortID, m.MessageCount)
	b = binary.BigEndian.AppendUint16(b, m.SubDevice)
	b = append(b, m.CommandClass)
	b = binary.BigEndian.AppendUint16(b, m.PID)
	b = append(b, byte(len(m.ParamData)))
	b = append(b, m.ParamData...)
	b = binary.BigEndian.AppendUint16(b, Checksum(b[start:]))

	return b, nil
}

// Encode encodes the message. Panics on encode error (use MarshalBinary for error handling).
func Encode(m *Message) []byte {
	data, err := m.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("rdm: encode error: %v", err))
	}
	return data
}
