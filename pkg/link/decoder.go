// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
	"time"
)

// Decode errors
var (
	ErrCRC           = errors.New("link: CRC mismatch")
	ErrFrameTooLarge = errors.New("link: frame too large")
	ErrEmptyFrame    = errors.New("link: empty frame")
	ErrUnexpectedEnd = errors.New("link: unexpected END byte")
)

// Decoder implements the link frame decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	length      int
	frame       *Frame
	rawBuffer   []byte // Accumulate raw bytes including framing
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.length = 0
	d.escapeNext = false
	d.frame = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// RawBytes returns the accumulated raw bytes since the last frame
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the frame is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	escaped := d.escapeNext
	if escaped {
		b ^= EscXor
		d.escapeNext = false
	}

	if !escaped && b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, StartByte)
		d.state = stateLengthHi
		return nil, nil
	}

	if !escaped && b == EndByte {
		return d.finish()
	}

	switch d.state {
	case stateIdle:
		// Waiting for START byte
		d.rawBuffer = d.rawBuffer[:0]
		return nil, nil

	case stateLengthHi:
		d.length = int(b) << 8
		d.push(b)
		d.state = stateLengthLo
		return nil, nil

	case stateLengthLo:
		d.length |= int(b)
		if d.length == 0 {
			d.Reset()
			return nil, ErrEmptyFrame
		}
		if d.length > MaxDataSize {
			length := d.length
			d.Reset()
			return nil, fmt.Errorf("%w: length %d (max %d)", ErrFrameTooLarge, length, MaxDataSize)
		}
		d.push(b)
		d.state = statePort
		return nil, nil

	case statePort:
		d.frame = &Frame{port: b, data: make([]byte, 0, d.length)}
		d.push(b)
		d.state = stateData
		return nil, nil

	case stateData:
		d.frame.data = append(d.frame.data, b)
		d.push(b)
		if len(d.frame.data) >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.frame.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.frame.crc |= uint16(b)
		// Wait for END byte
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds data through the decoder, calling fn for every completed
// frame or decode error.
func (d *Decoder) Decode(data []byte, fn func(*Frame, error)) {
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if frame != nil || err != nil {
			fn(frame, err)
		}
	}
}

func (d *Decoder) push(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}

func (d *Decoder) finish() (*Frame, error) {
	if d.state != stateCRC2 {
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("%w in state %d", ErrUnexpectedEnd, state)
	}

	frame := d.frame
	calculated := CalculateCRC(d.buffer[:d.bufferIndex])
	d.Reset()

	if frame.crc != calculated {
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRC, calculated, frame.crc)
	}

	frame.timestamp = time.Now()
	return frame, nil
}
