// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
)

// EncodeFrame creates a complete wire-formatted link frame.
// Returns the frame bytes ready for transmission, including framing and byte stuffing.
func EncodeFrame(port uint8, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(data) > MaxDataSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(data), MaxDataSize)
	}

	body := make([]byte, 0, HeaderSize+len(data)+CRCSize)
	body = append(body, byte(len(data)>>8), byte(len(data)), port)
	body = append(body, data...)

	crc := CalculateCRC(body)
	body = append(body, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(body)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// MustEncodeFrame encodes a frame. Panics on encoding error (use EncodeFrame for error handling).
func MustEncodeFrame(port uint8, data []byte) []byte {
	frame, err := EncodeFrame(port, data)
	if err != nil {
		panic(fmt.Sprintf("link: encode error: %v", err))
	}
	return frame
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
