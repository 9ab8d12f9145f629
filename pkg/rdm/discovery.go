// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"errors"
	"fmt"
)

// ErrDiscoveryResponse is returned when a discovery response cannot be decoded.
var ErrDiscoveryResponse = errors.New("rdm: invalid discovery response")

const (
	discoveryPreambleLength = 7
	discoveryEncodedUIDSize = 2 * UIDSize
)

// DiscoveryResponse is the DISC_UNIQUE_BRANCH reply datagram: seven 0xFE
// preamble bytes, the 0xAA separator, the UID with every byte sent twice
// (OR 0xAA, OR 0x55) and the checksum of the encoded UID encoded the same way.
type DiscoveryResponse [DiscoveryResponseSize]byte

// EncodeDiscoveryResponse builds the discovery response for uid.
func EncodeDiscoveryResponse(uid UID) DiscoveryResponse {
	var r DiscoveryResponse

	for i := 0; i < discoveryPreambleLength; i++ {
		r[i] = DiscoveryPreamble
	}
	r[discoveryPreambleLength] = DiscoveryPreambleSeparator

	euid := r[discoveryPreambleLength+1 : discoveryPreambleLength+1+discoveryEncodedUIDSize]
	for i, b := range uid {
		euid[2*i] = b | 0xAA
		euid[2*i+1] = b | 0x55
	}

	checksum := Checksum(euid)
	ecs := r[discoveryPreambleLength+1+discoveryEncodedUIDSize:]
	ecs[0] = byte(checksum>>8) | 0xAA
	ecs[1] = byte(checksum>>8) | 0x55
	ecs[2] = byte(checksum) | 0xAA
	ecs[3] = byte(checksum) | 0x55

	return r
}

// DecodeDiscoveryResponse decodes a discovery response. Up to seven preamble
// bytes may precede the separator; fewer are accepted as the bus may drop some.
func DecodeDiscoveryResponse(data []byte) (UID, error) {
	i := 0
	for i < len(data) && i < discoveryPreambleLength && data[i] == DiscoveryPreamble {
		i++
	}
	if i >= len(data) || data[i] != DiscoveryPreambleSeparator {
		return UID{}, fmt.Errorf("%w: missing preamble separator", ErrDiscoveryResponse)
	}
	i++

	if len(data)-i < discoveryEncodedUIDSize+4 {
		return UID{}, fmt.Errorf("%w: %d bytes after separator", ErrDiscoveryResponse, len(data)-i)
	}

	euid := data[i : i+discoveryEncodedUIDSize]
	ecs := data[i+discoveryEncodedUIDSize : i+discoveryEncodedUIDSize+4]

	var uid UID
	for j := range uid {
		uid[j] = euid[2*j] & euid[2*j+1]
	}

	expected := Checksum(euid)
	received := uint16(ecs[0]&ecs[1])<<8 | uint16(ecs[2]&ecs[3])
	if expected != received {
		return UID{}, fmt.Errorf("%w: checksum expected 0x%04X, got 0x%04X", ErrDiscoveryResponse, expected, received)
	}

	return uid, nil
}
