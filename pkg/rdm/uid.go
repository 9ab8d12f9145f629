// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// UID is a 48-bit RDM unique identifier: a 16-bit ESTA manufacturer ID
// followed by a 32-bit device ID, both big-endian.
type UID [UIDSize]byte

// Broadcast UIDs
var (
	BroadcastUID = UID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	ZeroUID      = UID{}
)

const deviceIDBroadcast = 0xFFFFFFFF

// NewUID builds a UID from a manufacturer ID and a 4-byte serial number.
// The serial bytes are copied to the device ID in the order given.
func NewUID(manufacturerID uint16, serial [4]byte) UID {
	var u UID
	binary.BigEndian.PutUint16(u[0:2], manufacturerID)
	copy(u[2:6], serial[:])
	return u
}

// ManufacturerBroadcast returns the UID addressing every device of one manufacturer.
func ManufacturerBroadcast(manufacturerID uint16) UID {
	var u UID
	binary.BigEndian.PutUint16(u[0:2], manufacturerID)
	binary.BigEndian.PutUint32(u[2:6], deviceIDBroadcast)
	return u
}

// UIDFromUint64 converts the low 48 bits of v to a UID.
func UIDFromUint64(v uint64) UID {
	var u UID
	for i := UIDSize - 1; i >= 0; i-- {
		u[i] = byte(v)
		v >>= 8
	}
	return u
}

// ParseUID parses a UID in "MMMM:DDDDDDDD" hexadecimal form.
func ParseUID(s string) (UID, error) {
	manufacturer, device, ok := strings.Cut(s, ":")
	if !ok {
		return UID{}, fmt.Errorf("invalid UID %q: expected MMMM:DDDDDDDD", s)
	}
	m, err := strconv.ParseUint(manufacturer, 16, 16)
	if err != nil {
		return UID{}, fmt.Errorf("invalid UID manufacturer %q: %w", manufacturer, err)
	}
	d, err := strconv.ParseUint(device, 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("invalid UID device %q: %w", device, err)
	}
	return UIDFromUint64(m<<32 | d), nil
}

// ManufacturerID returns the ESTA manufacturer ID.
func (u UID) ManufacturerID() uint16 {
	return binary.BigEndian.Uint16(u[0:2])
}

// DeviceID returns the 32-bit device ID.
func (u UID) DeviceID() uint32 {
	return binary.BigEndian.Uint32(u[2:6])
}

// Uint64 returns the UID as an integer, for range comparisons.
func (u UID) Uint64() uint64 {
	var v uint64
	for _, b := range u {
		v = v<<8 | uint64(b)
	}
	return v
}

// IsBroadcast returns true for the all-device or a manufacturer broadcast UID.
func (u UID) IsBroadcast() bool {
	return u.DeviceID() == deviceIDBroadcast
}

// Matches reports whether a message addressed to target must be processed
// by the device owning u.
func (u UID) Matches(target UID) bool {
	if target == u || target == BroadcastUID {
		return true
	}
	return target.IsBroadcast() && target.ManufacturerID() == u.ManufacturerID()
}

// String formats the UID as "MMMM:DDDDDDDD".
func (u UID) String() string {
	return fmt.Sprintf("%04X:%08X", u.ManufacturerID(), u.DeviceID())
}
