// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import "encoding/binary"

// Request builder functions create controller-side Message structs ready for
// encoding. Port ID 1 and message count 0 are used throughout.

const controllerPortID = 0x01

// NewGetRequest creates a GET_COMMAND for pid.
func NewGetRequest(dst, src UID, tn uint8, subDevice uint16, pid uint16, paramData []byte) *Message {
	return newRequest(dst, src, tn, subDevice, GetCommand, pid, paramData)
}

// NewSetRequest creates a SET_COMMAND for pid.
func NewSetRequest(dst, src UID, tn uint8, subDevice uint16, pid uint16, paramData []byte) *Message {
	return newRequest(dst, src, tn, subDevice, SetCommand, pid, paramData)
}

// NewDiscUniqueBranch creates a broadcast DISC_UNIQUE_BRANCH (0x0001) for the
// inclusive UID range [lower, upper].
func NewDiscUniqueBranch(src UID, tn uint8, lower, upper UID) *Message {
	pd := make([]byte, 0, 2*UIDSize)
	pd = append(pd, lower[:]...)
	pd = append(pd, upper[:]...)
	return newRequest(BroadcastUID, src, tn, RootDevice, DiscoveryCommand, PIDDiscUniqueBranch, pd)
}

// NewDiscMute creates a DISC_MUTE (0x0002). Use BroadcastUID to mute everyone.
func NewDiscMute(dst, src UID, tn uint8) *Message {
	return newRequest(dst, src, tn, RootDevice, DiscoveryCommand, PIDDiscMute, nil)
}

// NewDiscUnMute creates a DISC_UN_MUTE (0x0003).
func NewDiscUnMute(dst, src UID, tn uint8) *Message {
	return newRequest(dst, src, tn, RootDevice, DiscoveryCommand, PIDDiscUnMute, nil)
}

// NewSetDmxStartAddress creates a SET DMX_START_ADDRESS (0x00F0).
func NewSetDmxStartAddress(dst, src UID, tn uint8, subDevice uint16, address uint16) *Message {
	return NewSetRequest(dst, src, tn, subDevice, PIDDMXStartAddress, binary.BigEndian.AppendUint16(nil, address))
}

// NewSetPersonality creates a SET DMX_PERSONALITY (0x00E0).
func NewSetPersonality(dst, src UID, tn uint8, subDevice uint16, personality uint8) *Message {
	return NewSetRequest(dst, src, tn, subDevice, PIDDMXPersonality, []byte{personality})
}

// NewSetIdentify creates a SET IDENTIFY_DEVICE (0x1000).
func NewSetIdentify(dst, src UID, tn uint8, on bool) *Message {
	var v byte
	if on {
		v = 1
	}
	return NewSetRequest(dst, src, tn, RootDevice, PIDIdentifyDevice, []byte{v})
}

func newRequest(dst, src UID, tn uint8, subDevice uint16, cc uint8, pid uint16, paramData []byte) *Message {
	return &Message{
		Destination:       dst,
		Source:            src,
		TransactionNumber: tn,
		PortID:            controllerPortID,
		SubDevice:         subDevice,
		CommandClass:      cc,
		PID:               pid,
		ParamData:         paramData,
	}
}
