// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// ============================================================
// Simulated bus
// ============================================================

type simDevice struct {
	uid   rdm.UID
	muted bool
	label string
	// deaf devices answer DISC_UNIQUE_BRANCH and ignore everything else
	deaf bool
}

type simBus struct {
	devices  []*simDevice
	pending  [][]byte
	branches int
}

func (b *simBus) SendRaw(_ uint32, data []byte) error {
	m, err := rdm.Parse(data)
	if err != nil {
		return err
	}

	if m.CommandClass == rdm.DiscoveryCommand && m.PID == rdm.PIDDiscUniqueBranch {
		b.branches++
		var lower, upper rdm.UID
		copy(lower[:], m.ParamData[:rdm.UIDSize])
		copy(upper[:], m.ParamData[rdm.UIDSize:])

		var hits []*simDevice
		for _, d := range b.devices {
			if !d.muted && d.uid.Uint64() >= lower.Uint64() && d.uid.Uint64() <= upper.Uint64() {
				hits = append(hits, d)
			}
		}
		switch len(hits) {
		case 0:
		case 1:
			r := rdm.EncodeDiscoveryResponse(hits[0].uid)
			b.pending = append(b.pending, r[:])
		default:
			r := rdm.EncodeDiscoveryResponse(hits[0].uid)
			r[len(r)-1] ^= 0x0F
			b.pending = append(b.pending, r[:])
		}
		return nil
	}

	for _, d := range b.devices {
		if !d.uid.Matches(m.Destination) || d.deaf {
			continue
		}
		var pd []byte
		responseType := uint8(rdm.ResponseTypeAck)

		switch {
		case m.PID == rdm.PIDDiscMute:
			d.muted = true
			pd = []byte{0x00, 0x00}
		case m.PID == rdm.PIDDiscUnMute:
			d.muted = false
			pd = []byte{0x00, 0x00}
		case m.CommandClass == rdm.GetCommand && m.PID == rdm.PIDDeviceLabel:
			pd = []byte(d.label)
		default:
			responseType = rdm.ResponseTypeNackReason
			pd = binary.BigEndian.AppendUint16(nil, rdm.NackUnknownPID)
		}

		if m.Destination.IsBroadcast() {
			continue
		}
		b.pending = append(b.pending, rdm.Encode(&rdm.Message{
			Destination:       m.Source,
			Source:            d.uid,
			TransactionNumber: m.TransactionNumber,
			PortID:            responseType,
			SubDevice:         m.SubDevice,
			CommandClass:      m.CommandClass + 1,
			PID:               m.PID,
			ParamData:         pd,
		}))
	}
	return nil
}

func (b *simBus) ReceiveTimeout(_ uint32, _ time.Duration) []byte {
	if len(b.pending) == 0 {
		return nil
	}
	frame := b.pending[0]
	b.pending = b.pending[1:]
	return frame
}

var testControllerUID = rdm.NewUID(0x7FF0, [4]byte{0xC0, 0x00, 0x00, 0x01})

func newSimController(devices ...*simDevice) (*controller, *simBus) {
	b := &simBus{devices: devices}
	c := newController(b, 0, testControllerUID)
	c.timeout = time.Millisecond
	return c, b
}

func simUID(mfr uint16, id uint32) rdm.UID {
	var serial [4]byte
	binary.BigEndian.PutUint32(serial[:], id)
	return rdm.NewUID(mfr, serial)
}

// ============================================================
// Discovery
// ============================================================

func TestDiscover(t *testing.T) {
	tests := []struct {
		name string
		uids []rdm.UID
	}{
		{"empty bus", nil},
		{"single", []rdm.UID{simUID(0x7FF0, 1)}},
		{"adjacent", []rdm.UID{simUID(0x7FF0, 2), simUID(0x7FF0, 1), simUID(0x7FF0, 3)}},
		{"spread", []rdm.UID{
			simUID(0x0001, 0),
			simUID(0x4C55, 0x12345678),
			simUID(0x7FF0, 0xFFFFFFFE),
			simUID(0xFFFE, 0xFFFFFFFE),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var devices []*simDevice
			for _, uid := range tt.uids {
				devices = append(devices, &simDevice{uid: uid, muted: true})
			}
			c, _ := newSimController(devices...)

			var reported int
			found, err := c.discover(func(rdm.UID) { reported++ })
			if err != nil {
				t.Fatalf("discover: %v", err)
			}
			if len(found) != len(tt.uids) || reported != len(tt.uids) {
				t.Fatalf("found %v (%d reported), want %d devices", found, reported, len(tt.uids))
			}
			for i := 1; i < len(found); i++ {
				if found[i-1].Uint64() >= found[i].Uint64() {
					t.Errorf("result not sorted: %v", found)
				}
			}
			for _, d := range devices {
				if !d.muted {
					t.Errorf("%s left unmuted", d.uid)
				}
			}
		})
	}
}

func TestDiscover_UnacknowledgedMuteIsDropped(t *testing.T) {
	c, b := newSimController(&simDevice{uid: simUID(0x7FF0, 9), deaf: true})

	found, err := c.discover(nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found %v, want none", found)
	}
	if b.branches != discoveryRetries {
		t.Errorf("branches = %d, want %d", b.branches, discoveryRetries)
	}
}

func TestUniqueBranch_Results(t *testing.T) {
	uid := simUID(0x7FF0, 5)
	c, _ := newSimController(&simDevice{uid: uid}, &simDevice{uid: simUID(0x7FF0, 6)})

	result, _, _ := c.uniqueBranch(simUID(0x7FF0, 0), simUID(0x7FF0, 4))
	if result != branchEmpty {
		t.Errorf("empty range = %v", result)
	}

	result, got, _ := c.uniqueBranch(simUID(0x7FF0, 5), simUID(0x7FF0, 5))
	if result != branchSingle || got != uid {
		t.Errorf("single = %v %s", result, got)
	}

	result, _, _ = c.uniqueBranch(simUID(0x7FF0, 0), simUID(0x7FF0, 10))
	if result != branchCollision {
		t.Errorf("collision = %v", result)
	}
}

// ============================================================
// GET / SET
// ============================================================

func TestTransact(t *testing.T) {
	uid := simUID(0x7FF0, 42)
	c, b := newSimController(&simDevice{uid: uid, label: "Pixel bar"})

	label, err := c.label(uid)
	if err != nil || label != "Pixel bar" {
		t.Errorf("label = %q, %v", label, err)
	}

	if _, err := c.get(uid, rdm.RootDevice, rdm.PIDSlotInfo, nil); !errors.Is(err, ErrNack) {
		t.Errorf("unknown PID err = %v, want nack", err)
	}

	// a stale response with another transaction number is skipped
	b.pending = append(b.pending, rdm.Encode(&rdm.Message{
		Destination:       testControllerUID,
		Source:            uid,
		TransactionNumber: c.tn + 100,
		CommandClass:      rdm.GetCommandResponse,
		PID:               rdm.PIDDeviceLabel,
		ParamData:         []byte("stale"),
	}))
	label, err = c.label(uid)
	if err != nil || label != "Pixel bar" {
		t.Errorf("label after stale frame = %q, %v", label, err)
	}

	if _, err := c.label(simUID(0x7FF0, 43)); !errors.Is(err, ErrNoResponse) {
		t.Errorf("absent device err = %v, want no response", err)
	}
}
