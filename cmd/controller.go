// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// Controller timing
const (
	responseTimeout  = 50 * time.Millisecond
	discoveryTimeout = 30 * time.Millisecond
	transactRetries  = 3
	discoveryRetries = 3
)

var (
	ErrNoResponse = errors.New("no response")
	ErrNack       = errors.New("nack")
)

// bus is the part of link.Port a controller drives
type bus interface {
	SendRaw(port uint32, data []byte) error
	ReceiveTimeout(port uint32, timeout time.Duration) []byte
}

// branchResult is the outcome of one DISC_UNIQUE_BRANCH
type branchResult int

const (
	branchEmpty branchResult = iota
	branchSingle
	branchCollision
)

// controller issues RDM requests on one bus port and matches responses by
// transaction number
type controller struct {
	bus     bus
	port    uint32
	src     rdm.UID
	tn      uint8
	timeout time.Duration
}

func newController(b bus, port uint32, src rdm.UID) *controller {
	return &controller{bus: b, port: port, src: src, timeout: responseTimeout}
}

func (c *controller) nextTN() uint8 {
	tn := c.tn
	c.tn++
	return tn
}

func (c *controller) send(m *rdm.Message) error {
	return c.bus.SendRaw(c.port, rdm.Encode(m))
}

// transact sends a directed request and waits for the response carrying
// its transaction number. Frames that do not match are discarded.
func (c *controller) transact(m *rdm.Message) (*rdm.Message, error) {
	for attempt := 0; attempt < transactRetries; attempt++ {
		if err := c.send(m); err != nil {
			return nil, err
		}

		deadline := time.Now().Add(c.timeout)
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			frame := c.bus.ReceiveTimeout(c.port, remaining)
			if frame == nil {
				break
			}
			resp, err := rdm.Parse(frame)
			if err != nil {
				continue
			}
			if !resp.IsResponse() || resp.TransactionNumber != m.TransactionNumber || resp.Source != m.Destination {
				continue
			}
			if reason, ok := resp.NackReason(); ok {
				return resp, fmt.Errorf("%w: %s", ErrNack, rdm.FormatNackReason(reason))
			}
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%w from %s for %s", ErrNoResponse, m.Destination, rdm.FormatPID(m.PID))
}

func (c *controller) get(dst rdm.UID, subDevice, pid uint16, pd []byte) (*rdm.Message, error) {
	return c.transact(rdm.NewGetRequest(dst, c.src, c.nextTN(), subDevice, pid, pd))
}

func (c *controller) set(dst rdm.UID, subDevice, pid uint16, pd []byte) (*rdm.Message, error) {
	return c.transact(rdm.NewSetRequest(dst, c.src, c.nextTN(), subDevice, pid, pd))
}

// deviceInfo reads and decodes DEVICE_INFO of the root device
func (c *controller) deviceInfo(dst rdm.UID) (rdm.DeviceInfo, error) {
	resp, err := c.get(dst, rdm.RootDevice, rdm.PIDDeviceInfo, nil)
	if err != nil {
		return rdm.DeviceInfo{}, err
	}
	return rdm.ParseDeviceInfo(resp.ParamData)
}

// label reads DEVICE_LABEL of the root device
func (c *controller) label(dst rdm.UID) (string, error) {
	resp, err := c.get(dst, rdm.RootDevice, rdm.PIDDeviceLabel, nil)
	if err != nil {
		return "", err
	}
	return string(resp.ParamData), nil
}

// uniqueBranch asks every unmuted responder in [lower, upper] to answer
func (c *controller) uniqueBranch(lower, upper rdm.UID) (branchResult, rdm.UID, error) {
	if err := c.send(rdm.NewDiscUniqueBranch(c.src, c.nextTN(), lower, upper)); err != nil {
		return branchEmpty, rdm.UID{}, err
	}

	frame := c.bus.ReceiveTimeout(c.port, discoveryTimeout)
	if frame == nil {
		return branchEmpty, rdm.UID{}, nil
	}

	uid, err := rdm.DecodeDiscoveryResponse(frame)
	if err != nil {
		return branchCollision, rdm.UID{}, nil
	}

	// drain anything else that answered, a second reply also means a collision
	if extra := c.bus.ReceiveTimeout(c.port, discoveryTimeout); extra != nil {
		return branchCollision, rdm.UID{}, nil
	}
	return branchSingle, uid, nil
}

// mute silences uid for the rest of discovery. It reports whether the
// device acknowledged.
func (c *controller) mute(uid rdm.UID) (bool, error) {
	_, err := c.transact(rdm.NewDiscMute(uid, c.src, c.nextTN()))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNoResponse):
		return false, nil
	default:
		return false, err
	}
}

// unmuteAll broadcasts DISC_UN_MUTE. Broadcasts are never answered.
func (c *controller) unmuteAll() error {
	return c.send(rdm.NewDiscUnMute(rdm.BroadcastUID, c.src, c.nextTN()))
}

// discover runs a full binary-search discovery and returns the UIDs found
// in ascending order. found is called for each UID as it is muted.
func (c *controller) discover(found func(rdm.UID)) ([]rdm.UID, error) {
	if err := c.unmuteAll(); err != nil {
		return nil, err
	}

	var uids []rdm.UID
	var search func(lower, upper uint64) error
	search = func(lower, upper uint64) error {
		failures := 0
		for failures < discoveryRetries {
			result, uid, err := c.uniqueBranch(rdm.UIDFromUint64(lower), rdm.UIDFromUint64(upper))
			if err != nil {
				return err
			}

			switch result {
			case branchEmpty:
				return nil

			case branchSingle:
				ok, err := c.mute(uid)
				if err != nil {
					return err
				}
				if !ok {
					// a corrupted response decoded to a UID nobody owns
					failures++
					continue
				}
				uids = append(uids, uid)
				if found != nil {
					found(uid)
				}
				// others in range may have been hidden behind it

			case branchCollision:
				if lower == upper {
					failures++
					continue
				}
				mid := lower + (upper-lower)/2
				if err := search(lower, mid); err != nil {
					return err
				}
				return search(mid+1, upper)
			}
		}
		return nil
	}

	if err := search(0, rdm.BroadcastUID.Uint64()-1); err != nil {
		return uids, err
	}
	slices.SortFunc(uids, func(a, b rdm.UID) int {
		return cmp.Compare(a.Uint64(), b.Uint64())
	})
	return uids, nil
}
