// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import (
	"encoding/binary"
	"errors"

	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

const offsetCommandClass = 20

// errNoResponse suppresses the reply to a request
var errNoResponse = errors.New("responder: no response")

// handlerFunc serves one command class of a PID. resp arrives with the
// header filled in and empty ParamData; handlers append to it and may
// replace the PID and command class.
type handlerFunc func(r *Responder, m *rdm.Message, resp *rdm.Message) error

type pidHandler struct {
	pid uint16
	get handlerFunc
	set handlerFunc
	// rootOnly handlers NACK requests for sub-devices
	rootOnly bool
	// required PIDs are not listed in SUPPORTED_PARAMETERS
	required bool
}

func (r *Responder) lookup(pid uint16) *pidHandler {
	for i := range r.handlers {
		if r.handlers[i].pid == pid {
			return &r.handlers[i]
		}
	}
	return nil
}

// handle decodes one request and returns the encoded reply, or nil when
// nothing must be sent. The returned slice is valid until the next call.
func (r *Responder) handle(frame []byte) []byte {
	m, err := rdm.Parse(frame)
	if err != nil {
		r.logger.Debug("invalid rdm request", "error", err)
		return nil
	}

	uid := r.dev.UID()
	if !uid.Matches(m.Destination) {
		return nil
	}
	broadcast := m.Destination != uid

	r.handling = true
	defer func() { r.handling = false }()

	if m.CommandClass == rdm.DiscoveryCommand {
		return r.handleDiscovery(m, broadcast)
	}

	if m.CommandClass == rdm.GetCommand && broadcast {
		return nil
	}

	resp := rdm.Message{
		Destination:       m.Source,
		Source:            uid,
		TransactionNumber: m.TransactionNumber,
		PortID:            rdm.ResponseTypeAck,
		SubDevice:         m.SubDevice,
		CommandClass:      m.CommandClass + 1,
		PID:               m.PID,
		ParamData:         r.pd[:0],
	}

	err = r.dispatch(m, &resp, broadcast)
	if broadcast || errors.Is(err, errNoResponse) {
		return nil
	}

	if err != nil {
		reason := uint16(rdm.NackHardwareFault)
		var nack rdm.Nack
		if errors.As(err, &nack) {
			reason = nack.Reason()
		}
		r.logger.Debug("rdm nack",
			"pid", rdm.FormatPID(m.PID),
			"sub_device", m.SubDevice,
			"reason", rdm.FormatNackReason(reason))

		resp.PortID = rdm.ResponseTypeNackReason
		resp.CommandClass = m.CommandClass + 1
		resp.PID = m.PID
		resp.ParamData = binary.BigEndian.AppendUint16(r.pd[:0], reason)
	}

	resp.MessageCount = r.queue.Count()

	r.buf, err = resp.AppendBinary(r.buf[:0])
	if err != nil {
		r.logger.Warn("rdm response encode failed", "pid", rdm.FormatPID(m.PID), "error", err)
		return nil
	}
	return r.buf
}

// dispatch routes a GET or SET by PID and sub-device
func (r *Responder) dispatch(m *rdm.Message, resp *rdm.Message, broadcast bool) error {
	subDevices := r.dev.SubDevices().Count()

	switch {
	case m.SubDevice == rdm.AllSubDevices:
		if m.CommandClass != rdm.SetCommand || subDevices == 0 {
			return rdm.Nack(rdm.NackSubDeviceOutOfRange)
		}
	case m.SubDevice > subDevices || m.SubDevice > rdm.MaxSubDevice:
		return rdm.Nack(rdm.NackSubDeviceOutOfRange)
	}

	h := r.lookup(m.PID)
	if h == nil {
		if IsManufacturerPID(m.PID) {
			return r.handleManufacturerPID(m, resp, broadcast)
		}
		return rdm.Nack(rdm.NackUnknownPID)
	}

	fn := h.get
	if m.CommandClass == rdm.SetCommand {
		fn = h.set
	}
	if fn == nil {
		return rdm.Nack(rdm.NackUnsupportedCommandClass)
	}

	if m.SubDevice != rdm.RootDevice && h.rootOnly {
		return rdm.Nack(rdm.NackSubDeviceOutOfRange)
	}

	if m.SubDevice != rdm.AllSubDevices {
		return fn(r, m, resp)
	}

	// A SET for all sub-devices is applied to each of them
	var err error
	for n := uint16(1); n <= subDevices; n++ {
		sub := *m
		sub.SubDevice = n
		resp.ParamData = resp.ParamData[:0]
		if e := fn(r, &sub, resp); e != nil {
			err = e
		}
	}
	return err
}

func (r *Responder) handleDiscovery(m *rdm.Message, broadcast bool) []byte {
	r.startDiscovery()

	if m.SubDevice != rdm.RootDevice {
		return nil
	}

	uid := r.dev.UID()

	switch m.PID {
	case rdm.PIDDiscUniqueBranch:
		if r.muted || len(m.ParamData) != 2*rdm.UIDSize {
			return nil
		}
		var lower, upper rdm.UID
		copy(lower[:], m.ParamData[:rdm.UIDSize])
		copy(upper[:], m.ParamData[rdm.UIDSize:])
		v := uid.Uint64()
		if v < lower.Uint64() || v > upper.Uint64() {
			return nil
		}
		r.discovery = rdm.EncodeDiscoveryResponse(uid)
		return r.discovery[:]

	case rdm.PIDDiscMute:
		r.muted = true

	case rdm.PIDDiscUnMute:
		r.muted = false

	default:
		return nil
	}

	if broadcast || len(m.ParamData) != 0 {
		return nil
	}

	var control uint16
	if r.dev.SubDevices().Count() != 0 {
		control |= rdm.MuteSubDevice
	}

	resp := rdm.Message{
		Destination:       m.Source,
		Source:            uid,
		TransactionNumber: m.TransactionNumber,
		PortID:            rdm.ResponseTypeAck,
		MessageCount:      r.queue.Count(),
		SubDevice:         rdm.RootDevice,
		CommandClass:      rdm.DiscoveryCommandResponse,
		PID:               m.PID,
		ParamData:         binary.BigEndian.AppendUint16(r.pd[:0], control),
	}

	var err error
	r.buf, err = resp.AppendBinary(r.buf[:0])
	if err != nil {
		return nil
	}
	return r.buf
}
