// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import (
	"encoding/binary"

	"github.com/Thermoquad/rdmresponder/pkg/device"
	"github.com/Thermoquad/rdmresponder/pkg/rdm"
)

// slotInfoSize is the size of one SLOT_INFO entry
const slotInfoSize = 5

// standardHandlers returns the E1.20 PID table
func standardHandlers() []pidHandler {
	return []pidHandler{
		{pid: rdm.PIDQueuedMessage, get: getQueuedMessage, rootOnly: true},
		{pid: rdm.PIDStatusMessages, get: getStatusMessages, rootOnly: true},
		{pid: rdm.PIDSupportedParameters, get: getSupportedParameters, required: true},
		{pid: rdm.PIDParameterDescription, get: getParameterDescription, rootOnly: true, required: true},
		{pid: rdm.PIDDeviceInfo, get: getDeviceInfo, required: true},
		{pid: rdm.PIDProductDetailIDList, get: getProductDetailIDList},
		{pid: rdm.PIDDeviceModelDesc, get: getDeviceModelDescription},
		{pid: rdm.PIDManufacturerLabel, get: getManufacturerLabel},
		{pid: rdm.PIDDeviceLabel, get: getDeviceLabel, set: setDeviceLabel},
		{pid: rdm.PIDFactoryDefaults, get: getFactoryDefaults, set: setFactoryDefaults, rootOnly: true},
		{pid: rdm.PIDLanguageCapabilities, get: getLanguageCapabilities, rootOnly: true},
		{pid: rdm.PIDLanguage, get: getLanguage, set: setLanguage, rootOnly: true},
		{pid: rdm.PIDSoftwareVersionLabel, get: getSoftwareVersionLabel, required: true},
		{pid: rdm.PIDDMXPersonality, get: getPersonality, set: setPersonality},
		{pid: rdm.PIDDMXPersonalityDesc, get: getPersonalityDescription},
		{pid: rdm.PIDDMXStartAddress, get: getDmxStartAddress, set: setDmxStartAddress, required: true},
		{pid: rdm.PIDSlotInfo, get: getSlotInfo},
		{pid: rdm.PIDSensorDefinition, get: getSensorDefinition, rootOnly: true},
		{pid: rdm.PIDSensorValue, get: getSensorValue, set: setSensorValue, rootOnly: true},
		{pid: rdm.PIDRecordSensors, set: setRecordSensors, rootOnly: true},
		{pid: rdm.PIDIdentifyDevice, get: getIdentify, set: setIdentify, rootOnly: true, required: true},
		{pid: rdm.PIDResetDevice, set: setResetDevice, rootOnly: true},
		{pid: rdm.PIDIdentifyMode, get: getIdentifyMode, set: setIdentifyMode, rootOnly: true},
	}
}

func expectPDL(m *rdm.Message, n int) error {
	if len(m.ParamData) != n {
		return rdm.Nack(rdm.NackFormatError)
	}
	return nil
}

func appendString(b []byte, s string, max int) []byte {
	if len(s) > max {
		s = s[:max]
	}
	return append(b, s...)
}

// ============================================================
// Status collection
// ============================================================

func getQueuedMessage(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	statusType := m.ParamData[0]
	if statusType < rdm.StatusGetLastMessage || statusType > rdm.StatusError {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}

	qm := r.queue.Next(statusType)
	resp.CommandClass = qm.CommandClass
	resp.PID = qm.PID
	resp.ParamData = append(resp.ParamData, qm.ParamData...)
	return nil
}

// getStatusMessages reports sensors outside their normal range as
// warnings. STATUS_GET_LAST_MESSAGE repeats the previous report.
func getStatusMessages(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	statusType := m.ParamData[0]
	switch {
	case statusType > rdm.StatusError:
		return rdm.Nack(rdm.NackDataOutOfRange)
	case statusType == rdm.StatusNone:
		return nil
	case statusType == rdm.StatusGetLastMessage:
		resp.ParamData = append(resp.ParamData, r.lastStatus...)
		return nil
	}

	if statusType <= rdm.StatusWarning {
		sensors := r.dev.Sensors()
		for n := uint8(0); n < sensors.Count(); n++ {
			resp.ParamData = appendSensorStatus(resp.ParamData, n, sensors.Get(n))
		}
	}
	r.lastStatus = append(r.lastStatus[:0], resp.ParamData...)
	return nil
}

func appendSensorStatus(b []byte, n uint8, s *device.Sensor) []byte {
	def := s.Definition()
	if def.NormalMin >= def.NormalMax {
		return b
	}

	v := s.Value().Present
	temperature := def.Type == rdm.SensorTemperature
	var id uint16
	var value int16
	switch {
	case temperature && v > def.NormalMax:
		id, value = rdm.StatusIDOverTemp, v
	case temperature && v < def.NormalMin:
		id, value = rdm.StatusIDUnderTemp, v
	case v > def.NormalMax || v < def.NormalMin:
		id = rdm.StatusIDSensorOutOfRange
	default:
		return b
	}

	b = binary.BigEndian.AppendUint16(b, rdm.RootDevice)
	b = append(b, rdm.StatusWarning)
	b = binary.BigEndian.AppendUint16(b, id)
	b = binary.BigEndian.AppendUint16(b, uint16(n))
	return binary.BigEndian.AppendUint16(b, uint16(value))
}

// ============================================================
// RDM information
// ============================================================

func getSupportedParameters(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	for _, h := range r.handlers {
		if h.required || (h.rootOnly && m.SubDevice != rdm.RootDevice) {
			continue
		}
		resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, h.pid)
	}
	if m.SubDevice != rdm.RootDevice {
		return nil
	}
	for _, ext := range r.manufacturerPIDs() {
		for _, d := range ext.ParameterDescriptions() {
			if len(resp.ParamData)+2 > rdm.MaxParamDataLength {
				return nil
			}
			resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, d.PID)
		}
	}
	return nil
}

func getParameterDescription(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 2); err != nil {
		return err
	}
	pid := binary.BigEndian.Uint16(m.ParamData)
	if !IsManufacturerPID(pid) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	_, desc, ok := r.findManufacturerPID(pid)
	if !ok {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	resp.ParamData = desc.AppendBinary(resp.ParamData)
	return nil
}

// ============================================================
// Product information
// ============================================================

func getDeviceInfo(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 0); err != nil {
		return err
	}
	resp.ParamData = r.dev.DeviceInfo(m.SubDevice).AppendBinary(resp.ParamData)
	return nil
}

func getProductDetailIDList(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	ids := r.dev.ProductDetailIDs()
	for i, id := range ids {
		if i == 6 {
			break
		}
		resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, id)
	}
	return nil
}

func getDeviceModelDescription(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = appendString(resp.ParamData, r.dev.DeviceModelDescription(), device.LabelMaxLength)
	return nil
}

func getManufacturerLabel(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = appendString(resp.ParamData, r.dev.ManufacturerName(), device.ManufacturerNameMaxLength)
	return nil
}

func getDeviceLabel(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = appendString(resp.ParamData, r.dev.SubDeviceLabel(m.SubDevice), device.LabelMaxLength)
	return nil
}

func setDeviceLabel(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if len(m.ParamData) > device.LabelMaxLength {
		return rdm.Nack(rdm.NackFormatError)
	}
	r.dev.SetSubDeviceLabel(m.SubDevice, string(m.ParamData))
	return nil
}

func getFactoryDefaults(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	var v byte
	if r.dev.FactoryDefaults() {
		v = 1
	}
	resp.ParamData = append(resp.ParamData, v)
	return nil
}

func setFactoryDefaults(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 0); err != nil {
		return err
	}
	r.dev.SetFactoryDefaults()
	return nil
}

func getLanguageCapabilities(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	for _, l := range r.dev.Languages() {
		resp.ParamData = appendString(resp.ParamData, l, 2)
	}
	return nil
}

func getLanguage(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = appendString(resp.ParamData, r.dev.Language(), 2)
	return nil
}

func setLanguage(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 2); err != nil {
		return err
	}
	if !r.dev.SetLanguage(string(m.ParamData)) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	return nil
}

func getSoftwareVersionLabel(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = appendString(resp.ParamData, r.dev.SoftwareVersionLabel(), device.LabelMaxLength)
	return nil
}

// ============================================================
// DMX512 setup
// ============================================================

func getPersonality(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = append(resp.ParamData,
		r.dev.PersonalityCurrent(m.SubDevice),
		r.dev.PersonalityCount(m.SubDevice))
	return nil
}

func setPersonality(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	n := m.ParamData[0]
	if n == 0 || n > r.dev.PersonalityCount(m.SubDevice) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	r.dev.SetPersonalityCurrent(m.SubDevice, n)
	return nil
}

func getPersonalityDescription(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	n := m.ParamData[0]
	p := r.dev.Personality(m.SubDevice, n)
	if p == nil {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	resp.ParamData = append(resp.ParamData, n)
	resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, p.DmxFootprint())
	resp.ParamData = appendString(resp.ParamData, p.Description(), device.PersonalityDescriptionMaxLength)
	return nil
}

func getDmxStartAddress(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	address := r.dev.DmxStartAddress(m.SubDevice)
	if r.dev.DmxFootprint(m.SubDevice) == 0 {
		address = device.StartAddressNone
	}
	resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, address)
	return nil
}

func setDmxStartAddress(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 2); err != nil {
		return err
	}
	address := binary.BigEndian.Uint16(m.ParamData)
	if !r.dev.SetDmxStartAddress(m.SubDevice, address) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	return nil
}

// getSlotInfo lists as many slots as fit one response
func getSlotInfo(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	footprint := r.dev.DmxFootprint(m.SubDevice)
	for offset := uint16(0); offset < footprint; offset++ {
		if len(resp.ParamData)+slotInfoSize > rdm.MaxParamDataLength {
			break
		}
		info, ok := r.dev.SlotInfo(m.SubDevice, offset)
		if !ok {
			continue
		}
		resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, offset)
		resp.ParamData = append(resp.ParamData, info.Type)
		resp.ParamData = binary.BigEndian.AppendUint16(resp.ParamData, info.Category)
	}
	return nil
}

// ============================================================
// Sensors
// ============================================================

func getSensorDefinition(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	n := m.ParamData[0]
	s := r.dev.Sensors().Get(n)
	if s == nil {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	d := s.Definition()
	b := append(resp.ParamData, n, d.Type, d.Unit, d.Prefix)
	b = binary.BigEndian.AppendUint16(b, uint16(d.RangeMin))
	b = binary.BigEndian.AppendUint16(b, uint16(d.RangeMax))
	b = binary.BigEndian.AppendUint16(b, uint16(d.NormalMin))
	b = binary.BigEndian.AppendUint16(b, uint16(d.NormalMax))
	b = append(b, d.RecordedSupported)
	resp.ParamData = appendString(b, d.Description, device.SensorDescriptionMaxLength)
	return nil
}

func appendSensorValue(b []byte, n uint8, v device.SensorValue) []byte {
	b = append(b, n)
	b = binary.BigEndian.AppendUint16(b, uint16(v.Present))
	b = binary.BigEndian.AppendUint16(b, uint16(v.Lowest))
	b = binary.BigEndian.AppendUint16(b, uint16(v.Highest))
	return binary.BigEndian.AppendUint16(b, uint16(v.Recorded))
}

func getSensorValue(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	n := m.ParamData[0]
	s := r.dev.Sensors().Get(n)
	if s == nil {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	resp.ParamData = appendSensorValue(resp.ParamData, n, s.Value())
	return nil
}

func setSensorValue(r *Responder, m *rdm.Message, resp *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	n := m.ParamData[0]
	if !r.dev.Sensors().Reset(n) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}

	var v device.SensorValue
	if s := r.dev.Sensors().Get(n); s != nil {
		v = s.Value()
	}
	resp.ParamData = appendSensorValue(resp.ParamData, n, v)
	return nil
}

func setRecordSensors(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	if !r.dev.Sensors().Record(m.ParamData[0]) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	return nil
}

// ============================================================
// Control
// ============================================================

func getIdentify(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	var v byte
	if r.dev.Identify() {
		v = 1
	}
	resp.ParamData = append(resp.ParamData, v)
	return nil
}

func setIdentify(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	if m.ParamData[0] > 1 {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	on := m.ParamData[0] == 1
	if on != r.dev.Identify() {
		r.dev.SetIdentify(on)
		r.notifier.Identify(on)
	}
	return nil
}

func getIdentifyMode(r *Responder, _ *rdm.Message, resp *rdm.Message) error {
	resp.ParamData = append(resp.ParamData, r.dev.IdentifyMode())
	return nil
}

func setIdentifyMode(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	if !r.dev.SetIdentifyMode(m.ParamData[0]) {
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	return nil
}

func setResetDevice(r *Responder, m *rdm.Message, _ *rdm.Message) error {
	if err := expectPDL(m, 1); err != nil {
		return err
	}
	switch m.ParamData[0] {
	case rdm.ResetWarm:
		r.notifier.ResetDevice(false)
	case rdm.ResetCold:
		r.notifier.ResetDevice(true)
	default:
		return rdm.Nack(rdm.NackDataOutOfRange)
	}
	return nil
}
