// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"encoding/binary"
	"fmt"
)

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyInvalidCommandClass AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyBroadcastGet
	AnomalyInvalidValue
	AnomalyInvalidResponseType
	AnomalyChecksumError
	AnomalyDecodeError
)

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// fixedPDL lists PIDs whose request parameter data has a fixed length per command class.
var fixedPDL = map[uint16]map[uint8]int{
	PIDDiscUniqueBranch:   {DiscoveryCommand: 2 * UIDSize},
	PIDDiscMute:           {DiscoveryCommand: 0},
	PIDDiscUnMute:         {DiscoveryCommand: 0},
	PIDDeviceInfo:         {GetCommand: 0, GetCommandResponse: DeviceInfoSize},
	PIDDMXStartAddress:    {GetCommand: 0, SetCommand: 2, GetCommandResponse: 2},
	PIDDMXPersonality:     {GetCommand: 0, SetCommand: 1, GetCommandResponse: 2},
	PIDIdentifyDevice:     {GetCommand: 0, SetCommand: 1, GetCommandResponse: 1},
	PIDFactoryDefaults:    {GetCommand: 0, SetCommand: 0, GetCommandResponse: 1},
	PIDQueuedMessage:      {GetCommand: 1},
	PIDStatusMessages:     {GetCommand: 1},
	PIDDMXPersonalityDesc: {GetCommand: 1},
	PIDSensorDefinition:   {GetCommand: 1},
	PIDSensorValue:        {GetCommand: 1, SetCommand: 1},
	PIDRecordSensors:      {SetCommand: 1},
	PIDResetDevice:        {SetCommand: 1},
	PIDIdentifyMode:       {SetCommand: 1},
	PIDLanguage:           {SetCommand: 2},
}

// ValidateMessage validates message semantics and detects anomalies
// Returns a slice of validation errors (empty if message is valid)
func ValidateMessage(m *Message) []ValidationError {
	errors := []ValidationError{}

	switch m.CommandClass {
	case DiscoveryCommand, GetCommand, SetCommand:
	case DiscoveryCommandResponse, GetCommandResponse, SetCommandResponse:
		if m.PortID > ResponseTypeAckOverflow {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidResponseType,
				Message: fmt.Sprintf("Invalid response type=0x%02X", m.PortID),
				Details: map[string]interface{}{"response_type": m.PortID},
			})
		}
	default:
		return []ValidationError{{
			Type:    AnomalyInvalidCommandClass,
			Message: fmt.Sprintf("Invalid command class=0x%02X", m.CommandClass),
			Details: map[string]interface{}{"command_class": m.CommandClass},
		}}
	}

	if m.CommandClass == GetCommand && m.IsBroadcast() {
		errors = append(errors, ValidationError{
			Type:    AnomalyBroadcastGet,
			Message: fmt.Sprintf("GET %s sent to broadcast %s", FormatPID(m.PID), m.Destination),
			Details: map[string]interface{}{"pid": m.PID, "destination": m.Destination.String()},
		})
	}

	if m.PortID == ResponseTypeNackReason && m.IsResponse() {
		return append(errors, validateNack(m)...)
	}

	if byClass, ok := fixedPDL[m.PID]; ok {
		if want, ok := byClass[m.CommandClass]; ok && len(m.ParamData) != want {
			errors = append(errors, ValidationError{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("%s %s PDL=%d (expected %d)", FormatCommandClass(m.CommandClass), FormatPID(m.PID), len(m.ParamData), want),
				Details: map[string]interface{}{"pdl": len(m.ParamData), "expected": want},
			})
			return errors
		}
	}

	switch m.PID {
	case PIDDiscUniqueBranch:
		errors = append(errors, validateUniqueBranch(m)...)
	case PIDDMXStartAddress:
		errors = append(errors, validateStartAddress(m)...)
	case PIDDeviceLabel:
		if len(m.ParamData) > 32 {
			errors = append(errors, ValidationError{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("DEVICE_LABEL too long (%d bytes, max 32)", len(m.ParamData)),
				Details: map[string]interface{}{"pdl": len(m.ParamData), "max": 32},
			})
		}
	}

	return errors
}

func validateNack(m *Message) []ValidationError {
	if len(m.ParamData) != 2 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("NACK_REASON PDL=%d (expected 2)", len(m.ParamData)),
			Details: map[string]interface{}{"pdl": len(m.ParamData), "expected": 2},
		}}
	}
	if reason := binary.BigEndian.Uint16(m.ParamData); reason > NackSubDeviceOutOfRange {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Unknown NACK reason=0x%04X", reason),
			Details: map[string]interface{}{"reason": reason},
		}}
	}
	return nil
}

func validateUniqueBranch(m *Message) []ValidationError {
	if m.CommandClass != DiscoveryCommand || len(m.ParamData) != 2*UIDSize {
		return nil
	}
	var lower, upper UID
	copy(lower[:], m.ParamData[:UIDSize])
	copy(upper[:], m.ParamData[UIDSize:])
	if lower.Uint64() > upper.Uint64() {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("DISC_UNIQUE_BRANCH lower %s > upper %s", lower, upper),
			Details: map[string]interface{}{"lower": lower.String(), "upper": upper.String()},
		}}
	}
	if !m.IsBroadcast() {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("DISC_UNIQUE_BRANCH sent to non-broadcast %s", m.Destination),
			Details: map[string]interface{}{"destination": m.Destination.String()},
		}}
	}
	return nil
}

func validateStartAddress(m *Message) []ValidationError {
	if len(m.ParamData) != 2 || (m.CommandClass != SetCommand && m.CommandClass != GetCommandResponse) {
		return nil
	}
	address := binary.BigEndian.Uint16(m.ParamData)
	if m.CommandClass == GetCommandResponse && address == 0xFFFF {
		return nil
	}
	if address == 0 || address > 512 {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("DMX start address=%d (valid 1-512)", address),
			Details: map[string]interface{}{"address": address, "max": 512},
		}}
	}
	return nil
}
