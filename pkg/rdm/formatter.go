// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// FormatMessage formats a message into a human-readable string
func FormatMessage(m *Message) string {
	result := fmt.Sprintf("%s %s (0x%04X) %s -> %s tn=%d sub=%d",
		FormatCommandClass(m.CommandClass), FormatPID(m.PID), m.PID,
		m.Source, m.Destination, m.TransactionNumber, m.SubDevice)

	if m.IsResponse() {
		result += " " + FormatResponseType(m.PortID)
		if reason, ok := m.NackReason(); ok {
			result += " reason=" + FormatNackReason(reason)
		}
		if m.MessageCount > 0 {
			result += fmt.Sprintf(" queued=%d", m.MessageCount)
		}
	} else {
		result += fmt.Sprintf(" port=%d", m.PortID)
	}

	result += fmt.Sprintf(" pdl=%d\n", len(m.ParamData))

	if len(m.ParamData) > 0 && m.PortID != ResponseTypeNackReason {
		result += FormatParamData(m)
	}

	return result
}

// FormatCommandClass returns the human-readable name for a command class
func FormatCommandClass(cc uint8) string {
	switch cc {
	case DiscoveryCommand:
		return "DISCOVERY_COMMAND"
	case DiscoveryCommandResponse:
		return "DISCOVERY_COMMAND_RESPONSE"
	case GetCommand:
		return "GET_COMMAND"
	case GetCommandResponse:
		return "GET_COMMAND_RESPONSE"
	case SetCommand:
		return "SET_COMMAND"
	case SetCommandResponse:
		return "SET_COMMAND_RESPONSE"
	default:
		return fmt.Sprintf("CC_0x%02X", cc)
	}
}

// FormatResponseType returns the human-readable name for a response type
func FormatResponseType(rt uint8) string {
	switch rt {
	case ResponseTypeAck:
		return "ACK"
	case ResponseTypeAckTimer:
		return "ACK_TIMER"
	case ResponseTypeNackReason:
		return "NACK_REASON"
	case ResponseTypeAckOverflow:
		return "ACK_OVERFLOW"
	default:
		return fmt.Sprintf("RESPONSE_0x%02X", rt)
	}
}

// FormatNackReason returns the human-readable name for a NACK reason code
func FormatNackReason(reason uint16) string {
	switch reason {
	case NackUnknownPID:
		return "UNKNOWN_PID"
	case NackFormatError:
		return "FORMAT_ERROR"
	case NackHardwareFault:
		return "HARDWARE_FAULT"
	case NackProxyReject:
		return "PROXY_REJECT"
	case NackWriteProtect:
		return "WRITE_PROTECT"
	case NackUnsupportedCommandClass:
		return "UNSUPPORTED_COMMAND_CLASS"
	case NackDataOutOfRange:
		return "DATA_OUT_OF_RANGE"
	case NackBufferFull:
		return "BUFFER_FULL"
	case NackPacketSizeUnsupported:
		return "PACKET_SIZE_UNSUPPORTED"
	case NackSubDeviceOutOfRange:
		return "SUB_DEVICE_OUT_OF_RANGE"
	default:
		return fmt.Sprintf("NR_0x%04X", reason)
	}
}

var pidNames = map[uint16]string{
	PIDDiscUniqueBranch:     "DISC_UNIQUE_BRANCH",
	PIDDiscMute:             "DISC_MUTE",
	PIDDiscUnMute:           "DISC_UN_MUTE",
	PIDQueuedMessage:        "QUEUED_MESSAGE",
	PIDStatusMessages:       "STATUS_MESSAGES",
	PIDSupportedParameters:  "SUPPORTED_PARAMETERS",
	PIDParameterDescription: "PARAMETER_DESCRIPTION",
	PIDDeviceInfo:           "DEVICE_INFO",
	PIDProductDetailIDList:  "PRODUCT_DETAIL_ID_LIST",
	PIDDeviceModelDesc:      "DEVICE_MODEL_DESCRIPTION",
	PIDManufacturerLabel:    "MANUFACTURER_LABEL",
	PIDDeviceLabel:          "DEVICE_LABEL",
	PIDFactoryDefaults:      "FACTORY_DEFAULTS",
	PIDLanguageCapabilities: "LANGUAGE_CAPABILITIES",
	PIDLanguage:             "LANGUAGE",
	PIDSoftwareVersionLabel: "SOFTWARE_VERSION_LABEL",
	PIDDMXPersonality:       "DMX_PERSONALITY",
	PIDDMXPersonalityDesc:   "DMX_PERSONALITY_DESCRIPTION",
	PIDDMXStartAddress:      "DMX_START_ADDRESS",
	PIDSlotInfo:             "SLOT_INFO",
	PIDSlotDescription:      "SLOT_DESCRIPTION",
	PIDDefaultSlotValue:     "DEFAULT_SLOT_VALUE",
	PIDSensorDefinition:     "SENSOR_DEFINITION",
	PIDSensorValue:          "SENSOR_VALUE",
	PIDRecordSensors:        "RECORD_SENSORS",
	PIDIdentifyDevice:       "IDENTIFY_DEVICE",
	PIDResetDevice:          "RESET_DEVICE",
	PIDIdentifyMode:         "IDENTIFY_MODE",
}

// FormatPID returns the human-readable name for a parameter ID
func FormatPID(pid uint16) string {
	if name, ok := pidNames[pid]; ok {
		return name
	}
	if pid >= PIDManufacturerSpecificLo && pid <= PIDManufacturerSpecificHi {
		return fmt.Sprintf("MANUFACTURER_0x%04X", pid)
	}
	return fmt.Sprintf("PID_0x%04X", pid)
}

// ParsePID accepts a PID name as printed by FormatPID or a number
// (decimal, or hex with 0x)
func ParsePID(s string) (uint16, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for pid, n := range pidNames {
		if n == name {
			return pid, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown PID %q", s)
	}
	return uint16(v), nil
}

// FormatParamData decodes the parameter data of well-known PIDs,
// falling back to a hex dump.
func FormatParamData(m *Message) string {
	pd := m.ParamData

	switch {
	case m.PID == PIDDeviceInfo && len(pd) >= DeviceInfoSize:
		info, _ := ParseDeviceInfo(pd)
		return FormatDeviceInfo(info)

	case m.PID == PIDDiscUniqueBranch && len(pd) >= 2*UIDSize:
		var lower, upper UID
		copy(lower[:], pd[:UIDSize])
		copy(upper[:], pd[UIDSize:2*UIDSize])
		return fmt.Sprintf("  Range: %s - %s\n", lower, upper)

	case (m.PID == PIDDiscMute || m.PID == PIDDiscUnMute) && len(pd) >= 2:
		return fmt.Sprintf("  Control: 0x%04X\n", binary.BigEndian.Uint16(pd))

	case m.PID == PIDDMXStartAddress && len(pd) == 2:
		return fmt.Sprintf("  Start Address: %d\n", binary.BigEndian.Uint16(pd))

	case m.PID == PIDDMXPersonality && len(pd) == 2:
		return fmt.Sprintf("  Personality: %d of %d\n", pd[0], pd[1])

	case m.PID == PIDDMXPersonality && len(pd) == 1:
		return fmt.Sprintf("  Personality: %d\n", pd[0])

	case m.PID == PIDIdentifyDevice && len(pd) == 1:
		return fmt.Sprintf("  Identify: %t\n", pd[0] != 0)

	case m.PID == PIDSupportedParameters:
		var names []string
		for i := 0; i+1 < len(pd); i += 2 {
			names = append(names, FormatPID(binary.BigEndian.Uint16(pd[i:])))
		}
		return "  Parameters: " + strings.Join(names, ", ") + "\n"

	case isASCIIPID(m.PID) && m.IsResponse():
		return fmt.Sprintf("  Text: %q\n", string(pd))
	}

	return fmt.Sprintf("  Data: % X\n", pd)
}

// FormatDeviceInfo formats a DEVICE_INFO record
func FormatDeviceInfo(info DeviceInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Protocol: %d.%d  Model: 0x%04X  Category: 0x%04X  Software: 0x%08X\n",
		info.ProtocolVersion>>8, info.ProtocolVersion&0xFF, info.DeviceModel, info.ProductCategory, info.SoftwareVersion)
	fmt.Fprintf(&sb, "  Footprint: %d  Personality: %d/%d  Start Address: %s\n",
		info.DmxFootprint, info.CurrentPersonality, info.PersonalityCount, formatStartAddress(info.DmxStartAddress))
	fmt.Fprintf(&sb, "  Sub-devices: %d  Sensors: %d\n", info.SubDeviceCount, info.SensorCount)
	return sb.String()
}

func formatStartAddress(address uint16) string {
	if address == 0xFFFF {
		return "none"
	}
	return fmt.Sprintf("%d", address)
}

func isASCIIPID(pid uint16) bool {
	switch pid {
	case PIDDeviceLabel, PIDManufacturerLabel, PIDDeviceModelDesc, PIDSoftwareVersionLabel, PIDLanguage, PIDLanguageCapabilities:
		return true
	}
	return false
}
