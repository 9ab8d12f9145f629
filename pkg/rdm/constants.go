// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rdm provides the ANSI E1.20 Remote Device Management wire format.
//
// The package covers the standard RDM message layout, its 16-bit additive
// checksum, the discovery response datagram, the DEVICE_INFO record and
// helpers for formatting, validating and counting traffic. All multi-byte
// integers on the wire are big-endian.
package rdm

// Start codes
const (
	StartCode    = 0xCC // E120_SC_RDM
	SubStartCode = 0x01 // E120_SC_SUB_MESSAGE

	DiscoveryPreamble          = 0xFE
	DiscoveryPreambleSeparator = 0xAA
)

// Message size limits
const (
	HeaderSize            = 24 // start code through PDL
	ChecksumSize          = 2
	MaxParamDataLength    = 231
	MaxMessageSize        = HeaderSize + MaxParamDataLength + ChecksumSize
	DiscoveryResponseSize = 24
	UIDSize               = 6
)

// Command classes
const (
	DiscoveryCommand         = 0x10
	DiscoveryCommandResponse = 0x11
	GetCommand               = 0x20
	GetCommandResponse       = 0x21
	SetCommand               = 0x30
	SetCommandResponse       = 0x31
)

// Response types
const (
	ResponseTypeAck         = 0x00
	ResponseTypeAckTimer    = 0x01
	ResponseTypeNackReason  = 0x02
	ResponseTypeAckOverflow = 0x03
)

// NACK reason codes
const (
	NackUnknownPID              = 0x0000
	NackFormatError             = 0x0001
	NackHardwareFault           = 0x0002
	NackProxyReject             = 0x0003
	NackWriteProtect            = 0x0004
	NackUnsupportedCommandClass = 0x0005
	NackDataOutOfRange          = 0x0006
	NackBufferFull              = 0x0007
	NackPacketSizeUnsupported   = 0x0008
	NackSubDeviceOutOfRange     = 0x0009
)

// Sub-device addressing
const (
	RootDevice    = 0x0000
	AllSubDevices = 0xFFFF
	MaxSubDevice  = 0x0200
)

// Parameter IDs - discovery
const (
	PIDDiscUniqueBranch = 0x0001
	PIDDiscMute         = 0x0002
	PIDDiscUnMute       = 0x0003
)

// Parameter IDs - status collection and RDM information
const (
	PIDQueuedMessage         = 0x0020
	PIDStatusMessages        = 0x0030
	PIDSupportedParameters   = 0x0050
	PIDParameterDescription  = 0x0051
	PIDDeviceInfo            = 0x0060
	PIDProductDetailIDList   = 0x0070
	PIDDeviceModelDesc       = 0x0080
	PIDManufacturerLabel     = 0x0081
	PIDDeviceLabel           = 0x0082
	PIDFactoryDefaults       = 0x0090
	PIDLanguageCapabilities  = 0x00A0
	PIDLanguage              = 0x00B0
	PIDSoftwareVersionLabel  = 0x00C0
	PIDDMXPersonality        = 0x00E0
	PIDDMXPersonalityDesc    = 0x00E1
	PIDDMXStartAddress       = 0x00F0
	PIDSlotInfo              = 0x0120
	PIDSlotDescription       = 0x0121
	PIDDefaultSlotValue      = 0x0122
	PIDSensorDefinition      = 0x0200
	PIDSensorValue           = 0x0201
	PIDRecordSensors         = 0x0202
	PIDIdentifyDevice        = 0x1000
	PIDResetDevice           = 0x1001
	PIDIdentifyMode          = 0x1040 // E1.37-1
)

// Manufacturer-specific PID range
const (
	PIDManufacturerSpecificLo = 0x8000
	PIDManufacturerSpecificHi = 0xFFDF
)

// Status types
const (
	StatusNone           = 0x00
	StatusGetLastMessage = 0x01
	StatusAdvisory       = 0x02
	StatusWarning        = 0x03
	StatusError          = 0x04
)

// Status message IDs
const (
	StatusIDOverTemp         = 0x0021
	StatusIDUnderTemp        = 0x0022
	StatusIDSensorOutOfRange = 0x0023
)

// StatusMessageSize is the length of one STATUS_MESSAGES entry
const StatusMessageSize = 9

// Product categories and details
const (
	ProductCategoryNotDeclared = 0x0000
	ProductCategoryFixture     = 0x0100
	ProductCategoryOther       = 0x7FFF

	ProductDetailNotDeclared = 0x0000
	ProductDetailLED         = 0x0001
	ProductDetailOther       = 0x7FFF
)

// ProtocolVersion is the E1.20 protocol version reported in DEVICE_INFO.
const ProtocolVersion = 0x0100

// Mute control field bits
const (
	MuteManagedProxy = 0x0001
	MuteSubDevice    = 0x0002
	MuteBootLoader   = 0x0004
	MuteProxied      = 0x0008
)

// Parameter description data types
const (
	DataTypeNotDefined    = 0x00
	DataTypeBitField      = 0x01
	DataTypeASCII         = 0x02
	DataTypeUnsignedByte  = 0x03
	DataTypeSignedByte    = 0x04
	DataTypeUnsignedWord  = 0x05
	DataTypeSignedWord    = 0x06
	DataTypeUnsignedDWord = 0x07
	DataTypeSignedDWord   = 0x08
)

// Parameter description command class masks
const (
	CCGet    = 0x01
	CCSet    = 0x02
	CCGetSet = 0x03
)

// Slot types and slot definitions
const (
	SlotTypePrimary = 0x00

	SlotIntensity     = 0x0001
	SlotColorAddRed   = 0x0205
	SlotColorAddGreen = 0x0206
	SlotColorAddBlue  = 0x0207
	SlotColorAddWhite = 0x0212
	SlotUndefined     = 0xFFFF
)

// Sensor types
const (
	SensorTemperature = 0x00
	SensorVoltage     = 0x01
	SensorCurrent     = 0x02
	SensorPower       = 0x0F
	SensorIlluminance = 0x18
	SensorHumidity    = 0x1F
	SensorOther       = 0x7F
)

// Units and prefixes
const (
	UnitsNone       = 0x00
	UnitsCentigrade = 0x01
	UnitsVoltsDC    = 0x02
	UnitsAmpereDC   = 0x05
	UnitsWatt       = 0x0A
	UnitsLux        = 0x1A

	PrefixNone  = 0x00
	PrefixMilli = 0x03
)

// Reset device values
const (
	ResetWarm = 0x01
	ResetCold = 0xFF
)

// SensorAll addresses every sensor in SENSOR_VALUE and RECORD_SENSORS.
const SensorAll = 0xFF
