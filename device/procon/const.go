package procon

import "time"

// Frame geometry.
const (
	FrameSize       = 64
	FrameHeaderSize = 2
	MaxPayloadSize  = FrameSize - FrameHeaderSize
	ReadBufferSize  = 128
	InputReportSize = 11
)

// Report IDs sent by the console.
const (
	ReportIDCommand    = 0x80
	ReportIDSubcommand = 0x01
)

// Outer ack bytes written to the console.
const (
	AckCommandReply    = 0x81
	AckSubcommandReply = 0x21
	AckFullInputReport = 0x30
)

// Commands carried in byte 1 of a 0x80 report.
const (
	CommandHandshakeInfo = 0x01
	CommandBaudRate      = 0x02
	CommandHIDOnly       = 0x03
	CommandStartReports  = 0x04
	CommandStopReports   = 0x05
)

// Subcommands carried at SubcommandOffset of a 0x01 report.
const (
	SubDeviceInfoLite     = 0x01
	SubDeviceInfo         = 0x02
	SubSetInputReportMode = 0x03
	SubTriggerElapsedTime = 0x04
	SubSetShipmentState   = 0x08
	SubSPIFlashRead       = 0x10
	SubSetMCUConfig       = 0x21
	SubSetPlayerLights    = 0x30
	SubSetHomeLight       = 0x38
	SubEnableIMU          = 0x40
	SubSetIMUSensitivity  = 0x41
	SubEnableVibration    = 0x48
)

// Byte offsets inside a received 0x01 report.
const (
	SubcommandOffset    = 10
	SPIOffsetOffset     = 11
	SPISelectorOffset   = 12
	SPILengthOffset     = 15
	SPIRequestHeaderLen = 5
)

// UART reply ack byte flags.
const (
	UARTAck  = 0x80
	UARTNack = 0x00
)

// Input report marker in byte 0 of the 11-byte report.
const InputReportMarker = 0x81

// Button bit offsets within the three button bytes of the input report.
const (
	BitY  = 0
	BitX  = 1
	BitB  = 2
	BitA  = 3
	BitR  = 6
	BitZR = 7

	BitMinus       = 0
	BitPlus        = 1
	BitLStickPress = 2
	BitRStickPress = 3
	BitHome        = 4
	BitCapture     = 5

	BitDown  = 0
	BitUp    = 1
	BitRight = 2
	BitLeft  = 3
	BitL     = 6
	BitZL    = 7
)

// Stick conversion: floor((1+axis)*StickScale) yields 0..StickMax.
const (
	StickScale = 2047.5
	StickMax   = 0x0FFF
)

// Default scheduler cadences.
const (
	DefaultInputInterval   = 30 * time.Millisecond
	DefaultCounterInterval = 5 * time.Millisecond
)

// DefaultPulse is how long a pulsed key stays pressed before it is cleared.
const DefaultPulse = 100 * time.Millisecond

// MaxSPIReadLength is the largest SPI read that still fits one UART reply.
const MaxSPIReadLength = MaxPayloadSize - InputReportSize - 2 - SPIRequestHeaderLen

var (
	handshakeInfoPayload = []byte{0x00, 0x03, 0x00, 0x00, 0x5e, 0x00, 0x53, 0x5e}
	deviceInfoLite       = []byte{0x03, 0x01}
	deviceInfoPayload    = []byte{0x03, 0x48, 0x03, 0x02, 0x5e, 0x53, 0x00, 0x5e, 0x00, 0x00, 0x03, 0x01}
	mcuConfigPayload     = []byte{0x01, 0x00, 0xff, 0x00, 0x03, 0x00, 0x05, 0x01}
	connectMagic         = []byte{0x00, 0x03}
)
