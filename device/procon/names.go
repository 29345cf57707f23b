package procon

import "fmt"

// Command is the second byte of a 0x80 report.
type Command byte

func (c Command) String() string {
	switch c {
	case CommandHandshakeInfo:
		return "HandshakeInfo"
	case CommandBaudRate:
		return "BaudRate"
	case CommandHIDOnly:
		return "HIDOnly"
	case CommandStartReports:
		return "StartReports"
	case CommandStopReports:
		return "StopReports"
	default:
		return fmt.Sprintf("Command(0x%02x)", byte(c))
	}
}

// Subcommand is the opcode at SubcommandOffset of a 0x01 report.
type Subcommand byte

func (s Subcommand) String() string {
	switch s {
	case SubDeviceInfoLite:
		return "DeviceInfoLite"
	case SubDeviceInfo:
		return "RequestDeviceInfo"
	case SubSetInputReportMode:
		return "SetInputReportMode"
	case SubTriggerElapsedTime:
		return "TriggerButtonsElapsedTime"
	case SubSetShipmentState:
		return "SetShipmentLowPowerState"
	case SubSPIFlashRead:
		return "SpiFlashRead"
	case SubSetMCUConfig:
		return "SetNfcMcuConfig"
	case SubSetPlayerLights:
		return "SetPlayerLights"
	case SubSetHomeLight:
		return "SetHomeLight"
	case SubEnableIMU:
		return "EnableImu"
	case SubSetIMUSensitivity:
		return "SetImuSensitivity"
	case SubEnableVibration:
		return "EnableVibration"
	default:
		return fmt.Sprintf("Subcommand(0x%02x)", byte(s))
	}
}

// SessionState is the handshake progress of a controller session.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateHandshaking
	StateStreaming
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// describeReport labels a received report for logs and traces.
func describeReport(b []byte) string {
	if len(b) < 2 {
		return "short"
	}
	switch b[0] {
	case ReportIDCommand:
		return "cmd:" + Command(b[1]).String()
	case ReportIDSubcommand:
		if len(b) <= SubcommandOffset {
			return "sub:short"
		}
		return "sub:" + Subcommand(b[SubcommandOffset]).String()
	default:
		return fmt.Sprintf("report:0x%02x", b[0])
	}
}
