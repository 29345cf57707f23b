package procon

import "errors"

// HandleReport dispatches one report received from the console. Only offsets
// 0, 1 and 10..15 are interpreted; shorter reports are zero extended.
// The returned error is non-nil only when a reply could not be sent.
func (c *Controller) HandleReport(report []byte) error {
	var buf [ReadBufferSize]byte
	copy(buf[:], report)
	b := buf[:]

	switch b[0] {
	case ReportIDCommand:
		return c.handleCommand(b)
	case ReportIDSubcommand:
		return c.handleSubcommand(b)
	default:
		c.unknown("unknown request", b)
		return nil
	}
}

func (c *Controller) handleCommand(b []byte) error {
	cmd := b[1]
	c.logger.Debug("command", "cmd", Command(cmd).String())

	switch cmd {
	case CommandHandshakeInfo:
		c.setState(StateHandshaking)
		return c.reply(AckCommandReply, cmd, handshakeInfoPayload)
	case CommandBaudRate, CommandHIDOnly:
		c.setState(StateHandshaking)
		return c.reply(AckCommandReply, cmd, nil)
	case CommandStartReports:
		c.startStreaming()
		return nil
	case CommandStopReports:
		c.stopStreaming()
		return nil
	default:
		c.unknown("unknown command", b)
		return nil
	}
}

func (c *Controller) handleSubcommand(b []byte) error {
	sub := b[SubcommandOffset]
	c.logger.Debug("subcommand", "sub", Subcommand(sub).String())

	switch sub {
	case SubDeviceInfoLite:
		return c.uart(true, sub, deviceInfoLite)
	case SubDeviceInfo:
		return c.uart(true, sub, deviceInfoPayload)
	case SubSetInputReportMode,
		SubTriggerElapsedTime,
		SubSetShipmentState,
		SubSetPlayerLights,
		SubSetHomeLight,
		SubEnableIMU,
		SubSetIMUSensitivity,
		SubEnableVibration:
		return c.uart(true, sub, nil)
	case SubSPIFlashRead:
		return c.spiRead(b)
	case SubSetMCUConfig:
		return c.uart(true, sub, mcuConfigPayload)
	default:
		c.unknown("unknown subcommand", b)
		return nil
	}
}

// spiRead answers a flash read. The request header (address and length) is
// echoed in front of the data so the console can match the reply.
func (c *Controller) spiRead(b []byte) error {
	selector := b[SPISelectorOffset]
	offset := b[SPIOffsetOffset]
	length := b[SPILengthOffset]

	var data []byte
	var err error
	if int(length) > MaxSPIReadLength {
		err = ErrSPIBadRange
	} else {
		data, err = ReadSPI(selector, offset, length)
	}
	if err != nil {
		c.logger.Debug("spi read rejected",
			"selector", selector, "offset", offset, "length", length,
			"miss", errors.Is(err, ErrSPIMiss), "error", err)
		return c.uart(false, SubSPIFlashRead, nil)
	}

	payload := make([]byte, 0, SPIRequestHeaderLen+len(data))
	payload = append(payload, b[SPIOffsetOffset:SPIOffsetOffset+SPIRequestHeaderLen]...)
	payload = append(payload, data...)
	return c.uart(true, SubSPIFlashRead, payload)
}

// uart sends a subcommand reply. The live input report leads the payload,
// followed by the ack byte, the subcommand id and the reply data.
func (c *Controller) uart(ack bool, sub byte, data []byte) error {
	ackByte := byte(UARTNack)
	if ack {
		ackByte = UARTAck
		if len(data) > 0 {
			ackByte |= sub
		}
	}

	st := c.Snapshot()
	report := st.Report()

	payload := make([]byte, 0, InputReportSize+2+len(data))
	payload = append(payload, report[:]...)
	payload = append(payload, ackByte, sub)
	payload = append(payload, data...)
	return c.reply(AckSubcommandReply, c.counter.Value(), payload)
}
