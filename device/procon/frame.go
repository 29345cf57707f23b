package procon

import "fmt"

// Frame is one fixed-size transport frame.
//
//	0: ack byte
//	1: command byte (or frame counter)
//	2-63: payload, zero padded
type Frame [FrameSize]byte

// EncodeFrame builds a Frame from its header bytes and payload.
func EncodeFrame(ack, cmd byte, payload []byte) (Frame, error) {
	var f Frame
	if len(payload) > MaxPayloadSize {
		return f, fmt.Errorf("encode frame %02x/%02x (%d bytes): %w", ack, cmd, len(payload), ErrPayloadTooLarge)
	}
	f[0] = ack
	f[1] = cmd
	copy(f[FrameHeaderSize:], payload)
	return f, nil
}

// Ack returns the frame's ack byte.
func (f *Frame) Ack() byte { return f[0] }

// Command returns the frame's command byte.
func (f *Frame) Command() byte { return f[1] }

// Payload returns the 62 payload bytes.
func (f *Frame) Payload() []byte { return f[FrameHeaderSize:] }
