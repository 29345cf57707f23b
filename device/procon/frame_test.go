package procon_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/nscon/device/procon"
)

func TestEncodeFrame(t *testing.T) {
	f, err := procon.EncodeFrame(0x81, 0x03, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), f.Ack())
	assert.Equal(t, byte(0x03), f.Command())
	assert.Equal(t, make([]byte, procon.MaxPayloadSize), f.Payload())

	f, err = procon.EncodeFrame(0x81, 0x01, []byte{0x00, 0x03})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01, 0x00, 0x03, 0x00}, f[:5])
	assert.Len(t, f[:], procon.FrameSize)
}

func TestEncodeFrame_PayloadLimit(t *testing.T) {
	full := bytes.Repeat([]byte{0xaa}, procon.MaxPayloadSize)
	f, err := procon.EncodeFrame(0x21, 0x00, full)
	require.NoError(t, err)
	assert.Equal(t, full, f.Payload())

	_, err = procon.EncodeFrame(0x21, 0x00, append(full, 0xbb))
	assert.ErrorIs(t, err, procon.ErrPayloadTooLarge)
}
