package pdu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCompressedRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 200)
	p, err := NewSendCompressed(3, data)
	require.NoError(t, err)
	assert.Equal(t, SendCompressed, p.Type)

	handle, got, err := DecompressedSend(p)
	require.NoError(t, err)
	assert.EqualValues(t, 3, handle)
	assert.Equal(t, data, got)
}

func TestSendCompressedRoundTripSmallIncompressible(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	p, err := NewSendCompressed(1, data)
	require.NoError(t, err)

	_, got, err := DecompressedSend(p)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReceivedCompressedRoundTrip(t *testing.T) {
	frame := CANFrame{Channel: 2, ID: 0x7E8, Extension: 0, Data: bytes.Repeat([]byte{0x10, 0x20}, 100)}
	p, err := NewReceivedCompressed(frame)
	require.NoError(t, err)

	got, err := DecompressedReceived(p)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestDecompressRejectsLengthMismatch(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 50)
	p, err := NewSendCompressed(1, data)
	require.NoError(t, err)
	putUint16(p.Payload[1:3], uint16(len(data)+1))

	_, _, err = DecompressedSend(p)
	assert.Error(t, err)
}
