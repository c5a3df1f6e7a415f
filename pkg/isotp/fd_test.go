package isotp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driveFD(t *testing.T, extended bool, blockSize uint8, payload []byte) ([]byte, []int) {
	t.Helper()
	sender := NewFDEngine(extended, 64, Strict, blockSize, 0, 0, nil)
	receiver := NewFDEngine(extended, 64, Strict, blockSize, 0, 0, nil)

	action, err := sender.WritePDU(payload)
	require.NoError(t, err)

	var widths []int
	var result []byte
	pending := append([][]byte{}, action.Frames...)
	for len(pending) > 0 {
		frame := pending[0]
		pending = pending[1:]
		require.True(t, sender.isAdmissibleFrameLen(len(frame)), "emitted frame length %d not admissible", len(frame))
		widths = append(widths, len(frame))
		ra := receiver.DidReceiveFrame(frame)
		switch ra.Kind {
		case ActionProcess:
			result = ra.Payload
		case ActionWriteFrames:
			for _, fc := range ra.Frames {
				sa := sender.DidReceiveFrame(fc)
				require.NotEqual(t, ActionViolation, sa.Kind)
				pending = append(pending, sa.Frames...)
			}
		case ActionViolation:
			t.Fatalf("unexpected violation: %v", ra.Err)
		}
	}
	return result, widths
}

func TestFDFullCoverageStandard(t *testing.T) {
	for length := 1; length <= 4095; length++ {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i)
		}
		got, widths := driveFD(t, false, 0, payload)
		require.Equal(t, payload, got, "length %d", length)
		for _, w := range widths {
			assert.True(t, isAdmissibleLength(w))
		}
	}
}

func TestFDFullCoverageExtended(t *testing.T) {
	for _, length := range []int{1, 7, 8, 61, 62, 63, 64, 65, 200, 4095} {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		got, _ := driveFD(t, true, 0, payload)
		require.Equal(t, payload, got, "length %d", length)
	}
}

func TestE6ISOTPFDSingleLiteralBytes(t *testing.T) {
	e := NewFDEngine(false, 64, Strict, 0, 0, 0, nil)
	payload := []byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}
	action, err := e.WritePDU(payload)
	require.NoError(t, err)
	require.Len(t, action.Frames, 1)
	want := []byte{0x00, 0x08, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0xAA, 0xAA}
	assert.Equal(t, want, action.Frames[0])
}

func TestFDIncomingLengthNotAdmissibleIsViolation(t *testing.T) {
	e := NewFDEngine(false, 64, Strict, 0, 0, 0, nil)
	action := e.DidReceiveFrame(make([]byte, 10))
	assert.Equal(t, ActionViolation, action.Kind)
}

func TestFDWritePDUFailsWhenNotIdle(t *testing.T) {
	e := NewFDEngine(false, 64, Strict, 0, 0, 0, nil)
	_, err := e.WritePDU(make([]byte, 100))
	require.NoError(t, err)
	_, err = e.WritePDU([]byte{1})
	assert.ErrorIs(t, err, ErrNotIdle)
}
