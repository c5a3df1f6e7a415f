package isotp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driveClassical simulates a full sender/receiver exchange and returns the
// reassembled payload the receiver produced.
func driveClassical(t *testing.T, mode AddressingMode, blockSize uint8, payload []byte) ([]byte, []uint8) {
	t.Helper()
	sender := NewClassicalEngine(mode, Strict, blockSize, 0, 0, nil)
	receiver := NewClassicalEngine(mode, Strict, blockSize, 0, 0, nil)

	action, err := sender.WritePDU(payload)
	require.NoError(t, err)

	var seqSeen []uint8
	var result []byte
	pending := append([][]byte{}, action.Frames...)
	for len(pending) > 0 {
		frame := pending[0]
		pending = pending[1:]
		if frame[0]>>4 == pciConsecutive {
			seqSeen = append(seqSeen, frame[0]&0x0F)
		}
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
	return result, seqSeen
}

func TestClassicalFullCoverageStandard(t *testing.T) {
	for length := 1; length <= 4095; length++ {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i)
		}
		got, _ := driveClassical(t, Standard, 0, payload)
		require.Equal(t, payload, got, "length %d", length)
	}
}

func TestClassicalFullCoverageExtended(t *testing.T) {
	for length := 1; length <= 4095; length++ {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i * 3)
		}
		got, _ := driveClassical(t, Extended, 0, payload)
		require.Equal(t, payload, got, "length %d", length)
	}
}

func TestClassicalFullCoverageWithBlockSize(t *testing.T) {
	for _, length := range []int{1, 7, 8, 9, 13, 100, 4095} {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i)
		}
		got, _ := driveClassical(t, Standard, 3, payload)
		require.Equal(t, payload, got, "length %d", length)
	}
}

func TestClassicalSequenceWrap(t *testing.T) {
	payload := make([]byte, 4095)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, seqs := driveClassical(t, Standard, 0, payload)
	require.NotEmpty(t, seqs)
	expected := uint8(1)
	for _, s := range seqs {
		assert.Equal(t, expected, s)
		expected = (expected + 1) % 16
	}
}

func TestClassicalInvalidSingleZeroLength(t *testing.T) {
	e := NewClassicalEngine(Standard, Strict, 0, 0, 0, nil)
	frame := []byte{0x00, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	action := e.DidReceiveFrame(frame)
	assert.Equal(t, ActionViolation, action.Kind)
}

func TestClassicalInvalidSingleTooLong(t *testing.T) {
	e := NewClassicalEngine(Standard, Strict, 0, 0, 0, nil)
	frame := []byte{0x0F, 1, 2, 3, 4, 5, 6, 7}
	action := e.DidReceiveFrame(frame)
	assert.Equal(t, ActionViolation, action.Kind)
}

func TestClassicalDefensiveRecoverySingleWhileSending(t *testing.T) {
	e := NewClassicalEngine(Standard, Defensive, 0, 0, 0, nil)
	_, err := e.WritePDU(make([]byte, 20))
	require.NoError(t, err)

	single := []byte{0x03, 0xAA, 0xBB, 0xCC, 0xAA, 0xAA, 0xAA, 0xAA}
	action := e.DidReceiveFrame(single)
	require.Equal(t, ActionProcess, action.Kind)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, action.Payload)
}

func TestClassicalDefensiveRecoveryUnparseableYieldsWaitForMore(t *testing.T) {
	e := NewClassicalEngine(Standard, Defensive, 0, 0, 0, nil)
	_, err := e.WritePDU(make([]byte, 20))
	require.NoError(t, err)

	garbage := []byte{0xFF, 1, 2, 3, 4, 5, 6, 7}
	action := e.DidReceiveFrame(garbage)
	assert.Equal(t, ActionWaitForMore, action.Kind)
}

func TestE5ISOTPClassicalTransmitLiteralBytes(t *testing.T) {
	e := NewClassicalEngine(Standard, Strict, 0, 0, 0, nil)
	action, err := e.WritePDU([]byte{0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38})
	require.NoError(t, err)
	require.Len(t, action.Frames, 1)
	assert.Equal(t, []byte{0x10, 0x08, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36}, action.Frames[0])

	fc := []byte{0x30, 0x00, 0x00, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	action2 := e.DidReceiveFrame(fc)
	require.Equal(t, ActionWriteFrames, action2.Kind)
	require.Len(t, action2.Frames, 1)
	assert.Equal(t, []byte{0x21, 0x37, 0x38, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, action2.Frames[0])
}

func TestWritePDUFailsWhenNotIdle(t *testing.T) {
	e := NewClassicalEngine(Standard, Strict, 0, 0, 0, nil)
	_, err := e.WritePDU(make([]byte, 20))
	require.NoError(t, err)
	_, err = e.WritePDU([]byte{1})
	assert.ErrorIs(t, err, ErrNotIdle)
}

func TestWritePDUFailsWhenTooLong(t *testing.T) {
	e := NewClassicalEngine(Standard, Strict, 0, 0, 0, nil)
	_, err := e.WritePDU(make([]byte, MaxMessageLen+1))
	assert.ErrorIs(t, err, ErrTooLong)
}
