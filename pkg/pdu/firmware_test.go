package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirmwareLifecycleRoundTrip(t *testing.T) {
	begin := NewBeginFirmwareUpdate("update.bin", 1024)
	name, ok := begin.Filename()
	require.True(t, ok)
	assert.Equal(t, "update.bin", name)
	total, ok := begin.TotalSize()
	require.True(t, ok)
	assert.EqualValues(t, 1024, total)

	started := NewUpdateStarted(256)
	chunkSize, ok := started.FirmwareChunkSize()
	require.True(t, ok)
	assert.EqualValues(t, 256, chunkSize)

	chunk := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := NewFirmwareData(256, chunk)
	offset, got, ok := data.FirmwareChunk()
	require.True(t, ok)
	assert.EqualValues(t, 256, offset)
	assert.Equal(t, chunk, got)

	ack := NewUpdateDataAck(260)
	ackOffset, ok := ack.FirmwareAckOffset()
	require.True(t, ok)
	assert.EqualValues(t, 260, ackOffset)

	assert.Equal(t, CompleteFirmwareUpdate, NewCompleteFirmwareUpdate().Type)
	assert.Equal(t, UpdateComplete, NewUpdateComplete().Type)
	assert.Equal(t, Reset, NewReset().Type)
}

func TestFirmwareAccessorsRejectWrongType(t *testing.T) {
	ok4 := NewOk()
	_, ok := ok4.Filename()
	assert.False(t, ok)
	_, ok = ok4.TotalSize()
	assert.False(t, ok)
	_, _, ok = ok4.FirmwareChunk()
	assert.False(t, ok)
	_, ok = ok4.FirmwareChunkSize()
	assert.False(t, ok)
	_, ok = ok4.FirmwareAckOffset()
	assert.False(t, ok)
}

func TestFirmwareSerializeParseRoundTrip(t *testing.T) {
	p := NewBeginFirmwareUpdate("fw.bin", 42)
	frame := p.Serialize()
	got, consumed, status := Parse(frame)
	require.Equal(t, Ok, status)
	assert.Equal(t, len(frame), consumed)
	name, ok := got.Filename()
	require.True(t, ok)
	assert.Equal(t, "fw.bin", name)
}
