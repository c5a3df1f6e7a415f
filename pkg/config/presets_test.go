package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canyonero/canlink/pkg/pdu"
)

const sampleINI = `
[engine]
Protocol = isotp
Bitrate = 500000
RequestID = 0x7E0
ReplyPattern = 0x7E8
ReplyMask = 0xFFFFFFFF
RXSeparationMicros = 0
TXSeparationMicros = 0

[abs-fd]
Protocol = isotpfd
Bitrate = 500000
DataBitrate = 2000000
RequestID = 0x7E1
ReplyPattern = 0x7E9
`

func TestLoadDataParsesPresets(t *testing.T) {
	presets, err := LoadData([]byte(sampleINI))
	require.NoError(t, err)
	require.Len(t, presets, 2)

	engine, ok := presets["engine"]
	require.True(t, ok)
	assert.Equal(t, pdu.ProtocolISOTP, engine.Protocol)
	assert.Equal(t, uint32(500000), engine.Bitrate)
	assert.Equal(t, uint32(0x7E0), engine.Arbitration.Request)
	assert.Equal(t, uint32(0x7E8), engine.Arbitration.ReplyPattern)
	assert.False(t, engine.IsFD())

	absFD, ok := presets["abs-fd"]
	require.True(t, ok)
	assert.True(t, absFD.IsFD())
	assert.Equal(t, uint32(2000000), absFD.DataBitrate)
	assert.Equal(t, uint32(0xFFFFFFFF), absFD.Arbitration.ReplyMask)
}

func TestLoadDataRejectsUnknownProtocol(t *testing.T) {
	_, err := LoadData([]byte("[bad]\nProtocol = carrier-pigeon\nBitrate = 1\n"))
	assert.Error(t, err)
}

func TestLoadDataRejectsUnrepresentableSeparationTime(t *testing.T) {
	_, err := LoadData([]byte("[bad]\nProtocol = raw\nBitrate = 1\nRXSeparationMicros = 42\n"))
	assert.Error(t, err)
}
