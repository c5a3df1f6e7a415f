package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRpcCallRoundTrip(t *testing.T) {
	call := NewRpcCall(9, "getOdometer", []byte{0x01, 0x02})
	handle, ok := call.RpcHandle()
	require.True(t, ok)
	assert.EqualValues(t, 9, handle)

	method, args, ok := call.RpcMethod()
	require.True(t, ok)
	assert.Equal(t, "getOdometer", method)
	assert.Equal(t, []byte{0x01, 0x02}, args)
}

func TestRpcReplyRoundTrip(t *testing.T) {
	reply := NewRpcReply(9, []byte{0xAA, 0xBB, 0xCC})
	handle, ok := reply.RpcHandle()
	require.True(t, ok)
	assert.EqualValues(t, 9, handle)

	data, ok := reply.RpcData()
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, data)
}

func TestRpcBinaryStreamRoundTrip(t *testing.T) {
	send := NewRpcSendBinary(3, []byte{1, 2, 3, 4})
	data, ok := send.RpcData()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	binReply := NewRpcBinaryReply(3, []byte{5, 6})
	data, ok = binReply.RpcData()
	require.True(t, ok)
	assert.Equal(t, []byte{5, 6}, data)
}

func TestRpcAccessorsRejectWrongType(t *testing.T) {
	ok4 := NewOk()
	_, ok := ok4.RpcHandle()
	assert.False(t, ok)
	_, _, ok = ok4.RpcMethod()
	assert.False(t, ok)
	_, ok = ok4.RpcData()
	assert.False(t, ok)
}

func TestRpcSerializeParseRoundTrip(t *testing.T) {
	p := NewRpcCall(1, "ping", nil)
	frame := p.Serialize()
	got, consumed, status := Parse(frame)
	require.Equal(t, Ok, status)
	assert.Equal(t, len(frame), consumed)
	method, args, ok := got.RpcMethod()
	require.True(t, ok)
	assert.Equal(t, "ping", method)
	assert.Empty(t, args)
}
