package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	canlink "github.com/canyonero/canlink"
	"github.com/canyonero/canlink/pkg/pdu"
)

func newConnectedClient(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	c := New(ft, nil)
	require.NoError(t, c.Connect(context.Background()))
	return c, ft
}

func TestPingRoundTripCooperative(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewPong([]byte{0xAA, 0xBB}).Serialize())

	echo, err := c.Ping([]byte{0xAA, 0xBB}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, echo)

	require.Len(t, ft.sent, 1)
	assert.Equal(t, pdu.NewPing([]byte{0xAA, 0xBB}).Serialize(), ft.sent[0])
}

func TestPingRoundTripBackgroundPumped(t *testing.T) {
	c, ft := newConnectedClient(t)
	require.NoError(t, c.SetMode(BackgroundPumped))
	defer c.Disconnect()

	ft.push(pdu.NewPong([]byte{0x01}).Serialize())
	echo, err := c.Ping([]byte{0x01}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, echo)
}

func TestDeviceInfoRoundTrip(t *testing.T) {
	c, ft := newConnectedClient(t)
	want := pdu.DeviceInfo{
		Vendor:   "Canyonero",
		Model:    "Adapter-1",
		Hardware: "rev-B",
		Serial:   "SN001",
		Firmware: "1.2.3",
	}
	ft.push(pdu.NewInfo(want).Serialize())

	got, err := c.GetDeviceInfo(time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestErrorPDUTranslatesToProtocolError(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewError(pdu.ErrorInvalidChannel).Serialize())

	_, err := c.ReadVoltage(time.Second)
	require.Error(t, err)

	var protoErr *canlink.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, canlink.ProtocolErrorInvalidChannel, protoErr.Code())
	assert.ErrorIs(t, err, canlink.ErrInvalidChannel)
}

func TestRequestTimesOutWithoutReply(t *testing.T) {
	c, _ := newConnectedClient(t)

	start := time.Now()
	_, err := c.ReadVoltage(30 * time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, canlink.ErrTimeout)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, uint64(1), c.Stats().Timeouts)
}

func TestAsyncFrameQueuedWhileRequestOutstanding(t *testing.T) {
	c, ft := newConnectedClient(t)

	frame := pdu.CANFrame{Channel: 0, ID: 0x7E8, Extension: 0, Data: []byte{0x01, 0x02, 0x03}}
	ft.push(pdu.NewReceived(frame).Serialize())
	ft.push(pdu.NewVoltage(12000).Serialize())

	mv, err := c.ReadVoltage(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint16(12000), mv)

	queued := c.ReceiveMessages()
	require.Len(t, queued, 1)
	got, ok := queued[0].ReceivedFrame()
	require.True(t, ok)
	assert.Equal(t, frame, got)
	assert.Equal(t, uint64(1), c.Stats().AsyncFrames)
}

func TestSetModeRejectedWhileRequestInFlight(t *testing.T) {
	c, _ := newConnectedClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.ReadVoltage(40 * time.Millisecond)
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	err := c.SetMode(BackgroundPumped)
	assert.ErrorIs(t, err, canlink.ErrRequestInFlight)

	assert.ErrorIs(t, <-done, canlink.ErrTimeout)
}

func TestOpenAndCloseChannel(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewChannelOpened(7).Serialize())

	handle, err := c.OpenChannel(pdu.ProtocolISOTP, 500000, pdu.SeparationTimes{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), handle)

	ft.push(pdu.NewChannelClosed(7).Serialize())
	require.NoError(t, c.CloseChannel(7, time.Second))
}

func TestEndPeriodicAcceptsBareOk(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewOk().Serialize())

	require.NoError(t, c.EndPeriodicMessage(3, time.Second))
}

func TestEndPeriodicAcceptsPeriodicEnded(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewPeriodicEnded(3).Serialize())

	require.NoError(t, c.EndPeriodicMessage(3, time.Second))
}

func TestSendMessageIsFireAndForget(t *testing.T) {
	c, ft := newConnectedClient(t)
	require.NoError(t, c.SendMessage(1, []byte{0xDE, 0xAD}))
	require.Len(t, ft.sent, 1)
	assert.Equal(t, pdu.NewSend(1, []byte{0xDE, 0xAD}).Serialize(), ft.sent[0])
}

func TestUpdateFirmwareChunksAndAcksWholeImage(t *testing.T) {
	c, ft := newConnectedClient(t)
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	ft.push(pdu.NewUpdateStarted(4).Serialize())
	ft.push(pdu.NewUpdateDataAck(4).Serialize())
	ft.push(pdu.NewUpdateDataAck(8).Serialize())
	ft.push(pdu.NewUpdateDataAck(10).Serialize())
	ft.push(pdu.NewUpdateComplete().Serialize())

	require.NoError(t, c.UpdateFirmware("update.bin", data, time.Second))

	require.Len(t, ft.sent, 5)
	begin, _, status := pdu.Parse(ft.sent[0])
	require.Equal(t, pdu.Ok, status)
	name, ok := begin.Filename()
	require.True(t, ok)
	assert.Equal(t, "update.bin", name)

	first, _, status := pdu.Parse(ft.sent[1])
	require.Equal(t, pdu.Ok, status)
	offset, chunk, ok := first.FirmwareChunk()
	require.True(t, ok)
	assert.EqualValues(t, 0, offset)
	assert.Equal(t, data[0:4], chunk)

	last, _, status := pdu.Parse(ft.sent[3])
	require.Equal(t, pdu.Ok, status)
	offset, chunk, ok = last.FirmwareChunk()
	require.True(t, ok)
	assert.EqualValues(t, 8, offset)
	assert.Equal(t, data[8:10], chunk)

	assert.Equal(t, pdu.CompleteFirmwareUpdate, func() pdu.PDU { p, _, _ := pdu.Parse(ft.sent[4]); return p }().Type)
}

func TestUpdateFirmwareFailsOnMisalignedAck(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewUpdateStarted(4).Serialize())
	ft.push(pdu.NewUpdateDataAck(1).Serialize())

	err := c.UpdateFirmware("fw.bin", []byte{0, 1, 2, 3}, time.Second)
	assert.ErrorIs(t, err, canlink.ErrInvalidRPC)
}

func TestResetAdapterIsFireAndForget(t *testing.T) {
	c, ft := newConnectedClient(t)
	require.NoError(t, c.ResetAdapter())
	require.Len(t, ft.sent, 1)
	assert.Equal(t, pdu.NewReset().Serialize(), ft.sent[0])
}

func TestRpcRoundTrip(t *testing.T) {
	c, ft := newConnectedClient(t)
	ft.push(pdu.NewRpcReply(5, []byte{0xAA, 0xBB}).Serialize())

	result, err := c.Rpc(5, "getOdometer", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, result)

	require.Len(t, ft.sent, 1)
	call, _, status := pdu.Parse(ft.sent[0])
	require.Equal(t, pdu.Ok, status)
	method, _, ok := call.RpcMethod()
	require.True(t, ok)
	assert.Equal(t, "getOdometer", method)
}

func TestDisconnectFailsPendingRequest(t *testing.T) {
	c, _ := newConnectedClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.ReadVoltage(5 * time.Second)
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Disconnect())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, canlink.ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("request did not unblock after Disconnect")
	}
}
