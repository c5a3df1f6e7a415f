package client

import (
	"time"

	canlink "github.com/canyonero/canlink"
	"github.com/canyonero/canlink/pkg/pdu"
)

// doRequest sends req and waits up to timeout for the expected reply
// type. An inbound 0xE0..0xEF error PDU is translated into a
// *canlink.ProtocolError instead of being returned as a mismatched type.
func (c *Client) doRequest(req pdu.PDU, expected pdu.Type, timeout time.Duration) (pdu.PDU, error) {
	if err := c.send(req); err != nil {
		return pdu.PDU{}, err
	}
	reply, err := c.waitResponse(expected, time.Now().Add(timeout))
	if err != nil {
		return pdu.PDU{}, err
	}
	if reply.IsError() {
		return pdu.PDU{}, canlink.NewProtocolError(canlink.ProtocolErrorCode(reply.Type))
	}
	if reply.Type != expected {
		return pdu.PDU{}, canlink.ErrInvalidRPC
	}
	return reply, nil
}

// Ping sends an echo payload and waits for the matching Pong.
func (c *Client) Ping(echo []byte, timeout time.Duration) ([]byte, error) {
	reply, err := c.doRequest(pdu.NewPing(echo), pdu.Pong, timeout)
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

// GetDeviceInfo requests and decodes the adapter's identity.
func (c *Client) GetDeviceInfo(timeout time.Duration) (pdu.DeviceInfo, error) {
	reply, err := c.doRequest(pdu.NewRequestInfo(), pdu.Info, timeout)
	if err != nil {
		return pdu.DeviceInfo{}, err
	}
	info, ok := reply.DeviceInfo()
	if !ok {
		return pdu.DeviceInfo{}, canlink.ErrInvalidRPC
	}
	return info, nil
}

// ReadVoltage requests the adapter's supply voltage in millivolts.
func (c *Client) ReadVoltage(timeout time.Duration) (uint16, error) {
	reply, err := c.doRequest(pdu.NewReadVoltage(), pdu.Voltage, timeout)
	if err != nil {
		return 0, err
	}
	mv, ok := reply.VoltageMillivolts()
	if !ok {
		return 0, canlink.ErrInvalidRPC
	}
	return mv, nil
}

// OpenChannel opens a classical vehicle-bus channel and returns its
// handle.
func (c *Client) OpenChannel(proto pdu.ChannelProtocol, bitrate uint32, sep pdu.SeparationTimes, timeout time.Duration) (uint8, error) {
	req, err := pdu.NewOpenChannel(proto, bitrate, sep)
	if err != nil {
		return 0, canlink.ErrInvalidChannel
	}
	reply, err := c.doRequest(req, pdu.ChannelOpened, timeout)
	if err != nil {
		return 0, err
	}
	handle, ok := reply.ChannelHandle()
	if !ok {
		return 0, canlink.ErrInvalidRPC
	}
	return handle, nil
}

// OpenFDChannel opens a CAN-FD channel and returns its handle.
func (c *Client) OpenFDChannel(proto pdu.ChannelProtocol, bitrate, dataBitrate uint32, sep pdu.SeparationTimes, timeout time.Duration) (uint8, error) {
	req, err := pdu.NewOpenFDChannel(proto, bitrate, dataBitrate, sep)
	if err != nil {
		return 0, canlink.ErrInvalidChannel
	}
	reply, err := c.doRequest(req, pdu.ChannelOpened, timeout)
	if err != nil {
		return 0, err
	}
	handle, ok := reply.ChannelHandle()
	if !ok {
		return 0, canlink.ErrInvalidRPC
	}
	return handle, nil
}

// CloseChannel closes a previously opened channel.
func (c *Client) CloseChannel(handle uint8, timeout time.Duration) error {
	_, err := c.doRequest(pdu.NewCloseChannel(handle), pdu.ChannelClosed, timeout)
	return err
}

// SetArbitration updates a channel's arbitration filter. Fire-and-forget
// would race the adapter applying it before the next Send, so this is a
// synchronous request acknowledged by a bare Ok.
func (c *Client) SetArbitration(handle uint8, arb pdu.Arbitration, timeout time.Duration) error {
	req := pdu.NewSetArbitration(handle, arb)
	_, err := c.doRequest(req, pdu.Ok, timeout)
	return err
}

// StartPeriodicMessage arms a periodic transmission and returns its
// handle.
func (c *Client) StartPeriodicMessage(timeoutCode uint8, arb pdu.Arbitration, data []byte, timeout time.Duration) (uint8, error) {
	req := pdu.NewStartPeriodic(timeoutCode, arb, data)
	reply, err := c.doRequest(req, pdu.PeriodicStarted, timeout)
	if err != nil {
		return 0, err
	}
	handle, ok := reply.ChannelHandle()
	if !ok {
		return 0, canlink.ErrInvalidRPC
	}
	return handle, nil
}

// EndPeriodicMessage stops a periodic transmission. The adapter may
// acknowledge with PeriodicStarted/PeriodicEnded or a bare Ok; all three
// are accepted as a successful stop. handle 0 is a firmware-dependent
// wildcard some adapters treat as "stop everything" — this client does
// not rely on that behavior and always passes through the handle given.
func (c *Client) EndPeriodicMessage(handle uint8, timeout time.Duration) error {
	if err := c.send(pdu.NewEndPeriodic(handle)); err != nil {
		return err
	}
	reply, err := c.waitResponse(pdu.PeriodicEnded, time.Now().Add(timeout))
	if err != nil {
		return err
	}
	if reply.IsError() {
		return canlink.NewProtocolError(canlink.ProtocolErrorCode(reply.Type))
	}
	switch reply.Type {
	case pdu.PeriodicEnded, pdu.PeriodicStarted, pdu.Ok:
		return nil
	default:
		return canlink.ErrInvalidRPC
	}
}

// SendMessage is fire-and-forget: it does not wait for any reply, so a
// high-rate transmit stream never head-of-line-blocks on acknowledgement.
func (c *Client) SendMessage(handle uint8, data []byte) error {
	return c.send(pdu.NewSend(handle, data))
}

// SendMessages batches frames into a single Send PDU and transmits it,
// also fire-and-forget.
func (c *Client) SendMessages(handle uint8, frames [][]byte) error {
	batch, err := pdu.NewSendBatch(handle, frames)
	if err != nil {
		return canlink.ErrLimitExceeded
	}
	return c.send(batch)
}

// SendCompressedMessage LZ4-compresses data and sends it, fire-and-forget.
func (c *Client) SendCompressedMessage(handle uint8, data []byte) error {
	compressed, err := pdu.NewSendCompressed(handle, data)
	if err != nil {
		return canlink.ErrLimitExceeded
	}
	return c.send(compressed)
}

// ReceiveMessages drains and returns every frame queued so far. It never
// blocks; an empty result means nothing is queued right now.
func (c *Client) ReceiveMessages() []pdu.PDU {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frameQueue
	c.frameQueue = nil
	return out
}

// UpdateFirmware transfers a complete firmware image: it negotiates a
// chunk size with BeginFirmwareUpdate/UpdateStarted, sends the image as a
// sequence of FirmwareData chunks each acknowledged by UpdateDataAck, and
// finishes with CompleteFirmwareUpdate/UpdateComplete. Any failed step
// aborts the transfer; the adapter is left to time out or discard the
// partial image on its own.
func (c *Client) UpdateFirmware(filename string, data []byte, timeout time.Duration) error {
	started, err := c.doRequest(pdu.NewBeginFirmwareUpdate(filename, uint32(len(data))), pdu.UpdateStarted, timeout)
	if err != nil {
		return err
	}
	chunkSize, ok := started.FirmwareChunkSize()
	if !ok || chunkSize == 0 {
		return canlink.ErrInvalidRPC
	}

	for offset := uint32(0); offset < uint32(len(data)); {
		end := offset + chunkSize
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}
		ack, err := c.doRequest(pdu.NewFirmwareData(offset, data[offset:end]), pdu.UpdateDataAck, timeout)
		if err != nil {
			return err
		}
		ackOffset, ok := ack.FirmwareAckOffset()
		if !ok || ackOffset != end {
			return canlink.ErrInvalidRPC
		}
		offset = end
	}

	_, err = c.doRequest(pdu.NewCompleteFirmwareUpdate(), pdu.UpdateComplete, timeout)
	return err
}

// ResetAdapter asks the adapter to reboot. It is fire-and-forget: a
// rebooting adapter may drop the connection before it can reply.
func (c *Client) ResetAdapter() error {
	return c.send(pdu.NewReset())
}

// Rpc invokes an adapter-resident procedure by name and returns its
// result bytes. handle only needs to be unique among calls outstanding
// at once; a single in-flight request per Client makes any fixed value
// safe when callers serialize their own requests, as doRequest requires.
func (c *Client) Rpc(handle uint8, method string, args []byte, timeout time.Duration) ([]byte, error) {
	reply, err := c.doRequest(pdu.NewRpcCall(handle, method, args), pdu.RpcReply, timeout)
	if err != nil {
		return nil, err
	}
	result, ok := reply.RpcData()
	if !ok {
		return nil, canlink.ErrInvalidRPC
	}
	return result, nil
}
