package pdu

import (
	"fmt"
	"strings"
)

// PDU is an immutable snapshot of one frame: a type and its raw payload.
// Typed constructors build well-formed payloads; typed accessors decode
// them back out. A PDU obtained from Parse is never mutated in place.
type PDU struct {
	Type    Type
	Payload []byte
}

// DeviceInfo is the adapter identity returned by RequestInfo.
type DeviceInfo struct {
	Vendor   string
	Model    string
	Hardware string
	Serial   string
	Firmware string
}

// CANFrame is a single received vehicle-bus frame as carried by a
// Received/ReceivedCompressed PDU.
type CANFrame struct {
	Channel   uint8
	ID        uint32
	Extension uint8
	Data      []byte
}

// Serialize encodes p as a complete wire frame: ATT, TYP, LEN, payload.
func (p PDU) Serialize() []byte {
	out := make([]byte, 0, HeaderSize+len(p.Payload))
	out = append(out, AttentionByte, byte(p.Type))
	var lenBuf [2]byte
	putUint16(lenBuf[:], uint16(len(p.Payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, p.Payload...)
	return out
}

// --- Typed constructors -----------------------------------------------

func NewPing(echo []byte) PDU        { return PDU{Type: Ping, Payload: clone(echo)} }
func NewRequestInfo() PDU            { return PDU{Type: RequestInfo} }
func NewReadVoltage() PDU            { return PDU{Type: ReadVoltage} }
func NewPong(echo []byte) PDU        { return PDU{Type: Pong, Payload: clone(echo)} }
func NewOk() PDU                     { return PDU{Type: Ok} }

func NewVoltage(millivolts uint16) PDU {
	payload := make([]byte, 2)
	putUint16(payload, millivolts)
	return PDU{Type: Voltage, Payload: payload}
}

func NewInfo(info DeviceInfo) PDU {
	s := strings.Join([]string{info.Vendor, info.Model, info.Hardware, info.Serial, info.Firmware}, "\n")
	return PDU{Type: Info, Payload: []byte(s)}
}

func NewOpenChannel(proto ChannelProtocol, bitrate uint32, sep SeparationTimes) (PDU, error) {
	sepByte, ok := EncodeSeparationByte(sep)
	if !ok {
		return PDU{}, fmt.Errorf("pdu: separation time not representable: %+v", sep)
	}
	payload := make([]byte, 0, 6)
	payload = append(payload, byte(proto))
	var b4 [4]byte
	putUint32(b4[:], bitrate)
	payload = append(payload, b4[:]...)
	payload = append(payload, sepByte)
	return PDU{Type: OpenChannel, Payload: payload}, nil
}

func NewOpenFDChannel(proto ChannelProtocol, bitrate, dataBitrate uint32, sep SeparationTimes) (PDU, error) {
	sepByte, ok := EncodeSeparationByte(sep)
	if !ok {
		return PDU{}, fmt.Errorf("pdu: separation time not representable: %+v", sep)
	}
	payload := make([]byte, 0, 10)
	payload = append(payload, byte(proto))
	var b4 [4]byte
	putUint32(b4[:], bitrate)
	payload = append(payload, b4[:]...)
	putUint32(b4[:], dataBitrate)
	payload = append(payload, b4[:]...)
	payload = append(payload, sepByte)
	return PDU{Type: OpenFDChannel, Payload: payload}, nil
}

func NewCloseChannel(handle uint8) PDU { return PDU{Type: CloseChannel, Payload: []byte{handle}} }
func NewEndPeriodic(handle uint8) PDU  { return PDU{Type: EndPeriodic, Payload: []byte{handle}} }

func NewSend(handle uint8, data []byte) PDU {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, handle)
	payload = append(payload, data...)
	return PDU{Type: Send, Payload: payload}
}

func NewSetArbitration(handle uint8, arb Arbitration) PDU {
	payload := make([]byte, 0, 1+ArbitrationSize)
	payload = append(payload, handle)
	payload = arb.appendTo(payload)
	return PDU{Type: SetArbitration, Payload: payload}
}

func NewStartPeriodic(timeoutCode uint8, arb Arbitration, data []byte) PDU {
	payload := make([]byte, 0, 1+ArbitrationSize+len(data))
	payload = append(payload, timeoutCode)
	payload = arb.appendTo(payload)
	payload = append(payload, data...)
	return PDU{Type: StartPeriodic, Payload: payload}
}

func NewChannelOpened(handle uint8) PDU   { return PDU{Type: ChannelOpened, Payload: []byte{handle}} }
func NewChannelClosed(handle uint8) PDU   { return PDU{Type: ChannelClosed, Payload: []byte{handle}} }
func NewPeriodicStarted(handle uint8) PDU { return PDU{Type: PeriodicStarted, Payload: []byte{handle}} }
func NewPeriodicEnded(handle uint8) PDU   { return PDU{Type: PeriodicEnded, Payload: []byte{handle}} }

func NewReceived(frame CANFrame) PDU {
	payload := make([]byte, 0, 6+len(frame.Data))
	payload = append(payload, frame.Channel)
	var b4 [4]byte
	putUint32(b4[:], frame.ID)
	payload = append(payload, b4[:]...)
	payload = append(payload, frame.Extension)
	payload = append(payload, frame.Data...)
	return PDU{Type: Received, Payload: payload}
}

// NewError builds an Error PDU for one of the 0xE0..0xEF classes. The
// payload is always empty; the class itself is the diagnostic.
func NewError(class Type) PDU {
	return PDU{Type: class}
}

// --- Typed accessors -----------------------------------------------

func (p PDU) ChannelHandle() (uint8, bool) {
	switch p.Type {
	case CloseChannel, EndPeriodic, ChannelOpened, ChannelClosed, PeriodicStarted, PeriodicEnded:
		if len(p.Payload) < 1 {
			return 0, false
		}
		return p.Payload[0], true
	}
	return 0, false
}

func (p PDU) VoltageMillivolts() (uint16, bool) {
	if p.Type != Voltage || len(p.Payload) < 2 {
		return 0, false
	}
	return getUint16(p.Payload[:2]), true
}

func (p PDU) DeviceInfo() (DeviceInfo, bool) {
	if p.Type != Info {
		return DeviceInfo{}, false
	}
	fields := strings.Split(string(p.Payload), "\n")
	if len(fields) != 5 {
		return DeviceInfo{}, false
	}
	return DeviceInfo{
		Vendor:   fields[0],
		Model:    fields[1],
		Hardware: fields[2],
		Serial:   fields[3],
		Firmware: fields[4],
	}, true
}

func (p PDU) ReceivedFrame() (CANFrame, bool) {
	if p.Type != Received || len(p.Payload) < 6 {
		return CANFrame{}, false
	}
	return CANFrame{
		Channel:   p.Payload[0],
		ID:        getUint32(p.Payload[1:5]),
		Extension: p.Payload[5],
		Data:      clone(p.Payload[6:]),
	}, true
}

func (p PDU) Arbitration() (Arbitration, bool) {
	switch p.Type {
	case SetArbitration:
		if len(p.Payload) < 1+ArbitrationSize {
			return Arbitration{}, false
		}
		return parseArbitration(p.Payload[1:]), true
	case StartPeriodic:
		if len(p.Payload) < 1+ArbitrationSize {
			return Arbitration{}, false
		}
		return parseArbitration(p.Payload[1:]), true
	}
	return Arbitration{}, false
}

func (p PDU) SeparationTimes() (SeparationTimes, bool) {
	switch p.Type {
	case OpenChannel:
		if len(p.Payload) < 6 {
			return SeparationTimes{}, false
		}
		return DecodeSeparationByte(p.Payload[5]), true
	case OpenFDChannel:
		if len(p.Payload) < 10 {
			return SeparationTimes{}, false
		}
		return DecodeSeparationByte(p.Payload[9]), true
	}
	return SeparationTimes{}, false
}

// Filename returns the image filename declared by a BeginFirmwareUpdate
// PDU.
func (p PDU) Filename() (string, bool) {
	if p.Type != BeginFirmwareUpdate || len(p.Payload) < 4 {
		return "", false
	}
	return string(p.Payload[4:]), true
}

// IsError reports whether this PDU is one of the 0xE0..0xEF error classes.
func (p PDU) IsError() bool {
	return p.Type.IsError()
}

// ErrorMessage is a display helper; errors never carry raw strings on the
// wire, so this describes the error class rather than decoding a payload.
func (p PDU) ErrorMessage() string {
	if !p.IsError() {
		return ""
	}
	return p.Type.String()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
