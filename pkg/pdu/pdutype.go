package pdu

import "fmt"

// Type is the wire byte identifying the kind of PDU, the second byte of
// every frame after the attention byte.
type Type uint8

const (
	Ping        Type = 0x10
	RequestInfo Type = 0x11
	ReadVoltage Type = 0x12

	OpenChannel   Type = 0x30
	CloseChannel  Type = 0x31
	OpenFDChannel Type = 0x32
	Send          Type = 0x33
	SetArbitration Type = 0x34
	StartPeriodic Type = 0x35
	EndPeriodic   Type = 0x36
	SendCompressed Type = 0x37

	BeginFirmwareUpdate Type = 0x40
	FirmwareData        Type = 0x41
	CompleteFirmwareUpdate Type = 0x42
	Reset               Type = 0x43

	RpcCall        Type = 0x50
	RpcSendBinary  Type = 0x51

	Ok      Type = 0x80
	Pong    Type = 0x90
	Info    Type = 0x91
	Voltage Type = 0x92

	ChannelOpened  Type = 0xB0
	ChannelClosed  Type = 0xB1
	Received       Type = 0xB2
	ReceivedCompressed Type = 0xB3
	PeriodicStarted Type = 0xB5
	PeriodicEnded  Type = 0xB6

	UpdateStarted  Type = 0xC0
	UpdateDataAck  Type = 0xC1
	UpdateComplete Type = 0xC2

	RpcReply       Type = 0xD0
	RpcBinaryReply Type = 0xD1

	ErrorUnspecified     Type = 0xE0
	ErrorHardware        Type = 0xE1
	ErrorInvalidChannel  Type = 0xE2
	ErrorInvalidPeriodic Type = 0xE3
	ErrorNoResponse      Type = 0xE4
	ErrorInvalidRPC      Type = 0xE5
	ErrorInvalidCommand  Type = 0xE6
)

var typeNames = map[Type]string{
	Ping:        "Ping",
	RequestInfo: "RequestInfo",
	ReadVoltage: "ReadVoltage",

	OpenChannel:    "OpenChannel",
	CloseChannel:   "CloseChannel",
	OpenFDChannel:  "OpenFDChannel",
	Send:           "Send",
	SetArbitration: "SetArbitration",
	StartPeriodic:  "StartPeriodic",
	EndPeriodic:    "EndPeriodic",
	SendCompressed: "SendCompressed",

	BeginFirmwareUpdate:    "BeginFirmwareUpdate",
	FirmwareData:           "FirmwareData",
	CompleteFirmwareUpdate: "CompleteFirmwareUpdate",
	Reset:                  "Reset",

	RpcCall:       "RpcCall",
	RpcSendBinary: "RpcSendBinary",

	Ok:      "Ok",
	Pong:    "Pong",
	Info:    "Info",
	Voltage: "Voltage",

	ChannelOpened:      "ChannelOpened",
	ChannelClosed:      "ChannelClosed",
	Received:           "Received",
	ReceivedCompressed: "ReceivedCompressed",
	PeriodicStarted:    "PeriodicStarted",
	PeriodicEnded:      "PeriodicEnded",

	UpdateStarted:  "UpdateStarted",
	UpdateDataAck:  "UpdateDataAck",
	UpdateComplete: "UpdateComplete",

	RpcReply:       "RpcReply",
	RpcBinaryReply: "RpcBinaryReply",

	ErrorUnspecified:     "ErrorUnspecified",
	ErrorHardware:        "ErrorHardware",
	ErrorInvalidChannel:  "ErrorInvalidChannel",
	ErrorInvalidPeriodic: "ErrorInvalidPeriodic",
	ErrorNoResponse:      "ErrorNoResponse",
	ErrorInvalidRPC:      "ErrorInvalidRPC",
	ErrorInvalidCommand:  "ErrorInvalidCommand",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(0x%02X)", uint8(t))
}

// IsError reports whether t falls in the 0xE0..0xEF error class range.
func (t Type) IsError() bool {
	return t >= 0xE0 && t <= 0xEF
}

// ChannelProtocol identifies the vehicle-bus protocol a channel speaks.
type ChannelProtocol uint8

const (
	ProtocolRaw       ChannelProtocol = 0x00
	ProtocolISOTP     ChannelProtocol = 0x01
	ProtocolKLine     ChannelProtocol = 0x02
	ProtocolRawFD     ChannelProtocol = 0x03
	ProtocolISOTPFD   ChannelProtocol = 0x04
	ProtocolRawWithFC ChannelProtocol = 0x05
	ProtocolENET      ChannelProtocol = 0x06
)

var channelProtocolNames = map[ChannelProtocol]string{
	ProtocolRaw:       "Raw",
	ProtocolISOTP:     "ISOTP",
	ProtocolKLine:     "KLine",
	ProtocolRawFD:     "RawFD",
	ProtocolISOTPFD:   "ISOTP_FD",
	ProtocolRawWithFC: "RawWithFC",
	ProtocolENET:      "ENET",
}

func (p ChannelProtocol) String() string {
	if name, ok := channelProtocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ChannelProtocol(0x%02X)", uint8(p))
}
