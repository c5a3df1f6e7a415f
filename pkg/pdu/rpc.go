package pdu

// RPC PDUs let the host invoke adapter-resident procedures by name,
// correlating calls to replies with a handle byte the same way Send and
// StartPeriodic correlate to their channel handle. RpcSendBinary/
// RpcBinaryReply carry an opaque byte stream under the same handle for
// callers that stream binary arguments or results instead of a single
// call/reply round trip.

// NewRpcCall invokes method on the adapter with the given argument bytes,
// tagged with handle for matching against the eventual RpcReply. Payload:
// `handle, nameLen:u8, name, args`.
func NewRpcCall(handle uint8, method string, args []byte) PDU {
	payload := make([]byte, 0, 2+len(method)+len(args))
	payload = append(payload, handle, uint8(len(method)))
	payload = append(payload, []byte(method)...)
	payload = append(payload, args...)
	return PDU{Type: RpcCall, Payload: payload}
}

// NewRpcSendBinary streams a chunk of binary data to the adapter under
// handle, for calls whose arguments don't fit a single RpcCall payload.
// Payload: `handle, data`.
func NewRpcSendBinary(handle uint8, data []byte) PDU {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, handle)
	payload = append(payload, data...)
	return PDU{Type: RpcSendBinary, Payload: payload}
}

// NewRpcReply returns the result of an RpcCall identified by handle.
// Payload: `handle, result`.
func NewRpcReply(handle uint8, result []byte) PDU {
	payload := make([]byte, 0, 1+len(result))
	payload = append(payload, handle)
	payload = append(payload, result...)
	return PDU{Type: RpcReply, Payload: payload}
}

// NewRpcBinaryReply streams a chunk of a binary result back under handle.
// Payload: `handle, data`.
func NewRpcBinaryReply(handle uint8, data []byte) PDU {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, handle)
	payload = append(payload, data...)
	return PDU{Type: RpcBinaryReply, Payload: payload}
}

// RpcHandle returns the correlation handle carried by any RPC PDU.
func (p PDU) RpcHandle() (uint8, bool) {
	switch p.Type {
	case RpcCall, RpcSendBinary, RpcReply, RpcBinaryReply:
		if len(p.Payload) < 1 {
			return 0, false
		}
		return p.Payload[0], true
	}
	return 0, false
}

// RpcMethod decodes the method name and argument bytes of an RpcCall PDU.
func (p PDU) RpcMethod() (method string, args []byte, ok bool) {
	if p.Type != RpcCall || len(p.Payload) < 2 {
		return "", nil, false
	}
	nameLen := int(p.Payload[1])
	if len(p.Payload) < 2+nameLen {
		return "", nil, false
	}
	method = string(p.Payload[2 : 2+nameLen])
	args = clone(p.Payload[2+nameLen:])
	return method, args, true
}

// RpcData returns the bytes carried after the handle by an RpcSendBinary,
// RpcReply, or RpcBinaryReply PDU.
func (p PDU) RpcData() ([]byte, bool) {
	switch p.Type {
	case RpcSendBinary, RpcReply, RpcBinaryReply:
		if len(p.Payload) < 1 {
			return nil, false
		}
		return clone(p.Payload[1:]), true
	}
	return nil, false
}
