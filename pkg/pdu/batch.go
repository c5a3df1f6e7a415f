package pdu

import "fmt"

// DefaultBatchCeiling is the implementation-chosen cap on the packed
// payload size of NewSendBatch; callers may raise it via
// NewSendBatchWithLimit.
const DefaultBatchCeiling = 16 * 1024

// NewSendBatch packs handle plus a sequence of frames as
// `handle, (len:u8, data)*` into a single Send PDU, rejecting frames longer
// than 255 bytes (they cannot fit the u8 length prefix) and batches whose
// packed size exceeds DefaultBatchCeiling.
func NewSendBatch(handle uint8, frames [][]byte) (PDU, error) {
	return NewSendBatchWithLimit(handle, frames, DefaultBatchCeiling)
}

// NewSendBatchWithLimit is NewSendBatch with a caller-chosen ceiling.
func NewSendBatchWithLimit(handle uint8, frames [][]byte, ceiling int) (PDU, error) {
	payload := make([]byte, 0, 1+len(frames)*2)
	payload = append(payload, handle)
	for i, f := range frames {
		if len(f) > 0xFF {
			return PDU{}, fmt.Errorf("pdu: batch frame %d too long: %d bytes", i, len(f))
		}
		payload = append(payload, byte(len(f)))
		payload = append(payload, f...)
		if len(payload) > ceiling {
			return PDU{}, fmt.Errorf("pdu: batch exceeds ceiling of %d bytes", ceiling)
		}
	}
	return PDU{Type: Send, Payload: payload}, nil
}

// BatchFrames unpacks a Send PDU's payload into its handle and the
// sequence of (len, data) frames, the inverse of NewSendBatch.
func BatchFrames(p PDU) (handle uint8, frames [][]byte, err error) {
	if p.Type != Send || len(p.Payload) < 1 {
		return 0, nil, fmt.Errorf("pdu: not a batched Send PDU")
	}
	handle = p.Payload[0]
	rest := p.Payload[1:]
	for len(rest) > 0 {
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return 0, nil, fmt.Errorf("pdu: truncated batch frame")
		}
		frames = append(frames, clone(rest[:n]))
		rest = rest[n:]
	}
	return handle, frames, nil
}
