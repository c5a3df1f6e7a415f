package pdu

// NewBeginFirmwareUpdate starts a firmware update, declaring the image's
// total size and the filename the host is transferring it from. Payload:
// `totalSize:u32 BE, filename`.
func NewBeginFirmwareUpdate(filename string, totalSize uint32) PDU {
	payload := make([]byte, 0, 4+len(filename))
	var b4 [4]byte
	putUint32(b4[:], totalSize)
	payload = append(payload, b4[:]...)
	payload = append(payload, []byte(filename)...)
	return PDU{Type: BeginFirmwareUpdate, Payload: payload}
}

// NewFirmwareData carries one chunk of the firmware image at the given byte
// offset. Payload: `offset:u32 BE, chunk`.
func NewFirmwareData(offset uint32, chunk []byte) PDU {
	payload := make([]byte, 0, 4+len(chunk))
	var b4 [4]byte
	putUint32(b4[:], offset)
	payload = append(payload, b4[:]...)
	payload = append(payload, chunk...)
	return PDU{Type: FirmwareData, Payload: payload}
}

// NewCompleteFirmwareUpdate signals that every chunk has been sent and the
// adapter should validate and apply the image.
func NewCompleteFirmwareUpdate() PDU { return PDU{Type: CompleteFirmwareUpdate} }

// NewReset asks the adapter to reboot. No reply is expected: the adapter
// may go silent before it can acknowledge.
func NewReset() PDU { return PDU{Type: Reset} }

// NewUpdateStarted replies to BeginFirmwareUpdate with the chunk size the
// adapter wants FirmwareData payloads split into. Payload: `chunkSize:u32 BE`.
func NewUpdateStarted(chunkSize uint32) PDU {
	payload := make([]byte, 4)
	putUint32(payload, chunkSize)
	return PDU{Type: UpdateStarted, Payload: payload}
}

// NewUpdateDataAck acknowledges receipt of every image byte before offset,
// i.e. offset is the end of the chunk just received. Payload:
// `offset:u32 BE`.
func NewUpdateDataAck(offset uint32) PDU {
	payload := make([]byte, 4)
	putUint32(payload, offset)
	return PDU{Type: UpdateDataAck, Payload: payload}
}

// NewUpdateComplete replies to CompleteFirmwareUpdate once the image has
// been validated and applied.
func NewUpdateComplete() PDU { return PDU{Type: UpdateComplete} }

// TotalSize returns the declared image size from a BeginFirmwareUpdate PDU.
func (p PDU) TotalSize() (uint32, bool) {
	if p.Type != BeginFirmwareUpdate || len(p.Payload) < 4 {
		return 0, false
	}
	return getUint32(p.Payload[:4]), true
}

// FirmwareChunk returns the offset and data of a FirmwareData PDU.
func (p PDU) FirmwareChunk() (offset uint32, data []byte, ok bool) {
	if p.Type != FirmwareData || len(p.Payload) < 4 {
		return 0, nil, false
	}
	return getUint32(p.Payload[:4]), clone(p.Payload[4:]), true
}

// FirmwareChunkSize returns the adapter-chosen chunk size from an
// UpdateStarted PDU.
func (p PDU) FirmwareChunkSize() (uint32, bool) {
	if p.Type != UpdateStarted || len(p.Payload) < 4 {
		return 0, false
	}
	return getUint32(p.Payload[:4]), true
}

// FirmwareAckOffset returns the acknowledged offset from an UpdateDataAck
// PDU.
func (p PDU) FirmwareAckOffset() (uint32, bool) {
	if p.Type != UpdateDataAck || len(p.Payload) < 4 {
		return 0, false
	}
	return getUint32(p.Payload[:4]), true
}
