package pdu

// ArbitrationSize is the fixed wire size of an Arbitration structure.
const ArbitrationSize = 14

// Arbitration is the source/destination CAN identifier configuration for a
// channel: which request ID the adapter transmits on, and which reply IDs
// (pattern plus mask, zero mask meaning "match any") it accepts.
type Arbitration struct {
	Request          uint32
	RequestExtension uint8
	ReplyPattern     uint32
	ReplyMask        uint32
	ReplyExtension   uint8
}

// MatchesAny reports whether ReplyMask accepts any reply identifier.
func (a Arbitration) MatchesAny() bool {
	return a.ReplyMask == 0
}

// Matches reports whether a received identifier satisfies this
// arbitration's reply pattern/mask.
func (a Arbitration) Matches(id uint32) bool {
	if a.MatchesAny() {
		return true
	}
	return id&a.ReplyMask == a.ReplyPattern&a.ReplyMask
}

// appendTo serializes the arbitration in wire order: request, requestExt,
// replyPattern, replyMask, replyExt.
func (a Arbitration) appendTo(b []byte) []byte {
	var tmp [4]byte
	putUint32(tmp[:], a.Request)
	b = append(b, tmp[:]...)
	b = append(b, a.RequestExtension)
	putUint32(tmp[:], a.ReplyPattern)
	b = append(b, tmp[:]...)
	putUint32(tmp[:], a.ReplyMask)
	b = append(b, tmp[:]...)
	b = append(b, a.ReplyExtension)
	return b
}

// parseArbitration reads an Arbitration from the first ArbitrationSize bytes
// of b. The caller must ensure len(b) >= ArbitrationSize.
func parseArbitration(b []byte) Arbitration {
	return Arbitration{
		Request:          getUint32(b[0:4]),
		RequestExtension: b[4],
		ReplyPattern:     getUint32(b[5:9]),
		ReplyMask:        getUint32(b[9:13]),
		ReplyExtension:   b[13],
	}
}
