package pdu

import "github.com/canyonero/canlink/internal/fifo"

// initialDecoderCapacity is sized for a handful of in-flight frames before
// the circular buffer needs to grow.
const initialDecoderCapacity = 4096

// Decoder accumulates bytes fed from a transport and yields PDUs as they
// become complete, discarding leading garbage one byte at a time per the
// parsing contract's resync rule.
type Decoder struct {
	buf     *fifo.Fifo
	resyncs uint64
}

// NewDecoder returns a Decoder with an empty buffer.
func NewDecoder() *Decoder {
	return &Decoder{buf: fifo.NewFifo(initialDecoderCapacity)}
}

// Resyncs returns the number of leading-garbage bytes discarded so far
// while searching for the attention byte.
func (d *Decoder) Resyncs() uint64 {
	return d.resyncs
}

// Feed appends bytes read from the transport to the decoder's buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf.Write(b)
}

// Next returns the next decodable PDU, if any. ok is false when the
// buffered bytes do not yet contain a complete frame; callers should Feed
// more data and call Next again. Next may consume and discard leading
// non-attention bytes internally before returning.
func (d *Decoder) Next() (p PDU, ok bool) {
	for {
		occupied := d.buf.GetOccupied()
		if occupied < HeaderSize {
			return PDU{}, false
		}
		header := make([]byte, HeaderSize)
		d.buf.Peek(0, header)
		if header[0] != AttentionByte {
			skip := 1
			for skip < occupied {
				b := make([]byte, 1)
				if d.buf.Peek(skip, b) == 0 || b[0] == AttentionByte {
					break
				}
				skip++
			}
			d.buf.Discard(skip)
			d.resyncs += uint64(skip)
			continue
		}
		length := int(getUint16(header[2:4]))
		total := HeaderSize + length
		if occupied < total {
			return PDU{}, false
		}
		frame := make([]byte, total)
		d.buf.Peek(0, frame)
		d.buf.Discard(total)
		return PDU{Type: Type(frame[1]), Payload: clone(frame[HeaderSize:total])}, true
	}
}
