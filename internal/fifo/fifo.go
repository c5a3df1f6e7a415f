// Package fifo provides a circular byte buffer used by the PDU decoder to
// accumulate inbound transport bytes until a complete frame is available.
package fifo

// Fifo is a circular buffer whose backing array grows when a Write would
// not otherwise fit. Unlike a plain slice-trimming buffer it never
// reallocates or shifts bytes on read; Peek lets the PDU
// decoder inspect pending bytes without committing to consuming them until
// a full frame has actually been parsed.
type Fifo struct {
	buffer   []byte
	writePos int
	readPos  int
}

// NewFifo allocates a Fifo with the given capacity in bytes. One byte of
// capacity is always reserved to distinguish empty from full.
func NewFifo(size int) *Fifo {
	if size < 2 {
		size = 2
	}
	return &Fifo{buffer: make([]byte, size)}
}

// Reset discards all buffered bytes.
func (f *Fifo) Reset() {
	f.readPos = 0
	f.writePos = 0
}

// GetSpace returns the number of bytes that can still be written.
func (f *Fifo) GetSpace() int {
	left := f.readPos - f.writePos - 1
	if left < 0 {
		left += len(f.buffer)
	}
	return left
}

// GetOccupied returns the number of unread bytes currently buffered.
func (f *Fifo) GetOccupied() int {
	occupied := f.writePos - f.readPos
	if occupied < 0 {
		occupied += len(f.buffer)
	}
	return occupied
}

// Write appends as many bytes from buffer as there is space for, growing
// the backing array first if the whole write would not otherwise fit.
func (f *Fifo) Write(buffer []byte) int {
	if len(buffer) > f.GetSpace() {
		f.grow(f.GetOccupied() + len(buffer) + 1)
	}
	written := 0
	for _, b := range buffer {
		next := f.writePos + 1
		if next == len(f.buffer) {
			next = 0
		}
		if next == f.readPos {
			break
		}
		f.buffer[f.writePos] = b
		f.writePos = next
		written++
	}
	return written
}

// Peek copies up to len(buffer) unread bytes starting at offset into buffer
// without advancing the read position. It returns the number of bytes
// copied, which is less than len(buffer) if fewer bytes are available.
func (f *Fifo) Peek(offset int, buffer []byte) int {
	occupied := f.GetOccupied()
	if offset >= occupied {
		return 0
	}
	pos := f.readPos + offset
	if pos >= len(f.buffer) {
		pos -= len(f.buffer)
	}
	n := 0
	for n < len(buffer) && offset+n < occupied {
		buffer[n] = f.buffer[pos]
		pos++
		if pos == len(f.buffer) {
			pos = 0
		}
		n++
	}
	return n
}

// Discard advances the read position past n bytes, dropping them. n must
// not exceed GetOccupied.
func (f *Fifo) Discard(n int) {
	f.readPos += n
	f.readPos %= len(f.buffer)
}

func (f *Fifo) grow(minSize int) {
	occupied := f.GetOccupied()
	newBuf := make([]byte, minSize)
	n := 0
	pos := f.readPos
	for n < occupied {
		newBuf[n] = f.buffer[pos]
		pos++
		if pos == len(f.buffer) {
			pos = 0
		}
		n++
	}
	f.buffer = newBuf
	f.readPos = 0
	f.writePos = occupied
}
