// Package kline implements the K-Line multi-frame reassembly used by
// KWP2000 (ISO 14230) and ISO 9141-2: per-frame header/checksum validation
// plus KWP's retroactive sequence-number detection, which only becomes
// knowable once a second frame arrives.
package kline

import (
	"errors"
	"log/slog"
)

// Mode selects the K-Line header layout.
type Mode int

const (
	// KWP frames begin with format, target, source.
	KWP Mode = iota
	// ISO9141 frames begin with target, source, tester.
	ISO9141
)

var (
	// ErrBadChecksum is returned when a frame's trailing checksum byte
	// does not match the additive sum of the bytes preceding it.
	ErrBadChecksum = errors.New("kline: checksum mismatch")
	// ErrBadAddress is returned when a frame's target/source bytes do not
	// match the configured expectation.
	ErrBadAddress = errors.New("kline: unexpected target/source")
	// ErrBadLength is returned when a frame's declared or implied length
	// disagrees with its actual size.
	ErrBadLength = errors.New("kline: frame length mismatch")
	// ErrServicePIDMismatch is returned when a continuation frame's
	// service/PID bytes do not repeat the base frame's.
	ErrServicePIDMismatch = errors.New("kline: service/pid mismatch across frames")
	// ErrSequenceMismatch is returned once in sequence mode, when a
	// continuation frame's sequence byte is not the expected next value.
	ErrSequenceMismatch = errors.New("kline: sequence number mismatch")
	// ErrFrameTooShort is returned when a frame is shorter than its
	// mode's minimum header+checksum size.
	ErrFrameTooShort = errors.New("kline: frame shorter than header+checksum")
)

// Engine reassembles a sequence of K-Line frames into one message. It is
// not safe for concurrent use. A single Engine handles one in-flight
// message; call Reset (or Finalize) before reusing it for the next one.
type Engine struct {
	logger *slog.Logger
	mode   Mode

	expectedTarget    byte
	expectedSource    byte
	hasAddressFilter  bool
	expectedLen       int

	haveBase    bool
	baseService byte
	basePid     byte

	// pendingFirstTail holds the first frame's payload from index 2
	// onward, unmerged into buffer until a second frame resolves whether
	// its leading byte was data or a sequence number.
	pendingFirstTail          []byte
	firstFrameHadPotentialSeq bool
	sequenceMode              bool
	expectedSeq               byte

	buffer []byte
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithAddressFilter requires every frame's target/source bytes to match
// the given values, surfacing ErrBadAddress otherwise.
func WithAddressFilter(target, source byte) Option {
	return func(e *Engine) {
		e.expectedTarget = target
		e.expectedSource = source
		e.hasAddressFilter = true
	}
}

// WithExpectedLength sets the payload length at which Feed should emit the
// reassembled message eagerly, without waiting for an explicit Finalize.
func WithExpectedLength(n int) Option {
	return func(e *Engine) { e.expectedLen = n }
}

// NewEngine builds an idle engine for the given mode.
func NewEngine(mode Mode, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger: logger.With("service", "kline"),
		mode:   mode,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reset discards any in-progress reassembly.
func (e *Engine) Reset() {
	e.haveBase = false
	e.baseService = 0
	e.basePid = 0
	e.pendingFirstTail = nil
	e.firstFrameHadPotentialSeq = false
	e.sequenceMode = false
	e.expectedSeq = 0
	e.buffer = nil
}

// pendingLen returns the length the buffer would have if the first
// frame's staged tail were flushed into it unresolved.
func (e *Engine) pendingLen() int {
	return len(e.buffer) + len(e.pendingFirstTail)
}

// validateFrame checks addressing, checksum and declared/implied length,
// returning the frame's payload (header and checksum stripped).
func (e *Engine) validateFrame(frame []byte) ([]byte, error) {
	const minFrame = 3 /* header */ + 1 /* checksum */
	if len(frame) < minFrame {
		return nil, ErrFrameTooShort
	}

	sum := byte(0)
	for _, b := range frame[:len(frame)-1] {
		sum += b
	}
	if sum != frame[len(frame)-1] {
		return nil, ErrBadChecksum
	}

	var target, source byte
	var payload []byte
	switch e.mode {
	case KWP:
		format := frame[0]
		target, source = frame[1], frame[2]
		declaredLen := int(format & 0x0F)
		payload = frame[3 : len(frame)-1]
		if declaredLen != len(payload) {
			return nil, ErrBadLength
		}
	default: // ISO9141
		target, source = frame[0], frame[1]
		payload = frame[3 : len(frame)-1]
	}

	if e.hasAddressFilter && (target != e.expectedTarget || source != e.expectedSource) {
		return nil, ErrBadAddress
	}
	return payload, nil
}

// Feed processes one received K-Line frame, returning the reassembled
// message and true once it is ready to deliver, or an error on a
// protocol violation.
func (e *Engine) Feed(frame []byte) ([]byte, bool, error) {
	payload, err := e.validateFrame(frame)
	if err != nil {
		e.logger.Debug("frame rejected", "err", err)
		return nil, false, err
	}

	if e.mode == ISO9141 {
		e.buffer = append(e.buffer, payload...)
		return e.maybeComplete()
	}

	if len(payload) < 2 {
		return nil, false, ErrBadLength
	}

	if !e.haveBase {
		e.haveBase = true
		e.baseService = payload[0]
		e.basePid = payload[1]
		e.buffer = append(e.buffer, payload[0], payload[1])
		if len(payload) >= 3 {
			e.firstFrameHadPotentialSeq = payload[2] == 0x01
			e.pendingFirstTail = append([]byte(nil), payload[2:]...)
		}
		return e.maybeComplete()
	}

	if payload[0] != e.baseService || payload[1] != e.basePid {
		return nil, false, ErrServicePIDMismatch
	}

	switch {
	case e.sequenceMode:
		if len(payload) < 3 || payload[2] != e.expectedSeq {
			return nil, false, ErrSequenceMismatch
		}
		e.buffer = append(e.buffer, payload[3:]...)
		e.expectedSeq++

	case e.firstFrameHadPotentialSeq && len(payload) >= 3 && payload[2] == 0x02:
		// The first frame's staged 0x01 was a sequence number, not
		// data: drop it (never flushed to buffer) and switch modes.
		e.firstFrameHadPotentialSeq = false
		e.flushPendingTail(1)
		e.sequenceMode = true
		e.expectedSeq = 0x03
		e.buffer = append(e.buffer, payload[3:]...)

	default:
		e.firstFrameHadPotentialSeq = false
		e.flushPendingTail(0)
		e.buffer = append(e.buffer, payload[2:]...)
	}

	return e.maybeComplete()
}

// flushPendingTail merges the staged first-frame tail into buffer,
// skipping its first skip bytes.
func (e *Engine) flushPendingTail(skip int) {
	if skip < len(e.pendingFirstTail) {
		e.buffer = append(e.buffer, e.pendingFirstTail[skip:]...)
	}
	e.pendingFirstTail = nil
}

func (e *Engine) maybeComplete() ([]byte, bool, error) {
	if e.expectedLen > 0 && e.pendingLen() >= e.expectedLen {
		return e.Finalize()
	}
	return nil, false, nil
}

// Finalize emits the accumulated buffer as the reassembled message and
// resets the engine for the next one. Any staged first-frame tail is
// flushed unresolved: with no second frame to confirm a sequence byte,
// it is treated as ordinary data.
func (e *Engine) Finalize() ([]byte, bool, error) {
	e.flushPendingTail(0)
	out := e.buffer
	e.Reset()
	return out, true, nil
}
