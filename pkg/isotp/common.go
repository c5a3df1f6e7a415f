// Package isotp implements the ISO 15765-2 segmentation state machines that
// carry up to 4095-byte messages over CAN frames: the classical engine
// (8-byte/7-byte frames) and the CAN-FD engine (dynamic DLC, up to
// 64/63-byte frames). Both are pure input-driven state machines: they never
// block or sleep, returning the frames to write and the separation time to
// respect between them, leaving timing to the caller.
package isotp

import (
	"errors"
	"fmt"
)

// MaxMessageLen is the largest message ISO-TP can carry in one transfer.
const MaxMessageLen = 4095

// PaddingByte fills unused bytes in frames shorter than their physical
// width.
const PaddingByte = 0xAA

const (
	pciSingle      = 0x0
	pciFirst       = 0x1
	pciConsecutive = 0x2
	pciFlowControl = 0x3
)

const (
	fcContinueToSend = 0x30
	fcWait           = 0x31
	fcOverflow       = 0x32
)

// Behavior selects how an engine reacts to a protocol violation.
type Behavior int

const (
	// Strict surfaces every violation to the caller, who must call Reset.
	Strict Behavior = iota
	// Defensive resets on violation and retries the same frame once as a
	// fresh idle-state data frame before giving up silently.
	Defensive
)

// AddressingMode selects the classical engine's physical frame width.
type AddressingMode int

const (
	Standard AddressingMode = iota // 8-byte frames
	Extended                       // 7-byte frames
)

type phase int

const (
	idle phase = iota
	sending
	receiving
)

// ActionKind identifies what the caller must do with an Action.
type ActionKind int

const (
	// ActionNone: nothing for the caller to do.
	ActionNone ActionKind = iota
	// ActionWriteFrames: write Frames to the bus in order, waiting
	// SeparationTime microseconds between each.
	ActionWriteFrames
	// ActionProcess: Payload is a complete message, ready for delivery.
	ActionProcess
	// ActionViolation: a strict-mode protocol violation occurred; Err
	// describes it and the caller should call Reset before continuing.
	ActionViolation
	// ActionWaitForMore: a defensive-mode recovery swallowed a violation;
	// there is nothing to deliver yet.
	ActionWaitForMore
)

// Action is returned by WritePDU and DidReceiveFrame.
type Action struct {
	Kind           ActionKind
	Frames         [][]byte
	SeparationTime uint32 // microseconds between Frames
	Payload        []byte
	Err            error
}

var (
	// ErrNotIdle is returned by WritePDU when a transfer is already in
	// progress.
	ErrNotIdle = errors.New("isotp: engine not idle")
	// ErrTooLong is returned when a message exceeds MaxMessageLen.
	ErrTooLong = errors.New("isotp: message exceeds maximum length")

	errBadWidth       = errors.New("isotp: frame has invalid physical width")
	errBadFlowControl = errors.New("isotp: invalid flow control status")
	errOverflow       = errors.New("isotp: peer reported overflow")
	errBadSingle      = errors.New("isotp: invalid SINGLE frame length")
	errBadFirst       = errors.New("isotp: invalid FIRST frame length")
	errUnexpectedPCI  = errors.New("isotp: unexpected frame type for current state")
	errSeqMismatch    = errors.New("isotp: consecutive frame sequence mismatch")
)

func violation(err error) Action {
	return Action{Kind: ActionViolation, Err: err}
}

func writeFrames(sep uint32, frames ...[]byte) Action {
	return Action{Kind: ActionWriteFrames, Frames: frames, SeparationTime: sep}
}

func process(payload []byte) Action {
	return Action{Kind: ActionProcess, Payload: payload}
}

var noAction = Action{Kind: ActionNone}
var waitForMoreAction = Action{Kind: ActionWaitForMore}

// padTo appends PaddingByte until frame has the given length, and is a
// no-op if it is already at least that long.
func padTo(frame []byte, width int) []byte {
	for len(frame) < width {
		frame = append(frame, PaddingByte)
	}
	return frame
}

// decodeSTmin converts an ISO 15765-2 separation-time byte received in a
// flow-control frame to microseconds: 0x00-0x7F is 0-127ms, 0xF1-0xF9 is
// 100-900us, everything else is reserved and treated as the longest
// defined interval.
func decodeSTmin(code byte) uint32 {
	switch {
	case code <= 0x7F:
		return uint32(code) * 1000
	case code >= 0xF1 && code <= 0xF9:
		return uint32(code-0xF0) * 100
	default:
		return 127000
	}
}

// encodeSTmin converts a configured microsecond separation time to an
// ISO 15765-2 byte, rounding down to a representable value; non-zero times
// below 100us encode as 100us and times above 127ms as 127ms.
func encodeSTmin(us uint32) byte {
	if us == 0 {
		return 0x00
	}
	if us < 1000 {
		code := us / 100
		if code < 1 {
			code = 1
		}
		if code > 9 {
			code = 9
		}
		return byte(0xF0 + code)
	}
	ms := us / 1000
	if ms > 127 {
		ms = 127
	}
	return byte(ms)
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func errBadWidthf(got, want int) error {
	return fmt.Errorf("%w: got %d, want %d", errBadWidth, got, want)
}
