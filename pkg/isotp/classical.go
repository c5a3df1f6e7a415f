package isotp

import "log/slog"

// ClassicalEngine is the ISO 15765-2 segmentation state machine for
// 8-byte (standard addressing) or 7-byte (extended addressing) CAN frames.
// It holds no transport of its own: WritePDU and DidReceiveFrame return the
// frames the caller must write and, for inbound data, the reassembled
// payload once a transfer completes.
type ClassicalEngine struct {
	logger   *slog.Logger
	behavior Behavior
	width    int
	blockSize uint8
	rxSTmin  uint32
	txSTmin  uint32

	state phase

	sendingPayload []byte
	sendingSeq     uint8

	receivingPayload           []byte
	receivingSeq               uint8
	receivingPendingBytes      int
	receivingUnconfirmedFrames uint8
}

// NewClassicalEngine builds an idle engine. rxSTmin is the separation time
// this side asks the peer to respect when it sends to us; txSTmin is the
// floor this side applies to its own transmission even if the peer's flow
// control requests less.
func NewClassicalEngine(mode AddressingMode, behavior Behavior, blockSize uint8, rxSTmin, txSTmin uint32, logger *slog.Logger) *ClassicalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	width := 8
	if mode == Extended {
		width = 7
	}
	return &ClassicalEngine{
		logger:    logger.With("service", "isotp-classical"),
		behavior:  behavior,
		width:     width,
		blockSize: blockSize,
		rxSTmin:   rxSTmin,
		txSTmin:   txSTmin,
	}
}

// Reset discards any in-progress transfer and returns the engine to idle.
func (e *ClassicalEngine) Reset() {
	e.state = idle
	e.sendingPayload = nil
	e.sendingSeq = 0
	e.receivingPayload = nil
	e.receivingSeq = 0
	e.receivingPendingBytes = 0
	e.receivingUnconfirmedFrames = 0
}

// WritePDU begins transmission of a message. It fails if a transfer is
// already in progress or the message exceeds MaxMessageLen.
func (e *ClassicalEngine) WritePDU(payload []byte) (Action, error) {
	if e.state != idle {
		return Action{}, ErrNotIdle
	}
	if len(payload) > MaxMessageLen {
		return Action{}, ErrTooLong
	}
	if len(payload) < e.width {
		frame := make([]byte, 0, e.width)
		frame = append(frame, byte(pciSingle<<4|len(payload)))
		frame = append(frame, payload...)
		frame = padTo(frame, e.width)
		return writeFrames(0, frame), nil
	}

	firstDataLen := e.width - 2
	frame := make([]byte, 0, e.width)
	frame = append(frame, byte(pciFirst<<4|((len(payload)>>8)&0x0F)), byte(len(payload)&0xFF))
	frame = append(frame, payload[:firstDataLen]...)

	e.state = sending
	e.sendingPayload = clone(payload[firstDataLen:])
	e.sendingSeq = 1

	return writeFrames(0, frame), nil
}

// DidReceiveFrame feeds one physical CAN frame to the engine.
func (e *ClassicalEngine) DidReceiveFrame(raw []byte) Action {
	action, violated := e.dispatch(raw)
	if !violated {
		return action
	}
	if e.behavior == Strict {
		e.logger.Debug("protocol violation", "err", action.Err)
		return action
	}
	e.logger.Debug("defensive recovery: resetting and retrying as data frame", "err", action.Err)
	e.Reset()
	retry, retryViolated := e.dispatchIdle(raw)
	if retryViolated {
		e.Reset()
		return waitForMoreAction
	}
	return retry
}

func (e *ClassicalEngine) dispatch(raw []byte) (Action, bool) {
	switch e.state {
	case sending:
		return e.dispatchSending(raw)
	case receiving:
		return e.dispatchReceiving(raw)
	default:
		return e.dispatchIdle(raw)
	}
}

func (e *ClassicalEngine) dispatchSending(raw []byte) (Action, bool) {
	fullWidth := len(raw) == e.width
	unpaddedFC := len(raw) == 3 && raw[0] >= fcContinueToSend && raw[0] <= fcOverflow
	if !fullWidth && !unpaddedFC {
		return violation(errBadWidthf(len(raw), e.width)), true
	}
	if len(raw) < 3 {
		return violation(errBadFlowControl), true
	}
	switch raw[0] {
	case fcContinueToSend:
		blockSize := raw[1]
		stmin := maxUint32(decodeSTmin(raw[2]), e.txSTmin)
		frames := e.buildConsecutiveFrames(blockSize)
		if len(e.sendingPayload) == 0 {
			e.Reset()
		}
		return writeFrames(stmin, frames...), false
	case fcWait:
		return noAction, false
	case fcOverflow:
		return violation(errOverflow), true
	default:
		return violation(errBadFlowControl), true
	}
}

func (e *ClassicalEngine) buildConsecutiveFrames(blockSize uint8) [][]byte {
	dataPerFrame := e.width - 1
	limit := len(e.sendingPayload)
	maxFrames := int(blockSize)
	if blockSize == 0 {
		maxFrames = (limit + dataPerFrame - 1) / dataPerFrame
	}
	var frames [][]byte
	consumed := 0
	seq := e.sendingSeq
	for i := 0; i < maxFrames && consumed < limit; i++ {
		n := dataPerFrame
		if limit-consumed < n {
			n = limit - consumed
		}
		frame := make([]byte, 0, e.width)
		frame = append(frame, byte(pciConsecutive<<4|(seq&0x0F)))
		frame = append(frame, e.sendingPayload[consumed:consumed+n]...)
		frame = padTo(frame, e.width)
		frames = append(frames, frame)
		consumed += n
		seq = (seq + 1) % 16
	}
	e.sendingSeq = seq
	e.sendingPayload = e.sendingPayload[consumed:]
	return frames
}

func (e *ClassicalEngine) dispatchIdle(raw []byte) (Action, bool) {
	if len(raw) != e.width {
		return violation(errBadWidthf(len(raw), e.width)), true
	}
	pci := raw[0] >> 4
	switch pci {
	case pciSingle:
		length := int(raw[0] & 0x0F)
		if length == 0 || length > e.width-1 || length > len(raw)-1 {
			return violation(errBadSingle), true
		}
		return process(clone(raw[1 : 1+length])), false
	case pciFirst:
		total := (int(raw[0]&0x0F) << 8) | int(raw[1])
		if total < e.width {
			return violation(errBadFirst), true
		}
		if total > MaxMessageLen {
			return violation(ErrTooLong), true
		}
		firstDataLen := e.width - 2
		e.receivingPayload = clone(raw[2 : 2+firstDataLen])
		e.receivingPendingBytes = total - firstDataLen
		e.receivingSeq = 1
		e.receivingUnconfirmedFrames = e.blockSize
		e.state = receiving
		fc := e.buildFlowControlFrame(fcContinueToSend)
		return writeFrames(0, fc), false
	default:
		return violation(errUnexpectedPCI), true
	}
}

func (e *ClassicalEngine) dispatchReceiving(raw []byte) (Action, bool) {
	if len(raw) != e.width {
		return violation(errBadWidthf(len(raw), e.width)), true
	}
	pci := raw[0] >> 4
	if pci != pciConsecutive {
		return violation(errUnexpectedPCI), true
	}
	seq := raw[0] & 0x0F
	if seq != e.receivingSeq {
		return violation(errSeqMismatch), true
	}
	n := e.width - 1
	if e.receivingPendingBytes < n {
		n = e.receivingPendingBytes
	}
	e.receivingPayload = append(e.receivingPayload, raw[1:1+n]...)
	e.receivingPendingBytes -= n
	e.receivingSeq = (e.receivingSeq + 1) % 16

	if e.receivingPendingBytes == 0 {
		payload := e.receivingPayload
		e.Reset()
		return process(payload), false
	}

	if e.blockSize > 0 {
		if e.receivingUnconfirmedFrames > 0 {
			e.receivingUnconfirmedFrames--
		}
		if e.receivingUnconfirmedFrames == 0 {
			e.receivingUnconfirmedFrames = e.blockSize
			fc := e.buildFlowControlFrame(fcContinueToSend)
			return writeFrames(0, fc), false
		}
	}
	return noAction, false
}

func (e *ClassicalEngine) buildFlowControlFrame(status byte) []byte {
	frame := []byte{status, e.blockSize, encodeSTmin(e.rxSTmin)}
	return padTo(frame, e.width)
}
