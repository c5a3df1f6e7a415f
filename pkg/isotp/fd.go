package isotp

import (
	"fmt"
	"log/slog"
)

// admissibleLengths are the physical CAN-FD DLC lengths an adapter may
// report or transmit.
var admissibleLengths = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

func isAdmissibleLength(n int) bool {
	for _, l := range admissibleLengths {
		if l == n {
			return true
		}
	}
	return false
}

// FDEngine is the ISO 15765-2 segmentation state machine for CAN-FD links:
// it picks the smallest admissible physical DLC that carries each frame
// instead of a fixed width, and uses the FD escape PCI for SINGLE frames
// whose payload would not fit the classical one-nibble length field.
type FDEngine struct {
	logger    *slog.Logger
	behavior  Behavior
	extended  bool
	maxWidth  int // physical, <=64
	blockSize uint8
	rxSTmin   uint32
	txSTmin   uint32

	state phase

	sendingPayload       []byte
	sendingPayloadOffset int
	sendingSeq           uint8

	receivingPayload           []byte
	receivingSeq               uint8
	receivingPendingBytes      int
	receivingUnconfirmedFrames uint8
}

// NewFDEngine builds an idle FD engine. maxWidth is the physical DLC cap
// this side will emit (standard addressing: up to 64; extended: up to 64,
// with one byte of each frame reserved for the address extension so the
// effective capacity is 63).
func NewFDEngine(extended bool, maxWidth int, behavior Behavior, blockSize uint8, rxSTmin, txSTmin uint32, logger *slog.Logger) *FDEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxWidth <= 0 || maxWidth > 64 {
		maxWidth = 64
	}
	return &FDEngine{
		logger:    logger.With("service", "isotp-fd"),
		behavior:  behavior,
		extended:  extended,
		maxWidth:  maxWidth,
		blockSize: blockSize,
		rxSTmin:   rxSTmin,
		txSTmin:   txSTmin,
	}
}

func (e *FDEngine) effectiveWidth(physical int) int {
	if e.extended {
		return physical - 1
	}
	return physical
}

func (e *FDEngine) maxEffectiveWidth() int {
	return e.effectiveWidth(e.maxWidth)
}

// chooseWidth returns the effective (ISO-TP-visible) width of the smallest
// admissible physical CAN-FD length whose effective capacity is at least
// need, not exceeding maxWidth. Frames this engine emits are sized to the
// returned effective width; the address-extension byte that makes up the
// difference between effective and physical width in extended addressing
// is the transport's concern, not this engine's.
func (e *FDEngine) chooseWidth(need int) (int, bool) {
	for _, l := range admissibleLengths {
		if l > e.maxWidth {
			break
		}
		if eff := e.effectiveWidth(l); eff >= need {
			return eff, true
		}
	}
	return 0, false
}

// isAdmissibleFrameLen reports whether an ISO-TP-visible frame of the
// given length corresponds to an admissible physical CAN-FD DLC once the
// address-extension byte (if any) is accounted for.
func (e *FDEngine) isAdmissibleFrameLen(effLen int) bool {
	physical := effLen
	if e.extended {
		physical = effLen + 1
	}
	return isAdmissibleLength(physical)
}

// Reset discards any in-progress transfer and returns the engine to idle.
func (e *FDEngine) Reset() {
	e.state = idle
	e.sendingPayload = nil
	e.sendingPayloadOffset = 0
	e.sendingSeq = 0
	e.receivingPayload = nil
	e.receivingSeq = 0
	e.receivingPendingBytes = 0
	e.receivingUnconfirmedFrames = 0
}

// WritePDU begins transmission of a message.
func (e *FDEngine) WritePDU(payload []byte) (Action, error) {
	if e.state != idle {
		return Action{}, ErrNotIdle
	}
	if len(payload) > MaxMessageLen {
		return Action{}, ErrTooLong
	}

	maxEff := e.maxEffectiveWidth()

	if len(payload) <= 7 {
		width, ok := e.chooseWidth(1 + len(payload))
		if ok {
			frame := make([]byte, 0, width)
			frame = append(frame, byte(pciSingle<<4|len(payload)))
			frame = append(frame, payload...)
			frame = padTo(frame, width)
			return writeFrames(0, frame), nil
		}
	}

	if len(payload) <= maxEff-2 {
		width, ok := e.chooseWidth(2 + len(payload))
		if ok {
			frame := make([]byte, 0, width)
			frame = append(frame, 0x00, byte(len(payload)))
			frame = append(frame, payload...)
			frame = padTo(frame, width)
			return writeFrames(0, frame), nil
		}
	}

	firstDataLen := maxEff - 2
	frame := make([]byte, 0, maxEff)
	frame = append(frame, byte(pciFirst<<4|((len(payload)>>8)&0x0F)), byte(len(payload)&0xFF))
	frame = append(frame, payload[:firstDataLen]...)
	frame = padTo(frame, maxEff)

	e.state = sending
	e.sendingPayload = clone(payload)
	e.sendingPayloadOffset = firstDataLen
	e.sendingSeq = 1

	return writeFrames(0, frame), nil
}

// DidReceiveFrame feeds one ISO-TP-visible CAN-FD frame to the engine (the
// address-extension byte in extended addressing, if any, must already be
// stripped by the transport).
func (e *FDEngine) DidReceiveFrame(raw []byte) Action {
	if !e.isAdmissibleFrameLen(len(raw)) {
		return e.recover(violation(fmt.Errorf("%w: frame length %d not admissible", errBadWidth, len(raw))), raw)
	}
	action, violated := e.dispatch(raw)
	if !violated {
		return action
	}
	return e.recover(action, raw)
}

func (e *FDEngine) recover(action Action, raw []byte) Action {
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

func (e *FDEngine) dispatch(raw []byte) (Action, bool) {
	switch e.state {
	case sending:
		return e.dispatchSending(raw)
	case receiving:
		return e.dispatchReceiving(raw)
	default:
		return e.dispatchIdle(raw)
	}
}

func (e *FDEngine) dispatchSending(raw []byte) (Action, bool) {
	if len(raw) < 3 {
		return violation(errBadFlowControl), true
	}
	switch raw[0] {
	case fcContinueToSend:
		blockSize := raw[1]
		stmin := maxUint32(decodeSTmin(raw[2]), e.txSTmin)
		frames := e.buildConsecutiveFrames(blockSize)
		if e.sendingPayloadOffset >= len(e.sendingPayload) {
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

func (e *FDEngine) buildConsecutiveFrames(blockSize uint8) [][]byte {
	maxDataPerFrame := e.maxEffectiveWidth() - 1
	limit := len(e.sendingPayload)
	maxFrames := int(blockSize)
	if blockSize == 0 {
		remaining := limit - e.sendingPayloadOffset
		maxFrames = (remaining + maxDataPerFrame - 1) / maxDataPerFrame
	}
	var frames [][]byte
	seq := e.sendingSeq
	for i := 0; i < maxFrames && e.sendingPayloadOffset < limit; i++ {
		n := maxDataPerFrame
		if limit-e.sendingPayloadOffset < n {
			n = limit - e.sendingPayloadOffset
		}
		width, ok := e.chooseWidth(1 + n)
		if !ok {
			width = e.maxEffectiveWidth()
		}
		frame := make([]byte, 0, width)
		frame = append(frame, byte(pciConsecutive<<4|(seq&0x0F)))
		frame = append(frame, e.sendingPayload[e.sendingPayloadOffset:e.sendingPayloadOffset+n]...)
		frame = padTo(frame, width)
		frames = append(frames, frame)
		e.sendingPayloadOffset += n
		seq = (seq + 1) % 16
	}
	e.sendingSeq = seq
	return frames
}

func (e *FDEngine) dispatchIdle(raw []byte) (Action, bool) {
	pci := raw[0] >> 4
	switch {
	case raw[0] == 0x00:
		if len(raw) < 2 {
			return violation(errBadSingle), true
		}
		length := int(raw[1])
		if length == 0 || length > e.maxEffectiveWidth()-2 || length > len(raw)-2 {
			return violation(errBadSingle), true
		}
		return process(clone(raw[2 : 2+length])), false
	case pci == pciSingle:
		length := int(raw[0] & 0x0F)
		if length == 0 || length > len(raw)-1 {
			return violation(errBadSingle), true
		}
		return process(clone(raw[1 : 1+length])), false
	case pci == pciFirst:
		if len(raw) < 2 {
			return violation(errBadFirst), true
		}
		total := (int(raw[0]&0x0F) << 8) | int(raw[1])
		if total > MaxMessageLen {
			return violation(ErrTooLong), true
		}
		firstDataLen := len(raw) - 2
		if firstDataLen > total {
			firstDataLen = total
		}
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

func (e *FDEngine) dispatchReceiving(raw []byte) (Action, bool) {
	pci := raw[0] >> 4
	if pci != pciConsecutive {
		return violation(errUnexpectedPCI), true
	}
	seq := raw[0] & 0x0F
	if seq != e.receivingSeq {
		return violation(errSeqMismatch), true
	}
	n := len(raw) - 1
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

func (e *FDEngine) buildFlowControlFrame(status byte) []byte {
	frame := []byte{status, e.blockSize, encodeSTmin(e.rxSTmin)}
	return frame
}
