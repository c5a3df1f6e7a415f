package canlink

import "errors"

// Sentinel errors returned by the transport, PDU, segmentation and client
// layers. Callers should compare with errors.Is, not string matching.
var (
	// ErrNotConnected is returned by client and transport operations
	// attempted before Connect or after Disconnect.
	ErrNotConnected = errors.New("canlink: not connected")

	// ErrTransport wraps a failure reported by the underlying transport
	// (read, write, dial). The original error is available via errors.Unwrap.
	ErrTransport = errors.New("canlink: transport error")

	// ErrTimeout is returned when a deadline elapses before the expected
	// response, frame or byte arrives.
	ErrTimeout = errors.New("canlink: timeout")

	// ErrInvalidChannel is returned when a channel index or arbitration
	// descriptor is out of range or inconsistent with the requested protocol.
	ErrInvalidChannel = errors.New("canlink: invalid channel")

	// ErrInvalidPeriodic is returned by periodic message setup when the
	// requested interval, handle or payload is invalid.
	ErrInvalidPeriodic = errors.New("canlink: invalid periodic message")

	// ErrNoResponse matches a *ProtocolError of class 0xE4, which the
	// adapter reports when the vehicle bus gave no response. A closed link
	// surfaces as ErrTransport or ErrNotConnected instead.
	ErrNoResponse = errors.New("canlink: no response")

	// ErrInvalidRPC is returned when a reply PDU does not carry the type
	// expected for the outstanding request.
	ErrInvalidRPC = errors.New("canlink: unexpected reply type")

	// ErrInvalidCommand matches a *ProtocolError of class 0xE6, which the
	// adapter reports when a command is not valid in its current state.
	ErrInvalidCommand = errors.New("canlink: invalid command")

	// ErrBufferEmpty reports a buffer read attempted when no data is
	// available. pdu.Decoder does not return it: Next reports an incomplete
	// buffer through its ok result.
	ErrBufferEmpty = errors.New("canlink: buffer empty")

	// ErrBufferFull is returned when a bounded buffer cannot accept more
	// data without first being drained.
	ErrBufferFull = errors.New("canlink: buffer full")

	// ErrLimitExceeded is returned when a payload, batch or segmented
	// transfer exceeds a protocol-defined size limit.
	ErrLimitExceeded = errors.New("canlink: limit exceeded")

	// ErrUnsupported is returned when a feature is recognized but not
	// implemented for the active channel protocol or transport.
	ErrUnsupported = errors.New("canlink: unsupported")

	// ErrRequestInFlight is returned by operations forbidden while a
	// synchronous request is outstanding, such as toggling the client's
	// scheduling mode.
	ErrRequestInFlight = errors.New("canlink: request in flight")
)
