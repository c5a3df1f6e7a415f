package canlink

import "fmt"

// ProtocolErrorCode identifies the error class carried by an Error PDU
// (wire codes 0xE0..0xEF).
type ProtocolErrorCode uint8

const (
	ProtocolErrorUnspecified     ProtocolErrorCode = 0xE0
	ProtocolErrorHardware        ProtocolErrorCode = 0xE1
	ProtocolErrorInvalidChannel  ProtocolErrorCode = 0xE2
	ProtocolErrorInvalidPeriodic ProtocolErrorCode = 0xE3
	ProtocolErrorNoResponse      ProtocolErrorCode = 0xE4
	ProtocolErrorInvalidRPC      ProtocolErrorCode = 0xE5
	ProtocolErrorInvalidCommand  ProtocolErrorCode = 0xE6
)

var protocolErrorDescriptionMap = map[ProtocolErrorCode]string{
	ProtocolErrorUnspecified:     "unspecified adapter error",
	ProtocolErrorHardware:        "hardware fault reported by adapter",
	ProtocolErrorInvalidChannel:  "channel handle unknown or closed",
	ProtocolErrorInvalidPeriodic: "periodic message handle unknown or rejected",
	ProtocolErrorNoResponse:      "no response from vehicle bus",
	ProtocolErrorInvalidRPC:      "RPC call rejected by adapter",
	ProtocolErrorInvalidCommand:  "command not valid in current adapter state",
}

// ProtocolError wraps an Error PDU received from the adapter. Callers that
// need to branch on the class should compare Code() rather than the error
// string.
type ProtocolError struct {
	code ProtocolErrorCode
}

// NewProtocolError builds a ProtocolError from a raw wire code. Codes with
// no entry in the description table are accepted and described as an
// unrecognized adapter error, since adapters may report classes added after
// this library was built.
func NewProtocolError(code ProtocolErrorCode) *ProtocolError {
	return &ProtocolError{code: code}
}

// Code returns the wire error class.
func (e *ProtocolError) Code() ProtocolErrorCode {
	return e.code
}

// Description returns a human-readable description of the error class.
func (e *ProtocolError) Description() string {
	if d, ok := protocolErrorDescriptionMap[e.code]; ok {
		return d
	}
	return "unrecognized adapter error"
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("canlink: protocol error 0x%02X: %s", uint8(e.code), e.Description())
}

// Is reports whether target is ErrInvalidChannel, ErrInvalidPeriodic,
// ErrNoResponse, ErrInvalidRPC or ErrInvalidCommand matching this error's
// class, so callers can use errors.Is against the package sentinels without
// unwrapping a *ProtocolError by hand.
func (e *ProtocolError) Is(target error) bool {
	switch e.code {
	case ProtocolErrorInvalidChannel:
		return target == ErrInvalidChannel
	case ProtocolErrorInvalidPeriodic:
		return target == ErrInvalidPeriodic
	case ProtocolErrorNoResponse:
		return target == ErrNoResponse
	case ProtocolErrorInvalidRPC:
		return target == ErrInvalidRPC
	case ProtocolErrorInvalidCommand:
		return target == ErrInvalidCommand
	}
	return false
}
