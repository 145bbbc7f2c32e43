package protocol

import (
	"errors"
	"fmt"
)

// FrameErrorType represents the category of frame error that occurred
type FrameErrorType int

const (
	// ErrTypeTooShort indicates fewer bytes than the 4-byte header
	ErrTypeTooShort FrameErrorType = iota
	// ErrTypeTruncated indicates the header declares more payload than was received
	ErrTypeTruncated
	// ErrTypePayloadTooLarge indicates a payload that does not fit the 1-byte length field
	ErrTypePayloadTooLarge
	// ErrTypeOpcodeMismatch indicates a response to a different command
	ErrTypeOpcodeMismatch
	// ErrTypeSequenceMismatch indicates a response carrying another sequence number
	ErrTypeSequenceMismatch
	// ErrTypeLengthMismatch indicates a response whose payload is not exactly one status byte
	ErrTypeLengthMismatch
	// ErrTypeStatus indicates the shade answered with a nonzero status code
	ErrTypeStatus
	// ErrTypeInvalidArgument indicates a command parameter outside its valid range
	ErrTypeInvalidArgument
)

// String returns a human-readable name for the error type
func (t FrameErrorType) String() string {
	switch t {
	case ErrTypeTooShort:
		return "Frame Too Short"
	case ErrTypeTruncated:
		return "Frame Truncated"
	case ErrTypePayloadTooLarge:
		return "Payload Too Large"
	case ErrTypeOpcodeMismatch:
		return "Opcode Mismatch"
	case ErrTypeSequenceMismatch:
		return "Sequence Mismatch"
	case ErrTypeLengthMismatch:
		return "Length Mismatch"
	case ErrTypeStatus:
		return "Status Error"
	case ErrTypeInvalidArgument:
		return "Invalid Argument"
	default:
		return fmt.Sprintf("FrameErrorType(%d)", int(t))
	}
}

// FrameError describes why a frame could not be built or why a response was rejected
type FrameError struct {
	Type     FrameErrorType // Category of error
	Message  string         // Human-readable error message
	Expected int            // Expected value (opcode, sequence, length), if applicable
	Actual   int            // Received value, or the status code for ErrTypeStatus
}

// Error implements the error interface
func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newFrameError(t FrameErrorType, expected, actual int, format string, args ...any) *FrameError {
	return &FrameError{
		Type:     t,
		Message:  fmt.Sprintf(format, args...),
		Expected: expected,
		Actual:   actual,
	}
}

func frameErrorType(err error) (FrameErrorType, bool) {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Type, true
	}
	return 0, false
}

func isFrameErrorType(err error, t FrameErrorType) bool {
	got, ok := frameErrorType(err)
	return ok && got == t
}

// IsTooShort checks if an error reports a frame shorter than the header
func IsTooShort(err error) bool {
	return isFrameErrorType(err, ErrTypeTooShort)
}

// IsOpcodeMismatch checks if an error reports a response to another command
func IsOpcodeMismatch(err error) bool {
	return isFrameErrorType(err, ErrTypeOpcodeMismatch)
}

// IsSequenceMismatch checks if an error reports an unexpected sequence number
func IsSequenceMismatch(err error) bool {
	return isFrameErrorType(err, ErrTypeSequenceMismatch)
}

// IsLengthMismatch checks if an error reports a response payload length other than 1
func IsLengthMismatch(err error) bool {
	return isFrameErrorType(err, ErrTypeLengthMismatch)
}

// IsStatusError checks if an error reports a nonzero status byte from the shade
func IsStatusError(err error) bool {
	return isFrameErrorType(err, ErrTypeStatus)
}

// IsVerificationError checks if an error came from validating a well-formed
// response against the command it answers (opcode, sequence, length, status).
// Malformed input (too short, truncated) is not a verification error.
func IsVerificationError(err error) bool {
	t, ok := frameErrorType(err)
	if !ok {
		return false
	}
	switch t {
	case ErrTypeOpcodeMismatch, ErrTypeSequenceMismatch, ErrTypeLengthMismatch, ErrTypeStatus:
		return true
	}
	return false
}

// StatusCode extracts the device error code from a status error
func StatusCode(err error) (uint8, bool) {
	var fe *FrameError
	if errors.As(err, &fe) && fe.Type == ErrTypeStatus {
		return uint8(fe.Actual), true
	}
	return 0, false
}
