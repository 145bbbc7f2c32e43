package shade

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeTransport indicates a connect, subscribe or write failure
	ErrTypeTransport ErrorType = iota
	// ErrTypeTimeout indicates no response arrived within the response timeout
	ErrTypeTimeout
	// ErrTypeVerification indicates a response that did not match its command
	ErrTypeVerification
	// ErrTypeFrame indicates a command that could not be encoded
	ErrTypeFrame
	// ErrTypeDescriptorRead indicates a failed Device Information read
	ErrTypeDescriptorRead
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeVerification:
		return "Verification Failure"
	case ErrTypeFrame:
		return "Frame Error"
	case ErrTypeDescriptorRead:
		return "Descriptor Read Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Sentinel errors for shade-level rules
var (
	// ErrControlsUnavailable is returned when a shade cannot accept commands:
	// it belongs to a home but no key is provisioned, or it is charging.
	ErrControlsUnavailable = errors.New("shade controls unavailable")

	// ErrUnknownShade is returned by the Manager for an unregistered address
	ErrUnknownShade = errors.New("unknown shade")
)

// Error is a failure of a shade operation
type Error struct {
	Type   ErrorType // Category of error
	Device string    // Shade name or address
	Op     string    // Operation, e.g. "stop" or "read fw_rev"
	Err    error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Device, e.Type, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", e.Device, e.Type, e.Op)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, device, op string, err error) *Error {
	return &Error{Type: t, Device: device, Op: op, Err: err}
}

func isType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsTransportError checks if an error is a transport failure
func IsTransportError(err error) bool {
	return isType(err, ErrTypeTransport)
}

// IsTimeout checks if an error is a response timeout
func IsTimeout(err error) bool {
	return isType(err, ErrTypeTimeout)
}

// IsVerificationError checks if an error is a response verification failure
func IsVerificationError(err error) bool {
	return isType(err, ErrTypeVerification)
}

// IsFrameError checks if an error is a frame encoding failure
func IsFrameError(err error) bool {
	return isType(err, ErrTypeFrame)
}

// IsDescriptorReadError checks if an error is a Device Information read failure
func IsDescriptorReadError(err error) bool {
	return isType(err, ErrTypeDescriptorRead)
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	if errors.Is(err, ErrControlsUnavailable) {
		return "Shade controls unavailable - missing home key or battery charging"
	}
	if errors.Is(err, ErrUnknownShade) {
		return "Unknown shade - scan first or check the address"
	}

	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Type {
	case ErrTypeTimeout:
		return "Shade did not confirm the command (timeout)"
	case ErrTypeTransport:
		return "Could not reach the shade over Bluetooth"
	case ErrTypeVerification:
		return "Shade sent an unexpected response"
	case ErrTypeFrame:
		return "Invalid command: " + errorText(e.Err)
	case ErrTypeDescriptorRead:
		return "Could not read device information"
	default:
		return e.Error()
	}
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	if errors.Is(err, ErrControlsUnavailable) {
		return strings.Join([]string{
			"The shade is not accepting commands.",
			"Troubleshooting:",
			"  • Shades paired to a PowerView home need the 16-byte home key",
			"  • Run 'pv-homekey extract --save' against your gateway",
			"  • Wait until the shade has finished charging",
		}, "\n")
	}

	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The shade did not confirm the command in time.",
			"The command may still have been executed.",
			"Troubleshooting:",
			"  • Check that the home key matches the shade's home",
			"  • Move the Bluetooth adapter closer to the shade",
			"  • Try increasing --timeout",
		}, "\n")
	case ErrTypeTransport:
		return strings.Join([]string{
			"The Bluetooth connection could not be established or was lost.",
			"Troubleshooting:",
			"  • Verify the address with 'pvctl scan'",
			"  • Make sure no other controller is connected to the shade",
			"  • Check that the Bluetooth adapter is powered on",
		}, "\n")
	case ErrTypeDescriptorRead:
		return "The shade closed the connection while reading device information. Try again."
	default:
		return "An error occurred. Please check the error message for details."
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
