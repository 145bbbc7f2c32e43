package gateway

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the gateway refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeHTTP indicates a non-2xx status code
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed JSON body or hex payload
	ErrTypeParse
	// ErrTypeProtocol indicates a well-formed reply that reports a failure,
	// such as a non-zero error code or a key of the wrong length
	ErrTypeProtocol
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeProtocol:
		return "Protocol Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// GatewayError represents an error that occurred talking to the gateway
type GatewayError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether the request may be retried
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a typed error.
// The checks walk the wrapped chain, so *url.Error from net/http is handled.
func ClassifyNetworkError(message string, err error) *GatewayError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &GatewayError{Type: ErrTypeTimeout, Message: message, Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &GatewayError{Type: ErrTypeDNS, Message: message, Err: err, Retryable: false}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &GatewayError{Type: ErrTypeConnectionRefused, Message: message, Err: err, Retryable: true}
	}

	return &GatewayError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}
}

// NewHTTPError creates an HTTP-level error. Server errors are retryable.
func NewHTTPError(statusCode int, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *GatewayError {
	return &GatewayError{Type: ErrTypeParse, Message: message, Err: err}
}

// NewProtocolError creates a protocol error
func NewProtocolError(message string, err error) *GatewayError {
	return &GatewayError{Type: ErrTypeProtocol, Message: message, Err: err}
}

func errorType(err error) (ErrorType, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Type, true
	}
	return 0, false
}

// IsNetworkError checks if an error is a network error (including timeout, connection refused, DNS)
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeHTTP
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeParse
}

// IsProtocolError checks if an error is a protocol error
func IsProtocolError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeProtocol
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch gwErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The gateway did not respond in time.",
			"Troubleshooting:",
			"  • Check that the gateway is powered on and its LED is solid",
			"  • The gateway relays the request to the shade over Bluetooth; a distant shade may time out",
			"  • Try again with a longer --timeout",
		}, "\n")

	case ErrTypeConnectionRefused, ErrTypeNetwork:
		return strings.Join([]string{
			"Could not reach the gateway.",
			"Troubleshooting:",
			"  • Verify the gateway URL or run 'pv-homekey scan'",
			"  • Make sure this computer is on the same network as the gateway",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the gateway hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead of powerview-g3.local",
			"  • Check that mDNS is allowed on your network",
		}, "\n")

	case ErrTypeHTTP:
		if gwErr.StatusCode >= 500 {
			return fmt.Sprintf("The gateway returned an error (HTTP %d). Try again or reboot the gateway.", gwErr.StatusCode)
		}
		return fmt.Sprintf("The gateway returned HTTP error %d. Only PowerView Gen 3 gateways are supported.", gwErr.StatusCode)

	case ErrTypeParse:
		return "Failed to parse the gateway's response. The gateway firmware may be incompatible."

	case ErrTypeProtocol:
		return "The shade rejected the key request. Check that it belongs to this gateway's home."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return err.Error()
	}

	switch gwErr.Type {
	case ErrTypeTimeout:
		return "Gateway not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Gateway refused connection"
	case ErrTypeDNS:
		return "Cannot resolve gateway hostname"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		return fmt.Sprintf("Gateway error (HTTP %d)", gwErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse gateway response"
	default:
		return gwErr.Message
	}
}
