package platform

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	// ErrRequestTimeout is returned when no response arrives in time.
	ErrRequestTimeout = errors.New("platform: request timed out")

	// ErrClientClosed is returned for requests on, or pending at, a closed client.
	ErrClientClosed = errors.New("platform: client closed")

	// ErrNotConnected is returned when no link has been established.
	ErrNotConnected = errors.New("platform: not connected")

	// ErrMalformedFrame is returned when a frame cannot be decoded.
	ErrMalformedFrame = errors.New("platform: malformed frame")
)

// Error is a structured error returned by the platform. Code identifies the
// condition ("TriggeredDevices", "UnknownPlace", ...) and Attributes carry
// condition-specific details.
type Error struct {
	Code       string
	Message    string
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform error %s", e.Code)
	}
	return fmt.Sprintf("platform error %s: %s", e.Code, e.Message)
}

// CodeOf returns the platform error code carried by err, or "".
func CodeOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

func errorFromAttributes(attrs map[string]any) *Error {
	code, _ := attrs["code"].(string)
	msg, _ := attrs["message"].(string)
	if code == "" {
		code = "Unknown"
	}
	return &Error{Code: code, Message: msg, Attributes: attrs}
}
