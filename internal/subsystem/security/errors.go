package security

import "errors"

// Domain errors for the security package.
var (
	// ErrBypassRequired wraps a TriggeredDevices arm failure. The prompt has
	// already been delivered to the callback.
	ErrBypassRequired = errors.New("security: devices not secure, bypass required")

	// ErrInvalidMode is returned when arming with a mode other than ON or PARTIAL.
	ErrInvalidMode = errors.New("security: invalid arming mode")

	// ErrNotBound is returned before the controller is bound to a place.
	ErrNotBound = errors.New("security: no place bound")
)
