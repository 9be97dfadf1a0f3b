package model

import "errors"

// Domain errors for the model package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, model.ErrAddressChanged) {
//	    // the source was rebound while the fetch was in flight
//	}
var (
	// ErrNoAddress is returned when a source is loaded before an address is set.
	ErrNoAddress = errors.New("model: no address bound")

	// ErrMissingAddress is returned when a payload has no base:address.
	ErrMissingAddress = errors.New("model: payload has no base:address")

	// ErrAddressChanged is returned when a fetch completes after the source
	// was rebound to another address. The result is discarded.
	ErrAddressChanged = errors.New("model: address changed during load")

	// ErrNotFound is returned by fetchers when the platform has no such model.
	ErrNotFound = errors.New("model: not found")
)
