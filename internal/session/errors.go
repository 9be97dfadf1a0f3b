package session

import "errors"

// Domain errors for the session package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, session.ErrLoadTimeout) {
//	    // some caches did not load in time
//	}
var (
	// ErrLoginInProgress is returned when Login is called while another login
	// has not completed.
	ErrLoginInProgress = errors.New("session: login already in progress")

	// ErrNoPlaces is returned when the account has no accessible place.
	ErrNoPlaces = errors.New("session: no places available")

	// ErrLoadTimeout is reported when the post-login caches did not all load
	// within the configured timeout.
	ErrLoadTimeout = errors.New("session: timed out loading session caches")

	// ErrCacheLoad wraps the first cache failure during login.
	ErrCacheLoad = errors.New("session: cache load failed")

	// ErrNotLoggedIn is returned by operations that need an active session.
	ErrNotLoggedIn = errors.New("session: not logged in")

	// ErrUnknownPlace is returned when switching to a place the person cannot access.
	ErrUnknownPlace = errors.New("session: unknown place")
)
