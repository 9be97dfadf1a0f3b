// Package session orchestrates login, logout and active place switching.
//
// A session is usable only once seven caches have loaded at least once: the
// active place, the person, the account, and the device, hub, person and
// product lists of the place. Login fans these reloads out in parallel and
// waits on a barrier with a timeout:
//
//	Login ──▶ authenticate ──▶ resolve place ──▶ SetActivePlace
//	                                                  │
//	         ┌──────┬──────┬──────┬──────┬──────┬─────┴┐
//	         ▼      ▼      ▼      ▼      ▼      ▼      ▼
//	       place person account devices hubs people products
//	         └──────┴──────┴──────┴──┬───┴──────┴──────┘
//	                                 ▼
//	             first error ─▶ OnLoginError (fail-fast)
//	             all loaded  ─▶ OnLoginSuccess (exactly once)
//	             timeout     ─▶ OnLoginError(ErrLoadTimeout)
//
// A timed-out login does not cancel the reloads still in flight; they may
// complete afterwards and populate the model cache.
//
// Place resolution prefers the requested place when the person can access it,
// then the first owned place, then the first listed place.
//
// The controller also reacts to out-of-band platform events. A session expiry
// is handed to the registered LogoutCallback, or drives a logout when none is
// registered. When the active place is cleared remotely the controller moves
// to another owned place, or logs out if there is none.
package session
