// Package countdown provides a cancellable one-second countdown used to mirror
// a platform-communicated delay locally.
//
// The countdown is cosmetic: the platform decides when a state transition
// happens and the local value may be superseded at any time. Owner ensures
// that only one countdown is ever live for a given consumer.
//
// # Usage
//
//	owner := countdown.NewOwner(loop, countdown.DefaultInterval)
//	owner.Start(30, func(remaining int) {
//	    view.UpdateCountdown(remaining)
//	})
//	...
//	owner.Cancel()
package countdown
