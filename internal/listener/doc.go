// Package listener provides listener registration primitives shared by every
// controller in the client runtime.
//
// Every registration returns an explicit Registration handle. Owners release
// their listeners by calling Unregister on teardown; there is no implicit,
// collector-driven cleanup.
//
//   - List: ordered multi-listener set (model event fan-out)
//   - Slot: single active callback with warn-and-replace semantics
//   - Loop: the UI-affinity executor; all callback bodies run on it
//   - Marshal: wraps a listener so its body runs on an executor
package listener
