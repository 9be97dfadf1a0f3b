// Package security implements the security arming state machine of a place.
//
// The platform is authoritative for the alarm lifecycle:
//
//	DISARMED ──Arm──▶ ARMING ──exit delay──▶ ARMED ──▶ ALERT | SOAKING ──▶ DISARMED
//	                    │
//	                    └──Disarm──▶ DISARMED
//
// The controller only requests transitions and mirrors pushed state. While
// ARMING it runs a local one-second countdown for UI feedback. The countdown
// starts from the delaySec of a successful arm response, or resumes from the
// advertised exit delay when an ARMING push arrives and no countdown is
// running. It is cancelled when a push moves the state anywhere but ARMING,
// never by the disarm request itself.
//
// An arm attempt rejected with the TriggeredDevices code is turned into a
// bypass prompt naming the unsecured devices. Every other failure is
// reported through Callback.OnError.
//
// Views are recomputed from the cache on every refresh. Device pushes only
// trigger a refresh when IsStatusChanged reports a relevant attribute.
package security
