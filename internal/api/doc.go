// Package api implements the local HTTP and WebSocket surface of the client.
//
// This package provides:
//   - REST endpoints for the session, the security subsystem and climate
//   - A WebSocket hub that relays controller callbacks as events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
//	UI ──HTTP──▶ router ──▶ session / security / climate controllers ──▶ platform
//	UI ◀──WS─── Hub ◀────── controller callbacks (executor goroutine)
//
// Commands are fire-and-confirm: arm, disarm and mode changes return 202 once
// the platform accepts the request, and the resulting state arrives later as
// a hub event.
//
// # Events
//
// Clients subscribe to channels by name:
//
//	session.state        lifecycle transitions
//	security.changed     recomputed security view
//	security.countdown   arming countdown ticks
//	security.prompt      unsecured devices, re-arm with bypass to proceed
//	security.error       failed security requests
//	climate.changed      recomputed thermostat view
//	climate.error        failed climate requests
//
// # Security
//
// The server is meant to bind to localhost; requests are not authenticated.
package api
