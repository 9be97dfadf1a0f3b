// Package logging provides structured logging for the Gray Logic client.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the client runtime.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-component child loggers
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("session").Info("login complete", "place_id", placeID)
//
// # Security
//
// Attributes named password, secret, token, session_token or authorization
// are redacted by the handler. Log place and person identifiers only.
package logging
