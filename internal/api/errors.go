package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-client/internal/platform"
	"github.com/nerrad567/gray-logic-client/internal/session"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/climate"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/security"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// PlatformCode carries the platform error code, when there is one.
	PlatformCode string `json:"platform_code,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeUpstream       = "upstream_error"
	ErrCodeTimeout        = "upstream_timeout"
	ErrCodeBypassRequired = "bypass_required"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a controller or platform error onto a response.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := http.StatusBadGateway, ErrCodeUpstream

	switch {
	case errors.Is(err, security.ErrBypassRequired):
		status, code = http.StatusConflict, ErrCodeBypassRequired
	case errors.Is(err, security.ErrInvalidMode), errors.Is(err, climate.ErrInvalidMode):
		status, code = http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, session.ErrUnknownPlace):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, session.ErrNotLoggedIn), errors.Is(err, security.ErrNotBound):
		status, code = http.StatusConflict, ErrCodeConflict
	case errors.Is(err, climate.ErrNoThermostat):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, platform.ErrRequestTimeout):
		status, code = http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, platform.ErrNotConnected), errors.Is(err, platform.ErrClientClosed):
		status, code = http.StatusServiceUnavailable, ErrCodeUnavailable
	}

	writeJSON(w, status, Error{
		Status:       status,
		Code:         code,
		Message:      err.Error(),
		PlatformCode: platform.CodeOf(err),
	})
}
