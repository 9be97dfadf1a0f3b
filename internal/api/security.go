package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-client/internal/subsystem/security"
)

// securityResponse is the JSON shape of security.View.
type securityResponse struct {
	State     string   `json:"state"`
	Mode      string   `json:"mode"`
	Devices   int      `json:"devices"`
	Armed     int      `json:"armed"`
	Active    []string `json:"active"`
	Bypassed  []string `json:"bypassed"`
	Offline   []string `json:"offline"`
	Triggered []string `json:"triggered"`
	Countdown int      `json:"countdown"`
}

// promptResponse is the JSON shape of security.Prompt.
type promptResponse struct {
	Mode    string   `json:"mode"`
	Reason  string   `json:"reason,omitempty"`
	Devices []string `json:"devices"`
}

// armRequest is the body of POST /security/arm.
type armRequest struct {
	Mode   string `json:"mode"`
	Bypass bool   `json:"bypass"`
}

func newSecurityResponse(v security.View) securityResponse {
	return securityResponse{
		State:     string(v.State),
		Mode:      string(v.Mode),
		Devices:   v.Devices,
		Armed:     v.ArmedCount(),
		Active:    nonNil(v.Active),
		Bypassed:  nonNil(v.Bypassed),
		Offline:   nonNil(v.Offline),
		Triggered: nonNil(v.Triggered),
		Countdown: v.Countdown,
	}
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// handleGetSecurity returns the current security view.
func (s *Server) handleGetSecurity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newSecurityResponse(s.security.View()))
}

// handleArm requests arming. A 409 bypass_required response means devices
// are unsecured; the client retries with bypass set.
func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	var req armRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	mode := security.Mode(req.Mode)
	if mode == "" {
		mode = security.ModeOn
	}

	var err error
	if req.Bypass {
		err = s.security.ArmBypassed(r.Context(), mode)
	} else {
		err = s.security.Arm(r.Context(), mode)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The platform confirms the state change by push; the response carries
	// the view as it stands, including any started countdown.
	writeJSON(w, http.StatusAccepted, newSecurityResponse(s.security.View()))
}

// handleDisarm requests disarming.
func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if err := s.security.Disarm(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newSecurityResponse(s.security.View()))
}
