package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-client/internal/platform"
)

// placeResponse is one accessible place.
type placeResponse struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
}

// sessionResponse is the JSON shape of the current session.
type sessionResponse struct {
	State    string          `json:"state"`
	PersonID string          `json:"person_id,omitempty"`
	PlaceID  string          `json:"place_id,omitempty"`
	Role     string          `json:"role,omitempty"`
	Places   []placeResponse `json:"places"`
}

// changePlaceRequest is the body of PUT /session/place.
type changePlaceRequest struct {
	PlaceID string `json:"place_id"`
}

func newPlaceResponses(places []platform.PlaceDescriptor) []placeResponse {
	out := make([]placeResponse, 0, len(places))
	for _, p := range places {
		out = append(out, placeResponse{PlaceID: p.PlaceID, Name: p.PlaceName, Role: string(p.Role)})
	}
	return out
}

// handleGetSession returns the session state and, when logged in, its identity.
func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	resp := sessionResponse{
		State:  s.session.State().String(),
		Places: []placeResponse{},
	}
	if sess := s.session.Session(); sess != nil {
		resp.PersonID = sess.PersonID
		resp.PlaceID = sess.PlaceID
		resp.Role = string(sess.Role)
		resp.Places = newPlaceResponses(sess.Places)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChangePlace switches the active place.
func (s *Server) handleChangePlace(w http.ResponseWriter, r *http.Request) {
	var req changePlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PlaceID == "" {
		writeBadRequest(w, "place_id is required")
		return
	}

	if err := s.session.ChangeActivePlace(r.Context(), req.PlaceID); err != nil {
		s.logger.Warn("changing active place failed", "place_id", req.PlaceID, "error", err)
		writeDomainError(w, err)
		return
	}
	s.handleGetSession(w, r)
}

// handleLogout ends the session. Local state is cleared even when the
// platform call fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.logger.Debug("logout completed with platform error", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
