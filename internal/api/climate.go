package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-client/internal/subsystem/climate"
)

// climateResponse is the JSON shape of climate.View. Readings the thermostat
// does not report are omitted.
type climateResponse struct {
	Thermostats  int      `json:"thermostats"`
	Primary      string   `json:"primary,omitempty"`
	Name         string   `json:"name,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	HeatSetPoint float64  `json:"heat_setpoint"`
	CoolSetPoint float64  `json:"cool_setpoint"`
	Mode         string   `json:"mode,omitempty"`
}

// hvacModeRequest is the body of PUT /climate/mode.
type hvacModeRequest struct {
	Mode string `json:"mode"`
}

func newClimateResponse(v climate.View) climateResponse {
	resp := climateResponse{
		Thermostats:  v.Thermostats,
		Primary:      string(v.Primary),
		Name:         v.Name,
		HeatSetPoint: v.HeatSetPoint,
		CoolSetPoint: v.CoolSetPoint,
		Mode:         v.Mode,
	}
	if v.HasTemperature {
		t := v.Temperature
		resp.Temperature = &t
	}
	if v.HasHumidity {
		h := v.Humidity
		resp.Humidity = &h
	}
	return resp
}

// handleGetClimate returns the primary thermostat view.
func (s *Server) handleGetClimate(w http.ResponseWriter, _ *http.Request) {
	if s.climate == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "climate is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, newClimateResponse(s.climate.View()))
}

// handleSetHVACMode changes the primary thermostat's mode.
func (s *Server) handleSetHVACMode(w http.ResponseWriter, r *http.Request) {
	if s.climate == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "climate is not enabled")
		return
	}

	var req hvacModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		writeBadRequest(w, "mode is required")
		return
	}

	if err := s.climate.SetHVACMode(r.Context(), req.Mode); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested", "mode": req.Mode})
}
