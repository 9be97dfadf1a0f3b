package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(
		s.requestIDMiddleware,
		s.accessLogMiddleware,
		s.recoveryMiddleware,
		newCORSPolicy(s.cfg.CORS).handler,
		bodyLimitMiddleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Put("/place", s.handleChangePlace)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/security", func(r chi.Router) {
			r.Get("/", s.handleGetSecurity)
			r.Post("/arm", s.handleArm)
			r.Post("/disarm", s.handleDisarm)
		})

		r.Route("/climate", func(r chi.Router) {
			r.Get("/", s.handleGetClimate)
			r.Put("/mode", s.handleSetHVACMode)
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the configured hub path, "/ws" when unset.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports liveness and whether the platform link is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"session": s.session.State().String(),
	}
	if s.link != nil {
		resp["platform_connected"] = s.link.IsConnected()
	}
	writeJSON(w, http.StatusOK, resp)
}
