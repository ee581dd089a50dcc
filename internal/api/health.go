package api

import "net/http"

type healthResponse struct {
	Status           string `json:"status"`
	EngineTimeoutS   int    `json:"engine_timeout_s"`
	SolveRateLimited bool   `json:"solve_rate_limited"`
}

// handleHealthz reports liveness along with the effective solve settings.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		EngineTimeoutS:   int(s.engine.DefaultTimeout().Seconds()),
		SolveRateLimited: s.limiter != nil,
	})
}
