package api

import (
	"net/http"

	"github.com/seantiz/timegrid/internal/model"
)

// statsResponse is the JSON response for GET /v1/stats. FailureRate is the
// share of finished runs that failed, 0 when none have finished.
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByErrorKind   map[string]int `json:"by_error_kind"`
	FailureRate   float64        `json:"failure_rate"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetRunStats(r.Context())
	if err != nil {
		s.logger.Error("run stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	resp := statsResponse{
		Total:         st.Total,
		ByStatus:      st.CountByStatus,
		ByErrorKind:   st.CountByErrorKind,
		AvgDurationMS: st.AvgDurationMS,
	}
	if resp.ByStatus == nil {
		resp.ByStatus = map[string]int{}
	}
	if resp.ByErrorKind == nil {
		resp.ByErrorKind = map[string]int{}
	}
	failed := resp.ByStatus[model.StatusFailed]
	if finished := failed + resp.ByStatus[model.StatusCompleted]; finished > 0 {
		resp.FailureRate = float64(failed) / float64(finished)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
