package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/seantiz/timegrid/internal/feasibility"
	"github.com/seantiz/timegrid/internal/model"
)

const (
	maxBodySize = 4 << 20
	maxTimeoutS = 600
	// writeSlack is added to the engine deadline when extending the write
	// deadline of a synchronous solve.
	writeSlack = 15 * time.Second
)

// feasibilityResponse is the JSON response for POST /v1/feasibility.
type feasibilityResponse struct {
	Warnings []model.FeasibilityWarning `json:"warnings"`
	Blocking bool                       `json:"blocking"`
}

// readSolveRequest decodes the request body and keeps the raw bytes so that
// fields timegrid does not model still reach the engine.
func (s *Server) readSolveRequest(w http.ResponseWriter, r *http.Request) (model.InvocationRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return model.InvocationRequest{}, false
		}
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return model.InvocationRequest{}, false
	}

	var req model.InvocationRequest
	if err := json.Unmarshal(body, &req.Payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return model.InvocationRequest{}, false
	}
	req.Raw = body

	if t := parseIntQuery(r, "timeout_s", 0); t > 0 {
		req.Options.Timeout = time.Duration(min(t, maxTimeoutS)) * time.Second
	}
	return req, true
}

// statusFor maps a result onto an HTTP status.
func statusFor(res model.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch res.Error.Kind {
	case model.KindValidation:
		return http.StatusUnprocessableEntity
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readSolveRequest(w, r)
	if !ok {
		return
	}

	// The engine may run longer than the server's default write timeout.
	deadline := req.Options.Timeout
	if deadline <= 0 {
		deadline = s.engine.DefaultTimeout()
	}
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(deadline + writeSlack)); err != nil {
		s.logger.Debug("extend write deadline for solve", "error", err)
	}

	solvesInFlight.Inc()
	res := s.engine.Invoke(r.Context(), req)
	solvesInFlight.Dec()
	if !res.OK() && res.Error.Kind.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	s.writeJSON(w, statusFor(res), res)
}

func (s *Server) handleSolveAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readSolveRequest(w, r)
	if !ok {
		return
	}

	run, err := s.engine.Submit(r.Context(), req)
	if err != nil {
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	w.Header().Set("Location", "/v1/runs/"+run.ID)
	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleFeasibility(w http.ResponseWriter, r *http.Request) {
	var req model.SolveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ws := s.engine.Check(req)
	if ws == nil {
		ws = []model.FeasibilityWarning{}
	}
	s.writeJSON(w, http.StatusOK, feasibilityResponse{Warnings: ws, Blocking: feasibility.HasErrors(ws)})
}
