//go:build !windows

// Package e2e drives the HTTP API against real engine processes: small sh
// scripts stand in for the solver.
package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seantiz/timegrid/internal/api"
	"github.com/seantiz/timegrid/internal/backend/process"
	"github.com/seantiz/timegrid/internal/engine"
	"github.com/seantiz/timegrid/internal/model"
	"github.com/seantiz/timegrid/internal/store"
)

const request = `{
  "teachers": [{"id": 1, "name": "Ada"}],
  "subjects": [{"id": 1, "name": "Maths", "periodsPerWeek": 4}],
  "rooms": [{"id": 1, "name": "A1", "capacity": 30}],
  "classes": [{"id": 1, "name": "5a", "studentCount": 25, "curriculum": [{"subjectId": 1, "teacherId": 1}]}],
  "config": {"periodsPerDay": 6, "daysPerWeek": 5}
}`

const lessons = `[{"classId":1,"subjectId":1,"teacherId":1,"roomId":1,"day":"Monday","period":0}]`

type stack struct {
	ts  *httptest.Server
	eng *engine.Engine
}

// newStack serves the API with the given sh script as the engine.
func newStack(t *testing.T, script string) *stack {
	t.Helper()

	enginePath := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(enginePath, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write engine: %v", err)
	}

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	b := process.NewBackend(process.Config{EnginePath: enginePath, ReapGrace: time.Second}, logger)
	eng := engine.NewEngine(b, s, logger)
	srv := api.NewServer(":0", s, eng, nil, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		eng.Wait()
	})
	return &stack{ts: ts, eng: eng}
}

func (st *stack) post(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(st.ts.URL+path, "application/json", bytes.NewBufferString(request))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (st *stack) get(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(st.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func decodeResult(t *testing.T, body []byte) model.Result {
	t.Helper()
	var res model.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode result: %v\nbody: %s", err, body)
	}
	return res
}

func TestSyncSolveSucceeds(t *testing.T) {
	st := newStack(t, `cat >/dev/null
echo 'solver ready' >&2
echo '`+lessons+`'`)

	resp, body := st.post(t, "/v1/solve")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", resp.StatusCode, body)
	}

	got, err := decodeResult(t, body).Lessons()
	if err != nil {
		t.Fatalf("Lessons: %v", err)
	}
	if len(got) != 1 || got[0].Day != "Monday" {
		t.Errorf("lessons = %+v", got)
	}
}

func TestSyncSolveEngineSeesRequest(t *testing.T) {
	// The engine answers with the request it received.
	st := newStack(t, "cat")

	resp, body := st.post(t, "/v1/solve")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", resp.StatusCode, body)
	}

	var echoed model.SolveRequest
	if err := json.Unmarshal(decodeResult(t, body).Payload, &echoed); err != nil {
		t.Fatalf("decode echo: %v", err)
	}
	if echoed.Config.PeriodsPerDay != 6 || len(echoed.Classes) != 1 {
		t.Errorf("engine received %+v", echoed)
	}
}

func TestSyncSolveValidationError(t *testing.T) {
	st := newStack(t, `cat >/dev/null
echo 'Traceback (most recent call last):' >&2
echo '{"error": "Class '"'"'1'"'"' references unknown teacher '"'"'9'"'"'", "validation_failed": true}' >&2
exit 1`)

	resp, body := st.post(t, "/v1/solve")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422\nbody: %s", resp.StatusCode, body)
	}

	e := decodeResult(t, body).Error
	if e == nil {
		t.Fatal("missing error")
	}
	if e.Kind != model.KindValidation || e.EntityType != model.EntityClass || e.EntityID != "1" {
		t.Errorf("error = %+v", e)
	}
	if e.Field != "teacherId" || e.SuggestedStep != model.StepClasses {
		t.Errorf("field/step = %q/%q", e.Field, e.SuggestedStep)
	}
	if bytes.Contains(body, []byte("Traceback")) {
		t.Error("raw diagnostic leaked into the response")
	}
}

func TestSyncSolveTimeout(t *testing.T) {
	st := newStack(t, `cat >/dev/null
echo '`+lessons+`'
sleep 30`)

	start := time.Now()
	resp, body := st.post(t, "/v1/solve?timeout_s=1")
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504\nbody: %s", resp.StatusCode, body)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
	if res := decodeResult(t, body); res.Error.Kind != model.KindTimeout || res.Payload != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncSolveGarbageOutput(t *testing.T) {
	st := newStack(t, `cat >/dev/null
echo 'progress 50%'
echo 'done'`)

	resp, body := st.post(t, "/v1/solve")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500\nbody: %s", resp.StatusCode, body)
	}
	if e := decodeResult(t, body).Error; e.Kind != model.KindParse {
		t.Errorf("kind = %q, want parse_error", e.Kind)
	}
}

func TestAsyncSolveRecordsLogs(t *testing.T) {
	st := newStack(t, `cat >/dev/null
echo 'loading' >&2
echo 'searching' >&2
echo '`+lessons+`'`)

	resp, body := st.post(t, "/v1/solve/async")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", resp.StatusCode, body)
	}
	var run model.Run
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}

	st.eng.Wait()

	var final model.Run
	st.get(t, "/v1/runs/"+run.ID, &final)
	if final.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed (error %+v)", final.Status, final.Error)
	}

	var history struct {
		Lines []struct {
			Line string `json:"line"`
		} `json:"lines"`
	}
	st.get(t, "/v1/runs/"+run.ID+"/logs/history", &history)
	if len(history.Lines) != 2 || history.Lines[0].Line != "loading" || history.Lines[1].Line != "searching" {
		t.Errorf("history = %+v", history.Lines)
	}

	var stats struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	st.get(t, "/v1/stats", &stats)
	if stats.Total != 1 || stats.ByStatus[model.StatusCompleted] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
