package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/timegrid/internal/backend"
	"github.com/seantiz/timegrid/internal/backend/stub"
	"github.com/seantiz/timegrid/internal/diagnose"
	"github.com/seantiz/timegrid/internal/engine"
	"github.com/seantiz/timegrid/internal/model"
)

func intPtr(v int) *int { return &v }

// validRequest returns a small request with no feasibility findings.
func validRequest() model.SolveRequest {
	return model.SolveRequest{
		Teachers: []model.Teacher{{ID: 1, Name: "Ada"}},
		Subjects: []model.Subject{{ID: 1, Name: "Maths", PeriodsPerWeek: 4}},
		Rooms:    []model.Room{{ID: 1, Name: "A1", Capacity: 30}},
		Classes: []model.Class{{
			ID: 1, Name: "5a", StudentCount: 25, FixedRoomID: intPtr(1),
			Curriculum: []model.CurriculumEntry{{SubjectID: 1, TeacherID: 1}},
		}},
		Config: model.GridShape{PeriodsPerDay: 6, DaysPerWeek: 5},
	}
}

func decodeResult(t *testing.T, resp *http.Response) model.Result {
	t.Helper()
	var res model.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestSolveSuccess(t *testing.T) {
	lessons := `[{"classId":1,"subjectId":1,"teacherId":1,"roomId":1,"day":"Monday","period":1}]`
	b := stub.Exits(0, lessons, "")
	srv := newTestServerWith(t, b, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve", validRequest())
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeResult(t, resp)
	require.True(t, res.OK())

	got, err := res.Lessons()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Monday", got[0].Day)
	assert.Equal(t, 1, b.Calls())
}

func TestSolveForwardsRawBody(t *testing.T) {
	b := stub.Echo()
	srv := newTestServerWith(t, b, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"rooms":[],"classes":[],"config":{"periodsPerDay":6,"daysPerWeek":5},"solverHints":{"seed":7}}`
	resp := postJSON(t, ts.URL+"/v1/solve", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	spec, ok := b.LastSpec()
	require.True(t, ok)
	assert.JSONEq(t, body, string(spec.Payload))
}

func TestSolveTimeoutQuery(t *testing.T) {
	b := stub.Echo()
	srv := newTestServerWith(t, b, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve?timeout_s=5000", validRequest())
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	spec, ok := b.LastSpec()
	require.True(t, ok)
	assert.Equal(t, maxTimeoutS*time.Second, spec.Timeout)
}

func TestSolvePrecheckBlocks(t *testing.T) {
	b := stub.Echo()
	srv := newTestServerWith(t, b, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req := validRequest()
	req.Subjects[0].PeriodsPerWeek = 30

	resp := postJSON(t, ts.URL+"/v1/solve", req)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	res := decodeResult(t, resp)
	require.NotNil(t, res.Error)
	assert.Equal(t, model.KindValidation, res.Error.Kind)
	assert.Equal(t, model.EntityRoom, res.Error.EntityType)
	assert.Equal(t, "1", res.Error.EntityID)
	assert.Equal(t, model.StepRooms, res.Error.SuggestedStep)
	assert.NotEmpty(t, res.Warnings)
	assert.Zero(t, b.Calls(), "engine must not run when the pre-check blocks")
}

func TestSolveEngineValidationError(t *testing.T) {
	stderr := "Traceback (most recent call last):\nValidationError: Class 7 has no curriculum\n"
	srv := newTestServerWith(t, stub.Exits(1, "", stderr), nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve", validRequest())
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	res := decodeResult(t, resp)
	require.NotNil(t, res.Error)
	assert.Equal(t, model.KindValidation, res.Error.Kind)
	assert.NotEmpty(t, res.Error.Details)
	assert.Empty(t, resp.Header.Get("Retry-After"), "validation failures need a changed request")
}

func TestSolveTimeout(t *testing.T) {
	srv := newTestServerWith(t, stub.Hangs(), nil, engine.WithDefaultTimeout(50*time.Millisecond))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve", validRequest())
	defer resp.Body.Close()

	require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	res := decodeResult(t, resp)
	require.NotNil(t, res.Error)
	assert.Equal(t, model.KindTimeout, res.Error.Kind)
	assert.Equal(t, diagnose.MessageTimeout, res.Error.Details)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestSolveSpawnErrorHidesDiagnostic(t *testing.T) {
	spawnErr := &backend.SpawnError{
		Reason: backend.SpawnNotFound,
		Path:   "/opt/secret/engine",
		Err:    backend.ErrEngineNotFound,
	}
	srv := newTestServerWith(t, stub.FailsToSpawn(spawnErr), nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve", validRequest())
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "/opt/secret")

	var res model.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, model.KindSpawn, res.Error.Kind)
	assert.Equal(t, diagnose.MessageSpawn, res.Error.Details)
}

func TestSolveBadJSON(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve", "{not json")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSolveAsync(t *testing.T) {
	srv := newTestServerWith(t, stub.Exits(0, `{"lessons":[]}`, ""), nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve/async?timeout_s=30", validRequest())
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var run model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, model.StatusPending, run.Status)
	assert.Equal(t, "/v1/runs/"+run.ID, resp.Header.Get("Location"))
	require.NotNil(t, run.TimeoutS)
	assert.Equal(t, 30, *run.TimeoutS)

	srv.engine.Wait()

	got, err := http.Get(ts.URL + "/v1/runs/" + run.ID)
	require.NoError(t, err)
	defer got.Body.Close()

	var final model.Run
	require.NoError(t, json.NewDecoder(got.Body).Decode(&final))
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.JSONEq(t, `{"lessons":[]}`, string(final.Result))
	assert.NotNil(t, final.FinishedAt)
}

func TestSolveAsyncFailureStoresKind(t *testing.T) {
	srv := newTestServerWith(t, stub.Exits(0, "not json at all", ""), nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/solve/async", validRequest())
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	srv.engine.Wait()

	got, err := http.Get(ts.URL + "/v1/runs/" + run.ID)
	require.NoError(t, err)
	defer got.Body.Close()

	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "not json at all")

	var final model.Run
	require.NoError(t, json.Unmarshal(body, &final))
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.Equal(t, model.KindParse, final.ErrorKind)
	require.NotNil(t, final.Error)
	assert.Equal(t, diagnose.MessageParse, final.Error.Details)
}

func TestFeasibilityEndpoint(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"rooms":[{"id":1,"capacity":10}],"classes":[{"id":1,"fixedRoomId":1,"studentCount":15}]}`
	resp := postJSON(t, ts.URL+"/v1/feasibility", body)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got feasibilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, model.SeverityWarning, got.Warnings[0].Severity)
	assert.False(t, got.Blocking)
}

func TestFeasibilityEndpointBlocking(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req := validRequest()
	req.Classes[0].FixedRoomID = intPtr(42)

	resp := postJSON(t, ts.URL+"/v1/feasibility", req)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got feasibilityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Blocking)
}

func TestFeasibilityEmptyRequest(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/feasibility", "{}")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"warnings":[],"blocking":false}`, string(body))
}
