package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/timegrid/internal/backend"
	"github.com/seantiz/timegrid/internal/diagnose"
	"github.com/seantiz/timegrid/internal/feasibility"
	"github.com/seantiz/timegrid/internal/model"
	"github.com/seantiz/timegrid/internal/store"
)

// ErrNoStore is returned by Submit when the engine was built without a store.
var ErrNoStore = errors.New("engine has no run store")

// Engine orchestrates solver invocations.
type Engine struct {
	backend        backend.Backend
	store          store.Store
	checker        *feasibility.Checker
	defaultTimeout time.Duration
	logger         *slog.Logger
	wg             sync.WaitGroup
	broker         *LogBroker
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds sets the feasibility pre-check thresholds.
func WithThresholds(t feasibility.Thresholds) Option {
	return func(e *Engine) { e.checker = feasibility.NewChecker(t) }
}

// WithDefaultTimeout sets the engine deadline used when a request has none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// NewEngine creates an engine that runs the solver through b. s may be nil
// when only Invoke is used.
func NewEngine(b backend.Backend, s store.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		backend:        b,
		store:          s,
		checker:        feasibility.NewChecker(feasibility.DefaultThresholds),
		defaultTimeout: backend.DefaultTimeout,
		logger:         logger,
		broker:         NewLogBroker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker returns the engine's log broker for SSE subscription.
func (e *Engine) Broker() *LogBroker {
	return e.broker
}

// DefaultTimeout is the engine deadline applied when a request sets none.
func (e *Engine) DefaultTimeout() time.Duration {
	return e.defaultTimeout
}

// Check runs only the feasibility pre-check.
func (e *Engine) Check(req model.SolveRequest) []model.FeasibilityWarning {
	return e.checker.Check(req)
}

// Invoke runs one solver invocation and waits for its result. Failures are
// returned as classified values, never as errors, and are never retried.
func (e *Engine) Invoke(ctx context.Context, req model.InvocationRequest) model.Result {
	return e.invoke(ctx, model.NewID(), req, nil)
}

func (e *Engine) invoke(ctx context.Context, id string, req model.InvocationRequest, logWriter func(string)) model.Result {
	log := e.logger.With("run_id", id)

	warnings := e.checker.Check(req.Payload)
	if feasibility.HasErrors(warnings) {
		precheckBlocked.Inc()
		res := model.Failure(blockingError(warnings), warnings)
		invocationsTotal.WithLabelValues(outcomeOf(res)).Inc()
		log.Warn("pre-check blocked invocation", "warnings", len(warnings), "rule", firstError(warnings).Rule)
		return res
	}

	payload := req.Raw
	if len(payload) == 0 {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			res := model.Failure(model.NewClassifiedError(model.KindUnknown, diagnose.MessageUnknown,
				fmt.Sprintf("encode payload: %v", err)), warnings)
			invocationsTotal.WithLabelValues(outcomeOf(res)).Inc()
			log.Error("encode payload failed", "error", err)
			return res
		}
		payload = b
	}

	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	ev, err := e.backend.Run(ctx, backend.Spec{
		ID:         id,
		Payload:    payload,
		Timeout:    timeout,
		EnginePath: req.Options.EnginePath,
		LogWriter:  logWriter,
	})

	var res model.Result
	if err != nil {
		kind := model.KindUnknown
		var se *backend.SpawnError
		if errors.As(err, &se) {
			kind = model.KindSpawn
		}
		res = model.Failure(model.NewClassifiedError(kind, diagnose.MessageFor(kind), err.Error()), warnings)
	} else {
		res = diagnose.Interpret(ev)
		res.Warnings = warnings
	}
	invocationsTotal.WithLabelValues(outcomeOf(res)).Inc()

	if res.OK() {
		log.Info("invocation succeeded", "duration_ms", ev.Duration.Milliseconds(), "warnings", len(warnings))
	} else {
		log.Warn("invocation failed",
			"kind", res.Error.Kind,
			"exit_code", ev.ExitCode,
			"duration_ms", ev.Duration.Milliseconds(),
			"raw_diagnostic", res.Error.RawDiagnostic,
		)
	}
	return res
}

// blockingError turns the first error-severity finding into a validation
// failure pointing at the entity the user has to fix.
func blockingError(ws []model.FeasibilityWarning) *model.ClassifiedError {
	w := firstError(ws)
	ce := model.NewClassifiedError(model.KindValidation, w.Message, "")
	switch w.Rule {
	case feasibility.RuleGridShape:
		ce.EntityType = model.EntityPeriod
		ce.Field = "periodsPerDay"
	case feasibility.RuleRoomMissing:
		ce.Field = "fixedRoomId"
	}
	if len(w.AffectedEntities) > 0 {
		ref := w.AffectedEntities[0]
		ce.EntityType = ref.Type
		ce.EntityID = fmt.Sprint(ref.ID)
	}
	ce.SuggestedStep = model.StepFor(ce.EntityType)
	return ce
}

func firstError(ws []model.FeasibilityWarning) model.FeasibilityWarning {
	for _, w := range ws {
		if w.Severity == model.SeverityError {
			return w
		}
	}
	return model.FeasibilityWarning{}
}

// Submit stores a pending run and invokes the solver in a goroutine. The
// returned run is a snapshot taken before execution starts.
func (e *Engine) Submit(ctx context.Context, req model.InvocationRequest) (*model.Run, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}

	if len(req.Raw) == 0 {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		req.Raw = b
	}

	run := &model.Run{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Request:   req.Raw,
		CreatedAt: time.Now().UTC(),
	}
	if req.Options.Timeout > 0 {
		secs := int(req.Options.Timeout / time.Second)
		run.TimeoutS = &secs
	}

	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	id := run.ID
	e.wg.Go(func() {
		e.execute(id, req)
	})

	snapshot := *run
	return &snapshot, nil
}

// Wait blocks until all in-flight runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// execute runs one submitted invocation: pending→running→completed/failed.
func (e *Engine) execute(id string, req model.InvocationRequest) {
	defer e.broker.Close(id)
	ctx := context.Background()

	if err := e.store.UpdateRunStatus(ctx, id, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition to running", "run_id", id, "error", err)
		e.finish(id, time.Now().UTC(), model.Failure(model.NewClassifiedError(model.KindUnknown,
			diagnose.MessageUnknown, fmt.Sprintf("start run: %v", err)), nil))
		return
	}
	start := time.Now().UTC()

	// Lines are persisted for history, then published for live SSE.
	var seq atomic.Int32
	logWriter := func(line string) {
		n := int(seq.Add(1) - 1)
		if err := e.store.InsertLogLine(ctx, id, n, line); err != nil {
			e.logger.Error("failed to persist log line", "run_id", id, "seq", n, "error", err)
		}
		e.broker.Publish(id, line)
	}

	res := e.invoke(ctx, id, req, logWriter)
	e.finish(id, start, res)
}

func (e *Engine) finish(id string, start time.Time, res model.Result) {
	now := time.Now().UTC()
	dur := int(now.Sub(start).Milliseconds())

	r := &model.Run{
		ID:         id,
		Status:     model.StatusCompleted,
		Warnings:   res.Warnings,
		DurationMS: &dur,
		StartedAt:  &start,
		FinishedAt: &now,
	}
	if res.OK() {
		r.Result = res.Payload
	} else {
		r.Status = model.StatusFailed
		r.ErrorKind = res.Error.Kind
		r.Error = res.Error
		r.RawDiagnostic = res.Error.RawDiagnostic
	}

	if err := e.store.UpdateRun(context.Background(), r); err != nil {
		e.logger.Error("failed to store run result", "run_id", id, "status", r.Status, "error", err)
	}
}
