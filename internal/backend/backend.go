package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds an engine run when the caller sets none.
const DefaultTimeout = 120 * time.Second

// Backend runs the solver engine once per call. Implementations must deliver
// exactly one terminal event per run and must not keep state between runs.
type Backend interface {
	// Run writes spec.Payload to the engine and blocks until it exits or the
	// timeout expires. The only error returned is a *SpawnError; every other
	// outcome is expressed as a TerminalEvent.
	Run(ctx context.Context, spec Spec) (TerminalEvent, error)
}

// Spec describes one engine run.
type Spec struct {
	ID      string
	Payload []byte
	Timeout time.Duration

	// EnginePath overrides engine resolution for this run.
	EnginePath string

	// LogWriter, if set, receives each diagnostic (stderr) line as it is read.
	LogWriter func(line string)
}

// EffectiveTimeout returns Timeout, or DefaultTimeout when it is unset.
func (s Spec) EffectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// EventKind tells how a run ended.
type EventKind string

const (
	EventExit    EventKind = "exit"
	EventTimeout EventKind = "timeout"
)

// TerminalEvent is the single outcome of a run. A timeout carries no output.
type TerminalEvent struct {
	Kind     EventKind
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Exit builds a normal-exit event.
func Exit(code int, stdout, stderr []byte, d time.Duration) TerminalEvent {
	return TerminalEvent{Kind: EventExit, ExitCode: code, Stdout: stdout, Stderr: stderr, Duration: d}
}

// Timeout builds a timeout event.
func Timeout(d time.Duration) TerminalEvent {
	return TerminalEvent{Kind: EventTimeout, ExitCode: -1, Duration: d}
}

// TimedOut reports whether the run hit its deadline.
func (e TerminalEvent) TimedOut() bool {
	return e.Kind == EventTimeout
}

// ErrEngineNotFound is wrapped by SpawnError when no engine entry point exists.
var ErrEngineNotFound = errors.New("solver engine not found")

// Spawn failure reasons.
const (
	SpawnNotFound    = "not_found"
	SpawnStartFailed = "start_failed"
)

// SpawnError reports that the engine could not be located or started.
type SpawnError struct {
	Reason string
	Path   string
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("spawn engine (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("spawn engine %s (%s): %v", e.Path, e.Reason, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
