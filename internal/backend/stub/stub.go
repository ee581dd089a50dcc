// Package stub provides a deterministic backend.Backend that replays canned
// engine outcomes. It stands in for the real solver in tests and in the
// test server, where the real engine is too slow and environment-dependent.
package stub

import (
	"context"
	"sync"
	"time"

	"github.com/seantiz/timegrid/internal/backend"
)

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)

// Backend returns the configured outcome for every run.
type Backend struct {
	// Stdout, Stderr and ExitCode make up the exit event.
	Stdout   string
	Stderr   string
	ExitCode int

	// Echo replaces Stdout with the run payload.
	Echo bool

	// Delay is how long the fake engine "runs". A delay longer than the run
	// timeout yields a timeout event.
	Delay time.Duration

	// Hang makes every run end in a timeout.
	Hang bool

	// SpawnErr, if set, is returned instead of running.
	SpawnErr error

	// LogLines are delivered to Spec.LogWriter before the run ends.
	LogLines []string

	mu    sync.Mutex
	specs []backend.Spec
}

// Exits returns a stub that exits with code after writing stdout and stderr.
func Exits(code int, stdout, stderr string) *Backend {
	return &Backend{ExitCode: code, Stdout: stdout, Stderr: stderr}
}

// Echo returns a stub that writes its payload back with exit code 0.
func Echo() *Backend {
	return &Backend{Echo: true}
}

// Hangs returns a stub that never finishes before its deadline.
func Hangs() *Backend {
	return &Backend{Hang: true}
}

// FailsToSpawn returns a stub whose engine cannot be started.
func FailsToSpawn(err error) *Backend {
	return &Backend{SpawnErr: err}
}

// Run implements backend.Backend.
func (b *Backend) Run(ctx context.Context, spec backend.Spec) (backend.TerminalEvent, error) {
	b.mu.Lock()
	b.specs = append(b.specs, spec)
	b.mu.Unlock()

	if b.SpawnErr != nil {
		return backend.TerminalEvent{}, b.SpawnErr
	}

	start := time.Now()
	timeout := spec.EffectiveTimeout()
	deadline, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if spec.LogWriter != nil {
		for _, line := range b.LogLines {
			spec.LogWriter(line)
		}
	}

	if b.Hang {
		<-deadline.Done()
		return backend.Timeout(time.Since(start)), nil
	}

	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-deadline.Done():
			return backend.Timeout(time.Since(start)), nil
		}
	}

	stdout := []byte(b.Stdout)
	if b.Echo {
		stdout = append([]byte(nil), spec.Payload...)
	}
	return backend.Exit(b.ExitCode, stdout, []byte(b.Stderr), time.Since(start)), nil
}

// Calls returns the number of runs started so far.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.specs)
}

// LastSpec returns the most recent run spec, if any.
func (b *Backend) LastSpec() (backend.Spec, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.specs) == 0 {
		return backend.Spec{}, false
	}
	return b.specs[len(b.specs)-1], true
}
