package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/seantiz/timegrid/internal/backend"
)

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)

// Backend implements backend.Backend by running the engine as a child process.
// It holds no per-run state and is safe for concurrent use.
type Backend struct {
	cfg    Config
	logger *slog.Logger
}

// NewBackend creates a process backend.
func NewBackend(cfg Config, logger *slog.Logger) *Backend {
	if cfg.ReapGrace <= 0 {
		cfg.ReapGrace = DefaultReapGrace
	}
	return &Backend{cfg: cfg, logger: logger}
}

// child is one started engine process and its pipes.
type child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	term   *terminator
}

// Run starts the engine, feeds it spec.Payload and waits for its exit or the
// deadline, whichever comes first.
func (b *Backend) Run(ctx context.Context, spec backend.Spec) (backend.TerminalEvent, error) {
	path, err := Locate(b.cfg, spec.EnginePath)
	if err != nil {
		runsTotal.WithLabelValues(outcomeSpawnError).Inc()
		b.logger.Error("engine not found", "run_id", spec.ID, "error", err)
		return backend.TerminalEvent{}, err
	}

	c, err := b.start(path)
	if err != nil {
		runsTotal.WithLabelValues(outcomeSpawnError).Inc()
		b.logger.Error("engine failed to start", "run_id", spec.ID, "engine_path", path, "error", err)
		return backend.TerminalEvent{}, err
	}

	// The deadline is the only cancellation trigger. A caller that goes away
	// does not turn a running engine into a timeout.
	timeout := spec.EffectiveTimeout()
	deadline, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	activeProcesses.Inc()
	defer activeProcesses.Dec()

	b.logger.Info("engine started",
		"run_id", spec.ID,
		"backend", BackendName,
		"engine_path", path,
		"pid", c.cmd.Process.Pid,
		"timeout", timeout.String(),
	)

	lc := newLifecycle()

	go b.writeInput(spec.ID, c.stdin, spec.Payload)

	// Both streams are drained from spawn onwards; a child blocked on a full
	// pipe would otherwise look like a hang.
	var stdout, stderr bytes.Buffer
	var drains sync.WaitGroup
	drains.Go(func() { _, _ = io.Copy(&stdout, c.stdout) })
	drains.Go(func() { drainLines(c.stderr, &stderr, spec.LogWriter) })

	reaped := make(chan struct{})
	go func() {
		waitErr := c.cmd.Wait()
		c.term.markReaped()
		b.reap(spec.ID, c, &drains)
		close(reaped)

		ev := backend.Exit(exitCode(waitErr), stdout.Bytes(), stderr.Bytes(), time.Since(start))
		if !lc.settle(ev) {
			b.logger.Debug("discarding exit after deadline", "run_id", spec.ID, "exit_code", ev.ExitCode)
		}
	}()

	stop := context.AfterFunc(deadline, func() {
		if !lc.settle(backend.Timeout(time.Since(start))) {
			return
		}
		if err := c.term.Terminate(); err != nil {
			b.logger.Warn("terminate engine", "run_id", spec.ID, "error", err)
		}
	})
	defer stop()

	ev := <-lc.done
	if ev.TimedOut() {
		<-reaped
	}

	runsTotal.WithLabelValues(outcomeOf(ev.ExitCode, ev.TimedOut())).Inc()
	runDuration.Observe(ev.Duration.Seconds())

	b.logger.Info("engine finished",
		"run_id", spec.ID,
		"outcome", string(ev.Kind),
		"exit_code", ev.ExitCode,
		"duration_ms", ev.Duration.Milliseconds(),
	)
	return ev, nil
}

// start launches the first working command line for path. Interpreters that
// are not installed are skipped; any other start failure is final.
func (b *Backend) start(path string) (*child, error) {
	var lastErr error
	for _, argv := range commandLines(path) {
		c, err := startChild(path, argv)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if !isNotFound(err) {
			break
		}
		b.logger.Debug("interpreter unavailable", "interpreter", argv[0], "error", err)
	}
	return nil, &backend.SpawnError{Reason: backend.SpawnStartFailed, Path: path, Err: lastErr}
}

func startChild(path string, argv []string) (*child, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1", "PYTHONIOENCODING=utf-8")
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	// The output pipes are owned here rather than by exec.Cmd so that Wait
	// returns as soon as the child exits, even if a descendant still holds
	// the write ends.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, err
	}

	return &child{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		stderr: stderrR,
		term:   newTerminator(cmd.Process),
	}, nil
}

// writeInput streams the payload and closes stdin. A child that exits without
// reading makes the write fail; that failure is left to the exit path.
func (b *Backend) writeInput(runID string, w io.WriteCloser, payload []byte) {
	if _, err := w.Write(payload); err != nil {
		b.logger.Debug("write engine input", "run_id", runID, "error", err)
	}
	if err := w.Close(); err != nil {
		b.logger.Debug("close engine input", "run_id", runID, "error", err)
	}
}

// reap waits for the output drains once the child has exited. If something
// the child left behind still holds the pipes after the grace period, the
// pipes are closed so the drains can finish.
func (b *Backend) reap(runID string, c *child, drains *sync.WaitGroup) {
	drained := make(chan struct{})
	go func() {
		drains.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(b.cfg.ReapGrace):
		b.logger.Warn("engine pipes still open after exit, closing", "run_id", runID)
	}
	c.stdout.Close()
	c.stderr.Close()
	<-drained
}

// drainLines copies r into buf and hands each complete line to emit.
func drainLines(r io.Reader, buf *bytes.Buffer, emit func(string)) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			buf.WriteString(line)
			if emit != nil {
				emit(strings.TrimRight(line, "\r\n"))
			}
		}
		if err != nil {
			return
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
