//go:build !windows

package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	psprocess "github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/timegrid/internal/backend"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// writeScript writes an sh engine script into dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newScriptBackend(t *testing.T, body string) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeScript(t, dir, "engine.sh", body)
	return NewBackend(Config{EnginePath: path, ReapGrace: 500 * time.Millisecond}, testLogger()), dir
}

func TestRunEchoesPayload(t *testing.T) {
	b, _ := newScriptBackend(t, "cat")

	payload := []byte(`{"rooms":[{"id":1,"capacity":10}]}`)
	ev, err := b.Run(context.Background(), backend.Spec{ID: "r1", Payload: payload, Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, backend.EventExit, ev.Kind)
	assert.Equal(t, 0, ev.ExitCode)
	assert.Equal(t, string(payload), string(ev.Stdout))
}

func TestRunNonZeroExitKeepsDiagnostics(t *testing.T) {
	b, _ := newScriptBackend(t, `cat >/dev/null
echo '{"level":"error","error":"boom"}' >&2
echo partial
exit 3`)

	ev, err := b.Run(context.Background(), backend.Spec{ID: "r2", Payload: []byte("{}"), Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, backend.EventExit, ev.Kind)
	assert.Equal(t, 3, ev.ExitCode)
	assert.Contains(t, string(ev.Stderr), `"error":"boom"`)
	assert.Equal(t, "partial\n", string(ev.Stdout))
}

func TestRunTimeoutDiscardsOutputAndReapsChild(t *testing.T) {
	b, dir := newScriptBackend(t, `echo $$ > pid
echo '[1,2,3]'
echo 'working' >&2
sleep 30`)

	start := time.Now()
	ev, err := b.Run(context.Background(), backend.Spec{ID: "r3", Payload: []byte("{}"), Timeout: 300 * time.Millisecond})
	require.NoError(t, err)

	assert.True(t, ev.TimedOut())
	assert.Nil(t, ev.Stdout, "timeout must not carry partial output")
	assert.Nil(t, ev.Stderr)
	assert.Less(t, time.Since(start), 10*time.Second)

	raw, err := os.ReadFile(filepath.Join(dir, "pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	exists, err := psprocess.PidExists(int32(pid))
	require.NoError(t, err)
	assert.False(t, exists, "engine process %d outlived the timeout", pid)
}

func TestRunCancelledCallerIsNotATimeout(t *testing.T) {
	b, _ := newScriptBackend(t, `cat >/dev/null
echo '[1]'`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev, err := b.Run(ctx, backend.Spec{ID: "r3c", Payload: []byte("{}"), Timeout: 10 * time.Second})
	require.NoError(t, err)

	assert.NotEqual(t, backend.EventTimeout, ev.Kind)
	assert.Equal(t, backend.EventExit, ev.Kind)
	assert.Equal(t, 0, ev.ExitCode)
	assert.Equal(t, "[1]\n", string(ev.Stdout))
}

func TestRunCallerCancelledMidRunWaitsForExit(t *testing.T) {
	b, _ := newScriptBackend(t, `sleep 1
echo '[2]'`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ev, err := b.Run(ctx, backend.Spec{ID: "r3d", Timeout: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, backend.EventExit, ev.Kind)
	assert.Equal(t, "[2]\n", string(ev.Stdout))
}

func TestRunExitSettlesWhileDescendantHoldsPipes(t *testing.T) {
	b, dir := newScriptBackend(t, `sleep 30 &
echo $! > helper.pid
echo '[3]'
exit 0`)

	start := time.Now()
	ev, err := b.Run(context.Background(), backend.Spec{ID: "r3e", Timeout: 8 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, backend.EventExit, ev.Kind)
	assert.Equal(t, 0, ev.ExitCode)
	assert.Equal(t, "[3]\n", string(ev.Stdout))
	assert.Less(t, time.Since(start), 5*time.Second)

	raw, err := os.ReadFile(filepath.Join(dir, "helper.pid"))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func TestRunChildExitsWithoutReadingInput(t *testing.T) {
	b, _ := newScriptBackend(t, `echo '{"error":"refused"}' >&2
exit 2`)

	payload := bytes.Repeat([]byte("x"), 4<<20)
	ev, err := b.Run(context.Background(), backend.Spec{ID: "r4", Payload: payload, Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, backend.EventExit, ev.Kind)
	assert.Equal(t, 2, ev.ExitCode)
	assert.Contains(t, string(ev.Stderr), "refused")
}

func TestRunDrainsLargeOutputWhileRunning(t *testing.T) {
	// Writes far more than a pipe buffer to both streams before reading stdin.
	b, _ := newScriptBackend(t, `i=0
while [ $i -lt 4000 ]; do
  echo "log line $i padding padding padding padding padding padding padding padding" >&2
  echo "out line $i padding padding padding padding padding padding padding padding"
  i=$((i+1))
done
cat >/dev/null
echo '[]'`)

	ev, err := b.Run(context.Background(), backend.Spec{ID: "r5", Payload: []byte("{}"), Timeout: 20 * time.Second})
	require.NoError(t, err)

	require.Equal(t, backend.EventExit, ev.Kind, "engine stalled on a full pipe")
	assert.Equal(t, 0, ev.ExitCode)
	assert.Greater(t, len(ev.Stderr), 200_000)
	assert.True(t, strings.HasSuffix(string(ev.Stdout), "[]\n"))
}

func TestRunForwardsDiagnosticLines(t *testing.T) {
	b, _ := newScriptBackend(t, `echo one >&2
echo two >&2
echo '[]'`)

	var mu sync.Mutex
	var lines []string
	ev, err := b.Run(context.Background(), backend.Spec{
		ID:      "r6",
		Timeout: 5 * time.Second,
		LogWriter: func(line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, line)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ev.ExitCode)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestRunEngineNotFound(t *testing.T) {
	b := NewBackend(Config{EngineDirs: []string{t.TempDir()}}, testLogger())

	_, err := b.Run(context.Background(), backend.Spec{ID: "r7"})
	require.Error(t, err)

	var se *backend.SpawnError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, backend.SpawnNotFound, se.Reason)
	assert.ErrorIs(t, err, backend.ErrEngineNotFound)
}

func TestRunEngineNotStartable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a program"), 0o644))
	b := NewBackend(Config{EnginePath: path}, testLogger())

	_, err := b.Run(context.Background(), backend.Spec{ID: "r8"})
	var se *backend.SpawnError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, backend.SpawnStartFailed, se.Reason)
}

func TestRunDirectExecutableWithUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "engine.run", `echo '{"ok":true}'`)
	b := NewBackend(Config{EnginePath: path}, testLogger())

	ev, err := b.Run(context.Background(), backend.Spec{ID: "r9", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, ev.ExitCode)
	assert.JSONEq(t, `{"ok":true}`, string(ev.Stdout))
}

func TestRunPerSpecOverrideWins(t *testing.T) {
	b, _ := newScriptBackend(t, `echo '"configured"'`)
	other := writeScript(t, t.TempDir(), "other.sh", `echo '"override"'`)

	ev, err := b.Run(context.Background(), backend.Spec{ID: "r10", EnginePath: other, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "\"override\"\n", string(ev.Stdout))
}

func TestRunConcurrentInvocationsAreIndependent(t *testing.T) {
	b, _ := newScriptBackend(t, "cat")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			payload := []byte(`{"n":` + strconv.Itoa(i) + `}`)
			ev, err := b.Run(context.Background(), backend.Spec{ID: "c" + strconv.Itoa(i), Payload: payload, Timeout: 10 * time.Second})
			assert.NoError(t, err)
			assert.Equal(t, string(payload), string(ev.Stdout))
		})
	}
	wg.Wait()
}

func TestTerminateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "quick.sh", "exit 0")

	c, err := startChild(path, []string{"sh", path})
	require.NoError(t, err)
	c.stdin.Close()
	_, _ = io.Copy(io.Discard, c.stdout)
	_, _ = io.Copy(io.Discard, c.stderr)
	require.NoError(t, c.cmd.Wait())
	c.term.markReaped()

	assert.NoError(t, c.term.Terminate())
	assert.NoError(t, c.term.Terminate())
}

func TestTerminateTwiceOnRunningChild(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "slow.sh", "sleep 30")

	c, err := startChild(path, []string{"sh", path})
	require.NoError(t, err)

	assert.NoError(t, c.term.Terminate())
	assert.NoError(t, c.term.Terminate())

	_, _ = io.Copy(io.Discard, c.stdout)
	_, _ = io.Copy(io.Discard, c.stderr)
	err = c.cmd.Wait()
	assert.Equal(t, -1, exitCode(err))
}

func TestLifecycleSingleWinner(t *testing.T) {
	lc := newLifecycle()

	var wins sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := range 50 {
		wins.Go(func() {
			ev := backend.Exit(i, nil, nil, 0)
			if i%2 == 0 {
				ev = backend.Timeout(0)
			}
			if lc.settle(ev) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		})
	}
	wins.Wait()

	assert.Equal(t, 1, winners)
	assert.True(t, lc.terminated())
	assert.Len(t, lc.done, 1)
}
