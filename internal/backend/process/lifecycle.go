package process

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/seantiz/timegrid/internal/backend"
)

// Run states. A run leaves stateRunning exactly once.
const (
	stateRunning uint32 = iota
	stateTerminated
)

// lifecycle admits a single terminal transition. Whichever of the exit path
// and the deadline path settles first publishes its event; the other is
// told it lost and must discard its outcome.
type lifecycle struct {
	state atomic.Uint32
	done  chan backend.TerminalEvent
}

func newLifecycle() *lifecycle {
	return &lifecycle{done: make(chan backend.TerminalEvent, 1)}
}

// settle moves the run to terminated and publishes ev. It returns false if
// another path already settled the run.
func (l *lifecycle) settle(ev backend.TerminalEvent) bool {
	if !l.state.CompareAndSwap(stateRunning, stateTerminated) {
		return false
	}
	l.done <- ev
	return true
}

func (l *lifecycle) terminated() bool {
	return l.state.Load() == stateTerminated
}

// terminator kills a child's process group at most once. Calls after the
// first, or after the child has been reaped, are no-ops.
type terminator struct {
	once   sync.Once
	mu     sync.Mutex
	proc   *os.Process
	reaped bool
	err    error
}

func newTerminator(p *os.Process) *terminator {
	return &terminator{proc: p}
}

// Terminate sends the forceful termination signal.
func (t *terminator) Terminate() error {
	t.once.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.reaped {
			return
		}
		if err := killGroup(t.proc); err != nil && !errors.Is(err, os.ErrProcessDone) && !isNoSuchProcess(err) {
			t.err = err
		}
	})
	return t.err
}

// markReaped records that Wait has returned; the pid must not be signalled after this.
func (t *terminator) markReaped() {
	t.mu.Lock()
	t.reaped = true
	t.mu.Unlock()
}
