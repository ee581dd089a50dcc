package engine

import "sync"

// subscriberBuffer is the channel capacity of each subscriber. Lines are
// dropped for a subscriber that falls this far behind.
const subscriberBuffer = 64

// LogBroker fans out the engine's diagnostic lines for each run to live
// subscribers. It is safe for concurrent use.
//
// A closed run keeps a marker so that a subscriber arriving after the run
// finished gets a closed channel instead of waiting forever. Forget drops
// the marker once the run has been purged.
type LogBroker struct {
	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	subscribers map[uint64]chan string
	next        uint64
	done        bool
}

func newStream() *stream {
	return &stream{subscribers: make(map[uint64]chan string)}
}

func (s *stream) closeAll() {
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// NewLogBroker creates an empty broker.
func NewLogBroker() *LogBroker {
	return &LogBroker{streams: make(map[string]*stream)}
}

// Subscribe returns a channel of the run's diagnostic lines and a function
// that cancels the subscription. Lines published before the call are not
// replayed. For a run that already finished the channel is closed.
func (b *LogBroker) Subscribe(runID string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[runID]
	if !ok {
		s = newStream()
		b.streams[runID] = s
	}

	ch := make(chan string, subscriberBuffer)
	if s.done {
		close(ch)
		return ch, func() {}
	}

	id := s.next
	s.next++
	s.subscribers[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Publish delivers line to every current subscriber of runID without blocking.
func (b *LogBroker) Publish(runID string, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[runID]
	if !ok || s.done {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Close ends the run's stream: subscriber channels are closed and later
// subscribers get a closed channel.
func (b *LogBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[runID]
	if !ok {
		s = newStream()
		b.streams[runID] = s
	}
	s.done = true
	s.closeAll()
}

// Forget removes everything the broker holds for runID.
func (b *LogBroker) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.streams[runID]; ok {
		s.closeAll()
		delete(b.streams, runID)
	}
}
