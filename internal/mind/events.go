package mind

import (
	"sync"
	"time"
)

// Event is one injected occurrence awaiting the mind's next wakeup (spec
// §4.3 "Event injection").
type Event struct {
	Text      string
	CreatedAt time.Time
}

// eventQueue is a thread-safe FIFO drained once per wakeup. Any source
// (goal runner, channel adapter, scheduler, wallet watcher, email poller)
// may enqueue concurrently with the mind's own wake cycle.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
}

func (q *eventQueue) push(text string, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, Event{Text: text, CreatedAt: now})
}

// drain returns every pending event and clears the queue.
func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
