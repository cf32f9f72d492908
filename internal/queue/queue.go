package queue

import (
	"sync"
	"time"
)

// Entry is one classified audio chunk awaiting the downstream recognizer.
type Entry struct {
	Chunk    []float32
	IsSpeech bool
}

// SampleQueue is an unbounded FIFO queue of classified audio chunks. It is
// safe for many producers (one per session) and a single consumer. Pop
// blocks with a bounded wait so the consumer can observe shutdown.
type SampleQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []Entry
	closed  bool
}

// NewSampleQueue creates an empty queue.
func NewSampleQueue() *SampleQueue {
	q := &SampleQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an entry. Pushing to a closed queue drops the entry.
func (q *SampleQueue) Push(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.entries = append(q.entries, e)
	q.cond.Signal()
}

// Pop removes and returns the oldest entry, waiting up to timeout for one to
// arrive. The second return value is false when the wait expired or the
// queue was closed and drained.
func (q *SampleQueue) Pop(timeout time.Duration) (Entry, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.entries) == 0 {
		if q.closed {
			return Entry{}, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Entry{}, false
		}

		// Cond has no timed wait; a one-shot timer wakes all waiters so
		// the deadline check above re-runs.
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
	}

	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// TryPop removes and returns the oldest entry without blocking.
func (q *SampleQueue) TryPop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// Len returns the number of queued entries.
func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close marks the queue closed and wakes every blocked consumer. Already
// queued entries remain readable; Pop returns false once the queue is
// drained. Close is idempotent.
func (q *SampleQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (q *SampleQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
