package engine

import (
	"sync"

	"github.com/roach88/evscript/internal/ir"
)

// TriggerRequest asks the frame loop to start a script.
type TriggerRequest struct {
	List   *ir.CommandList
	Kind   ir.TriggerKind
	Origin ir.Origin

	// Done, if set, is called from the frame loop goroutine with the result
	// of Scheduler.Trigger.
	Done func(handle string, err error)
}

// triggerQueue is a thread-safe FIFO of trigger requests.
//
// Input handlers running on other goroutines enqueue; the Runner drains the
// queue at the start of every frame so triggers take effect on a frame
// boundary.
//
// The queue uses a channel for signaling so an idle Runner can wait for work
// without spinning.
type triggerQueue struct {
	mu       sync.Mutex
	requests []TriggerRequest
	closed   bool
	signal   chan struct{} // Signals request availability (buffered, size 1)
}

func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		requests: make([]TriggerRequest, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(r TriggerRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.requests = append(q.requests, r)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued request in FIFO order.
func (q *triggerQueue) Drain() []TriggerRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil
	}
	out := q.requests
	q.requests = make([]TriggerRequest, 0, cap(out))
	return out
}

// Wait returns a channel that signals when requests may be available.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close signals that no more requests will be enqueued and wakes waiters.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
