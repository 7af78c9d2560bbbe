package coalesce

import (
	"sync"
	"time"
)

// Scheduler defers fn until the work of the current tick has been issued.
type Scheduler interface {
	Schedule(fn func())
}

// TickQueue is a cooperative end-of-tick queue. Scheduled functions run only
// when a caller invokes Drain, which makes batch boundaries explicit: every
// request issued before Drain belongs to the same tick.
type TickQueue struct {
	mu    sync.Mutex
	queue []func()
}

// NewTickQueue creates an empty queue.
func NewTickQueue() *TickQueue {
	return &TickQueue{}
}

// Schedule appends fn to the queue.
func (q *TickQueue) Schedule(fn func()) {
	q.mu.Lock()
	q.queue = append(q.queue, fn)
	q.mu.Unlock()
}

// Drain runs queued functions on the calling goroutine until the queue is
// empty, including functions scheduled while draining. It returns how many
// ran.
func (q *TickQueue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.mu.Unlock()
			return ran
		}
		fn := q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]
		q.mu.Unlock()

		fn()
		ran++
	}
}

// Len returns the number of queued functions.
func (q *TickQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// AfterFunc runs scheduled functions on their own goroutine after Delay.
// A zero Delay behaves like a zero-delay deferred task.
type AfterFunc struct {
	Delay time.Duration
}

// Schedule implements Scheduler.
func (a AfterFunc) Schedule(fn func()) {
	time.AfterFunc(a.Delay, fn)
}
