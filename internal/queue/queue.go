// Package queue implements the Dispatch Queue (spec.md §4.H): bounded
// concurrency plus a minimum inter-departure spacing against the upstream,
// FIFO admission, cancellation-safe withdrawal. Designed directly from
// spec.md's description using a buffered-channel/condition-variable-free
// admitter loop, the idiom the example pack reaches for when it needs
// bounded concurrency without a global rate-limiter library (no repo in
// the corpus imports golang.org/x/sync/semaphore).
package queue

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultConcurrency and DefaultMinInterval are spec.md §4.H's defaults.
const (
	DefaultConcurrency = 3
	DefaultMinInterval = 200 * time.Millisecond
)

type waiter struct {
	admitted chan struct{}
}

// Queue enforces at most N concurrent in-flight upstream calls and at
// least minInterval between any two departures.
type Queue struct {
	n           int
	minInterval time.Duration

	mu            sync.Mutex
	running       int
	lastDeparture time.Time
	waiters       *list.List

	wake chan struct{}
}

// New constructs a Queue with concurrency n and minInterval spacing.
func New(n int, minInterval time.Duration) *Queue {
	if n <= 0 {
		n = DefaultConcurrency
	}

	if minInterval < 0 {
		minInterval = DefaultMinInterval
	}

	q := &Queue{
		n:           n,
		minInterval: minInterval,
		waiters:     list.New(),
		wake:        make(chan struct{}, 1),
	}

	go q.run()

	return q
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	for range q.wake {
		q.tryAdmit()
	}
}

// tryAdmit admits as many front-of-queue waiters as the concurrency and
// spacing constraints currently allow, scheduling a future wake if spacing
// is the only thing blocking admission.
func (q *Queue) tryAdmit() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.waiters.Len() > 0 && q.running < q.n {
		now := time.Now()

		if !q.lastDeparture.IsZero() {
			if elapsed := now.Sub(q.lastDeparture); elapsed < q.minInterval {
				remaining := q.minInterval - elapsed
				time.AfterFunc(remaining, q.notify)

				return
			}
		}

		front := q.waiters.Front()
		w := q.waiters.Remove(front).(*waiter)

		q.running++
		q.lastDeparture = now
		close(w.admitted)
	}
}

// Acquire blocks until a concurrency slot is available and the minimum
// spacing since the last departure has elapsed, admitting waiters in FIFO
// order. If ctx is cancelled first, Acquire withdraws the waiter without
// occupying a slot. The returned release func must be called exactly once
// when the caller's upstream call completes.
func (q *Queue) Acquire(ctx context.Context) (release func(), err error) {
	w := &waiter{admitted: make(chan struct{})}

	q.mu.Lock()
	elem := q.waiters.PushBack(w)
	q.mu.Unlock()

	q.notify()

	select {
	case <-w.admitted:
		return q.releaseFunc(), nil
	case <-ctx.Done():
		q.mu.Lock()

		select {
		case <-w.admitted:
			// Admitted in the race between the two cases; this slot is
			// already consumed, so release it immediately since the
			// caller will not use it.
			q.mu.Unlock()
			q.releaseFunc()()

			return nil, ctx.Err()
		default:
			q.waiters.Remove(elem)
			q.mu.Unlock()

			return nil, ctx.Err()
		}
	}
}

func (q *Queue) releaseFunc() func() {
	var once sync.Once

	return func() {
		once.Do(func() {
			q.mu.Lock()
			q.running--
			q.mu.Unlock()
			q.notify()
		})
	}
}

// State is a snapshot of the queue's admission state, for /api/stats.
type State struct {
	Running int
	Waiting int
}

// State returns a snapshot of the queue's current occupancy.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	return State{Running: q.running, Waiting: q.waiters.Len()}
}
