// Package dispatch provides a single-goroutine scheduling context: queued
// work and timer ticks execute one at a time, in order, on the goroutine that
// calls Queue.Run.
package dispatch

import (
	"context"
	"sync"

	"capbench/internal/logger"
)

type Queue struct {
	log logger.Logger

	mu       sync.Mutex
	pending  []func()
	timers   map[*Timer]struct{}
	teardown map[int]func()
	nextHook int
	closed   bool

	wake     chan struct{}
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewQueue(log logger.Logger) *Queue {
	return &Queue{
		log:      log,
		timers:   make(map[*Timer]struct{}),
		teardown: make(map[int]func()),
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// TryEnqueue schedules fn on the queue goroutine. It reports false once the
// queue has been torn down.
func (q *Queue) TryEnqueue(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

// OnTeardown registers fn to run on the queue goroutine when the queue is
// torn down. The returned func unregisters it.
func (q *Queue) OnTeardown(fn func()) (unregister func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextHook
	q.nextHook++
	q.teardown[id] = fn

	return func() {
		q.mu.Lock()
		delete(q.teardown, id)
		q.mu.Unlock()
	}
}

// Done is closed after teardown completes.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Shutdown asks Run to tear the queue down. Pending work is dropped.
func (q *Queue) Shutdown() {
	q.stopOnce.Do(func() { close(q.shutdown) })
}

// Run executes queued work until ctx is cancelled or Shutdown is called.
func (q *Queue) Run(ctx context.Context) error {
	q.log.Debug("dispatch: queue started")
	defer q.teardownAll()

	for {
		select {
		case <-ctx.Done():
			q.log.Debug("dispatch: queue context cancelled")
			return ctx.Err()
		case <-q.shutdown:
			q.log.Debug("dispatch: queue shutdown requested")
			return nil
		case <-q.wake:
			q.drain(ctx)
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		default:
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}

func (q *Queue) teardownAll() {
	q.mu.Lock()
	q.closed = true
	dropped := len(q.pending)
	q.pending = nil

	timers := make([]*Timer, 0, len(q.timers))
	for t := range q.timers {
		timers = append(timers, t)
	}
	q.timers = map[*Timer]struct{}{}

	hooks := make([]func(), 0, len(q.teardown))
	for _, fn := range q.teardown {
		hooks = append(hooks, fn)
	}
	q.teardown = map[int]func(){}
	q.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	for _, fn := range hooks {
		fn()
	}

	q.log.Debug("dispatch: queue torn down", "dropped", dropped, "timers", len(timers), "hooks", len(hooks))
	close(q.done)
}

// addTimer is a no-op after teardown; such a timer stops on its first tick
// because TryEnqueue fails.
func (q *Queue) addTimer(t *Timer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.timers[t] = struct{}{}
	}
}

func (q *Queue) removeTimer(t *Timer) {
	q.mu.Lock()
	delete(q.timers, t)
	q.mu.Unlock()
}
