package dispatch

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a repeating timer whose callback runs on its queue's goroutine.
// At most one tick is pending on the queue at any time; ticks that fall due
// while one is pending are coalesced.
type Timer struct {
	q        *Queue
	interval time.Duration
	fn       func(*Timer)

	mu      sync.Mutex
	running bool
	stop    chan struct{}

	pending atomic.Bool
}

// NewTimer registers a stopped timer with the queue. The queue stops it on
// teardown.
func (q *Queue) NewTimer(interval time.Duration, fn func(*Timer)) *Timer {
	t := &Timer{q: q, interval: interval, fn: fn}
	q.addTimer(t)
	return t
}

func (t *Timer) Interval() time.Duration {
	return t.interval
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}

	t.running = true
	t.stop = make(chan struct{})
	go t.loop(t.stop)
}

// Stop is safe to call from the callback itself and from any goroutine.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}

	t.running = false
	close(t.stop)
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Close stops the timer and unregisters it from the queue.
func (t *Timer) Close() {
	t.Stop()
	t.q.removeTimer(t)
}

func (t *Timer) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !t.pending.CompareAndSwap(false, true) {
				continue
			}

			ok := t.q.TryEnqueue(func() {
				t.pending.Store(false)
				if t.Running() {
					t.fn(t)
				}
			})
			if !ok {
				t.Stop()
				return
			}
		}
	}
}
