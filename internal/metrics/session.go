package metrics

import (
	"fmt"
	"sync"
	"time"

	"capbench/internal/collector/gpu"
	"capbench/internal/dispatch"
	"capbench/internal/domain"
	"capbench/internal/logger"
)

// DefaultTickLength is the sampling cadence of every session.
const DefaultTickLength = 500 * time.Millisecond

type State int

const (
	StateCreated State = iota
	StateArmed
	StateRunning
	StateCompleted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// ValidateDurations rejects sessions that could never tick.
func ValidateDurations(target, tick time.Duration) error {
	if target <= 0 || tick <= 0 || tick > target {
		return fmt.Errorf("%w: target %s, tick %s", domain.ErrInvalidSessionDuration, target, tick)
	}
	return nil
}

// handle is the timer's non-owning view of a session. The queue owns the
// session; once the session finishes or the queue is torn down the handle
// resolves to nil.
type handle struct {
	mu sync.RWMutex
	s  *Session
}

func (h *handle) resolve() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

func (h *handle) release() {
	h.mu.Lock()
	h.s = nil
	h.mu.Unlock()
}

// Session accumulates samples on the queue goroutine until the target
// duration elapses. Every method must run on that goroutine.
type Session struct {
	target  time.Duration
	tick    time.Duration
	elapsed time.Duration
	ticks   int
	state   State

	bundle     *Bundle
	timer      *dispatch.Timer
	handle     *handle
	completion chan<- domain.SampleMatrix
	unregister func()

	verbose bool
	log     logger.Logger
}

type sessionArgs struct {
	queue      *dispatch.Queue
	sub        gpu.Subsystem
	pid        uint32
	adapters   []domain.Adapter
	target     time.Duration
	tick       time.Duration
	completion chan<- domain.SampleMatrix
	verbose    bool
	log        logger.Logger
}

// startSession builds, arms and starts a session. It must be called on the
// queue goroutine.
func startSession(args sessionArgs) (*Session, error) {
	if err := ValidateDurations(args.target, args.tick); err != nil {
		return nil, err
	}

	s := &Session{
		target:     args.target,
		tick:       args.tick,
		state:      StateCreated,
		completion: args.completion,
		verbose:    args.verbose,
		log:        args.log,
	}
	s.handle = &handle{s: s}

	s.bundle = NewBundle(args.sub, args.pid, args.adapters, args.log)
	s.bundle.Start()

	h := s.handle
	s.timer = args.queue.NewTimer(args.tick, func(t *dispatch.Timer) {
		live := h.resolve()
		if live == nil {
			t.Stop()
			return
		}
		live.onTick()
	})
	s.unregister = args.queue.OnTeardown(s.abandon)
	s.state = StateArmed

	s.timer.Start()
	s.state = StateRunning

	s.log.Debug("session: running", "target", s.target, "tick", s.tick, "adapters", s.bundle.Len())
	return s, nil
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Ticks() int {
	return s.ticks
}

func (s *Session) Elapsed() time.Duration {
	return s.elapsed
}

func (s *Session) onTick() {
	if s.state != StateRunning {
		return
	}

	if err := s.bundle.Tick(); err != nil {
		s.log.Warn("session: tick incomplete", "tick", s.ticks+1, "error", err)
	}

	s.ticks++
	s.elapsed += s.tick

	if s.verbose {
		s.log.Debug("session: tick", "tick", s.ticks, "elapsed", s.elapsed, "values", s.bundle.Latest())
	}

	if s.elapsed < s.target {
		return
	}

	s.timer.Stop()
	matrix := s.bundle.Drain()
	s.state = StateCompleted
	s.completion <- matrix
	s.release()

	s.log.Debug("session: completed", "ticks", s.ticks, "elapsed", s.elapsed)
}

// abandon tears the session down without delivering a completion.
func (s *Session) abandon() {
	if s.state == StateCompleted || s.state == StateAbandoned {
		return
	}

	s.timer.Stop()
	s.state = StateAbandoned
	s.release()

	s.log.Debug("session: abandoned", "ticks", s.ticks, "elapsed", s.elapsed)
}

func (s *Session) release() {
	s.handle.release()
	s.timer.Close()
	if s.unregister != nil {
		s.unregister()
	}
	if err := s.bundle.Close(); err != nil {
		s.log.Warn("session: closing counters failed", "error", err)
	}
}
