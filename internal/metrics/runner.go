package metrics

import (
	"context"
	"fmt"
	"time"

	"capbench/internal/collector/gpu"
	"capbench/internal/dispatch"
	"capbench/internal/domain"
	"capbench/internal/logger"
)

// Runner creates sampling sessions on a dispatch queue and waits for their
// results.
type Runner struct {
	queue   *dispatch.Queue
	sub     gpu.Subsystem
	tick    time.Duration
	verbose bool
	log     logger.Logger
}

type Option func(*Runner)

func WithTickLength(d time.Duration) Option {
	return func(r *Runner) { r.tick = d }
}

// WithVerbose logs every tick's per-adapter values at debug level.
func WithVerbose(v bool) Option {
	return func(r *Runner) { r.verbose = v }
}

func NewRunner(queue *dispatch.Queue, sub gpu.Subsystem, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		queue: queue,
		sub:   sub,
		tick:  DefaultTickLength,
		log:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) TickLength() time.Duration {
	return r.tick
}

// Run samples GPU utilization of pid on every adapter for duration and
// blocks until the session completes. It must not be called from the queue
// goroutine.
func (r *Runner) Run(ctx context.Context, duration time.Duration, pid uint32, adapters []domain.Adapter) (domain.SampleMatrix, error) {
	if err := ValidateDurations(duration, r.tick); err != nil {
		return nil, err
	}

	completion := make(chan domain.SampleMatrix, 1)
	created := make(chan error, 1)

	var session *Session
	ok := r.queue.TryEnqueue(func() {
		s, err := startSession(sessionArgs{
			queue:      r.queue,
			sub:        r.sub,
			pid:        pid,
			adapters:   adapters,
			target:     duration,
			tick:       r.tick,
			completion: completion,
			verbose:    r.verbose,
			log:        r.log,
		})
		session = s
		created <- err
	})
	if !ok {
		return nil, fmt.Errorf("%w: queue closed", domain.ErrSessionAbandoned)
	}

	select {
	case err := <-created:
		if err != nil {
			return nil, err
		}
	case <-r.queue.Done():
		return nil, fmt.Errorf("%w: queue torn down before session start", domain.ErrSessionAbandoned)
	case <-ctx.Done():
		r.abandon(&session)
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionAbandoned, ctx.Err())
	}

	select {
	case matrix := <-completion:
		return matrix, nil
	case <-r.queue.Done():
		// the final tick may have landed just before teardown
		select {
		case matrix := <-completion:
			return matrix, nil
		default:
		}
		return nil, domain.ErrSessionAbandoned
	case <-ctx.Done():
		r.abandon(&session)
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionAbandoned, ctx.Err())
	}
}

// abandon runs after the creation closure on the queue, so session is
// visible there.
func (r *Runner) abandon(session **Session) {
	r.queue.TryEnqueue(func() {
		if s := *session; s != nil {
			s.abandon()
		}
	})
}
