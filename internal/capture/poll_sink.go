package capture

import (
	"errors"
	"fmt"
	"time"

	"capbench/internal/logger"
)

// DefaultAcquireTimeout bounds each AcquireNextFrame call, and with it how
// long Stop can wait for the worker.
const DefaultAcquireTimeout = 100 * time.Millisecond

// Duplication is a poll-driven duplication of one output.
type Duplication interface {
	// AcquireNextFrame fails with ErrWaitTimeout when no new frame was
	// composed within timeout.
	AcquireNextFrame(timeout time.Duration) error
	ReleaseFrame() error
	Close() error
}

type Output interface {
	DuplicateOutput() (Duplication, error)
}

// PollSink counts frames pulled by a dedicated worker goroutine.
type PollSink struct {
	lifecycle

	output  Output
	timeout time.Duration
	log     logger.Logger

	token *Token
	dup   Duplication
	done  chan error
}

const PollSinkName = "dda"

type PollOption func(*PollSink)

func WithAcquireTimeout(d time.Duration) PollOption {
	return func(s *PollSink) { s.timeout = d }
}

func NewPollSink(output Output, log logger.Logger, opts ...PollOption) *PollSink {
	s := &PollSink{
		output:  output,
		timeout: DefaultAcquireTimeout,
		log:     log,
		token:   NewToken(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PollSink) Name() string {
	return PollSinkName
}

// Start duplicates the output and launches the worker on first use.
func (s *PollSink) Start() error {
	return s.begin(func() error {
		if s.dup != nil || s.token.IsSignaled() {
			return nil
		}

		dup, err := s.output.DuplicateOutput()
		if err != nil {
			return fmt.Errorf("%s duplicate output: %w", PollSinkName, err)
		}

		s.dup = dup
		s.done = make(chan error, 1)
		go s.worker(dup, s.token, s.done)

		s.log.Debug("capture: worker started", "sink", PollSinkName, "timeout", s.timeout)
		return nil
	})
}

func (s *PollSink) worker(dup Duplication, token *Token, done chan<- error) {
	done <- s.poll(dup, token)
}

func (s *PollSink) poll(dup Duplication, token *Token) error {
	for !token.IsSignaled() {
		err := dup.AcquireNextFrame(s.timeout)
		if errors.Is(err, ErrWaitTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("acquire frame: %w", err)
		}

		s.frame()
		if err := dup.ReleaseFrame(); err != nil {
			return fmt.Errorf("release frame: %w", err)
		}
	}
	return nil
}

// Stop signals the worker, joins it, then reads the count. A worker that
// failed early still reports the frames it saw.
func (s *PollSink) Stop() (int, error) {
	return s.end(func() error {
		if s.done == nil {
			return nil
		}

		s.token.Signal()
		werr := <-s.done
		cerr := s.dup.Close()

		s.dup = nil
		s.done = nil

		s.log.Debug("capture: worker joined", "sink", PollSinkName, "frames", s.Frames())

		if err := errors.Join(werr, cerr); err != nil {
			return fmt.Errorf("%s: %w", PollSinkName, err)
		}
		return nil
	})
}
