// Package capture drives the screen capture backends whose GPU cost is being
// measured. Both backends share one lifecycle and only count frames; pixel
// data is released as soon as it arrives.
package capture

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrAlreadyCapturing   = errors.New("capture transition already in progress")
	ErrWaitTimeout        = errors.New("capture wait timed out")
	ErrCaptureUnavailable = errors.New("capture backend unavailable")
)

type State int32

const (
	StateIdle State = iota
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Sink is a capture backend scoped to one monitor.
//
// Start on an active or stopped sink is a no-op. Stop on an idle sink
// returns 0; Stop on a stopped sink returns the count it stopped with.
type Sink interface {
	Start() error
	Stop() (int, error)
	Name() string
	State() State
}

// lifecycle is the state machine and frame counter shared by every backend.
type lifecycle struct {
	mu     sync.Mutex
	state  atomic.Int32
	frames atomic.Int64
	final  int
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

// begin runs start when leaving idle. A Start racing another transition
// fails instead of waiting for it.
func (l *lifecycle) begin(start func() error) error {
	if !l.mu.TryLock() {
		return ErrAlreadyCapturing
	}
	defer l.mu.Unlock()

	if l.State() != StateIdle {
		return nil
	}

	l.frames.Store(0)
	if err := start(); err != nil {
		return err
	}

	l.state.Store(int32(StateActive))
	return nil
}

// end runs stop when leaving active and reads the counter afterwards.
func (l *lifecycle) end(stop func() error) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case StateIdle:
		return 0, nil
	case StateStopped:
		return l.final, nil
	}

	err := stop()
	l.final = int(l.frames.Load())
	l.state.Store(int32(StateStopped))

	return l.final, err
}

func (l *lifecycle) frame() {
	l.frames.Add(1)
}

// Frames is the live count since the last start.
func (l *lifecycle) Frames() int {
	return int(l.frames.Load())
}
