package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"capbench/internal/domain"
	"capbench/internal/logger"
)

// Frame is one captured frame held by the frame pool until released.
type Frame interface {
	Close() error
}

// FramePool is an event-driven capture session over a pool of frame
// buffers. The frame-arrived handler runs on the pool's own goroutines.
type FramePool interface {
	OnFrameArrived(fn func())
	TryGetNextFrame() (Frame, error)
	StartCapture() error
	// CloseSession ends the capture session; no new frames are produced.
	CloseSession() error
	// Close releases the pool. It must not return while a frame-arrived
	// handler is still running.
	Close() error
}

type FramePoolOptions struct {
	Buffers           int
	BorderRequired    bool
	CaptureCursor     bool
	MinUpdateInterval time.Duration
	DirtyRegions      bool
}

// DefaultFramePoolOptions is a free-threaded three buffer pool without
// border or cursor that delivers frames as fast as they are composed.
func DefaultFramePoolOptions(dirtyRegions bool) FramePoolOptions {
	return FramePoolOptions{
		Buffers:      3,
		DirtyRegions: dirtyRegions,
	}
}

type FramePoolFactory func(monitor domain.Monitor, opts FramePoolOptions) (FramePool, error)

// EventSink counts frames pushed by an event-driven frame pool.
type EventSink struct {
	lifecycle

	pool FramePool
	log  logger.Logger

	// handlers hold the read side; Stop takes the write side after the pool
	// is closed so no handler outlives the count.
	barrier sync.RWMutex
	closed  bool
}

const EventSinkName = "wgc"

func NewEventSink(factory FramePoolFactory, monitor domain.Monitor, opts FramePoolOptions, log logger.Logger) (*EventSink, error) {
	pool, err := factory(monitor, opts)
	if err != nil {
		return nil, fmt.Errorf("create frame pool for monitor %d: %w", monitor.Index, err)
	}

	s := &EventSink{pool: pool, log: log}
	pool.OnFrameArrived(s.onFrameArrived)

	log.Debug("capture: frame pool ready", "sink", EventSinkName, "monitor", monitor.Index, "buffers", opts.Buffers, "dirty_regions", opts.DirtyRegions)
	return s, nil
}

func (s *EventSink) Name() string {
	return EventSinkName
}

func (s *EventSink) onFrameArrived() {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	if s.closed {
		return
	}

	frame, err := s.pool.TryGetNextFrame()
	if err != nil {
		s.log.Debug("capture: frame unavailable", "sink", EventSinkName, "error", err)
		return
	}
	if frame == nil {
		return
	}

	s.frame()
	if err := frame.Close(); err != nil {
		s.log.Debug("capture: frame release failed", "sink", EventSinkName, "error", err)
	}
}

func (s *EventSink) Start() error {
	return s.begin(func() error {
		if err := s.pool.StartCapture(); err != nil {
			return fmt.Errorf("%s start capture: %w", EventSinkName, err)
		}
		return nil
	})
}

func (s *EventSink) Stop() (int, error) {
	return s.end(func() error {
		err := errors.Join(s.pool.CloseSession(), s.pool.Close())

		s.barrier.Lock()
		s.closed = true
		s.barrier.Unlock()

		if err != nil {
			return fmt.Errorf("%s stop capture: %w", EventSinkName, err)
		}
		return nil
	})
}
