package synthetic

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"capbench/internal/capture"
	"capbench/internal/domain"
)

var (
	errNoFrame       = errors.New("no frame available")
	errFrameHeld     = errors.New("previous frame not released")
	errNoFrameHeld   = errors.New("no frame held")
	errPoolClosed    = errors.New("frame pool closed")
	errCaptureActive = errors.New("capture already started")
)

func (m *Machine) monitor(mon domain.Monitor) error {
	if mon.Index < 0 || mon.Index >= len(m.monitors) {
		return fmt.Errorf("%w: monitor %d", capture.ErrCaptureUnavailable, mon.Index)
	}
	return nil
}

// NewFramePool returns an event-driven pool that receives one frame per
// vsync while capturing. Frames beyond the buffer count are dropped until
// the handler takes them.
func (m *Machine) NewFramePool(mon domain.Monitor, opts capture.FramePoolOptions) (capture.FramePool, error) {
	if err := m.monitor(mon); err != nil {
		return nil, err
	}

	buffers := int32(opts.Buffers)
	if buffers <= 0 {
		buffers = 1
	}

	return &framePool{m: m, buffers: buffers, stop: make(chan struct{})}, nil
}

type framePool struct {
	m       *Machine
	buffers int32
	handler func()

	ready atomic.Int32

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

type poolFrame struct{}

func (poolFrame) Close() error { return nil }

func (p *framePool) OnFrameArrived(fn func()) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

func (p *framePool) TryGetNextFrame() (capture.Frame, error) {
	for {
		n := p.ready.Load()
		if n <= 0 {
			return nil, errNoFrame
		}
		if p.ready.CompareAndSwap(n, n-1) {
			return poolFrame{}, nil
		}
	}
}

func (p *framePool) StartCapture() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return errPoolClosed
	}
	if p.started {
		return errCaptureActive
	}
	p.started = true

	p.m.addCaptureLoad(eventCaptureLoad)
	p.wg.Add(1)
	go p.loop(p.handler)
	return nil
}

func (p *framePool) loop(handler func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.m.period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			if p.ready.Load() >= p.buffers {
				continue
			}
			p.ready.Add(1)
			if handler != nil {
				handler()
			}
		}
	}
}

func (p *framePool) CloseSession() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stop)

	if p.started {
		p.m.addCaptureLoad(-eventCaptureLoad)
	}
	return nil
}

// Close waits for the delivery goroutine, so no handler runs afterwards.
func (p *framePool) Close() error {
	if err := p.CloseSession(); err != nil {
		return err
	}
	p.wg.Wait()
	return nil
}

// Output returns the duplication source of a monitor.
func (m *Machine) Output(mon domain.Monitor) (capture.Output, error) {
	if err := m.monitor(mon); err != nil {
		return nil, err
	}
	return &output{m: m}, nil
}

type output struct {
	m *Machine
}

func (o *output) DuplicateOutput() (capture.Duplication, error) {
	o.m.addCaptureLoad(pollCaptureLoad)
	return &duplication{m: o.m, last: -1}, nil
}

// duplication hands out one frame per vsync, waiting for the next one when
// the caller is ahead.
type duplication struct {
	m *Machine

	mu     sync.Mutex
	last   int64
	held   bool
	closed bool
}

func (d *duplication) AcquireNextFrame(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errPoolClosed
	}
	if d.held {
		d.mu.Unlock()
		return errFrameHeld
	}
	next, at := d.m.nextFrame(d.last, time.Now())
	d.mu.Unlock()

	wait := time.Until(at)
	if wait > timeout {
		time.Sleep(timeout)
		return capture.ErrWaitTimeout
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	d.mu.Lock()
	d.last = next
	d.held = true
	d.mu.Unlock()
	return nil
}

func (d *duplication) ReleaseFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.held {
		return errNoFrameHeld
	}
	d.held = false
	return nil
}

func (d *duplication) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.m.addCaptureLoad(-pollCaptureLoad)
	return nil
}
