// Package metrics samples per-adapter GPU utilization on a fixed cadence.
package metrics

import (
	"errors"
	"fmt"
	"strings"

	"capbench/internal/collector/gpu"
	"capbench/internal/domain"
	"capbench/internal/logger"
)

// Bundle owns one counter source per adapter. Adapters whose counter cannot
// be opened are tracked as absent and their series stays empty.
type Bundle struct {
	pid      uint32
	adapters []domain.Adapter
	sources  []*gpu.Source
	series   []domain.SampleSeries
	latest   map[int]float64
	log      logger.Logger
}

func NewBundle(sub gpu.Subsystem, pid uint32, adapters []domain.Adapter, log logger.Logger) *Bundle {
	b := &Bundle{
		pid:      pid,
		adapters: adapters,
		sources:  make([]*gpu.Source, len(adapters)),
		series:   make([]domain.SampleSeries, len(adapters)),
		latest:   make(map[int]float64, len(adapters)),
		log:      log,
	}

	for i := range adapters {
		src, err := gpu.Open(sub, pid, &adapters[i])
		if err != nil {
			log.Debug("collector: adapter absent", "index", i, "adapter", adapters[i].Name, "error", err)
			continue
		}
		log.Debug("collector: counter opened", "index", i, "path", src.Path())
		b.sources[i] = src
	}

	return b
}

func (b *Bundle) Len() int {
	return len(b.adapters)
}

func (b *Bundle) Present(i int) bool {
	return i >= 0 && i < len(b.sources) && b.sources[i] != nil
}

// Start primes every present source. A source that cannot be primed is
// closed and treated as absent for the rest of the session.
func (b *Bundle) Start() {
	for i, src := range b.sources {
		if src == nil {
			continue
		}
		if err := src.Prime(); err != nil {
			b.log.Warn("collector: prime failed, adapter dropped", "index", i, "error", err)
			src.Close()
			b.sources[i] = nil
		}
	}
}

// TickError lists the adapters whose read failed during one tick.
type TickError struct {
	Adapters []int
	Errs     []error
}

func (e *TickError) Error() string {
	idx := make([]string, len(e.Adapters))
	for i, a := range e.Adapters {
		idx[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%v: adapters [%s]: %v", domain.ErrTickFailed, strings.Join(idx, ","), errors.Join(e.Errs...))
}

func (e *TickError) Unwrap() []error {
	return append([]error{domain.ErrTickFailed}, e.Errs...)
}

// Tick appends one value to every present adapter's series. Adapters whose
// read fails get no value for this tick; the others are unaffected.
func (b *Bundle) Tick() error {
	var tickErr *TickError
	clear(b.latest)

	for i, src := range b.sources {
		if src == nil {
			continue
		}

		v, err := src.Read()
		if err != nil {
			if tickErr == nil {
				tickErr = &TickError{}
			}
			tickErr.Adapters = append(tickErr.Adapters, i)
			tickErr.Errs = append(tickErr.Errs, err)
			continue
		}

		b.series[i] = append(b.series[i], v)
		b.latest[i] = v
	}

	if tickErr != nil {
		return tickErr
	}
	return nil
}

// Latest returns the values appended by the last tick, keyed by adapter index.
func (b *Bundle) Latest() map[int]float64 {
	out := make(map[int]float64, len(b.latest))
	for k, v := range b.latest {
		out[k] = v
	}
	return out
}

// Drain hands over the accumulated matrix and resets storage so the bundle
// can serve another session.
func (b *Bundle) Drain() domain.SampleMatrix {
	matrix := make(domain.SampleMatrix, len(b.series))
	copy(matrix, b.series)
	b.series = make([]domain.SampleSeries, len(b.adapters))
	clear(b.latest)
	return matrix
}

func (b *Bundle) Close() error {
	var errs []error
	for i, src := range b.sources {
		if src == nil {
			continue
		}
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("adapter %d: %w", i, err))
		}
		b.sources[i] = nil
	}
	return errors.Join(errs...)
}
