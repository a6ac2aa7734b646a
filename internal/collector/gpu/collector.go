package gpu

import (
	"errors"
	"fmt"

	"capbench/internal/domain"
)

// Source is one counter query scoped to a process and, optionally, an adapter.
// It is not safe for concurrent use; the sampling session drives it from a
// single goroutine.
type Source struct {
	path   string
	query  Query
	primed bool
	closed bool
}

func Open(sub Subsystem, pid uint32, adapter *domain.Adapter) (*Source, error) {
	path := CounterPath(pid, adapter)

	query, err := sub.OpenQuery(path)
	if err != nil {
		if errors.Is(err, domain.ErrCounterUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCounterUnavailable, path, err)
	}

	return &Source{path: path, query: query}, nil
}

func (s *Source) Path() string {
	return s.path
}

// Prime performs one discarded collection so the first Read is not a
// cold-start artifact.
func (s *Source) Prime() error {
	if s.closed {
		return domain.ErrCounterClosed
	}

	if err := s.query.Collect(); err != nil {
		return fmt.Errorf("%w: prime %s: %v", domain.ErrCounterReadFailed, s.path, err)
	}

	s.primed = true
	return nil
}

// Read returns the summed utilization of every matched engine instance.
// Multiple queue instances can each report up to 100%, so the result lies in
// [0, 100*k].
func (s *Source) Read() (float64, error) {
	if s.closed {
		return 0, domain.ErrCounterClosed
	}

	if !s.primed {
		if err := s.Prime(); err != nil {
			return 0, err
		}
	}

	if err := s.query.Collect(); err != nil {
		return 0, fmt.Errorf("%w: collect %s: %v", domain.ErrCounterReadFailed, s.path, err)
	}

	values, err := s.query.Values()
	if err != nil {
		if errors.Is(err, domain.ErrCounterReadFailed) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrCounterReadFailed, s.path, err)
	}

	var total float64
	for _, v := range values {
		total += v
	}

	return total, nil
}

func (s *Source) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.query.Close()
}
