package metrics

import (
	"errors"
	"sync"

	"capbench/internal/collector/gpu"
	"capbench/internal/domain"
)

// scriptedQuery returns one scripted value per Values call and repeats the
// last one once the script runs out.
type scriptedQuery struct {
	mu     sync.Mutex
	script []float64
	fail   map[int]bool
	calls  int
	closed bool
}

func (q *scriptedQuery) Collect() error { return nil }

func (q *scriptedQuery) Values() ([]float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	call := q.calls
	q.calls++

	if q.fail[call] {
		return nil, errors.New("stale counter data")
	}
	if len(q.script) == 0 {
		return []float64{0}, nil
	}
	if call >= len(q.script) {
		return []float64{q.script[len(q.script)-1]}, nil
	}
	return []float64{q.script[call]}, nil
}

func (q *scriptedQuery) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

func (q *scriptedQuery) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

type fakeSubsystem struct {
	mu      sync.Mutex
	queries map[string]*scriptedQuery
}

func newFakeSubsystem() *fakeSubsystem {
	return &fakeSubsystem{queries: map[string]*scriptedQuery{}}
}

func (s *fakeSubsystem) script(pid uint32, adapter domain.Adapter, values ...float64) *scriptedQuery {
	q := &scriptedQuery{script: values, fail: map[int]bool{}}
	s.mu.Lock()
	s.queries[gpu.CounterPath(pid, &adapter)] = q
	s.mu.Unlock()
	return q
}

func (s *fakeSubsystem) OpenQuery(path string) (gpu.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queries[path]
	if !ok {
		return nil, domain.ErrCounterUnavailable
	}
	return q, nil
}

var (
	adapterA = domain.Adapter{LUID: domain.LUID{Low: 0xA1}, Name: "Adapter A"}
	adapterB = domain.Adapter{LUID: domain.LUID{Low: 0xB2}, Name: "Adapter B"}
)
