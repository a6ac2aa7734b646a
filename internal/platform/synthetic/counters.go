package synthetic

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"capbench/internal/collector/gpu"
	"capbench/internal/domain"
)

const (
	counterPrefix = `\GPU Engine(`
	counterSuffix = `)\Utilization Percentage`
)

type instance struct {
	name    string
	adapter int
	engine  int
}

type counters struct {
	m *Machine
}

func (c *counters) OpenQuery(counterPath string) (gpu.Query, error) {
	pattern, ok := strings.CutPrefix(counterPath, counterPrefix)
	if ok {
		pattern, ok = strings.CutSuffix(pattern, counterSuffix)
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown counter %s", domain.ErrCounterUnavailable, counterPath)
	}

	var pid uint32
	if _, err := fmt.Sscanf(pattern, "pid_%d", &pid); err != nil {
		return nil, fmt.Errorf("%w: no pid in %s", domain.ErrCounterUnavailable, counterPath)
	}

	var matched []instance
	for _, inst := range c.m.instances(pid) {
		if ok, _ := path.Match(pattern, inst.name); ok {
			matched = append(matched, inst)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrCounterUnavailable, counterPath)
	}

	return &query{m: c.m, instances: matched}, nil
}

// query behaves like a rate counter: values need two collections.
type query struct {
	m         *Machine
	instances []instance

	mu       sync.Mutex
	collects int
	values   []float64
	closed   bool
}

func (q *query) Collect() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return domain.ErrCounterClosed
	}

	q.collects++
	q.values = q.values[:0]
	for _, inst := range q.instances {
		q.values = append(q.values, q.m.utilization(inst.adapter, inst.engine))
	}
	return nil
}

func (q *query) Values() ([]float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.collects < 2 {
		return nil, fmt.Errorf("%w: rate counter needs two collections", domain.ErrCounterReadFailed)
	}

	out := make([]float64, len(q.values))
	copy(out, q.values)
	return out, nil
}

func (q *query) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}
