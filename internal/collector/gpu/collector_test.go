package gpu

import (
	"errors"
	"testing"

	"capbench/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuery struct {
	collects int
	values   [][]float64
	readErr  error
	closed   bool
}

func (q *fakeQuery) Collect() error {
	q.collects++
	return nil
}

func (q *fakeQuery) Values() ([]float64, error) {
	if q.readErr != nil {
		return nil, q.readErr
	}
	if len(q.values) == 0 {
		return nil, nil
	}
	v := q.values[0]
	q.values = q.values[1:]
	return v, nil
}

func (q *fakeQuery) Close() error {
	q.closed = true
	return nil
}

type fakeSubsystem struct {
	queries map[string]*fakeQuery
	opened  []string
}

func (s *fakeSubsystem) OpenQuery(path string) (Query, error) {
	s.opened = append(s.opened, path)
	q, ok := s.queries[path]
	if !ok {
		return nil, domain.ErrCounterUnavailable
	}
	return q, nil
}

var testAdapter = domain.Adapter{LUID: domain.LUID{Low: 0xD1F5}, Name: "Test GPU"}

func TestCounterPath(t *testing.T) {
	assert.Equal(t,
		`\GPU Engine(pid_42*engtype_3D)\Utilization Percentage`,
		CounterPath(42, nil))
	assert.Equal(t,
		`\GPU Engine(pid_42_luid_0x00000000_0x0000D1F5*engtype_3D)\Utilization Percentage`,
		CounterPath(42, &testAdapter))
}

func TestOpenUnavailable(t *testing.T) {
	sub := &fakeSubsystem{queries: map[string]*fakeQuery{}}

	_, err := Open(sub, 42, &testAdapter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCounterUnavailable))
}

func TestReadSumsInstances(t *testing.T) {
	q := &fakeQuery{values: [][]float64{{30, 45.5}, {100, 80}}}
	sub := &fakeSubsystem{queries: map[string]*fakeQuery{CounterPath(42, &testAdapter): q}}

	src, err := Open(sub, 42, &testAdapter)
	require.NoError(t, err)
	require.NoError(t, src.Prime())

	v, err := src.Read()
	require.NoError(t, err)
	assert.InDelta(t, 75.5, v, 1e-9)

	v, err = src.Read()
	require.NoError(t, err)
	assert.InDelta(t, 180.0, v, 1e-9)

	assert.Equal(t, 3, q.collects)
}

func TestReadPrimesImplicitly(t *testing.T) {
	q := &fakeQuery{values: [][]float64{{12}}}
	sub := &fakeSubsystem{queries: map[string]*fakeQuery{CounterPath(7, nil): q}}

	src, err := Open(sub, 7, nil)
	require.NoError(t, err)

	v, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.Equal(t, 2, q.collects)
}

func TestReadFailure(t *testing.T) {
	q := &fakeQuery{readErr: errors.New("stale data")}
	sub := &fakeSubsystem{queries: map[string]*fakeQuery{CounterPath(7, nil): q}}

	src, err := Open(sub, 7, nil)
	require.NoError(t, err)
	require.NoError(t, src.Prime())

	_, err = src.Read()
	assert.True(t, errors.Is(err, domain.ErrCounterReadFailed))
}

func TestClose(t *testing.T) {
	q := &fakeQuery{}
	sub := &fakeSubsystem{queries: map[string]*fakeQuery{CounterPath(7, nil): q}}

	src, err := Open(sub, 7, nil)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.True(t, q.closed)

	_, err = src.Read()
	assert.True(t, errors.Is(err, domain.ErrCounterClosed))
	assert.True(t, errors.Is(src.Prime(), domain.ErrCounterClosed))
}

func TestParseInstance(t *testing.T) {
	inst, ok := ParseInstance("pid_1234_luid_0x00000000_0x0000D1F5_phys_0_eng_3_engtype_3D")
	require.True(t, ok)
	assert.Equal(t, uint32(1234), inst.PID)
	assert.Equal(t, domain.LUID{Low: 0xD1F5}, inst.LUID)
	assert.Equal(t, 3, inst.Engine)
	assert.Equal(t, "3D", inst.EngineType)

	_, ok = ParseInstance("_Total")
	assert.False(t, ok)
}

func TestDetectAdapters(t *testing.T) {
	luids := DetectAdapters([]string{
		"pid_1_luid_0x00000000_0x0000E000_phys_0_eng_0_engtype_3D",
		"pid_1_luid_0x00000000_0x0000D1F5_phys_0_eng_0_engtype_3D",
		"pid_2_luid_0x00000000_0x0000D1F5_phys_0_eng_1_engtype_Copy",
		"garbage",
	})

	assert.Equal(t, []domain.LUID{{Low: 0xD1F5}, {Low: 0xE000}}, luids)
}
