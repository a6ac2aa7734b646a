package metrics

import (
	"math"
	"testing"
	"time"

	"capbench/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestEMAUpdate(t *testing.T) {
	e := NewEMA(time.Second)

	assert.Equal(t, 10.0, e.Update(10, 0))
	// non-increasing offsets are ignored
	assert.Equal(t, 10.0, e.Update(99, 0))

	alpha := 1 - math.Exp(-1)
	assert.InDelta(t, alpha*20+(1-alpha)*10, e.Update(20, time.Second), 1e-9)
}

func TestSummarize(t *testing.T) {
	s := Summarize(domain.SampleSeries{10, 40, 20, 30}, 500*time.Millisecond, DefaultSmoothing)

	assert.Equal(t, 25.0, s.Mean)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.Greater(t, s.Smoothed, s.Min)
	assert.Less(t, s.Smoothed, s.Max)

	assert.Equal(t, Summary{}, Summarize(nil, 500*time.Millisecond, DefaultSmoothing))
}
