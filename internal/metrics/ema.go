package metrics

import (
	"math"
	"time"

	"capbench/internal/domain"
)

// DefaultSmoothing is the EMA time constant used for report summaries.
const DefaultSmoothing = 2 * time.Second

// EMA is an exponential moving average whose weight depends on the time
// between updates rather than the number of samples.
type EMA struct {
	tau   float64
	value float64
	last  time.Duration
	init  bool
}

func NewEMA(tau time.Duration) *EMA {
	return &EMA{
		tau: tau.Seconds(),
	}
}

// Update folds x observed at offset at into the average.
func (e *EMA) Update(x float64, at time.Duration) float64 {
	if !e.init {
		e.value = x
		e.last = at
		e.init = true
		return e.value
	}

	dt := (at - e.last).Seconds()
	if dt <= 0 {
		return e.value
	}

	alpha := 1 - math.Exp(-dt/e.tau)
	e.value = alpha*x + (1-alpha)*e.value
	e.last = at

	return e.value
}

func (e *EMA) Value() float64 {
	return e.value
}

type Summary struct {
	Mean     float64
	Min      float64
	Max      float64
	Smoothed float64
}

// Summarize treats series as one sample per tick. An empty series
// summarizes to zeros.
func Summarize(series domain.SampleSeries, tick, tau time.Duration) Summary {
	if len(series) == 0 {
		return Summary{}
	}

	sum := Summary{
		Mean: series.Mean(),
		Min:  series[0],
		Max:  series[0],
	}

	ema := NewEMA(tau)
	for i, v := range series {
		sum.Min = min(sum.Min, v)
		sum.Max = max(sum.Max, v)
		ema.Update(v, time.Duration(i+1)*tick)
	}
	sum.Smoothed = ema.Value()

	return sum
}
