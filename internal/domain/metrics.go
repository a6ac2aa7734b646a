package domain

// SampleSeries holds one utilization percentage per tick for a single
// (process, adapter) pair, in tick order.
type SampleSeries []float64

// Mean is the arithmetic mean of the series, 0 for an empty series.
func (s SampleSeries) Mean() float64 {
	if len(s) == 0 {
		return 0
	}

	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}

// SampleMatrix is index-aligned with the adapter list a session was started with.
type SampleMatrix []SampleSeries

func (m SampleMatrix) Means() []float64 {
	out := make([]float64, len(m))
	for i, series := range m {
		out[i] = series.Mean()
	}
	return out
}
