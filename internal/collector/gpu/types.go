// Package gpu reads per-process GPU 3D engine utilization from the OS
// performance counter subsystem.
package gpu

// Subsystem is a connection to the performance counter subsystem.
//
// OpenQuery resolves a counter path that may contain wildcards. A path that
// matches no counter instance must fail with domain.ErrCounterUnavailable.
type Subsystem interface {
	OpenQuery(path string) (Query, error)
}

// Query is one open counter query covering every instance its path matched.
type Query interface {
	// Collect refreshes the raw data of every counter in the query.
	Collect() error
	// Values returns the formatted value of each matched instance from the
	// last collection. Invalid or stale data fails with
	// domain.ErrCounterReadFailed.
	Values() ([]float64, error)
	Close() error
}
