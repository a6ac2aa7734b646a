package domain

import "errors"

var (
	ErrCounterUnavailable     = errors.New("counter unavailable")
	ErrCounterReadFailed      = errors.New("counter read failed")
	ErrCounterClosed          = errors.New("counter closed")
	ErrTickFailed             = errors.New("tick failed")
	ErrInvalidSessionDuration = errors.New("invalid session duration")
	ErrSessionAbandoned       = errors.New("session abandoned")
	ErrMonitorNotFound        = errors.New("monitor not found")
	ErrProcessNotFound        = errors.New("target process not found")
)

// IsFatal reports whether err must end a benchmarking run. Per-tick and
// per-adapter counter failures are absorbed before they get this far.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	return !errors.Is(err, ErrCounterUnavailable) &&
		!errors.Is(err, ErrCounterReadFailed) &&
		!errors.Is(err, ErrTickFailed)
}
