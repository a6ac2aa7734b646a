// Package platform binds the benchmark to the OS services it measures:
// the performance counter subsystem, adapter and monitor enumeration, and
// the two capture backends.
package platform

import (
	"errors"
	"fmt"
	"runtime"
	"slices"

	"capbench/internal/capture"
	"capbench/internal/collector/gpu"
	"capbench/internal/config"
	"capbench/internal/domain"
	"capbench/internal/logger"
	"capbench/internal/platform/synthetic"
)

var (
	ErrUnsupportedPlatform = errors.New("platform not supported on this OS")
	ErrPassUnsupported     = errors.New("pass not supported on this platform")
)

type Platform interface {
	Name() string
	// Passes lists the passes the platform can run, in default order.
	Passes() []string
	Counters() gpu.Subsystem
	Adapters() ([]domain.Adapter, error)
	Monitors() ([]domain.Monitor, error)
	NewFramePool(monitor domain.Monitor, opts capture.FramePoolOptions) (capture.FramePool, error)
	Output(monitor domain.Monitor) (capture.Output, error)
	Close() error
}

func New(cfg *config.Config, log logger.Logger) (Platform, error) {
	name := cfg.Platform
	if name == config.PlatformAuto {
		name = config.PlatformSynthetic
		if runtime.GOOS == "windows" {
			name = config.PlatformWindows
		}
	}

	switch name {
	case config.PlatformSynthetic:
		log.Debug("platform: synthetic", "adapters", cfg.SyntheticAdapters, "refresh_hz", cfg.SyntheticRefreshHz)
		return synthetic.New(synthetic.Options{
			Adapters:  cfg.SyntheticAdapters,
			RefreshHz: cfg.SyntheticRefreshHz,
		}), nil
	case config.PlatformWindows:
		return newWindows(log)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, name)
}

// SelectMonitor returns the monitor at index.
func SelectMonitor(p Platform, index int) (domain.Monitor, error) {
	monitors, err := p.Monitors()
	if err != nil {
		return domain.Monitor{}, fmt.Errorf("enumerate monitors: %w", err)
	}

	if index < 0 || index >= len(monitors) {
		return domain.Monitor{}, fmt.Errorf("%w: index %d, %d available", domain.ErrMonitorNotFound, index, len(monitors))
	}

	return monitors[index], nil
}

// SelectPasses narrows requested to the passes p can run. A pass the user
// asked for explicitly must be runnable; default passes that are not are
// returned as skipped.
func SelectPasses(p Platform, requested []string, explicit bool) (selected, skipped []string, err error) {
	supported := p.Passes()

	for _, name := range requested {
		if slices.Contains(supported, name) {
			selected = append(selected, name)
			continue
		}
		if explicit {
			return nil, nil, fmt.Errorf("%w: %s on %s", ErrPassUnsupported, name, p.Name())
		}
		skipped = append(skipped, name)
	}

	if len(selected) == 0 {
		return nil, skipped, fmt.Errorf("%w: none of %v on %s", ErrPassUnsupported, requested, p.Name())
	}
	return selected, skipped, nil
}
