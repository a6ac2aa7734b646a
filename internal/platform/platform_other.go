//go:build !windows

package platform

import (
	"fmt"
	"runtime"

	"capbench/internal/logger"
)

func newWindows(logger.Logger) (Platform, error) {
	return nil, fmt.Errorf("%w: windows counters on %s", ErrUnsupportedPlatform, runtime.GOOS)
}
