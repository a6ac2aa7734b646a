// Package system
package system

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"

	"capbench/internal/domain"
)

type Collector struct {
	hostInfo func(context.Context) (*host.InfoStat, error)
}

func NewCollector() *Collector {
	return &Collector{hostInfo: host.InfoWithContext}
}

// Collect describes the host for the report header. It never fails; fields
// gopsutil cannot read fall back to the os and runtime values.
func (c *Collector) Collect(ctx context.Context) domain.HostInfo {
	var info domain.HostInfo

	if h, err := c.hostInfo(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelArch = h.KernelArch
	}

	if info.Hostname == "" {
		info.Hostname = "unknown"
		if name, err := os.Hostname(); err == nil && name != "" {
			info.Hostname = name
		}
	}
	if info.Platform == "" {
		info.Platform = runtime.GOOS
	}
	if info.KernelArch == "" {
		info.KernelArch = runtime.GOARCH
	}

	return info
}
