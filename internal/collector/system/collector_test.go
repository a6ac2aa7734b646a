package system

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	info := NewCollector().Collect(context.Background())

	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.Platform)
	assert.NotEmpty(t, info.KernelArch)
}

func TestCollectFallsBackWithoutHostInfo(t *testing.T) {
	c := &Collector{hostInfo: func(context.Context) (*host.InfoStat, error) {
		return nil, errors.New("not implemented yet")
	}}

	info := c.Collect(context.Background())

	name, err := os.Hostname()
	if err == nil && name != "" {
		assert.Equal(t, name, info.Hostname)
	} else {
		assert.Equal(t, "unknown", info.Hostname)
	}
	assert.Equal(t, runtime.GOOS, info.Platform)
	assert.Equal(t, runtime.GOARCH, info.KernelArch)
	assert.Empty(t, info.PlatformVersion)
}

func TestCollectPrefersHostInfo(t *testing.T) {
	c := &Collector{hostInfo: func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Hostname: "render-01", Platform: "Microsoft Windows 11 Pro", PlatformVersion: "10.0.22631", KernelArch: "x86_64"}, nil
	}}

	info := c.Collect(context.Background())

	assert.Equal(t, "render-01", info.Hostname)
	assert.Equal(t, "Microsoft Windows 11 Pro", info.Platform)
	assert.Equal(t, "10.0.22631", info.PlatformVersion)
	assert.Equal(t, "x86_64", info.KernelArch)
}
