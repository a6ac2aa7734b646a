package platform

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capbench/internal/config"
	"capbench/internal/domain"
	"capbench/internal/logger"
)

func syntheticConfig() *config.Config {
	return &config.Config{
		Platform:           config.PlatformSynthetic,
		SyntheticAdapters:  2,
		SyntheticRefreshHz: 60,
	}
}

func TestNewSynthetic(t *testing.T) {
	p, err := New(syntheticConfig(), logger.Nop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "synthetic", p.Name())

	adapters, err := p.Adapters()
	require.NoError(t, err)
	assert.Len(t, adapters, 2)
}

func TestNewAutoOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("auto selects the counter subsystem on windows")
	}

	cfg := syntheticConfig()
	cfg.Platform = config.PlatformAuto

	p, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "synthetic", p.Name())

	cfg.Platform = config.PlatformWindows
	_, err = New(cfg, logger.Nop())
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestSelectMonitor(t *testing.T) {
	p, err := New(syntheticConfig(), logger.Nop())
	require.NoError(t, err)

	m, err := SelectMonitor(p, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Index)

	_, err = SelectMonitor(p, 3)
	assert.True(t, errors.Is(err, domain.ErrMonitorNotFound))

	_, err = SelectMonitor(p, -1)
	assert.True(t, errors.Is(err, domain.ErrMonitorNotFound))
}

func TestResolvePID(t *testing.T) {
	ctx := context.Background()

	pid, err := ResolvePID(ctx, "ignored", 4242)
	require.NoError(t, err)
	assert.Equal(t, uint32(4242), pid)

	_, err = ResolvePID(ctx, "capbench-no-such-process.exe", 0)
	assert.True(t, errors.Is(err, domain.ErrProcessNotFound))

	self, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)
	name, err := self.Name()
	require.NoError(t, err)

	pid, err = ResolvePID(ctx, name, 0)
	require.NoError(t, err)
	assert.NotZero(t, pid)
}

type limitedPlatform struct {
	Platform
	passes []string
}

func (p limitedPlatform) Passes() []string {
	return p.passes
}

func TestSelectPassesSynthetic(t *testing.T) {
	p, err := New(syntheticConfig(), logger.Nop())
	require.NoError(t, err)

	selected, skipped, err := SelectPasses(p, config.DefaultPasses(), false)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPasses(), selected)
	assert.Empty(t, skipped)
}

func TestSelectPassesSkipsDefaults(t *testing.T) {
	base, err := New(syntheticConfig(), logger.Nop())
	require.NoError(t, err)
	p := limitedPlatform{Platform: base, passes: []string{config.PassBaseline, config.PassDDA}}

	selected, skipped, err := SelectPasses(p, config.DefaultPasses(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{config.PassBaseline, config.PassDDA}, selected)
	assert.Equal(t, []string{config.PassWGC}, skipped)
}

func TestSelectPassesRejectsExplicit(t *testing.T) {
	base, err := New(syntheticConfig(), logger.Nop())
	require.NoError(t, err)
	p := limitedPlatform{Platform: base, passes: []string{config.PassBaseline, config.PassDDA}}

	_, _, err = SelectPasses(p, []string{config.PassBaseline, config.PassWGC}, true)
	assert.ErrorIs(t, err, ErrPassUnsupported)

	_, skipped, err := SelectPasses(p, []string{config.PassWGC}, false)
	assert.ErrorIs(t, err, ErrPassUnsupported)
	assert.Equal(t, []string{config.PassWGC}, skipped)
}
