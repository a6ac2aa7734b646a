package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.TestDuration)
	assert.Equal(t, time.Second, cfg.RestDuration)
	assert.Equal(t, "dwm.exe", cfg.TargetProcess)
	assert.Equal(t, []string{PassBaseline, PassWGC, PassDDA}, cfg.Passes)
	assert.False(t, cfg.PassesSet)
	assert.Zero(t, cfg.TargetPID)
	assert.Equal(t, PlatformAuto, cfg.Platform)
	assert.Equal(t, FormatText, cfg.ReportFormat)
	assert.False(t, cfg.DirtyRegions)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TEST_DURATION", "2000")
	t.Setenv("REST_DURATION", "250ms")
	t.Setenv("DIRTY_REGIONS", "true")
	t.Setenv("PASSES", "baseline, DDA")
	t.Setenv("PLATFORM", "synthetic")
	t.Setenv("REPORT_FORMAT", "yaml")
	t.Setenv("TARGET_PID", "4242")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.TestDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.RestDuration)
	assert.True(t, cfg.DirtyRegions)
	assert.Equal(t, []string{PassBaseline, PassDDA}, cfg.Passes)
	assert.True(t, cfg.PassesSet)
	assert.Equal(t, PlatformSynthetic, cfg.Platform)
	assert.Equal(t, FormatYAML, cfg.ReportFormat)
	assert.Equal(t, uint32(4242), cfg.TargetPID)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"zero duration":  {"TEST_DURATION", "0s"},
		"below one tick": {"TEST_DURATION", "100ms"},
		"negative pid":   {"TARGET_PID", "-1"},
		"pid overflow":   {"TARGET_PID", "4294967296"},
		"pid not number": {"TARGET_PID", "dwm"},
		"unknown pass":   {"PASSES", "baseline,nvfbc"},
		"repeated pass":  {"PASSES", "wgc,wgc"},
		"bad format":     {"REPORT_FORMAT", "csv"},
		"bad platform":   {"PLATFORM", "linux"},
		"bad stream url": {"REPORT_WS_URL", "not a url"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestLoadAcceptsOneTick(t *testing.T) {
	t.Setenv("TEST_DURATION", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.TestDuration)
}

func TestShortDurationMessage(t *testing.T) {
	t.Setenv("TEST_DURATION", "499")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TestDuration must be at least 500ms")
}
