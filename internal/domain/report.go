package domain

import (
	"time"

	"github.com/google/uuid"
)

type AdapterResult struct {
	Index    int          `json:"index"    yaml:"index"`
	Name     string       `json:"name"     yaml:"name"`
	LUID     string       `json:"luid"     yaml:"luid"`
	Average  float64      `json:"average"  yaml:"average"`
	Min      float64      `json:"min"      yaml:"min"`
	Max      float64      `json:"max"      yaml:"max"`
	Smoothed float64      `json:"smoothed" yaml:"smoothed"`
	Samples  SampleSeries `json:"samples"  yaml:"samples"`
}

type PassResult struct {
	Name      string          `json:"name"       yaml:"name"`
	Sink      string          `json:"sink"       yaml:"sink,omitempty"`
	Frames    int             `json:"frames"     yaml:"frames"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  time.Duration   `json:"duration"   yaml:"duration"`
	Adapters  []AdapterResult `json:"adapters"   yaml:"adapters"`
}

type HostInfo struct {
	Hostname        string `json:"hostname"         yaml:"hostname"`
	Platform        string `json:"platform"         yaml:"platform"`
	PlatformVersion string `json:"platform_version" yaml:"platform_version"`
	KernelArch      string `json:"kernel_arch"      yaml:"kernel_arch"`
}

// RunInfo describes one benchmarking run before any pass executes.
type RunInfo struct {
	RunID     uuid.UUID     `json:"run_id"     yaml:"run_id"`
	Host      HostInfo      `json:"host"       yaml:"host"`
	ProcessID uint32        `json:"process_id" yaml:"process_id"`
	Monitor   Monitor       `json:"monitor"    yaml:"monitor"`
	Adapters  []Adapter     `json:"adapters"   yaml:"adapters"`
	Duration  time.Duration `json:"duration"   yaml:"duration"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
}

type RunReport struct {
	RunInfo `yaml:",inline"`
	Passes  []PassResult `json:"passes" yaml:"passes"`
}
