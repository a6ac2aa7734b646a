// Package synthetic simulates a machine with GPU adapters, a compositor and
// both capture backends, so the benchmark runs end to end on any OS.
//
// Adapters with an even index host compositor work and expose 3D engine
// counter instances; the others have none and show up as absent. Each
// active capture adds a fixed overhead to every hosting adapter.
package synthetic

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"capbench/internal/collector/gpu"
	"capbench/internal/config"
	"capbench/internal/domain"
)

const (
	// overheads in hundredths of a percent
	eventCaptureLoad = 220
	pollCaptureLoad  = 310

	enginesPerAdapter = 2
)

type Options struct {
	Adapters  int
	RefreshHz int
	Monitors  int
}

type Machine struct {
	adapters []domain.Adapter
	monitors []domain.Monitor
	period   time.Duration
	epoch    time.Time

	captureLoad atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand
}

func New(opts Options) *Machine {
	if opts.Adapters <= 0 {
		opts.Adapters = 1
	}
	if opts.RefreshHz <= 0 {
		opts.RefreshHz = 60
	}
	if opts.Monitors <= 0 {
		opts.Monitors = 1
	}

	m := &Machine{
		period: time.Second / time.Duration(opts.RefreshHz),
		epoch:  time.Now(),
		rng:    rand.New(rand.NewPCG(uint64(opts.Adapters), uint64(opts.RefreshHz))),
	}

	for i := 0; i < opts.Adapters; i++ {
		m.adapters = append(m.adapters, domain.Adapter{
			LUID: domain.LUID{Low: 0xD000 + uint32(i)*0x1F5},
			Name: adapterName(i),
		})
	}

	for i := 0; i < opts.Monitors; i++ {
		m.monitors = append(m.monitors, domain.Monitor{
			Index:       i,
			Handle:      0x10001 + uint64(i)*2,
			Name:        fmt.Sprintf(`\\.\DISPLAY%d`, i+1),
			FrequencyHz: uint32(opts.RefreshHz),
		})
	}

	return m
}

func adapterName(i int) string {
	switch i {
	case 0:
		return "Synthetic Render Adapter"
	case 1:
		return "Synthetic Basic Display Adapter"
	}
	return fmt.Sprintf("Synthetic Adapter %d", i)
}

func (m *Machine) Name() string {
	return "synthetic"
}

func (m *Machine) Adapters() ([]domain.Adapter, error) {
	out := make([]domain.Adapter, len(m.adapters))
	copy(out, m.adapters)
	return out, nil
}

func (m *Machine) Monitors() ([]domain.Monitor, error) {
	out := make([]domain.Monitor, len(m.monitors))
	copy(out, m.monitors)
	return out, nil
}

// Passes lists every pass; both capture backends are simulated.
func (m *Machine) Passes() []string {
	return config.DefaultPasses()
}

func (m *Machine) Counters() gpu.Subsystem {
	return &counters{m: m}
}

func (m *Machine) Close() error {
	return nil
}

func (m *Machine) hosts(adapter int) bool {
	return adapter%2 == 0
}

// instances lists the 3D engine counter instances pid owns.
func (m *Machine) instances(pid uint32) []instance {
	if pid == 0 {
		return nil
	}

	var out []instance
	for i, a := range m.adapters {
		if !m.hosts(i) {
			continue
		}
		for e := 0; e < enginesPerAdapter; e++ {
			out = append(out, instance{
				name:    fmt.Sprintf("pid_%d_%s_phys_0_eng_%d_engtype_3D", pid, a.LUID, e),
				adapter: i,
				engine:  e,
			})
		}
	}
	return out
}

// utilization is the current load of one engine instance in percent.
func (m *Machine) utilization(adapter, engine int) float64 {
	base := 1.5 + 0.5*float64(adapter)
	load := base + float64(m.captureLoad.Load())/100

	m.mu.Lock()
	jitter := m.rng.Float64() - 0.5
	m.mu.Unlock()

	v := load + jitter
	if engine > 0 {
		v *= 0.25
	} else {
		v *= 0.75
	}
	return max(v, 0)
}

func (m *Machine) addCaptureLoad(hundredths int64) {
	m.captureLoad.Add(hundredths)
}

// nextFrame returns the index and presentation time of the first vsync
// after index last that is not in the past.
func (m *Machine) nextFrame(last int64, now time.Time) (int64, time.Time) {
	current := int64(now.Sub(m.epoch) / m.period)
	next := max(last+1, current+1)
	return next, m.epoch.Add(time.Duration(next) * m.period)
}
