// Package bench runs the baseline and capture passes of a benchmarking run
// and reports per-adapter utilization for each of them.
package bench

import (
	"context"
	"fmt"
	"time"

	"capbench/internal/capture"
	"capbench/internal/domain"
	"capbench/internal/logger"
	"capbench/internal/metrics"
)

// Sampler measures GPU utilization for a bounded duration.
type Sampler interface {
	Run(ctx context.Context, duration time.Duration, pid uint32, adapters []domain.Adapter) (domain.SampleMatrix, error)
	TickLength() time.Duration
}

type Reporter interface {
	RunStarted(ctx context.Context, info domain.RunInfo) error
	PassStarted(ctx context.Context, name string) error
	PassFinished(ctx context.Context, info domain.RunInfo, pass domain.PassResult) error
	RunFinished(ctx context.Context, report domain.RunReport) error
}

type SinkFactory func() (capture.Sink, error)

// Pass is one measurement interval. A pass without a sink factory is the
// no-capture baseline.
type Pass struct {
	Name    string
	NewSink SinkFactory
}

func (p Pass) Baseline() bool {
	return p.NewSink == nil
}

type Orchestrator struct {
	sampler  Sampler
	reporter Reporter
	rest     time.Duration
	log      logger.Logger

	now func() time.Time
}

type Option func(*Orchestrator)

// WithRest sets the pause between consecutive passes.
func WithRest(d time.Duration) Option {
	return func(o *Orchestrator) { o.rest = d }
}

func New(sampler Sampler, reporter Reporter, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sampler:  sampler,
		reporter: reporter,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes passes in order. The first fatal error ends the run; the
// report then holds only the passes that completed.
func (o *Orchestrator) Run(ctx context.Context, info domain.RunInfo, passes []Pass) (*domain.RunReport, error) {
	report := &domain.RunReport{RunInfo: info}

	if err := o.reporter.RunStarted(ctx, info); err != nil {
		o.log.Warn("bench: report run start failed", "error", err)
	}

	for i, pass := range passes {
		if i > 0 && o.rest > 0 {
			if err := o.sleep(ctx, o.rest); err != nil {
				return report, err
			}
		}

		o.log.Info("bench: pass started", "pass", pass.Name, "duration", info.Duration)
		if err := o.reporter.PassStarted(ctx, pass.Name); err != nil {
			o.log.Warn("bench: report pass start failed", "pass", pass.Name, "error", err)
		}

		result, err := o.runPass(ctx, info, pass)
		if err != nil {
			return report, err
		}

		report.Passes = append(report.Passes, result)
		o.log.Info("bench: pass finished", "pass", pass.Name, "frames", result.Frames)

		if err := o.reporter.PassFinished(ctx, info, result); err != nil {
			o.log.Warn("bench: report pass failed", "pass", pass.Name, "error", err)
		}
	}

	if err := o.reporter.RunFinished(ctx, *report); err != nil {
		o.log.Warn("bench: report run finish failed", "error", err)
	}

	return report, nil
}

func (o *Orchestrator) runPass(ctx context.Context, info domain.RunInfo, pass Pass) (res domain.PassResult, err error) {
	res = domain.PassResult{Name: pass.Name, StartedAt: o.now()}

	if !pass.Baseline() {
		var sink capture.Sink
		sink, err = pass.NewSink()
		if err != nil {
			return res, fmt.Errorf("pass %s: create sink: %w", pass.Name, err)
		}
		res.Sink = sink.Name()

		if err = sink.Start(); err != nil {
			return res, fmt.Errorf("pass %s: start %s: %w", pass.Name, sink.Name(), err)
		}

		defer func() {
			frames, stopErr := sink.Stop()
			res.Frames = frames
			if stopErr != nil && err == nil {
				err = fmt.Errorf("pass %s: stop %s: %w", pass.Name, sink.Name(), stopErr)
			}
		}()
	}

	matrix, err := o.sampler.Run(ctx, info.Duration, info.ProcessID, info.Adapters)
	if err != nil {
		return res, fmt.Errorf("pass %s: %w", pass.Name, err)
	}

	res.Duration = o.now().Sub(res.StartedAt)
	res.Adapters = o.results(info.Adapters, matrix)

	return res, nil
}

func (o *Orchestrator) results(adapters []domain.Adapter, matrix domain.SampleMatrix) []domain.AdapterResult {
	out := make([]domain.AdapterResult, len(adapters))
	for i, a := range adapters {
		var series domain.SampleSeries
		if i < len(matrix) {
			series = matrix[i]
		}

		sum := metrics.Summarize(series, o.sampler.TickLength(), metrics.DefaultSmoothing)
		out[i] = domain.AdapterResult{
			Index:    i,
			Name:     a.Name,
			LUID:     a.LUID.String(),
			Average:  sum.Mean,
			Min:      sum.Min,
			Max:      sum.Max,
			Smoothed: sum.Smoothed,
			Samples:  series,
		}
	}
	return out
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
