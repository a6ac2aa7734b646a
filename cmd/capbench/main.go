package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"capbench/internal/bench"
	"capbench/internal/capture"
	"capbench/internal/collector/system"
	"capbench/internal/config"
	"capbench/internal/dispatch"
	"capbench/internal/domain"
	"capbench/internal/logger"
	"capbench/internal/metrics"
	"capbench/internal/platform"
	"capbench/internal/report"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found, relying on system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	appLog := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLog); err != nil {
		if errors.Is(err, context.Canceled) {
			appLog.Info("capbench: interrupted")
			os.Exit(130)
		}
		appLog.Error("capbench: run failed", "error", err, "fatal", domain.IsFatal(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	plat, err := platform.New(cfg, log)
	if err != nil {
		return err
	}
	defer plat.Close()

	monitor, err := platform.SelectMonitor(plat, cfg.MonitorIndex)
	if err != nil {
		return err
	}

	passNames, skipped, err := platform.SelectPasses(plat, cfg.Passes, cfg.PassesSet)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		log.Warn("capbench: skipping passes this platform cannot run", "platform", plat.Name(), "passes", skipped)
	}

	adapters, err := plat.Adapters()
	if err != nil {
		return err
	}

	pid, err := platform.ResolvePID(ctx, cfg.TargetProcess, cfg.TargetPID)
	if err != nil {
		// the synthetic machine hosts a compositor for any pid
		if !errors.Is(err, domain.ErrProcessNotFound) || plat.Name() != config.PlatformSynthetic {
			return err
		}
		pid = uint32(os.Getpid())
		log.Warn("capbench: target process not found, sampling own pid", "process", cfg.TargetProcess, "pid", pid)
	}

	info := domain.RunInfo{
		RunID:     uuid.New(),
		Host:      system.NewCollector().Collect(ctx),
		ProcessID: pid,
		Monitor:   monitor,
		Adapters:  adapters,
		Duration:  cfg.TestDuration,
		StartedAt: time.Now().UTC(),
	}

	log.Info("capbench: starting",
		"run_id", info.RunID,
		"platform", plat.Name(),
		"pid", pid,
		"adapters", len(adapters),
		"monitor", monitor.Index,
		"passes", passNames,
	)

	reporter, closeReporter, err := newReporter(ctx, cfg, info.RunID, log)
	if err != nil {
		return err
	}
	defer closeReporter()

	queue := dispatch.NewQueue(log)
	runner := metrics.NewRunner(queue, plat.Counters(), log, metrics.WithVerbose(cfg.Verbose))
	if err := metrics.ValidateDurations(cfg.TestDuration, runner.TickLength()); err != nil {
		return err
	}

	orch := bench.New(runner, reporter, log, bench.WithRest(cfg.RestDuration))
	passes := buildPasses(passNames, cfg, plat, monitor, log)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := queue.Run(gCtx)
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer queue.Shutdown()

		_, err := orch.Run(gCtx, info, passes)
		return err
	})

	return g.Wait()
}

func buildPasses(names []string, cfg *config.Config, plat platform.Platform, monitor domain.Monitor, log logger.Logger) []bench.Pass {
	passes := make([]bench.Pass, 0, len(names))

	for _, name := range names {
		switch name {
		case config.PassBaseline:
			passes = append(passes, bench.Pass{Name: name})
		case config.PassWGC:
			passes = append(passes, bench.Pass{
				Name: name,
				NewSink: func() (capture.Sink, error) {
					return capture.NewEventSink(plat.NewFramePool, monitor, capture.DefaultFramePoolOptions(cfg.DirtyRegions), log)
				},
			})
		case config.PassDDA:
			passes = append(passes, bench.Pass{
				Name: name,
				NewSink: func() (capture.Sink, error) {
					out, err := plat.Output(monitor)
					if err != nil {
						return nil, err
					}
					return capture.NewPollSink(out, log), nil
				},
			})
		}
	}

	return passes
}

func newReporter(ctx context.Context, cfg *config.Config, runID uuid.UUID, log logger.Logger) (bench.Reporter, func(), error) {
	var reporters report.Multi
	closers := []func(){}

	switch cfg.ReportFormat {
	case config.FormatJSON, config.FormatYAML:
		structured, err := report.NewStructured(os.Stdout, cfg.ReportFormat)
		if err != nil {
			return nil, nil, err
		}
		reporters = append(reporters, report.NewConsole(os.Stderr), structured)
	default:
		reporters = append(reporters, report.NewConsole(os.Stdout))
	}

	if cfg.ReportWSURL != "" {
		pub, err := report.Dial(ctx, cfg.ReportWSURL, runID.String(), log)
		if err != nil {
			return nil, nil, err
		}
		reporters = append(reporters, pub)
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := pub.Close(closeCtx); err != nil {
				log.Warn("report stream close failed", "error", err)
			}
		})
	}

	return reporters, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
