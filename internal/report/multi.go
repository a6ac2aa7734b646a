package report

import (
	"context"
	"errors"

	"capbench/internal/bench"
	"capbench/internal/domain"
)

// Multi fans every event out to each reporter. One failing reporter does not
// keep the others from seeing the event.
type Multi []bench.Reporter

func (m Multi) RunStarted(ctx context.Context, info domain.RunInfo) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RunStarted(ctx, info))
	}
	return errors.Join(errs...)
}

func (m Multi) PassStarted(ctx context.Context, name string) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.PassStarted(ctx, name))
	}
	return errors.Join(errs...)
}

func (m Multi) PassFinished(ctx context.Context, info domain.RunInfo, pass domain.PassResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.PassFinished(ctx, info, pass))
	}
	return errors.Join(errs...)
}

func (m Multi) RunFinished(ctx context.Context, report domain.RunReport) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RunFinished(ctx, report))
	}
	return errors.Join(errs...)
}
