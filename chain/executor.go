package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/risetechapps/jobchain/invoke"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/report"
)

// Run executes the chain once. It implements task.Runnable; see Execute.
func (b *Bound) Run(ctx context.Context) error {
	_, err := b.Execute(ctx)
	return err
}

// Execute runs every job in declared order and stops at the first failure
// or at the first job returning false. The finally callback runs last on
// every path, including a panicking callback.
func (b *Bound) Execute(ctx context.Context) (out Outcome, err error) {
	if b.onFinally != nil {
		defer b.onFinally(ctx)
	}

	for i, spec := range b.jobs {
		out.Executed = i + 1
		stop, err := b.step(ctx, i, spec)
		if err != nil {
			out.Status = Failed
			out.Err = err
			return out, err
		}
		if stop {
			out.Status = Stopped
			break
		}
	}

	if b.onSuccess != nil {
		b.onSuccess(ctx)
	}
	return out, nil
}

// step runs one job. It returns stop when the job returned false.
func (b *Bound) step(ctx context.Context, index int, spec job.Spec) (stop bool, err error) {
	ctx, span := b.env.tracer.Start(ctx, "jobchain.chain.job",
		trace.WithAttributes(
			attribute.String("jobchain.job", spec.ID()),
			attribute.Int("jobchain.job.index", index),
		),
	)
	defer span.End()

	if l := b.env.logger; l != nil {
		l.LogAttrs(ctx, slog.LevelInfo, "running job",
			slog.String("chain", b.DisplayName()),
			slog.String("job", spec.Name()),
			slog.Int("index", index),
		)
	}

	inv, err := b.env.resolver.Resolve(ctx, spec, b.passable)
	var result any
	if err == nil {
		result, err = invokeSafe(ctx, inv, b.passable)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, b.fail(ctx, index, spec, inv, err)
	}

	return isFalse(result), nil
}

func isFalse(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}

// fail runs the failure path for cause and returns the wrapped error.
func (b *Bound) fail(ctx context.Context, index int, spec job.Spec, inv *job.Invocable, cause error) error {
	if b.onFailure != nil {
		b.onFailure(ctx, cause)
	}

	failure := &JobFailure{Job: spec.ID(), Index: index, Err: cause}

	if inv != nil {
		if f, ok := inv.Failer(); ok {
			if herr := failedSafe(ctx, f, cause); herr != nil {
				report.Safe(ctx, b.env.reporter, &SecondaryFailure{Job: spec.ID(), Err: herr, Cause: cause})
			}
		}
	}

	report.Safe(ctx, b.env.reporter, failure)

	if l := b.env.logger; l != nil {
		l.LogAttrs(ctx, slog.LevelError, "job failed",
			slog.String("chain", b.DisplayName()),
			slog.String("job", spec.Name()),
			slog.Int("index", index),
			slog.String("error", cause.Error()),
		)
	}
	return failure
}

func invokeSafe(ctx context.Context, inv *job.Invocable, args job.Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return inv.Invoke(ctx, args)
}

func failedSafe(ctx context.Context, f job.Failer, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return f.Failed(ctx, cause)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", invoke.ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", invoke.ErrPanic, r)
}

// IsJobFailure reports whether err carries a JobFailure and returns it.
func IsJobFailure(err error) (*JobFailure, bool) {
	var jf *JobFailure
	ok := errors.As(err, &jf)
	return jf, ok
}
