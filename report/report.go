// Package report defines the error reporting collaborator used by chains.
// Reporters are fire-and-forget: they never return an error and must not
// panic into the caller.
package report

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reporter records an error somewhere an operator will see it.
type Reporter interface {
	Report(ctx context.Context, err error)
}

// Func adapts an ordinary function to the Reporter interface.
type Func func(ctx context.Context, err error)

// Report implements Reporter.
func (f Func) Report(ctx context.Context, err error) { f(ctx, err) }

// Nop discards every report.
var Nop Reporter = Func(func(context.Context, error) {})

// Log returns a Reporter that writes an error line to logger.
func Log(logger *slog.Logger) Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(ctx context.Context, err error) {
		attrs := []slog.Attr{slog.String("error", err.Error())}
		var named interface{ JobName() string }
		if errors.As(err, &named) {
			attrs = append(attrs, slog.String("job", named.JobName()))
		}
		logger.LogAttrs(ctx, slog.LevelError, "error reported", attrs...)
	})
}

// Span returns a Reporter that records the error on the span active in
// ctx. Without an active span the report is dropped.
func Span() Reporter {
	return Func(func(ctx context.Context, err error) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})
}

// Multi fans a report out to every reporter in order. A panicking reporter
// does not stop the others.
func Multi(reporters ...Reporter) Reporter {
	return Func(func(ctx context.Context, err error) {
		for _, r := range reporters {
			safe(ctx, r, err)
		}
	})
}

// Safe calls r and swallows any panic it raises.
func Safe(ctx context.Context, r Reporter, err error) {
	if r == nil || err == nil {
		return
	}
	safe(ctx, r, err)
}

func safe(ctx context.Context, r Reporter, err error) {
	defer func() { _ = recover() }()
	r.Report(ctx, err)
}
