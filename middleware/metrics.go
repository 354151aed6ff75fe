package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/risetechapps/jobchain/task"
)

// Metrics records attempt duration and count on the global MeterProvider.
//
//   - jobchain.task.duration (histogram, seconds)
//   - jobchain.task.attempts (counter)
//
// Both carry queue and status ("ok" or "error") attributes.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter is Metrics with an explicit meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The API hands back noop instruments on error.
	duration, _ := meter.Float64Histogram("jobchain.task.duration",
		metric.WithDescription("Duration of chain task attempts"),
		metric.WithUnit("s"),
	)
	attempts, _ := meter.Int64Counter("jobchain.task.attempts",
		metric.WithDescription("Chain task attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, t *task.Task, next Handler) error {
		start := time.Now()
		err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("queue", t.Queue),
			attribute.String("status", status),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		attempts.Add(ctx, 1, attrs)
		return err
	}
}
