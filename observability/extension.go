package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/task"
)

var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TaskEnqueued  = (*MetricsExtension)(nil)
	_ ext.TaskCompleted = (*MetricsExtension)(nil)
	_ ext.TaskFailed    = (*MetricsExtension)(nil)
	_ ext.TaskRetrying  = (*MetricsExtension)(nil)
	_ ext.TaskDLQ       = (*MetricsExtension)(nil)
)

// MetricsExtension counts task lifecycle events. Every counter carries a
// queue attribute.
type MetricsExtension struct {
	enqueued  metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	dlq       metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewMetricsExtension uses the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter("github.com/risetechapps/jobchain/observability"))
}

// NewMetricsExtensionWithMeter builds the instruments on meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{task}"))
		return c
	}
	latency, _ := meter.Float64Histogram("jobchain.task.latency",
		metric.WithDescription("Time from enqueue to successful completion"),
		metric.WithUnit("s"),
	)
	return &MetricsExtension{
		enqueued:  counter("jobchain.task.enqueued", "Chain tasks accepted by the engine"),
		completed: counter("jobchain.task.completed", "Chain tasks that finished without error"),
		failed:    counter("jobchain.task.failed", "Chain tasks that failed with no retries left"),
		retried:   counter("jobchain.task.retried", "Chain task retries scheduled"),
		dlq:       counter("jobchain.task.dlq", "Chain tasks moved to the dead letter queue"),
		latency:   latency,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func queueAttr(t *task.Task) metric.AddOption {
	return metric.WithAttributes(attribute.String("queue", t.Queue))
}

// OnTaskEnqueued implements ext.TaskEnqueued.
func (m *MetricsExtension) OnTaskEnqueued(ctx context.Context, t *task.Task) error {
	m.enqueued.Add(ctx, 1, queueAttr(t))
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, t *task.Task, _ time.Duration) error {
	m.completed.Add(ctx, 1, queueAttr(t))
	if !t.CreatedAt.IsZero() {
		m.latency.Record(ctx, time.Since(t.CreatedAt).Seconds(),
			metric.WithAttributes(attribute.String("queue", t.Queue)))
	}
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, t *task.Task, _ error) error {
	m.failed.Add(ctx, 1, queueAttr(t))
	return nil
}

// OnTaskRetrying implements ext.TaskRetrying.
func (m *MetricsExtension) OnTaskRetrying(ctx context.Context, t *task.Task, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, queueAttr(t))
	return nil
}

// OnTaskDLQ implements ext.TaskDLQ.
func (m *MetricsExtension) OnTaskDLQ(ctx context.Context, t *task.Task, _ error) error {
	m.dlq.Add(ctx, 1, queueAttr(t))
	return nil
}
