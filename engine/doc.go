// Package engine runs atomic chains on a persistent task queue.
//
//	eng, err := engine.New(
//	    engine.WithStore(memory.New()),
//	    engine.WithLogger(logger),
//	    engine.WithQueueConfig(queue.Config{Name: "mail", MaxConcurrency: 2}),
//	)
//
//	c := eng.Chain([]job.Spec{job.Named("orders.Reserve"), job.Named("orders.Charge")}).
//	    ShouldEnqueue(true)
//	bus.Subscribe("order.placed", c.ToListener())
//
//	_ = eng.Start(ctx)
//	defer eng.Stop(ctx)
//
// Every submitted chain becomes a [task.Task] record in the store while
// the chain snapshot itself stays in this process. Workers claim records,
// run the snapshot through the middleware stack, retry with backoff and
// dead-letter chains that exhaust their retries.
//
// # Options
//
//   - [WithStore]: the task and DLQ store (required)
//   - [WithConfig]: concurrency, queues, polling, chain defaults
//   - [WithExtension]: lifecycle hooks
//   - [WithMiddleware]: extra per-attempt middleware
//   - [WithBackoff]: retry delays
//   - [WithQueueConfig]: per-queue rate and concurrency limits
//   - [WithRegistry], [WithTracker]: collaborators for chains built by [Engine.Chain]
//   - [WithTracerProvider], [WithMeterProvider]: OpenTelemetry providers
package engine
