// Package api serves the jobchain admin and trigger HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/trace"

	"github.com/risetechapps/jobchain/cron"
	"github.com/risetechapps/jobchain/engine"
	"github.com/risetechapps/jobchain/event"
	"github.com/risetechapps/jobchain/stream"
)

// Bus publishes trigger events. *event.Bus satisfies it.
type Bus interface {
	Publish(ctx context.Context, name string, args ...any) (*event.Event, error)
	Count(name string) int
}

// API wires the echo handlers for an engine, an event bus and an
// optional cron scheduler.
type API struct {
	eng    *engine.Engine
	bus    Bus
	sched  *cron.Scheduler
	stream *stream.Broker
	logger *slog.Logger
	tp     trace.TracerProvider
	name   string
}

// Option configures an API.
type Option func(*API)

// WithScheduler exposes the cron routes for s.
func WithScheduler(s *cron.Scheduler) Option {
	return func(a *API) { a.sched = s }
}

// WithStream serves b as server-sent events on GET /v1/stream.
func WithStream(b *stream.Broker) Option {
	return func(a *API) { a.stream = b }
}

// WithLogger sets the logger for request errors.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithTracerProvider traces every request except health checks.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *API) { a.tp = tp }
}

// WithServiceName sets the server name reported on request spans.
func WithServiceName(name string) Option {
	return func(a *API) { a.name = name }
}

// New creates an API over eng that publishes triggers on bus.
func New(eng *engine.Engine, bus Bus, opts ...Option) *API {
	a := &API{
		eng:    eng,
		bus:    bus,
		logger: slog.Default(),
		name:   "jobchain",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns an echo instance with every route registered.
func (a *API) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(a.logger)
	if a.tp != nil {
		e.Use(otelecho.Middleware(a.name,
			otelecho.WithTracerProvider(a.tp),
			otelecho.WithSkipper(func(c echo.Context) bool {
				p := c.Request().URL.Path
				return p == "/healthz" || p == "/v1/stream"
			}),
		))
	}
	a.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers all jobchain routes on e.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", a.health)

	v1 := e.Group("/v1")
	{
		v1.POST("/events/:name", a.publishEvent)

		v1.GET("/tasks", a.listTasks)
		v1.GET("/tasks/counts", a.taskCounts)
		v1.GET("/tasks/:taskId", a.getTask)
		v1.POST("/tasks/:taskId/cancel", a.cancelTask)

		v1.GET("/dlq", a.listDLQ)
		v1.GET("/dlq/count", a.dlqCount)
		v1.POST("/dlq/purge", a.purgeDLQ)
		v1.GET("/dlq/:entryId", a.getDLQ)
		v1.POST("/dlq/:entryId/replay", a.replayDLQ)

		v1.GET("/stats", a.stats)
	}

	if a.sched != nil {
		crons := e.Group("/v1/crons")
		crons.GET("", a.listCrons)
		crons.GET("/:name", a.getCron)
		crons.POST("/:name/enable", a.enableCron)
		crons.POST("/:name/disable", a.disableCron)
	}

	if a.stream != nil {
		e.GET("/v1/stream", a.streamEvents)
	}
}

func (a *API) health(c echo.Context) error {
	if err := a.eng.Store().Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable: "+err.Error())
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Running: a.eng.Running()})
}
