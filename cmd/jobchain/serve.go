package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/risetechapps/jobchain/api"
	"github.com/risetechapps/jobchain/cron"
	"github.com/risetechapps/jobchain/engine"
	"github.com/risetechapps/jobchain/event"
	"github.com/risetechapps/jobchain/stream"
)

type serveFlags struct {
	backendFlags
	addr         string
	otlpEndpoint string
	tick         time.Duration
}

func registerServeCommand(root *cobra.Command, g *globals) {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workers, the cron schedules and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g, f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", ":8080", "HTTP listen address for the API and /metrics")
	cmd.Flags().StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "Export traces over OTLP/HTTP to this host:port")
	cmd.Flags().DurationVar(&f.tick, "cron-tick", time.Second, "How often cron schedules are checked")
	f.backendFlags.register(cmd.Flags())
	root.AddCommand(cmd)
}

func serve(ctx context.Context, g *globals, f *serveFlags) error {
	m, err := g.manifest()
	if err != nil {
		return err
	}

	meters, metricsHandler, err := prometheusProvider()
	if err != nil {
		return err
	}
	defer func() { _ = meters.Shutdown(context.WithoutCancel(ctx)) }()
	opts := []engine.Option{engine.WithMeterProvider(meters)}

	var tracer *sdktrace.TracerProvider
	if f.otlpEndpoint != "" {
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(f.otlpEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("otlp exporter: %w", err)
		}
		tracer = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() { _ = tracer.Shutdown(context.WithoutCancel(ctx)) }()
		opts = append(opts, engine.WithTracerProvider(tracer))
	}

	broker := stream.NewBroker(stream.WithLogger(g.logger))
	opts = append(opts, engine.WithExtension(broker))

	rt, err := newRuntime(ctx, g, m, &f.backendFlags, opts, broker.Reporter())
	if err != nil {
		return err
	}
	defer rt.close()

	sched := cron.NewScheduler(txBus{rt}, cron.WithLogger(g.logger), cron.WithTickInterval(f.tick))
	for _, d := range rt.declared {
		if d.Def.Schedule == "" {
			continue
		}
		if _, err := sched.Register(d.Def.Name, d.Def.Schedule, d.Def.On); err != nil {
			return err
		}
	}

	apiOpts := []api.Option{
		api.WithScheduler(sched),
		api.WithStream(broker),
		api.WithLogger(g.logger),
	}
	if tracer != nil {
		apiOpts = append(apiOpts, api.WithTracerProvider(tracer))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/", api.New(rt.eng, txBus{rt}, apiOpts...).Handler())

	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", f.addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	if err := rt.eng.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}
	if err := sched.Start(ctx); err != nil {
		_ = ln.Close()
		_ = rt.eng.Stop(context.WithoutCancel(ctx))
		return err
	}
	g.logger.Info("jobchain serving",
		slog.String("addr", ln.Addr().String()),
		slog.Int("chains", len(rt.declared)),
		slog.Int("crons", len(sched.Entries())),
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(sctx),
			sched.Stop(sctx),
			rt.eng.Stop(sctx),
		)
	})
	return grp.Wait()
}

// txBus publishes scheduled and API events the way run does, inside a
// transaction when a database is open.
type txBus struct{ rt *runtime }

func (b txBus) Publish(ctx context.Context, name string, args ...any) (*event.Event, error) {
	return publish(ctx, b.rt, name, args...)
}

func (b txBus) Count(name string) int { return b.rt.bus.Count(name) }
