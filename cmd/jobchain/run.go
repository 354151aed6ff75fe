package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"

	"github.com/risetechapps/jobchain/engine"
	"github.com/risetechapps/jobchain/event"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
	"github.com/risetechapps/jobchain/txn/buntx"
)

type runFlags struct {
	backendFlags
	event       string
	args        []string
	metricsAddr string
	timeout     time.Duration
}

func registerRunCommand(root *cobra.Command, g *globals) {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish an event and run the chains listening to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChains(cmd.Context(), cmd.OutOrStdout(), g, f)
		},
	}
	cmd.Flags().StringVarP(&f.event, "event", "e", "", "Event to publish")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "Event payload entry as key=value (repeatable)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.backendFlags.register(cmd.Flags())
	cmd.Flags().DurationVar(&f.timeout, "timeout", time.Minute, "Maximum time to wait for the chains")
	_ = cmd.MarkFlagRequired("event")
	root.AddCommand(cmd)
}

// payload turns repeated key=value flags into the single map argument the
// chains receive.
func payload(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --arg %q: want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

// enqueued records the tasks submitted during a run.
type enqueued struct {
	mu  sync.Mutex
	ids []id.TaskID
}

func (*enqueued) Name() string { return "cli-enqueued" }

func (e *enqueued) OnTaskEnqueued(_ context.Context, t *task.Task) error {
	e.mu.Lock()
	e.ids = append(e.ids, t.ID)
	e.mu.Unlock()
	return nil
}

func (e *enqueued) list() []id.TaskID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.ids)
}

func runChains(ctx context.Context, out io.Writer, g *globals, f *runFlags) error {
	m, err := g.manifest()
	if err != nil {
		return err
	}
	args, err := payload(f.args)
	if err != nil {
		return err
	}

	rec := &enqueued{}
	opts := []engine.Option{engine.WithExtension(rec)}

	var srv *http.Server
	if f.metricsAddr != "" {
		provider, metricsHandler, err := prometheusProvider()
		if err != nil {
			return err
		}
		defer func() { _ = provider.Shutdown(context.Background()) }()
		opts = append(opts, engine.WithMeterProvider(provider))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		srv = &http.Server{Addr: f.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	rt, err := newRuntime(ctx, g, m, &f.backendFlags, opts)
	if err != nil {
		return err
	}
	defer rt.close()
	if rt.bus.Count(f.event) == 0 {
		return fmt.Errorf("no chain listens to %q", f.event)
	}

	grp, gctx := errgroup.WithContext(ctx)
	if srv != nil {
		grp.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	grp.Go(func() error {
		if srv != nil {
			defer srv.Shutdown(context.Background())
		}
		return execute(gctx, rt, f, args)
	})
	if err := grp.Wait(); err != nil {
		return err
	}
	return printResults(ctx, out, rt.eng, rec.list())
}

// prometheusProvider returns a meter provider backed by a private
// Prometheus registry and the handler that serves it.
func prometheusProvider() (*sdkmetric.MeterProvider, http.Handler, error) {
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), h, nil
}

// publish publishes name inside a transaction on the runtime's database
// when one is open, so enqueued chains are submitted on commit.
func publish(ctx context.Context, rt *runtime, name string, args ...any) (*event.Event, error) {
	if rt.db == nil {
		return rt.bus.Publish(ctx, name, args...)
	}
	var evt *event.Event
	err := buntx.RunInTx(ctx, rt.db, rt.txm, nil, func(ctx context.Context, _ bun.Tx) error {
		var err error
		evt, err = rt.bus.Publish(ctx, name, args...)
		return err
	})
	return evt, err
}

func execute(ctx context.Context, rt *runtime, f *runFlags, args map[string]string) error {
	if err := rt.eng.Start(ctx); err != nil {
		return err
	}
	defer rt.eng.Stop(context.WithoutCancel(ctx))

	if _, err := publish(ctx, rt, f.event, args); err != nil {
		return fmt.Errorf("publish %s: %w", f.event, err)
	}

	wctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return rt.eng.Wait(wctx)
}

func printResults(ctx context.Context, out io.Writer, eng *engine.Engine, ids []id.TaskID) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tCHAIN\tQUEUE\tSTATE\tATTEMPTS\tERROR")
	failed := 0
	for _, taskID := range ids {
		t, err := eng.Task(ctx, taskID)
		if err != nil {
			return err
		}
		if t.State == task.StateFailed {
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", t.ID, t.Name, t.Queue, t.State, t.RetryCount+1, t.LastError)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d chains failed", failed, len(ids))
	}
	return nil
}
