package main

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	audithook "github.com/risetechapps/jobchain/audit_hook"
	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/engine"
	"github.com/risetechapps/jobchain/event"
	"github.com/risetechapps/jobchain/internal/manifest"
	relayhook "github.com/risetechapps/jobchain/relay_hook"
	"github.com/risetechapps/jobchain/report"
	"github.com/risetechapps/jobchain/store"
	bunstore "github.com/risetechapps/jobchain/store/bun"
	"github.com/risetechapps/jobchain/store/memory"
	redisstore "github.com/risetechapps/jobchain/store/redis"
	"github.com/risetechapps/jobchain/txn"
)

// backendFlags select the task store and optional auditing.
type backendFlags struct {
	redisAddr   string
	databaseURL string
	audit       bool
}

func (b *backendFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&b.redisAddr, "redis-addr", "", "Redis address for the task store (default in-memory)")
	fs.StringVar(&b.databaseURL, "database-url", "", "Postgres URL for the task store; events are published inside a transaction on it")
	fs.BoolVar(&b.audit, "audit", false, "Log an audit event for every task transition and job failure")
}

// runtime is an engine with the manifest's chains subscribed on a bus.
type runtime struct {
	eng      *engine.Engine
	bus      *event.Bus
	declared []manifest.Declared
	db       *bun.DB
	txm      *txn.Manager
	closers  []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newRuntime opens the store chosen by b, builds the engine with extra
// options and subscribes every manifest chain to its event. Chain errors
// go to reporters. Queues named by the manifest are added to the worker's
// queue list. Chains listening on a lifecycle event (jobchain.task.*) are
// fed by a relay hook.
func newRuntime(ctx context.Context, g *globals, m *manifest.Manifest, b *backendFlags, extra []engine.Option, reporters ...report.Reporter) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.close()
		}
	}()

	cfg := g.cfg
	cfg.Queues = slices.Clone(g.cfg.Queues)
	for _, def := range m.Chains {
		if def.Queue != "" && !slices.Contains(cfg.Queues, def.Queue) {
			cfg.Queues = append(cfg.Queues, def.Queue)
		}
	}

	if b.databaseURL != "" {
		rt.db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(b.databaseURL))), pgdialect.New())
		rt.closers = append(rt.closers, func() { _ = rt.db.Close() })
		rt.txm = txn.NewManager(txn.WithLogger(g.logger))
	}

	st, closeStore, err := openStore(ctx, b.redisAddr, rt.db, g)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	opts := []engine.Option{
		engine.WithStore(st),
		engine.WithLogger(g.logger),
		engine.WithConfig(cfg),
	}
	if rt.txm != nil {
		opts = append(opts, engine.WithTracker(rt.txm))
	}
	if b.audit {
		audit := audithook.New(audithook.LogRecorder(g.logger), audithook.WithLogger(g.logger))
		opts = append(opts, engine.WithExtension(audit))
		reporters = append(reporters, audit.Reporter())
	}
	rt.bus = event.NewBus(event.WithLogger(g.logger))
	if relayed := relayedEvents(m); len(relayed) > 0 {
		opts = append(opts, engine.WithExtension(relayhook.New(rt.bus, relayhook.WithEvents(relayed...))))
	}
	var chainOpts []chain.Option
	if len(reporters) > 0 {
		chainOpts = append(chainOpts, chain.WithReporter(report.Multi(reporters...)))
	}

	rt.eng, err = engine.New(append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	rt.declared, err = manifest.Build(m, rt.eng.Registry(), rt.eng.Chain, g.logger, chainOpts...)
	if err != nil {
		return nil, err
	}
	for _, d := range rt.declared {
		rt.bus.Subscribe(d.Def.On, d.Chain.ToListener())
	}
	ok = true
	return rt, nil
}

// relayedEvents returns the lifecycle events some manifest chain listens on.
func relayedEvents(m *manifest.Manifest) []string {
	var out []string
	for _, name := range relayhook.AllEvents() {
		for _, def := range m.Chains {
			if def.On == name {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// openStore picks the task store: Redis when redisAddr is set, otherwise
// Postgres when a database is open, otherwise memory. The returned func
// releases what openStore opened.
func openStore(ctx context.Context, redisAddr string, db *bun.DB, g *globals) (store.Store, func(), error) {
	switch {
	case redisAddr != "":
		client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
		s := redisstore.New(client, redisstore.WithLogger(g.logger))
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", redisAddr, err)
		}
		return s, func() { _ = client.Close() }, nil
	case db != nil:
		s := bunstore.New(db, bunstore.WithLogger(g.logger))
		if err := s.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return memory.New(), func() {}, nil
	}
}
