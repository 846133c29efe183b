package main

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/andys/netcollector/config"
	"github.com/andys/netcollector/db"
	"github.com/andys/netcollector/device/apc"
	"github.com/andys/netcollector/device/routeros"
	"github.com/andys/netcollector/device/sim"
	"github.com/andys/netcollector/flow"
	"github.com/andys/netcollector/logger"
	"github.com/andys/netcollector/metrics"
	"github.com/andys/netcollector/queue"
	"github.com/andys/netcollector/worker"
)

const (
	simSeed  = 1
	simHosts = 8
)

func run(ctx context.Context, cfg *config.Config) error {
	base := logger.New(cfg.Log.Level, logger.ParseFormat(cfg.Log.Format))
	defer base.Sync()
	log := logger.For(base, logger.ComponentMain)

	log.Infow("Welcome to netcollector", "config", cfg.ConfigFile, "simulate", cfg.Simulate)
	defer log.Infow("main done")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	q := queue.New(cfg.Queue.Size)
	m.WatchQueue(q.Len)

	workers, persister, err := buildWorkers(cfg, base, q, m)
	if err != nil {
		return err
	}
	workers = append(workers, persister)

	srv := metrics.NewServer(cfg.Metrics.Addr, reg, logger.For(base, logger.ComponentMetrics))
	for _, w := range workers {
		srv.AddWorkerCheck(w.Name(), w.Alive)
	}
	srv.AddReadinessCheck("store", storeReady(persister))
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	go func() {
		if err := srv.Serve(serveCtx); err != nil {
			log.Errorw("Metrics server failed", "error", err)
		}
	}()

	supervisor := worker.NewSupervisor(workers, m, logger.For(base, logger.ComponentSupervisor),
		worker.WithCheckInterval(cfg.Supervisor.CheckInterval),
		worker.WithJoinTimeout(cfg.Supervisor.JoinTimeout),
	)
	if err := supervisor.Run(ctx); err != nil {
		log.Errorw("Shutting down after worker failure", "error", err)
		return err
	}
	return nil
}

// workerOptions gives every worker its own cooldown policy
func workerOptions(cfg *config.Config) []worker.Option {
	return []worker.Option{
		worker.WithErrorCeiling(cfg.Worker.ErrorCeiling),
		worker.WithCooldown(backoff.NewConstantBackOff(cfg.Worker.Cooldown)),
		worker.WithPollTick(cfg.Worker.PollTick),
		worker.WithIdleSleep(cfg.Worker.IdleSleep),
	}
}

// buildWorkers returns the pollers of the enabled devices and the persister
func buildWorkers(cfg *config.Config, base *zap.Logger, q *queue.Queue, m *metrics.Metrics) ([]worker.Worker, *worker.Persister, error) {
	lan, err := cfg.Router.LAN()
	if err != nil {
		return nil, nil, err
	}
	routerExtractors := routeros.Extractors(routeros.Options{LAN: lan, Interfaces: cfg.Router.Interfaces})
	upsExtractors := apc.Extractors(logger.For(base, apc.Source))

	catalog := flow.Catalog{}
	if cfg.Router.IsEnabled() {
		catalog = catalog.Merge(worker.Catalog(routeros.Source, routerExtractors))
	}
	if cfg.UPS.IsEnabled() {
		catalog = catalog.Merge(worker.Catalog(apc.Source, upsExtractors))
	}

	registry := flow.Load(cfg.Flows, catalog, logger.For(base, logger.ComponentRegistry))
	if registry.Len() == 0 {
		return nil, nil, fmt.Errorf("no usable flows in %s", cfg.ConfigFile)
	}

	var workers []worker.Worker
	wlog := base.Sugar()

	if defs := registry.ForSource(routeros.Source); len(defs) > 0 {
		p, err := worker.NewPoller(routeros.Source, routerDialer(cfg), defs, routerExtractors, q, m, wlog, workerOptions(cfg)...)
		if err != nil {
			return nil, nil, err
		}
		workers = append(workers, p)
	}
	if defs := registry.ForSource(apc.Source); len(defs) > 0 {
		p, err := worker.NewPoller(apc.Source, upsDialer(cfg), defs, upsExtractors, q, m, wlog, workerOptions(cfg)...)
		if err != nil {
			return nil, nil, err
		}
		workers = append(workers, p)
	}

	dialect, err := db.TypeFromURL(cfg.Store.URL)
	if err != nil {
		return nil, nil, err
	}
	persister, err := worker.NewPersister(storeOpener(cfg, base), dialect, registry, q, m, wlog, workerOptions(cfg)...)
	if err != nil {
		return nil, nil, err
	}
	return workers, persister, nil
}

// storeReady fails while the persister has no store session
func storeReady(p interface{ State() string }) func() error {
	return func() error {
		if state := p.State(); state != worker.StateConnected {
			return fmt.Errorf("store is %s", state)
		}
		return nil
	}
}

func routerDialer(cfg *config.Config) func(context.Context) (routeros.API, error) {
	if cfg.Simulate {
		return func(context.Context) (routeros.API, error) {
			return sim.NewRouter(simSeed, simHosts), nil
		}
	}
	rc := cfg.Router
	return func(ctx context.Context) (routeros.API, error) {
		client, err := routeros.Dial(ctx, rc.Address, rc.Username, rc.Password, rc.DialTimeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func upsDialer(cfg *config.Config) func(context.Context) (apc.Terminal, error) {
	if cfg.Simulate {
		return func(context.Context) (apc.Terminal, error) {
			return sim.NewUPS(simSeed), nil
		}
	}
	uc := cfg.UPS
	return func(ctx context.Context) (apc.Terminal, error) {
		console, err := apc.Dial(ctx, uc.Address, uc.Username, uc.Password, uc.DialTimeout)
		if err != nil {
			return nil, err
		}
		return console, nil
	}
}

func storeOpener(cfg *config.Config, base *zap.Logger) worker.Opener {
	var opts []db.Option
	if cfg.Verbose {
		dbLog := logger.For(base, "db")
		opts = append(opts, db.WithQueryLog(func(query string) {
			dbLog.Infow("Executing query", "query", query)
		}))
	}
	url := cfg.Store.URL
	return func(ctx context.Context) (worker.Store, error) {
		conn, err := db.Connect(ctx, url, opts...)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
