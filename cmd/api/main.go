package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/engine"
	"github.com/alanchaparro/bi-sub000/internal/cartera/persist"
	"github.com/alanchaparro/bi-sub000/internal/cartera/pipeline"
	"github.com/alanchaparro/bi-sub000/internal/config"
	"github.com/alanchaparro/bi-sub000/internal/db"
	"github.com/alanchaparro/bi-sub000/internal/env"
	"github.com/alanchaparro/bi-sub000/internal/jobs"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

func main() {
	if err := env.Load(); err != nil {
		log.Panic(err)
	}
	cfg, err := config.Load(env.GetString("CARTERA_CONFIG", ""))
	if err != nil {
		log.Panic(err)
	}

	appLogger := logger.New(logger.ParseLevel(cfg.LogLevel))
	const component = "Main"

	storage := store.NewMemoryStorage()
	if cfg.Persist.Quota > 0 {
		storage.Snapshots = store.NewMemoryKV(cfg.Persist.Quota)
	}
	if cfg.DB.Addr != "" {
		conn, err := db.New(
			cfg.DB.Addr,
			cfg.DB.MaxOpenConns,
			cfg.DB.MaxIdleConns,
			cfg.DB.MaxIdleTime)
		if err != nil {
			log.Panic(err)
		}
		defer conn.Close()
		if err := store.Migrate(context.Background(), conn); err != nil {
			log.Panic(err)
		}
		storage = store.NewStorage(conn)
		appLogger.Info(component, "Database connection pool established")
	} else {
		appLogger.Warn(component, "DB_ADDR not set, snapshots and ingestion history kept in memory")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	datasets := dataset.NewStore()
	app := &application{
		config:       cfg,
		store:        storage,
		datasets:     datasets,
		engine:       engine.New(datasets, appLogger, engine.Options{Remotes: cfg.Remotes(), Registerer: registry}),
		orchestrator: pipeline.NewOrchestrator(storage, datasets, appLogger, cfg.Sync.Concurrency),
		persister:    persist.New(storage.Snapshots, cfg.Persist.MaxRows, appLogger),
		registry:     registry,
		appLogger:    appLogger,
	}

	if _, err := restoreDatasets(context.Background(), app.persister, app.orchestrator); err != nil {
		appLogger.Warn(component, "Startup restore failed: err=%v", err)
	}

	if cfg.Sync.Dir != "" && cfg.Sync.Schedule != "" {
		scheduler, err := jobs.NewScheduler(jobs.Config{
			Dir:      cfg.Sync.Dir,
			Schedule: cfg.Sync.Schedule,
			TimeZone: cfg.Sync.TimeZone,
		}, app.orchestrator, appLogger)
		if err != nil {
			log.Panic(err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	mux := app.mount()

	log.Fatal(app.run(mux))
}

// restoreDatasets publishes every saved snapshot.
func restoreDatasets(ctx context.Context, p *persist.Persister, o *pipeline.Orchestrator) ([]dataset.Info, error) {
	results, err := p.Restore(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]dataset.Info, 0, len(results))
	for _, res := range results {
		infos = append(infos, o.Publish(ctx, res, persist.Key(res.Kind), store.TriggerTypeRestore))
	}
	return infos, nil
}
