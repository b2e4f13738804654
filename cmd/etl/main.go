package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/engine"
	"github.com/alanchaparro/bi-sub000/internal/cartera/persist"
	"github.com/alanchaparro/bi-sub000/internal/cartera/pipeline"
	"github.com/alanchaparro/bi-sub000/internal/config"
	"github.com/alanchaparro/bi-sub000/internal/db"
	"github.com/alanchaparro/bi-sub000/internal/env"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

func createDirIfNotExist(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		err := os.MkdirAll(dirPath, os.ModePerm)
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	const component = "Main"
	monitor := NewMonitor()
	var appLogger = &logger.Logger{MinLevel: logger.LevelInfo}

	// Configure log output format
	log.SetFlags(0) // Remove default timestamp since we add our own

	if err := env.Load(); err != nil {
		appLogger.Fatal(component, "Failed to load .env: error=%v", err)
		return
	}
	cfg, err := config.Load(env.GetString("CARTERA_CONFIG", ""))
	if err != nil {
		appLogger.Fatal(component, "Failed to load config: error=%v", err)
		return
	}

	dirPtr := flag.String("dir", cfg.Sync.Dir, "Directory holding the cartera/cobranzas/contratos/gestores feed files")
	viewsPtr := flag.String("views", "all", "Comma-separated views to compute, or all")
	filtersPtr := flag.String("filters", "", "Filter selection as a query string, e.g. un=MED,ODO&tramo=4")
	framePtr := flag.Bool("frame", false, "Write presentation frames instead of raw reports")
	outPtr := flag.String("out", "output", "Output directory")
	savePtr := flag.Bool("save", false, "Save the loaded datasets to the snapshot store")
	triggerPtr := flag.String("trigger", store.TriggerTypeManual, "Trigger source: manual, scheduled")
	logLevelPtr := flag.String("loglevel", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	appLogger.SetLogLevel(logger.ParseLevel(*logLevelPtr))
	monitor.Start(400*time.Millisecond, appLogger)

	starting_time := time.Now()
	appLogger.Info(component, "Application starting: dir=%s views=%s filters=%q logLevel=%s", *dirPtr, *viewsPtr, *filtersPtr, *logLevelPtr)

	if *dirPtr == "" {
		appLogger.Fatal(component, "No feed directory given: use -dir or SYNC_DIR")
		return
	}
	sel, err := parseFilters(*filtersPtr)
	if err != nil {
		appLogger.Fatal(component, "Invalid filters: error=%v", err)
		return
	}
	if err := createDirIfNotExist(*outPtr); err != nil {
		appLogger.Fatal(component, "Failed to create output directory: error=%v", err)
		return
	}

	storage := store.NewMemoryStorage()
	if cfg.DB.Addr != "" {
		database, err := db.New(
			cfg.DB.Addr,
			cfg.DB.MaxOpenConns,
			cfg.DB.MaxIdleConns,
			cfg.DB.MaxIdleTime)
		if err != nil {
			appLogger.Fatal(component, "Database connection failed: error=%v", err)
			return
		}
		defer database.Close()
		storage = store.NewStorage(database)
		appLogger.Info(component, "Database connection pool established")
	}

	ctx := context.Background()
	datasets := dataset.NewStore()
	orchestrator := pipeline.NewOrchestrator(storage, datasets, appLogger, cfg.Sync.Concurrency)

	summary, err := orchestrator.SyncDir(ctx, *dirPtr, *triggerPtr)
	if err != nil {
		appLogger.Fatal(component, "Feed sync failed: error=%v", err)
		return
	}
	for kind, reason := range summary.Failed {
		appLogger.Warn(component, "Dataset not loaded: dataset=%s reason=%s", kind, reason)
	}
	if len(summary.Loaded) == 0 {
		appLogger.Fatal(component, "No dataset loaded from %s", *dirPtr)
		return
	}

	if *savePtr {
		outcome := persist.New(storage.Snapshots, cfg.Persist.MaxRows, appLogger).Save(ctx, datasets.Current())
		appLogger.Info(component, "Snapshots saved: saved=%v skipped=%d", outcome.Saved, len(outcome.Skipped))
	}

	e := engine.New(datasets, appLogger, engine.Options{Remotes: cfg.Remotes()})
	failed := computeViews(ctx, e, parseViews(*viewsPtr, e.Views()), sel, *framePtr, *outPtr, appLogger)

	stats := monitor.Stop()
	timeTaken := time.Since(starting_time)
	if failed > 0 {
		appLogger.Warn(component, "Application completed with errors: failedViews=%d duration=%.2f seconds peakMemoryMB=%d", failed, timeTaken.Seconds(), stats.PeakMemoryMB)
		os.Exit(1)
	}
	appLogger.Info(component, "Application completed successfully: duration=%.2f seconds peakGoroutines=%d peakMemoryMB=%d", timeTaken.Seconds(), stats.PeakGoroutines, stats.PeakMemoryMB)
}
