// Package jobs runs the feed directory sync on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanchaparro/bi-sub000/internal/cartera/pipeline"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

// Syncer is the part of the orchestrator the scheduler drives.
type Syncer interface {
	SyncDir(ctx context.Context, dir, trigger string) (pipeline.Summary, error)
}

type Config struct {
	Dir      string
	Schedule string
	TimeZone string
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
}

type Scheduler struct {
	cron      *cron.Cron
	syncer    Syncer
	cfg       Config
	appLogger *logger.Logger
}

func NewScheduler(cfg Config, syncer Syncer, appLogger *logger.Logger) (*Scheduler, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sync directory is required")
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone for feed sync: %w", err)
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		syncer:    syncer,
		cfg:       cfg,
		appLogger: appLogger,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("failed to schedule feed sync: %w", err)
	}
	return s, nil
}

// RunOnce performs one scheduled sync.
func (s *Scheduler) RunOnce() {
	const component = "Scheduler"
	ctx := context.Background()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	summary, err := s.syncer.SyncDir(ctx, s.cfg.Dir, store.TriggerTypeScheduled)
	if err != nil {
		s.appLogger.Error(component, "Feed sync failed: dir=%s err=%v", s.cfg.Dir, err)
		return
	}
	if len(summary.Failed) > 0 {
		s.appLogger.Warn(component, "Feed sync completed with errors: loaded=%d skipped=%d failed=%v", len(summary.Loaded), len(summary.Skipped), summary.Failed)
		return
	}
	s.appLogger.Info(component, "Feed sync completed: loaded=%d skipped=%d elapsed=%s", len(summary.Loaded), len(summary.Skipped), time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.appLogger.Info("Scheduler", "Feed sync scheduled: dir=%s schedule=%q tz=%s", s.cfg.Dir, s.cfg.Schedule, s.cfg.TimeZone)
}

// Stop prevents new runs and waits for a running one to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
