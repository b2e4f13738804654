// Package pipeline loads feed files into the dataset store through a small worker pool,
// recording every attempt in the ingestion history.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/files"
	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

type IngestionJob struct {
	Kind    types.DatasetKind
	Path    string
	Attempt int
	Trigger string
}

type IngestionResult struct {
	Job    IngestionJob
	Result *ingest.Result
	Error  error
}

// Summary describes one sync run.
type Summary struct {
	Loaded  []dataset.Info    `json:"loaded"`
	Skipped []string          `json:"skipped,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
}

type fileState struct {
	path    string
	size    int64
	modTime time.Time
}

type Orchestrator struct {
	storage   *store.Storage
	datasets  *dataset.Store
	appLogger *logger.Logger

	// Settings
	maxConcurrency int
	retryLimit     int

	// Internal State
	loaded map[types.DatasetKind]fileState
	mu     sync.Mutex
	runMu  sync.Mutex
}

func NewOrchestrator(storage *store.Storage, datasets *dataset.Store, appLogger *logger.Logger, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		storage:        storage,
		datasets:       datasets,
		appLogger:      appLogger,
		maxConcurrency: concurrency,
		retryLimit:     3,
		loaded:         make(map[types.DatasetKind]fileState),
	}
}

// shouldSkip reports failures that are final and not worth a retry.
func (o *Orchestrator) shouldSkip(err error) bool {
	return ingest.IsValidation(err) || errors.Is(err, context.Canceled)
}

func statFile(path string) (fileState, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileState{}, err
	}
	return fileState{path: path, size: fi.Size(), modTime: fi.ModTime()}, nil
}

// ShouldProcess is false when the file was already loaded successfully and has not
// changed since.
func (o *Orchestrator) ShouldProcess(kind types.DatasetKind, path string) bool {
	st, err := statFile(path)
	if err != nil {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	prev, ok := o.loaded[kind]
	return !ok || prev != st
}

// SyncDir discovers the feed files in dir and loads the ones that changed.
func (o *Orchestrator) SyncDir(ctx context.Context, dir, trigger string) (Summary, error) {
	feeds, err := files.DiscoverFeeds(dir)
	if err != nil {
		return Summary{}, err
	}
	return o.Run(ctx, feeds, trigger), nil
}

// Run loads the given feeds concurrently and waits for every job, retries included.
// Runs never overlap.
func (o *Orchestrator) Run(ctx context.Context, feeds map[types.DatasetKind]string, trigger string) Summary {
	const component = "Orchestrator"
	o.runMu.Lock()
	defer o.runMu.Unlock()

	summary := Summary{Failed: make(map[string]string)}
	var queue []IngestionJob
	for _, kind := range types.AllKinds {
		path, ok := feeds[kind]
		if !ok {
			continue
		}
		if !o.ShouldProcess(kind, path) {
			o.appLogger.Info(component, "Feed unchanged, skipping: dataset=%s file=%s", kind, filepath.Base(path))
			summary.Skipped = append(summary.Skipped, kind.String())
			continue
		}
		queue = append(queue, IngestionJob{Kind: kind, Path: path, Attempt: 1, Trigger: trigger})
	}
	if len(queue) == 0 {
		return summary
	}
	o.appLogger.Info(component, "Starting sync: jobs=%d concurrency=%d trigger=%s", len(queue), o.maxConcurrency, trigger)

	jobChan := make(chan IngestionJob, len(queue))
	resultChan := make(chan IngestionResult, len(queue))
	var pending, workers sync.WaitGroup

	// 1. Start Workers
	for i := 0; i < o.maxConcurrency; i++ {
		workers.Add(1)
		go o.worker(ctx, &workers, jobChan, resultChan)
	}

	// 2. Start Result Listener (The Feedback Loop)
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.listenToResults(&pending, jobChan, resultChan, &summary)
	}()

	pending.Add(len(queue))
	for _, job := range queue {
		jobChan <- job
	}
	pending.Wait()
	close(jobChan)
	workers.Wait()
	close(resultChan)
	<-done

	return summary
}

func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan IngestionJob, results chan<- IngestionResult) {
	defer wg.Done()
	for job := range jobs {
		res, err := o.processFile(ctx, job)
		results <- IngestionResult{Job: job, Result: res, Error: err}
	}
}

func (o *Orchestrator) processFile(ctx context.Context, job IngestionJob) (*ingest.Result, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", job.Path, err)
	}
	defer f.Close()
	return o.ingestTracked(ctx, job.Kind, filepath.Base(job.Path), f, job.Trigger)
}

// ingestTracked decodes and ingests one feed, keeping the ingestion history current.
func (o *Orchestrator) ingestTracked(ctx context.Context, kind types.DatasetKind, name string, r io.Reader, trigger string) (*ingest.Result, error) {
	const component = "Worker"

	history := &store.IngestionHistory{
		DatasetKind: kind.String(),
		SourceFile:  name,
		TriggerType: trigger,
		Status:      store.StatusInProgress,
	}
	if err := o.storage.IngestionHistory.InsertIngestionHistory(ctx, history); err != nil {
		o.appLogger.Error(component, "Failed to create IN_PROGRESS record: dataset=%s err=%v", kind, err)
		return nil, err
	}

	var res *ingest.Result
	df, err := files.Decode(name, r)
	if err == nil {
		res, err = ingest.Ingest(ctx, kind, df, o.appLogger)
	}

	history.Status = store.StatusSuccess
	if err != nil {
		history.Status, history.Message = store.StatusFailure, err.Error()
		if errors.Is(err, ingest.ErrEmptyDataset) {
			history.Status = store.StatusSkipped
		}
	} else {
		rep := res.Report
		history.BatchID = rep.BatchID
		history.RowsRead, history.RowsKept, history.Warnings = rep.RowsRead, rep.RowsKept, rep.IssueCount()
		history.Message = fmt.Sprintf("batch=%s read=%d kept=%d blankIds=%d badDates=%d badNumbers=%d",
			rep.BatchID, rep.RowsRead, rep.RowsKept, rep.BlankIDs, rep.BadDates, rep.BadNumbers)
	}
	if uerr := o.storage.IngestionHistory.UpdateIngestionResult(ctx, history); uerr != nil {
		o.appLogger.Error(component, "Failed to update final status: id=%d status=%s err=%v", history.ID, history.Status, uerr)
	}
	return res, err
}

// IngestReader loads a single uploaded feed and publishes it on success.
func (o *Orchestrator) IngestReader(ctx context.Context, kind types.DatasetKind, name string, r io.Reader, trigger string) (dataset.Info, *ingest.Report, error) {
	res, err := o.ingestTracked(ctx, kind, name, r, trigger)
	if err != nil {
		return dataset.Info{}, nil, err
	}
	info := o.datasets.Replace(res)
	o.mu.Lock()
	delete(o.loaded, kind)
	o.mu.Unlock()
	return info, &res.Report, nil
}

func (o *Orchestrator) listenToResults(pending *sync.WaitGroup, jobs chan<- IngestionJob, results <-chan IngestionResult, summary *Summary) {
	const component = "Orchestrator-Feedback"
	for result := range results {
		job := result.Job

		if result.Error != nil {
			if job.Attempt < o.retryLimit && !o.shouldSkip(result.Error) {
				o.appLogger.Warn(component, "Job failed, queuing for retry: dataset=%s attempt=%d err=%v", job.Kind, job.Attempt, result.Error)
				job.Attempt++
				jobs <- job
				continue
			}
			if o.shouldSkip(result.Error) {
				o.appLogger.Warn(component, "Job not retried: dataset=%s err=%v", job.Kind, result.Error)
			} else {
				o.appLogger.Error(component, "Job failed after max retries: dataset=%s err=%v", job.Kind, result.Error)
			}
			summary.Failed[job.Kind.String()] = result.Error.Error()
			pending.Done()
			continue
		}

		info := o.datasets.Replace(result.Result)
		summary.Loaded = append(summary.Loaded, info)
		if st, err := statFile(job.Path); err == nil {
			o.mu.Lock()
			o.loaded[job.Kind] = st
			o.mu.Unlock()
		}
		o.appLogger.Info(component, "Job completed successfully: dataset=%s rows=%d stamp=%s", job.Kind, info.Rows, info.Stamp)
		pending.Done()
	}
}

// Publish installs an already ingested result, such as one restored from a snapshot,
// and records it in the ingestion history.
func (o *Orchestrator) Publish(ctx context.Context, res *ingest.Result, source, trigger string) dataset.Info {
	const component = "Orchestrator"
	history := &store.IngestionHistory{
		BatchID:     res.Report.BatchID,
		DatasetKind: res.Kind.String(),
		SourceFile:  source,
		TriggerType: trigger,
		Status:      store.StatusSuccess,
		RowsRead:    res.Report.RowsRead,
		RowsKept:    res.Report.RowsKept,
		Warnings:    res.Report.IssueCount(),
	}
	if err := o.storage.IngestionHistory.InsertIngestionHistory(ctx, history); err != nil {
		o.appLogger.Error(component, "Failed to record published dataset: dataset=%s err=%v", res.Kind, err)
	}
	info := o.datasets.Replace(res)
	o.mu.Lock()
	delete(o.loaded, res.Kind)
	o.mu.Unlock()
	return info
}
