package jobs

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanchaparro/bi-sub000/internal/cartera/pipeline"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

type fakeSyncer struct {
	mu       sync.Mutex
	dirs     []string
	triggers []string
	err      error
}

func (f *fakeSyncer) SyncDir(_ context.Context, dir, trigger string) (pipeline.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dir)
	f.triggers = append(f.triggers, trigger)
	return pipeline.Summary{Failed: map[string]string{}}, f.err
}

func TestNewSchedulerValidates(t *testing.T) {
	l := logger.NewWithWriter(logger.LevelDebug, &bytes.Buffer{})

	_, err := NewScheduler(Config{Schedule: "@hourly"}, &fakeSyncer{}, l)
	assert.Error(t, err)

	_, err = NewScheduler(Config{Dir: "/tmp", Schedule: "not a schedule"}, &fakeSyncer{}, l)
	assert.Error(t, err)

	_, err = NewScheduler(Config{Dir: "/tmp", Schedule: "@hourly", TimeZone: "Nowhere/Land"}, &fakeSyncer{}, l)
	assert.Error(t, err)
}

func TestRunOnceUsesScheduledTrigger(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeSyncer{}
	s, err := NewScheduler(Config{Dir: "/feeds", Schedule: "@every 1h"}, f, logger.NewWithWriter(logger.LevelDebug, &buf))
	require.NoError(t, err)

	s.RunOnce()
	assert.Equal(t, []string{"/feeds"}, f.dirs)
	assert.Equal(t, []string{store.TriggerTypeScheduled}, f.triggers)
	assert.Contains(t, buf.String(), "Feed sync completed")

	f.err = errors.New("disk gone")
	s.RunOnce()
	assert.Contains(t, buf.String(), "Feed sync failed")
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(Config{Dir: "/feeds", Schedule: "@every 1h"}, &fakeSyncer{}, logger.NewWithWriter(logger.LevelDebug, &bytes.Buffer{}))
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
