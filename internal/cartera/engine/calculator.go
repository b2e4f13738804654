// Package engine dispatches view computations to local or remote calculators and
// memoizes their results by filter signature.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanchaparro/bi-sub000/internal/cartera/cache"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/metrics"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/logger"
)

var (
	ErrUnknownView = errors.New("unknown view")
	ErrStaleResult = errors.New("stale result discarded")
)

// Calculator computes one view for a filter selection.
type Calculator[T any] interface {
	Name() string
	Compute(ctx context.Context, sel filter.Selection, debug bool) (T, error)
}

// Source hands calculators the current datasets with their indices.
type Source interface {
	Snapshot(ctx context.Context) (metrics.Input, error)
}

// MetricFunc is a pure calculator body.
type MetricFunc[T any] func(ctx context.Context, in metrics.Input, f filter.Compiled) (T, error)

// Local runs a MetricFunc in process. Its result is memoized under the filter
// signature of the view, so repeating a request with the same filters over unchanged
// datasets returns the stored result. Callers must not modify returned values.
type Local[T any] struct {
	name      string
	deps      []types.DatasetKind
	fn        MetricFunc[T]
	source    Source
	memo      cache.Memo[T]
	appLogger *logger.Logger
}

func NewLocal[T any](name string, deps []types.DatasetKind, fn MetricFunc[T], source Source, appLogger *logger.Logger) *Local[T] {
	return &Local[T]{name: name, deps: deps, fn: fn, source: source, appLogger: appLogger}
}

func (l *Local[T]) Name() string { return l.name }

func (l *Local[T]) Compute(ctx context.Context, sel filter.Selection, debug bool) (T, error) {
	const component = "LocalCalculator"
	var zero T

	in, err := l.source.Snapshot(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to load datasets: %w", err)
	}
	sig, err := filter.Signature(l.name, sel, in.Set.Stamps(l.deps...))
	if err != nil {
		return zero, err
	}
	compiled, err := sel.Compile()
	if err != nil {
		return zero, err
	}

	// Callers joining this build share its result, so one of them going away
	// must not cancel it for the rest.
	buildCtx := context.WithoutCancel(ctx)
	start := time.Now()
	val, hit, err := l.memo.Get(sig, func() (T, error) {
		return l.fn(buildCtx, in, compiled)
	})
	if err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if debug {
		l.appLogger.Info(component, "Computed view: view=%s cacheHit=%t signature=%s elapsed=%s", l.name, hit, sig[:12], time.Since(start))
	} else {
		l.appLogger.Debug(component, "Computed view: view=%s cacheHit=%t elapsed=%s", l.name, hit, time.Since(start))
	}
	return val, nil
}

// Stats exposes the memo hit and miss counters.
func (l *Local[T]) Stats() (hits, misses int64) { return l.memo.Stats() }

type remoteRequest struct {
	View    string              `json:"view"`
	Filters map[string][]string `json:"filters"`
	Debug   bool                `json:"debug"`
}

// Remote posts the selection to an external calculator that answers with the same
// output shape as the local one. It sets no timeout of its own; cancellation comes
// from ctx.
type Remote[T any] struct {
	name   string
	url    string
	client *http.Client
}

func NewRemote[T any](name, url string, client *http.Client) *Remote[T] {
	if client == nil {
		client = &http.Client{}
	}
	return &Remote[T]{name: name, url: url, client: client}
}

func (r *Remote[T]) Name() string { return r.name }

func (r *Remote[T]) Compute(ctx context.Context, sel filter.Selection, debug bool) (T, error) {
	var zero T

	norm, err := sel.Normalize()
	if err != nil {
		return zero, err
	}
	body := remoteRequest{View: r.name, Filters: make(map[string][]string, len(norm)), Debug: debug}
	for d, v := range norm {
		body.Filters[string(d)] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("failed to encode remote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return zero, fmt.Errorf("failed to create remote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return zero, fmt.Errorf("remote calculator %s answered %s", r.name, resp.Status)
	}

	var out T
	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("remote calculator %s returned an unexpected shape: %w", r.name, err)
	}
	return out, nil
}
