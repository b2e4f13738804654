package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alanchaparro/bi-sub000/internal/cartera/cache"
	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/index"
	"github.com/alanchaparro/bi-sub000/internal/cartera/metrics"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/logger"
)

const (
	ViewPerformance     = "rendimiento"
	ViewCohort          = "cosecha"
	ViewLTV             = "ltv"
	ViewFixedAgeLTV     = "ltv_edad"
	ViewTransitions     = "movimiento"
	ViewCompletedStatus = "culminados_estado"
	ViewCompletions     = "culminados"
	ViewAnnual          = "anual"
)

var (
	allFeeds      = []types.DatasetKind{types.Cartera, types.Cobranzas, types.Contratos, types.Gestores}
	snapshotFeeds = []types.DatasetKind{types.Cartera, types.Contratos, types.Gestores}
)

// View is a type-erased resolver, so callers can dispatch by name.
type View interface {
	Name() string
	Run(ctx context.Context, sel filter.Selection, debug bool) (any, error)
}

type view[T any] struct {
	*Resolver[T]
}

func (v view[T]) Run(ctx context.Context, sel filter.Selection, debug bool) (any, error) {
	return v.Compute(ctx, sel, debug)
}

type Options struct {
	// Remotes maps a view name to the URL of its remote calculator.
	Remotes map[string]string
	Client  *http.Client
	// Registerer receives the outcome counter. A private registry is used when nil.
	Registerer prometheus.Registerer
}

// Engine owns the index memos over the dataset store and one resolver per view.
type Engine struct {
	store     *dataset.Store
	appLogger *logger.Logger

	collections cache.Memo[*index.Collections]
	contracts   cache.Memo[*index.Contracts]
	assignments cache.Memo[*index.Assignments]
	timelines   cache.Memo[*index.Timelines]

	views map[string]View
}

func New(store *dataset.Store, appLogger *logger.Logger, opts Options) *Engine {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	outcomes := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "cartera_calculator_results_total",
		Help: "View computations by view and outcome (local, remote, fallback, stale, error).",
	}, []string{"view", "outcome"})

	e := &Engine{store: store, appLogger: appLogger, views: make(map[string]View)}
	register(e, opts, outcomes, ViewPerformance, allFeeds, metrics.Performance)
	register(e, opts, outcomes, ViewCohort, allFeeds, metrics.Cohorts)
	register(e, opts, outcomes, ViewLTV, allFeeds, metrics.CutoffLTV)
	register(e, opts, outcomes, ViewFixedAgeLTV, allFeeds, metrics.FixedAgeLTV)
	register(e, opts, outcomes, ViewTransitions, snapshotFeeds, metrics.Transitions)
	register(e, opts, outcomes, ViewCompletedStatus, snapshotFeeds, metrics.CompletedAtStatus)
	register(e, opts, outcomes, ViewCompletions, allFeeds, metrics.Completions)
	register(e, opts, outcomes, ViewAnnual, allFeeds, metrics.Annual)
	return e
}

func register[T any](e *Engine, opts Options, outcomes *prometheus.CounterVec, name string, deps []types.DatasetKind, fn MetricFunc[T]) {
	const component = "Engine"
	local := NewLocal(name, deps, fn, e, e.appLogger)

	var remote Calculator[T]
	if url := opts.Remotes[name]; url != "" {
		remote = NewRemote[T](name, url, opts.Client)
		e.appLogger.Info(component, "Remote calculator configured: view=%s url=%s", name, url)
	}
	e.views[name] = view[T]{NewResolver[T](local, remote, outcomes, e.appLogger)}
}

// Snapshot returns the current datasets with their indices, rebuilding an index only
// when the stamp of the dataset it covers changed.
func (e *Engine) Snapshot(ctx context.Context) (metrics.Input, error) {
	const component = "Engine"
	set := e.store.Current()
	in := metrics.Input{Set: set}
	var err error
	// indices are shared by every request, so they are built without the caller's cancellation
	ctx = context.WithoutCancel(ctx)

	in.Collections, _, err = e.collections.Get(string(set.Stamp(types.Cobranzas)), func() (*index.Collections, error) {
		c, err := index.BuildCollections(ctx, set.Collections)
		if err == nil {
			e.appLogger.Info(component, "Collections indexed: rows=%d channels=%v", c.Rows(), c.Channels())
		}
		return c, err
	})
	if err != nil {
		return metrics.Input{}, fmt.Errorf("failed to index collections: %w", err)
	}
	in.Contracts, _, err = e.contracts.Get(string(set.Stamp(types.Contratos)), func() (*index.Contracts, error) {
		return index.BuildContracts(ctx, set.Contracts)
	})
	if err != nil {
		return metrics.Input{}, fmt.Errorf("failed to index contracts: %w", err)
	}
	in.Assignments, _, err = e.assignments.Get(string(set.Stamp(types.Gestores)), func() (*index.Assignments, error) {
		return index.BuildAssignments(ctx, set.Assignments)
	})
	if err != nil {
		return metrics.Input{}, fmt.Errorf("failed to index assignments: %w", err)
	}
	in.Timelines, _, err = e.timelines.Get(string(set.Stamp(types.Cartera)), func() (*index.Timelines, error) {
		return index.BuildTimelines(ctx, set.Portfolio)
	})
	if err != nil {
		return metrics.Input{}, fmt.Errorf("failed to index portfolio timelines: %w", err)
	}
	return in, nil
}

// Compute runs a view by name.
func (e *Engine) Compute(ctx context.Context, name string, sel filter.Selection, debug bool) (any, error) {
	v, ok := e.views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownView, name)
	}
	return v.Run(ctx, sel, debug)
}

// Views lists the view names, sorted.
func (e *Engine) Views() []string {
	names := make([]string, 0, len(e.views))
	for n := range e.views {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IndexStats reports hits and misses of the collections index memo.
func (e *Engine) IndexStats() (hits, misses int64) {
	return e.collections.Stats()
}
