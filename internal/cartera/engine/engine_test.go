package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/metrics"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(logger.LevelError, &bytes.Buffer{})
}

func row(id, month string, tramo int, cuota float64) types.PortfolioRow {
	r := types.PortfolioRow{RawContractID: id, RawManagementDate: month, Tramo: tramo, CuotaAmount: cuota, RawSaleDate: "01/2025", BusinessUnit: "MED"}
	normalize.Portfolio(&r)
	return r
}

func seededStore(n int) *dataset.Store {
	st := dataset.NewStore()
	rows := make([]types.PortfolioRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, row("1", "03/2025", 2, 100000))
	}
	st.Replace(&ingest.Result{Kind: types.Cartera, Portfolio: rows})
	tx := []types.CollectionTransaction{
		{RawContractID: "1", Amount: 50000, RawTransactionDate: "02/2025"},
		{RawContractID: "1", Amount: 30000, RawTransactionDate: "03/2025"},
	}
	for i := range tx {
		normalize.Collection(&tx[i])
	}
	st.Replace(&ingest.Result{Kind: types.Cobranzas, Collections: tx})
	return st
}

func counterValue(t *testing.T, reg *prometheus.Registry, view, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "cartera_calculator_results_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["view"] == view && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestEngineMemoizesBySignature(t *testing.T) {
	st := seededStore(1)
	e := New(st, testLogger(), Options{})

	a, err := e.Compute(context.Background(), ViewLTV, filter.Selection{}, false)
	require.NoError(t, err)
	b, err := e.Compute(context.Background(), ViewLTV, filter.Selection{}, false)
	require.NoError(t, err)
	assert.Same(t, a.(*metrics.LTVReport), b.(*metrics.LTVReport))
	assert.InDelta(t, 0.8, a.(*metrics.LTVReport).Summary.LTV, 1e-9)

	// a larger dataset changes the stamp and forces a recompute
	grown := seededStore(2)
	st.Replace(&ingest.Result{Kind: types.Cartera, Portfolio: grown.Current().Portfolio})
	c, err := e.Compute(context.Background(), ViewLTV, filter.Selection{}, false)
	require.NoError(t, err)
	assert.NotSame(t, a.(*metrics.LTVReport), c.(*metrics.LTVReport))
}

func TestIndexRebuiltOnlyWhenStampChanges(t *testing.T) {
	st := seededStore(1)
	e := New(st, testLogger(), Options{})

	_, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = e.Snapshot(context.Background())
	require.NoError(t, err)
	hits, misses := e.IndexStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestUnknownView(t *testing.T) {
	e := New(dataset.NewStore(), testLogger(), Options{})
	_, err := e.Compute(context.Background(), "nope", filter.Selection{}, false)
	assert.ErrorIs(t, err, ErrUnknownView)
	assert.Len(t, e.Views(), 8)
}

func TestRemoteSuccess(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(metrics.TransitionReport{Total: metrics.TransitionCount{Transitions: 42}})
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	e := New(seededStore(1), testLogger(), Options{Remotes: map[string]string{ViewTransitions: srv.URL}, Registerer: reg})

	out, err := e.Compute(context.Background(), ViewTransitions, filter.Selection{}.Add(filter.BusinessUnit, "med"), true)
	require.NoError(t, err)
	assert.Equal(t, 42, out.(*metrics.TransitionReport).Total.Transitions)
	assert.Equal(t, []string{"MED"}, got.Filters["un"])
	assert.True(t, got.Debug)
	assert.Equal(t, 1.0, counterValue(t, reg, ViewTransitions, OutcomeRemote))
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	e := New(seededStore(1), testLogger(), Options{Remotes: map[string]string{ViewLTV: srv.URL}, Registerer: reg})

	out, err := e.Compute(context.Background(), ViewLTV, filter.Selection{}, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, out.(*metrics.LTVReport).Summary.LTV, 1e-9)
	assert.Equal(t, 1.0, counterValue(t, reg, ViewLTV, OutcomeFallback))
}

func TestRemoteSchemaMismatchFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	e := New(seededStore(1), testLogger(), Options{Remotes: map[string]string{ViewAnnual: srv.URL}, Registerer: reg})
	_, err := e.Compute(context.Background(), ViewAnnual, filter.Selection{}, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, reg, ViewAnnual, OutcomeFallback))
}

func TestSupersededRemoteResultIsDiscarded(t *testing.T) {
	var calls atomic.Int32
	firstArrived := make(chan struct{})
	releaseFirst := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(firstArrived)
			<-releaseFirst
		}
		_ = json.NewEncoder(w).Encode(metrics.CompletedStatusReport{})
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	e := New(seededStore(1), testLogger(), Options{Remotes: map[string]string{ViewCompletedStatus: srv.URL}, Registerer: reg})
	ctx := WithSession(context.Background(), "tab-1")

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = e.Compute(ctx, ViewCompletedStatus, filter.Selection{}, false)
	}()

	<-firstArrived
	_, err := e.Compute(ctx, ViewCompletedStatus, filter.Selection{}, false)
	require.NoError(t, err)
	close(releaseFirst)
	wg.Wait()

	assert.ErrorIs(t, firstErr, ErrStaleResult)
	assert.Equal(t, 1.0, counterValue(t, reg, ViewCompletedStatus, OutcomeStale))
}

func TestOtherSessionsDoNotSupersede(t *testing.T) {
	cases := []struct {
		name   string
		first  context.Context
		second context.Context
	}{
		{"different sessions", WithSession(context.Background(), "tab-1"), WithSession(context.Background(), "tab-2")},
		{"no session", context.Background(), context.Background()},
		{"untagged newer request", WithSession(context.Background(), "tab-1"), context.Background()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			firstArrived := make(chan struct{})
			releaseFirst := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					close(firstArrived)
					<-releaseFirst
				}
				_ = json.NewEncoder(w).Encode(metrics.CompletedStatusReport{})
			}))
			defer srv.Close()

			reg := prometheus.NewRegistry()
			e := New(seededStore(1), testLogger(), Options{Remotes: map[string]string{ViewCompletedStatus: srv.URL}, Registerer: reg})

			var wg sync.WaitGroup
			var firstErr error
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, firstErr = e.Compute(tc.first, ViewCompletedStatus, filter.Selection{}, false)
			}()

			<-firstArrived
			_, err := e.Compute(tc.second, ViewCompletedStatus, filter.Selection{}, false)
			require.NoError(t, err)
			close(releaseFirst)
			wg.Wait()

			assert.NoError(t, firstErr)
			assert.Equal(t, 2.0, counterValue(t, reg, ViewCompletedStatus, OutcomeRemote))
			assert.Equal(t, 0.0, counterValue(t, reg, ViewCompletedStatus, OutcomeStale))
		})
	}
}

func TestSessionGenerationsAreReleased(t *testing.T) {
	var g generations
	first := g.begin("tab-1")
	second := g.begin("tab-1")
	assert.False(t, g.current("tab-1", first))
	assert.True(t, g.current("tab-1", second))
	g.end("tab-1")
	g.end("tab-1")
	assert.Equal(t, 0, g.tracked())

	assert.Equal(t, "", SessionFrom(WithSession(context.Background(), "")))
	assert.Equal(t, "tab-9", SessionFrom(WithSession(context.Background(), "tab-9")))
}

func TestLocalBuildSurvivesFirstCallerCancel(t *testing.T) {
	e := New(seededStore(1), testLogger(), Options{})
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	local := NewLocal("slow", nil, func(ctx context.Context, in metrics.Input, f filter.Compiled) (int, error) {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, ctx.Err()
	}, e, testLogger())

	ctx1, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = local.Compute(ctx1, filter.Selection{}, false)
	}()
	<-started

	var secondVal int
	var secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		secondVal, secondErr = local.Compute(context.Background(), filter.Selection{}, false)
	}()

	cancel()
	close(release)
	wg.Wait()

	assert.ErrorIs(t, firstErr, context.Canceled)
	require.NoError(t, secondErr)
	assert.Equal(t, 42, secondVal)
	assert.Equal(t, int32(1), runs.Load())
}
