package engine

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/logger"
)

const (
	OutcomeLocal    = "local"
	OutcomeRemote   = "remote"
	OutcomeFallback = "fallback"
	OutcomeStale    = "stale"
	OutcomeError    = "error"
)

// Resolver picks the calculator for a view: the remote one when configured, the local
// one otherwise or when the remote fails. Requests tagged with a session (WithSession)
// bump that session's generation; a remote answer that arrives after a newer request
// of the same session started is discarded.
type Resolver[T any] struct {
	local     Calculator[T]
	remote    Calculator[T]
	gens      generations
	outcomes  *prometheus.CounterVec
	appLogger *logger.Logger
}

func NewResolver[T any](local, remote Calculator[T], outcomes *prometheus.CounterVec, appLogger *logger.Logger) *Resolver[T] {
	return &Resolver[T]{local: local, remote: remote, outcomes: outcomes, appLogger: appLogger}
}

func (r *Resolver[T]) Name() string { return r.local.Name() }

func (r *Resolver[T]) count(outcome string) {
	if r.outcomes != nil {
		r.outcomes.WithLabelValues(r.Name(), outcome).Inc()
	}
}

func (r *Resolver[T]) Compute(ctx context.Context, sel filter.Selection, debug bool) (T, error) {
	const component = "Resolver"
	session := SessionFrom(ctx)
	var gen uint64
	if session != "" {
		gen = r.gens.begin(session)
		defer r.gens.end(session)
	}

	if r.remote != nil {
		val, err := r.remote.Compute(ctx, sel, debug)
		if err == nil {
			if session != "" && !r.gens.current(session, gen) {
				r.count(OutcomeStale)
				r.appLogger.Debug(component, "Discarding superseded remote result: view=%s session=%s generation=%d", r.Name(), session, gen)
				var zero T
				return zero, ErrStaleResult
			}
			r.count(OutcomeRemote)
			return val, nil
		}
		if errors.Is(err, context.Canceled) {
			var zero T
			return zero, err
		}
		r.count(OutcomeFallback)
		r.appLogger.Warn(component, "Remote calculator failed, computing locally: view=%s err=%v", r.Name(), err)
	}

	val, err := r.local.Compute(ctx, sel, debug)
	if err != nil {
		r.count(OutcomeError)
		return val, err
	}
	if r.remote == nil {
		r.count(OutcomeLocal)
	}
	return val, nil
}
