// Package persist saves and restores whole datasets through a key-value store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

// ErrTooLarge marks a dataset skipped because it has more rows than the threshold.
var ErrTooLarge = errors.New("dataset exceeds the persistence row threshold")

// DefaultMaxRows is the row threshold used when none is configured.
const DefaultMaxRows = 250000

func Key(kind types.DatasetKind) string {
	return "dataset:" + kind.String()
}

type envelope[T any] struct {
	Kind    string    `json:"kind"`
	SavedAt time.Time `json:"saved_at"`
	Rows    []T       `json:"rows"`
}

// Outcome reports what Save did with each dataset.
type Outcome struct {
	Saved   []string          `json:"saved"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

type Persister struct {
	kv        store.KV
	maxRows   int
	appLogger *logger.Logger
}

func New(kv store.KV, maxRows int, appLogger *logger.Logger) *Persister {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Persister{kv: kv, maxRows: maxRows, appLogger: appLogger}
}

func encode[T any](kind types.DatasetKind, rows []T) ([]byte, error) {
	return json.Marshal(envelope[T]{Kind: kind.String(), SavedAt: time.Now().UTC(), Rows: rows})
}

// Save writes every non-empty dataset of set. A dataset over the row threshold, or
// one the store refuses, is skipped with a warning; Save itself never fails.
func (p *Persister) Save(ctx context.Context, set *dataset.Set) Outcome {
	const component = "Persist-Save"
	out := Outcome{Skipped: make(map[string]string)}

	for _, kind := range types.AllKinds {
		n := set.Len(kind)
		if n == 0 {
			continue
		}
		if n > p.maxRows {
			err := fmt.Errorf("%w: %d > %d", ErrTooLarge, n, p.maxRows)
			p.appLogger.Warn(component, "Skipping dataset: dataset=%s err=%v", kind, err)
			out.Skipped[kind.String()] = err.Error()
			continue
		}

		var payload []byte
		var err error
		switch kind {
		case types.Cartera:
			payload, err = encode(kind, set.Portfolio)
		case types.Cobranzas:
			payload, err = encode(kind, set.Collections)
		case types.Contratos:
			payload, err = encode(kind, set.Contracts)
		case types.Gestores:
			payload, err = encode(kind, set.Assignments)
		}
		if err == nil {
			err = p.kv.Put(ctx, Key(kind), payload)
		}
		if err != nil {
			p.appLogger.Warn(component, "Skipping dataset: dataset=%s rows=%d err=%v", kind, n, err)
			out.Skipped[kind.String()] = err.Error()
			continue
		}

		p.appLogger.Info(component, "Dataset saved: dataset=%s rows=%d bytes=%d", kind, n, len(payload))
		out.Saved = append(out.Saved, kind.String())
	}
	return out
}

func decode[T any](raw []byte, normalizeRow func(*T) normalize.Issue) ([]T, error) {
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	for i := range env.Rows {
		normalizeRow(&env.Rows[i])
	}
	return env.Rows, nil
}

// Restore loads every saved dataset. Raw fields are stored, so rows are normalized
// again on the way in. A dataset that fails to decode is skipped with a warning.
func (p *Persister) Restore(ctx context.Context) ([]*ingest.Result, error) {
	const component = "Persist-Restore"
	var results []*ingest.Result

	for _, kind := range types.AllKinds {
		raw, err := p.kv.Get(ctx, Key(kind))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", kind, err)
		}

		res := &ingest.Result{Kind: kind, Report: ingest.Report{BatchID: uuid.NewString(), Kind: kind.String()}}
		switch kind {
		case types.Cartera:
			res.Portfolio, err = decode(raw, normalize.Portfolio)
		case types.Cobranzas:
			res.Collections, err = decode(raw, normalize.Collection)
		case types.Contratos:
			res.Contracts, err = decode(raw, normalize.Contract)
		case types.Gestores:
			res.Assignments, err = decode(raw, normalize.Assignment)
		}
		if err != nil {
			p.appLogger.Warn(component, "Skipping unreadable snapshot: dataset=%s err=%v", kind, err)
			continue
		}
		res.Report.RowsRead = res.Len()
		res.Report.RowsKept = res.Len()
		p.appLogger.Info(component, "Dataset restored: dataset=%s rows=%d", kind, res.Len())
		results = append(results, res)
	}
	return results, nil
}
