package store

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is the get/put contract used to save and restore whole datasets.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type Storage struct {
	Snapshots KV

	IngestionHistory interface {
		InsertIngestionHistory(ctx context.Context, history *IngestionHistory) error
		UpdateIngestionResult(ctx context.Context, history *IngestionHistory) error
		GetLatest(ctx context.Context, limit int) ([]IngestionHistory, error)
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Snapshots:        &PostgresKV{db: db},
		IngestionHistory: &IngestionHistoryStore{db: db},
	}
}

// NewMemoryStorage keeps everything in process, for runs without a database.
func NewMemoryStorage() *Storage {
	return &Storage{
		Snapshots:        NewMemoryKV(0),
		IngestionHistory: &MemoryIngestionHistory{},
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS dataset_snapshots (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS ingestion_history (
	id           BIGSERIAL PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	dataset_kind TEXT NOT NULL,
	source_file  TEXT NOT NULL DEFAULT '',
	trigger_type TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows_read    INTEGER NOT NULL DEFAULT 0,
	rows_kept    INTEGER NOT NULL DEFAULT 0,
	warnings     INTEGER NOT NULL DEFAULT 0,
	message      TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Migrate creates the tables when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
