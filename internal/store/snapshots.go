package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

type PostgresKV struct {
	db *sqlx.DB
}

func (kv *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var snap DatasetSnapshot
	err := kv.db.GetContext(ctx, &snap, `SELECT key, value, updated_at FROM dataset_snapshots WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return snap.Value, nil
}

func (kv *PostgresKV) Put(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO dataset_snapshots (key, value, updated_at)
		VALUES (:key, :value, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	_, err := kv.db.NamedExecContext(ctx, query, DatasetSnapshot{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}
	return nil
}

// ErrQuotaExceeded is returned by a MemoryKV put that would exceed its byte quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// MemoryKV is an in-process KV with an optional byte quota (0 means unlimited).
type MemoryKV struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
}

func NewMemoryKV(quota int) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), quota: quota}
}

func (kv *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (kv *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.quota > 0 {
		used := len(value)
		for k, v := range kv.data {
			if k != key {
				used += len(v)
			}
		}
		if used > kv.quota {
			return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, used, kv.quota)
		}
	}
	kv.data[key] = append([]byte(nil), value...)
	return nil
}
