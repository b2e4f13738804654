package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

type IngestionHistoryStore struct {
	db *sqlx.DB
}

var (
	TriggerTypeManual    = "manual"
	TriggerTypeScheduled = "scheduled"
	TriggerTypeUpload    = "upload"
	TriggerTypeRestore   = "restore"
)

var (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailure    = "failure"
	StatusSkipped    = "skipped"
)

func (ih *IngestionHistoryStore) InsertIngestionHistory(ctx context.Context, history *IngestionHistory) error {
	query := `INSERT INTO ingestion_history (
		batch_id,
		dataset_kind,
		source_file,
		trigger_type,
		status,
		rows_read,
		rows_kept,
		warnings,
		message
	) VALUES (
		:batch_id,
		:dataset_kind,
		:source_file,
		:trigger_type,
		:status,
		:rows_read,
		:rows_kept,
		:warnings,
		:message
	) RETURNING id, processed_at`

	rows, err := sqlx.NamedQueryContext(ctx, ih.db, query, history)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion history: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&history.ID, &history.ProcessedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateIngestionResult writes the outcome of a finished attempt onto its row.
func (ih *IngestionHistoryStore) UpdateIngestionResult(ctx context.Context, history *IngestionHistory) error {
	query := `UPDATE ingestion_history SET
		batch_id = :batch_id,
		status = :status,
		rows_read = :rows_read,
		rows_kept = :rows_kept,
		warnings = :warnings,
		message = :message,
		processed_at = now()
	WHERE id = :id`

	res, err := ih.db.NamedExecContext(ctx, query, history)
	if err != nil {
		return fmt.Errorf("failed to update ingestion %d: %w", history.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ingestion %d not found", history.ID)
	}
	return nil
}

func (ih *IngestionHistoryStore) GetLatest(ctx context.Context, limit int) ([]IngestionHistory, error) {
	var out []IngestionHistory
	err := ih.db.SelectContext(ctx, &out,
		`SELECT id, batch_id, dataset_kind, source_file, trigger_type, status, rows_read, rows_kept, warnings, message, processed_at
		FROM ingestion_history ORDER BY processed_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion history: %w", err)
	}
	return out, nil
}

// MemoryIngestionHistory keeps the history in process.
type MemoryIngestionHistory struct {
	mu     sync.Mutex
	nextID int64
	rows   []IngestionHistory
}

func (m *MemoryIngestionHistory) InsertIngestionHistory(_ context.Context, history *IngestionHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	history.ID = m.nextID
	history.ProcessedAt = time.Now()
	m.rows = append(m.rows, *history)
	return nil
}

func (m *MemoryIngestionHistory) UpdateIngestionResult(_ context.Context, history *IngestionHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == history.ID {
			history.ProcessedAt = time.Now()
			m.rows[i] = *history
			return nil
		}
	}
	return fmt.Errorf("ingestion %d not found", history.ID)
}

func (m *MemoryIngestionHistory) GetLatest(_ context.Context, limit int) ([]IngestionHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]IngestionHistory(nil), m.rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
