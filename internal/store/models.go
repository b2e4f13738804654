package store

import (
	"time"
)

// IngestionHistory represents the 'ingestion_history' table: one row per ingest attempt.
type IngestionHistory struct {
	ID          int64     `db:"id" json:"id"`
	BatchID     string    `db:"batch_id" json:"batch_id"`
	DatasetKind string    `db:"dataset_kind" json:"dataset_kind"`
	SourceFile  string    `db:"source_file" json:"source_file"`
	TriggerType string    `db:"trigger_type" json:"trigger_type"`
	Status      string    `db:"status" json:"status"`
	RowsRead    int       `db:"rows_read" json:"rows_read"`
	RowsKept    int       `db:"rows_kept" json:"rows_kept"`
	Warnings    int       `db:"warnings" json:"warnings"`
	Message     string    `db:"message" json:"message,omitempty"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// DatasetSnapshot represents the 'dataset_snapshots' table, the backing rows of the KV store.
type DatasetSnapshot struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
