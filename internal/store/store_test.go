package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(10)

	_, err := kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put(ctx, "a", []byte("12345")))
	require.NoError(t, kv.Put(ctx, "a", []byte("1234567890")))
	err = kv.Put(ctx, "b", []byte("x"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", string(v))
}

func TestMemoryIngestionHistory(t *testing.T) {
	ctx := context.Background()
	h := &MemoryIngestionHistory{}

	first := &IngestionHistory{DatasetKind: "cartera", Status: StatusInProgress}
	require.NoError(t, h.InsertIngestionHistory(ctx, first))
	require.NoError(t, h.InsertIngestionHistory(ctx, &IngestionHistory{BatchID: "b2", Status: StatusSuccess}))

	first.Status = StatusSuccess
	first.BatchID = "b1"
	first.RowsRead, first.RowsKept, first.Warnings = 10, 9, 1
	first.Message = "kept=9"
	require.NoError(t, h.UpdateIngestionResult(ctx, first))

	latest, err := h.GetLatest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "b2", latest[0].BatchID)

	all, _ := h.GetLatest(ctx, 0)
	updated := all[1]
	assert.Equal(t, StatusSuccess, updated.Status)
	assert.Equal(t, "b1", updated.BatchID)
	assert.Equal(t, "cartera", updated.DatasetKind)
	assert.Equal(t, 10, updated.RowsRead)
	assert.Equal(t, 9, updated.RowsKept)
	assert.Equal(t, 1, updated.Warnings)
	assert.Equal(t, "kept=9", updated.Message)
	assert.Error(t, h.UpdateIngestionResult(ctx, &IngestionHistory{ID: 99, Status: StatusSuccess}))
}
