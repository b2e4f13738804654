package persist

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/logger"
	"github.com/alanchaparro/bi-sub000/internal/store"
)

func set() *dataset.Set {
	p := types.PortfolioRow{RawContractID: "007", RawManagementDate: "03/2025", Tramo: 4, CuotaAmount: 10}
	normalize.Portfolio(&p)
	c := types.CollectionTransaction{RawContractID: "7", RawTransactionDate: "2025-03-02", Amount: 5}
	normalize.Collection(&c)
	return &dataset.Set{Portfolio: []types.PortfolioRow{p}, Collections: []types.CollectionTransaction{c, c, c}}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	kv := store.NewMemoryKV(0)
	p := New(kv, 10, logger.NewWithWriter(logger.LevelDebug, &buf))

	out := p.Save(context.Background(), set())
	assert.Equal(t, []string{"cartera", "cobranzas"}, out.Saved)
	assert.Empty(t, out.Skipped)

	results, err := p.Restore(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	st := dataset.NewStore()
	for _, r := range results {
		st.Replace(r)
	}
	assert.Equal(t, set().Stamp(types.Cartera), st.Current().Stamp(types.Cartera))
	assert.Equal(t, "7", st.Current().Portfolio[0].ContractID)
	assert.Equal(t, types.StatusDelinquent, st.Current().Portfolio[0].StatusCategory)
}

func TestSaveSkipsLargeAndRefusedDatasets(t *testing.T) {
	var buf bytes.Buffer
	p := New(store.NewMemoryKV(0), 2, logger.NewWithWriter(logger.LevelDebug, &buf))

	out := p.Save(context.Background(), set())
	assert.Equal(t, []string{"cartera"}, out.Saved)
	assert.Contains(t, out.Skipped["cobranzas"], ErrTooLarge.Error())
	assert.Contains(t, buf.String(), "[WARN]")

	tiny := New(store.NewMemoryKV(16), 10, logger.NewWithWriter(logger.LevelDebug, &buf))
	out = tiny.Save(context.Background(), set())
	assert.Empty(t, out.Saved)
	assert.Len(t, out.Skipped, 2)
}

func TestRestoreSkipsCorruptSnapshot(t *testing.T) {
	var buf bytes.Buffer
	kv := store.NewMemoryKV(0)
	require.NoError(t, kv.Put(context.Background(), Key(types.Gestores), []byte("{not json")))

	results, err := New(kv, 0, logger.NewWithWriter(logger.LevelDebug, &buf)).Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
