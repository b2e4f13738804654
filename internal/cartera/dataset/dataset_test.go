package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

func portfolio(n int) []types.PortfolioRow {
	rows := make([]types.PortfolioRow, n)
	for i := range rows {
		rows[i] = types.PortfolioRow{ContractID: "1", ManagementMonth: period.FromYM(2025, 1+i%12), CuotaAmount: 100}
	}
	return rows
}

func TestStampChangesWhenDatasetGrows(t *testing.T) {
	st := NewStore()
	st.Replace(&ingest.Result{Kind: types.Cartera, Portfolio: portfolio(3)})
	before := st.Current().Stamp(types.Cartera)

	st.Replace(&ingest.Result{Kind: types.Cartera, Portfolio: portfolio(4)})
	after := st.Current().Stamp(types.Cartera)

	assert.NotEqual(t, before, after)
}

func TestStampIsStableForEqualContent(t *testing.T) {
	a := &Set{Portfolio: portfolio(5)}
	b := &Set{Portfolio: portfolio(5)}
	assert.Equal(t, a.Stamp(types.Cartera), b.Stamp(types.Cartera))

	b.Portfolio[4].Tramo = 6
	assert.NotEqual(t, a.Stamp(types.Cartera), b.Stamp(types.Cartera))
}

func TestReplaceKeepsOtherDatasetsAndOldSnapshots(t *testing.T) {
	st := NewStore()
	st.Replace(&ingest.Result{Kind: types.Cartera, Portfolio: portfolio(2)})
	old := st.Current()

	info := st.Replace(&ingest.Result{Kind: types.Cobranzas, Collections: []types.CollectionTransaction{{ContractID: "1"}},
		Report: ingest.Report{BatchID: "b-1"}})

	cur := st.Current()
	assert.Len(t, cur.Portfolio, 2)
	assert.Len(t, cur.Collections, 1)
	assert.Empty(t, old.Collections)
	assert.Equal(t, "b-1", info.BatchID)

	list := st.List()
	require.Len(t, list, 4)
	assert.Equal(t, "cartera", list[0].Kind)
	assert.Equal(t, 2, list[0].Rows)
	assert.Equal(t, Stamp("gestores:0"), list[3].Stamp)
}
