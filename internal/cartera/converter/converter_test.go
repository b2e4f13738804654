package converter

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
)

func TestRowToPortfolio(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"0001", "0002"}, series.String, "id_contrato"),
		series.New([]string{"3", "x"}, series.String, "tramo"),
		series.New([]string{"03/2025", "03/2025"}, series.String, "fecha_gestion"),
		series.New([]string{"100.000", "50.000"}, series.String, "cuota"),
	)
	table := NewTable(df, Columns{
		FieldContractID:     "id_contrato",
		FieldTramo:          "tramo",
		FieldManagementDate: "fecha_gestion",
		FieldCuota:          "cuota",
		FieldOverdue:        "",
	})
	require.Equal(t, 2, table.Nrow())

	row, issues := table.RowToPortfolio(0)
	assert.Equal(t, normalize.Issue(0), issues)
	assert.Equal(t, "1", row.ContractID)
	assert.Equal(t, 3, row.Tramo)
	assert.Equal(t, 100000.0, row.CuotaAmount)
	assert.Equal(t, 0.0, row.OverdueAmount)

	row, issues = table.RowToPortfolio(1)
	assert.True(t, issues.Has(normalize.IssueBadNumber))
	assert.Equal(t, 0, row.Tramo)
}

func TestRowToCollection(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"55"}, series.String, "contrato"),
		series.New([]string{"30.000"}, series.String, "importe"),
		series.New([]string{"2025-02-10"}, series.String, "fecha"),
	)
	table := NewTable(df, Columns{FieldContractID: "contrato", FieldAmount: "importe", FieldDate: "fecha"})
	tx, issues := table.RowToCollection(0)
	assert.Equal(t, normalize.Issue(0), issues)
	assert.Equal(t, 30000.0, tx.Amount)
	assert.Equal(t, "02/2025", tx.TransactionMonth.String())
	assert.Equal(t, normalize.NoChannel, tx.PaymentChannel)
}
