package utils

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100000", 100000, true},
		{"1.234.567,89", 1234567.89, true},
		{"1,234,567.89", 1234567.89, true},
		{"100.000", 100000, true},
		{"12,5", 12.5, true},
		{"Gs 50.000", 50000, true},
		{"(1.500)", -1500, true},
		{"", 0, true},
		{"N/A", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseAmount(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		assert.InDelta(t, c.want, got, 1e-9, "input %q", c.in)
	}
}

func TestParseInt(t *testing.T) {
	n, ok := ParseInt("4")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = ParseInt("5.0")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = ParseInt("x")
	assert.False(t, ok)
}

func TestCanonicalContractID(t *testing.T) {
	assert.Equal(t, "12345", CanonicalContractID("0012345"))
	assert.Equal(t, "12345", CanonicalContractID("12345.0"))
	assert.Equal(t, "12345", CanonicalContractID(" C-12345 "))
	assert.Equal(t, "0", CanonicalContractID("000"))
	assert.Equal(t, "", CanonicalContractID("   "))
	// canonical ids are stable under re-canonicalization
	assert.Equal(t, "12345", CanonicalContractID(CanonicalContractID("C-0012345")))
}

func TestFoldHeader(t *testing.T) {
	assert.Equal(t, "fecha_gestion", FoldHeader(" Fecha Gestión "))
	assert.Equal(t, "id_contrato", FoldHeader("ID-Contrato"))
	assert.Equal(t, "monto_cuota", FoldHeader("MONTO  CUOTA"))
}

func TestColumnValuesAndResolveColumn(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"001", "002"}, series.String, "ID Contrato"),
	)
	require.NoError(t, FoldColumns(df))
	require.Equal(t, []string{"id_contrato"}, df.Names())

	col := ResolveColumn(&df, []string{"contrato", "id_contrato"})
	assert.Equal(t, "id_contrato", col)
	assert.Equal(t, []string{"001", "002"}, ColumnValues(&df, col))
	assert.Nil(t, ColumnValues(&df, "missing"))
}
