package metrics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

var (
	jan = period.FromYM(2025, 1)
	feb = period.FromYM(2025, 2)
	mar = period.FromYM(2025, 3)
	apr = period.FromYM(2025, 4)
)

func snapshot(id string, m period.Month, tramo int, cuota float64) types.PortfolioRow {
	r := types.PortfolioRow{
		RawContractID:     id,
		BusinessUnit:      "MED",
		Tramo:             tramo,
		RawManagementDate: m.String(),
		CuotaAmount:       cuota,
		CollectionChannel: "COBRADOR",
		RawSaleDate:       "01/2025",
	}
	normalize.Portfolio(&r)
	return r
}

func payment(id string, m period.Month, amount float64, via string) types.CollectionTransaction {
	tx := types.CollectionTransaction{RawContractID: id, Amount: amount, PaymentChannel: via, RawTransactionDate: m.String()}
	normalize.Collection(&tx)
	return tx
}

func input(t *testing.T, set *dataset.Set) Input {
	t.Helper()
	in, err := BuildInput(context.Background(), set)
	require.NoError(t, err)
	return in
}

func compile(t *testing.T, sel filter.Selection) filter.Compiled {
	t.Helper()
	c, err := sel.Compile()
	require.NoError(t, err)
	return c
}

func scenarioSet() *dataset.Set {
	return &dataset.Set{
		Portfolio: []types.PortfolioRow{snapshot("1", mar, 2, 100000)},
		Collections: []types.CollectionTransaction{
			payment("1", feb, 50000, "CAJA"),
			payment("1", mar, 30000, "CAJA"),
		},
	}
}

func TestCutoffLTVScenario(t *testing.T) {
	rep, err := CutoffLTV(context.Background(), input(t, scenarioSet()), compile(t, filter.Selection{}))
	require.NoError(t, err)

	assert.Equal(t, "03/2025", rep.Cutoff)
	s := rep.Summary
	assert.Equal(t, 1, s.Contracts)
	assert.InDelta(t, 300000, s.Deberia, 1e-9)
	assert.InDelta(t, 80000, s.Collected, 1e-9)
	assert.InDelta(t, 0.2667, s.RatioPago, 1e-4)
	assert.InDelta(t, 3, s.WeightedAge, 1e-9)
	assert.InDelta(t, 0.8, s.LTV, 1e-9)

	require.Contains(t, rep.Retention, "03/2025")
	assert.Equal(t, 1, rep.Retention["03/2025"].Active)
	assert.InDelta(t, 0.8, rep.Retention["03/2025"].LTV, 1e-9)
}

func TestRetentionCompletedUsesLatestSnapshot(t *testing.T) {
	closed := snapshot("1", feb, 0, 1000)
	closed.RawCloseDate = "02/2025"
	normalize.Portfolio(&closed)
	set := &dataset.Set{Portfolio: []types.PortfolioRow{snapshot("1", jan, 0, 1000), closed}}

	rep, err := CutoffLTV(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)
	require.Contains(t, rep.Retention, "02/2025")
	assert.Equal(t, 1, rep.Retention["02/2025"].Completed)
	assert.Equal(t, 0, rep.Retention["01/2025"].Completed)
}

func TestZeroDeberiaIsZeroNotNaN(t *testing.T) {
	set := scenarioSet()
	set.Portfolio[0].CuotaAmount = 0

	rep, err := CutoffLTV(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rep.Summary.RatioPago)
	assert.Equal(t, 0.0, rep.Summary.LTV)

	_, err = json.Marshal(rep)
	assert.NoError(t, err)
}

func TestFixedAgeLTVNeedsExactSnapshot(t *testing.T) {
	set := scenarioSet()
	set.Portfolio = append(set.Portfolio, snapshot("2", feb, 0, 50000))
	in := input(t, set)

	_, err := FixedAgeLTV(context.Background(), in, compile(t, filter.Selection{}))
	assert.ErrorIs(t, err, ErrFixedAgeRequired)

	rep, err := FixedAgeLTV(context.Background(), in, compile(t, filter.Selection{}.Add(filter.Age, "2")))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Contracts)
	assert.Equal(t, 1, rep.Excluded)
	assert.InDelta(t, 0.8, rep.Summary.LTV, 1e-9)

	// edad 2 reads the 03/2025 snapshot of a 01/2025 sale and charges three cuotas
	assert.Equal(t, 2, rep.Age)
	assert.Equal(t, 3, rep.EvaluatedAge)
	assert.InDelta(t, 3, rep.Summary.WeightedAge, 1e-9)
	assert.InDelta(t, 300000, rep.Summary.Deberia, 1e-9)
}

func TestTransitionCountedOnce(t *testing.T) {
	set := &dataset.Set{Portfolio: []types.PortfolioRow{
		snapshot("7", feb, 2, 1000),
		snapshot("7", mar, 5, 1000),
		snapshot("7", mar, 4, 1000),
	}}
	rep, err := Transitions(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)

	require.Contains(t, rep.ByMonth, "03/2025")
	assert.Equal(t, 1, rep.ByMonth["03/2025"].Transitions)
	assert.Nil(t, rep.ByMonth["02/2025"])
	assert.Equal(t, 1, rep.Total.Transitions)
	assert.Equal(t, 1, rep.ByTramo["5"].Transitions)
}

func TestTransitionNotCountedWhenAlreadyDelinquent(t *testing.T) {
	set := &dataset.Set{Portfolio: []types.PortfolioRow{
		snapshot("7", jan, 1, 1000),
		snapshot("7", feb, 4, 1000),
		snapshot("7", apr, 6, 1000),
	}}
	rep, err := Transitions(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ByMonth["02/2025"].Transitions)
	assert.Equal(t, 0, rep.ByMonth["04/2025"].Transitions)
	assert.Equal(t, 2, rep.Total.Delinquent)
}

func TestPerformancePartitionInvariant(t *testing.T) {
	set := &dataset.Set{
		Portfolio: []types.PortfolioRow{
			snapshot("1", mar, 0, 100),
			snapshot("2", mar, 4, 100),
			snapshot("3", mar, 4, 100),
			snapshot("3", mar, 1, 100), // duplicate key, first seen wins
			snapshot("4", apr, 2, 100),
		},
		Collections: []types.CollectionTransaction{payment("2", mar, 60, "CAJA")},
	}
	rep, err := Performance(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)

	for month, tp := range rep.Trend {
		sum := 0
		for _, n := range tp.Tramos {
			sum += n
		}
		assert.Equal(t, tp.Contracts, sum, month)
	}
	assert.Equal(t, 3, rep.Trend["03/2025"].Contracts)
	assert.Equal(t, 2, rep.Trend["03/2025"].Tramos["4"])
	assert.Equal(t, 4, rep.Totals.Contracts)
	assert.InDelta(t, 60.0/400.0, rep.Totals.RecoveryRate, 1e-12)
	assert.Equal(t, 1, rep.ChannelMatrix["COBRADOR"]["CAJA"].Contracts)
	assert.Equal(t, []string{"CAJA"}, rep.PaymentChannels)
}

func TestPerformancePaymentChannelFilter(t *testing.T) {
	set := &dataset.Set{
		Portfolio: []types.PortfolioRow{snapshot("1", mar, 0, 100), snapshot("2", mar, 0, 100)},
		Collections: []types.CollectionTransaction{
			payment("1", mar, 40, "CAJA"),
			payment("1", mar, 10, "BANCO"),
			payment("2", mar, 25, "CAJA"),
		},
	}
	in := input(t, set)

	rep, err := Performance(context.Background(), in, compile(t, filter.Selection{}.Add(filter.PaymentChannel, "banco")))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Totals.Contracts)
	assert.Equal(t, 1, rep.Totals.Paid)
	assert.InDelta(t, 10, rep.Totals.Collected, 1e-12)
	assert.NotContains(t, rep.ByPaymentChannel, "CAJA")
	assert.Equal(t, []string{"BANCO"}, rep.PaymentChannels)
	assert.LessOrEqual(t, rep.ByPaymentChannel["BANCO"].Paid, rep.ByPaymentChannel["BANCO"].Contracts)
}

func TestPerformanceDeterministic(t *testing.T) {
	set := &dataset.Set{
		Portfolio: []types.PortfolioRow{snapshot("1", mar, 0, 100.1), snapshot("2", mar, 5, 33.3), snapshot("3", apr, 2, 7.7)},
		Collections: []types.CollectionTransaction{
			payment("1", mar, 0.1, "CAJA"), payment("1", mar, 0.2, "BANCO"), payment("2", mar, 0.3, "CAJA"),
		},
	}
	in := input(t, set)
	f := compile(t, filter.Selection{})

	a, err := Performance(context.Background(), in, f)
	require.NoError(t, err)
	b, err := Performance(context.Background(), in, f)
	require.NoError(t, err)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.Equal(t, string(ja), string(jb))
}

func TestCohorts(t *testing.T) {
	set := scenarioSet()
	set.Portfolio = append(set.Portfolio, snapshot("2", jan, 0, 1000), snapshot("2", feb, 4, 1000))
	rep, err := Cohorts(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)

	c := rep.Cohorts["01/2025"]
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Contracts)
	assert.Equal(t, 1, c.Cells["0"].Active)
	assert.Equal(t, 1, c.Cells["1"].Delinquent)
	assert.InDelta(t, 0.5, c.Cells["2"].Retention, 1e-12)
	assert.InDelta(t, 80000.0/300000.0, c.Cells["2"].RecoveryRate, 1e-12)
	assert.Equal(t, 2, rep.MaxOffset)
}

func completedSet() *dataset.Set {
	contracts := []types.ContractMaster{
		{RawContractID: "1", RawSaleDate: "2025-01-10", RawCompletionDate: "03/2025", BusinessUnit: "MED", Supervisor: "ANA"},
		{RawContractID: "2", RawSaleDate: "2025-01-20", RawCompletionDate: "04/2025", Status: "culminado"},
		{RawContractID: "3", RawSaleDate: "2025-01-05", RawCompletionDate: "02/2025"},
		{RawContractID: "4", RawSaleDate: "2025-01-05", Status: "activo"},
	}
	for i := range contracts {
		normalize.Contract(&contracts[i])
	}
	return &dataset.Set{
		Portfolio: []types.PortfolioRow{
			snapshot("1", mar, 2, 100000),
			snapshot("2", mar, 6, 5000),
			snapshot("4", mar, 0, 100),
		},
		Collections: []types.CollectionTransaction{
			payment("1", feb, 50000, "CAJA"),
			payment("1", mar, 30000, "CAJA"),
		},
		Contracts: contracts,
	}
}

func TestCompletedAtStatus(t *testing.T) {
	rep, err := CompletedAtStatus(context.Background(), input(t, completedSet()), compile(t, filter.Selection{}))
	require.NoError(t, err)

	assert.Equal(t, StatusCount{Current: 1, Delinquent: 1, Unknown: 1, Total: 3}, rep.Total)
	assert.Equal(t, 1, rep.ByCompletionMonth["03/2025"].Current)
	// contract 2 has no snapshot in 04/2025 and falls back to the one before
	assert.Equal(t, 1, rep.ByCompletionMonth["04/2025"].Delinquent)
	assert.Equal(t, 1, rep.ByCompletionMonth["02/2025"].Unknown)

	rep, err = CompletedAtStatus(context.Background(), input(t, completedSet()), compile(t, filter.Selection{}.Add(filter.CompletionMonth, "03/2025")))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Total.Total)
}

func TestCompletions(t *testing.T) {
	rep, err := Completions(context.Background(), input(t, completedSet()), compile(t, filter.Selection{}.Add(filter.BusinessUnit, "med")))
	require.NoError(t, err)

	// contract 2 has no unit of its own and takes MED from its snapshot; contract 3 has neither
	require.Len(t, rep.Groups, 2)
	assert.Equal(t, types.StatusDelinquent, rep.Groups[0].Category)
	g := rep.Groups[1]
	assert.Equal(t, "01/2025", g.SaleMonth)
	assert.Equal(t, "MED", g.Unit)
	assert.Equal(t, types.StatusCurrent, g.Category)
	assert.InDelta(t, 0.8, g.LTV, 1e-9)
	assert.InDelta(t, 80000.0/3, g.AvgMonthlyCollected, 1e-9)
}

func TestCompletionsTakeSaleMonthFromSnapshot(t *testing.T) {
	master := types.ContractMaster{RawContractID: "1", RawCompletionDate: "03/2025", BusinessUnit: "MED"}
	normalize.Contract(&master)
	set := scenarioSet()
	set.Contracts = []types.ContractMaster{master}

	rep, err := Completions(context.Background(), input(t, set), compile(t, filter.Selection{}))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Excluded)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, "01/2025", rep.Groups[0].SaleMonth)
	assert.InDelta(t, 0.8, rep.Groups[0].LTV, 1e-9)

	rep, err = Completions(context.Background(), input(t, set), compile(t, filter.Selection{}.Add(filter.SaleMonth, "02/2025")))
	require.NoError(t, err)
	assert.Empty(t, rep.Groups)
}

func TestAnnual(t *testing.T) {
	rep, err := Annual(context.Background(), input(t, completedSet()), compile(t, filter.Selection{}))
	require.NoError(t, err)

	y := rep.Years["2025"]
	require.NotNil(t, y)
	// contract 2 completes after the cutoff and is still current there
	assert.Equal(t, 3, y.Contracts)
	assert.Equal(t, 1, y.Completed)
	assert.Equal(t, 2, y.Current)
	assert.InDelta(t, (100000.0+5000+100)/3, y.TicketCuota, 1e-9)
}
