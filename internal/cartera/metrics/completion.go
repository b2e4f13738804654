package metrics

import (
	"context"
	"sort"
	"strconv"

	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

type CompletionGroup struct {
	SaleMonth string               `json:"sale_month"`
	Unit      string               `json:"unit"`
	Category  types.StatusCategory `json:"category"`
	LTVSummary
	AvgMonthlyCollected float64 `json:"avg_monthly_collected"`
}

type CompletionReport struct {
	Groups   []*CompletionGroup `json:"groups"`
	Summary  LTVSummary         `json:"summary"`
	Excluded int                `json:"excluded"`
}

type completionKey struct {
	sale period.Month
	unit string
	cat  types.StatusCategory
}

// Completions measures every completed contract over its whole life, from sale month
// through completion month, grouped by sale month, business unit and the category the
// contract had at completion.
func Completions(ctx context.Context, in Input, f filter.Compiled) (*CompletionReport, error) {
	rep := &CompletionReport{}
	accs := make(map[completionKey]*ltvAcc)
	months := make(map[completionKey]int)
	var total ltvAcc

	err := completedContracts(ctx, in, f, func(c types.ContractMaster, snap *types.PortfolioRow, cat types.StatusCategory) {
		if !c.SaleMonth.Known() || c.CompletionMonth < c.SaleMonth {
			rep.Excluded++
			return
		}
		cuota := 0.0
		if snap != nil {
			cuota = snap.CuotaAmount
		}
		age := period.Age(c.SaleMonth, c.CompletionMonth)
		collected := in.cumulative(c.ContractID, c.SaleMonth, c.CompletionMonth)

		k := completionKey{sale: c.SaleMonth, unit: completedUnit(c, snap), cat: cat}
		a, ok := accs[k]
		if !ok {
			a = &ltvAcc{}
			accs[k] = a
		}
		a.add(age, cuota, collected)
		months[k] += age
		total.add(age, cuota, collected)
	})
	if err != nil {
		return nil, err
	}

	keys := make([]completionKey, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.sale != b.sale {
			return a.sale < b.sale
		}
		if a.unit != b.unit {
			return a.unit < b.unit
		}
		return a.cat < b.cat
	})

	rep.Groups = make([]*CompletionGroup, 0, len(keys))
	for _, k := range keys {
		a := accs[k]
		rep.Groups = append(rep.Groups, &CompletionGroup{
			SaleMonth:           k.sale.String(),
			Unit:                k.unit,
			Category:            k.cat,
			LTVSummary:          a.summary(),
			AvgMonthlyCollected: ratio(a.collected, float64(months[k])),
		})
	}
	rep.Summary = total.summary()
	return rep, nil
}

type AnnualRow struct {
	LTVSummary
	Current         int     `json:"vigentes"`
	Completed       int     `json:"culminados"`
	TicketCuota     float64 `json:"ticket_cuota"`
	TicketDeberia   float64 `json:"ticket_deberia"`
	TicketCollected float64 `json:"ticket_collected"`
}

type AnnualReport struct {
	Cutoff string                `json:"cutoff"`
	Years  map[string]*AnnualRow `json:"years"`
}

// Annual rolls the cutoff LTV evaluation up by calendar year of sale, with current and
// completed contract counts and per-contract ticket sizes.
func Annual(ctx context.Context, in Input, f filter.Compiled) (*AnnualReport, error) {
	groups, ids, err := in.byContract(ctx, f)
	if err != nil {
		return nil, err
	}
	cutoff := latestMonth(groups)
	rep := &AnnualReport{Cutoff: cutoff.String(), Years: make(map[string]*AnnualRow)}
	if !cutoff.Known() {
		return rep, nil
	}

	evals, _ := evaluateAtCutoff(groups, ids, cutoff, in)
	accs := make(map[string]*ltvAcc)
	for _, e := range evals {
		year := strconv.Itoa(e.sale.Year())
		accFor(accs, year).add(e.age, e.cuota, e.collected)
		row, ok := rep.Years[year]
		if !ok {
			row = &AnnualRow{}
			rep.Years[year] = row
		}
		if e.completed {
			row.Completed++
		} else {
			row.Current++
		}
	}
	for year, row := range rep.Years {
		a := accs[year]
		row.LTVSummary = a.summary()
		n := float64(a.contracts)
		row.TicketCuota = ratio(a.cuota, n)
		row.TicketDeberia = ratio(a.deberia, n)
		row.TicketCollected = ratio(a.collected, n)
	}
	return rep, nil
}
