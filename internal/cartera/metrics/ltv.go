package metrics

import (
	"context"
	"errors"

	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

// ErrFixedAgeRequired is returned by FixedAgeLTV when no "edad" is selected.
var ErrFixedAgeRequired = errors.New("fixed-age ltv requires a single edad value")

// RetentionRow is one management month of the cutoff LTV view.
type RetentionRow struct {
	LTVSummary
	Active     int `json:"active"`
	Delinquent int `json:"delinquent"`
	Completed  int `json:"completed"`
}

type LTVReport struct {
	Cutoff      string                   `json:"cutoff"`
	Summary     LTVSummary               `json:"summary"`
	BySaleMonth map[string]*LTVSummary   `json:"by_sale_month"`
	ByUnit      map[string]*LTVSummary   `json:"by_unit"`
	Retention   map[string]*RetentionRow `json:"retention"`
	Excluded    int                      `json:"excluded"`
}

// evaluation is one contract measured at a single month.
type evaluation struct {
	contract  string
	unit      string
	sale      period.Month
	at        period.Month
	age       int
	cuota     float64
	collected float64
	completed bool
}

// evaluateAtCutoff measures every filtered contract at the cutoff, or at its completion
// month when it completed earlier. The snapshot used is the latest one not after that
// month. Contracts without a known sale month or without such a snapshot are excluded.
func evaluateAtCutoff(groups map[string][]resolved, ids []string, cutoff period.Month, in Input) ([]evaluation, int) {
	var out []evaluation
	excluded := 0
	for _, id := range ids {
		rows := groups[id]
		last := rows[len(rows)-1]
		sale := last.sale
		if !sale.Known() {
			excluded++
			continue
		}

		at := cutoff
		completed := false
		if c := last.completion; c.Known() && c <= cutoff {
			at, completed = c, true
		}

		var snap *resolved
		for i := len(rows) - 1; i >= 0; i-- {
			if rows[i].row.ManagementMonth <= at {
				snap = &rows[i]
				break
			}
		}
		if snap == nil {
			excluded++
			continue
		}

		out = append(out, evaluation{
			contract:  id,
			unit:      snap.row.BusinessUnit,
			sale:      sale,
			at:        at,
			age:       period.Age(sale, at),
			cuota:     snap.row.CuotaAmount,
			collected: in.cumulative(id, sale, at),
			completed: completed,
		})
	}
	return out, excluded
}

func latestMonth(groups map[string][]resolved) period.Month {
	cutoff := period.Unknown
	for _, rows := range groups {
		if m := rows[len(rows)-1].row.ManagementMonth; m > cutoff {
			cutoff = m
		}
	}
	return cutoff
}

// CutoffLTV evaluates the filtered cohort at the latest management month available
// and builds the per-month retention table.
func CutoffLTV(ctx context.Context, in Input, f filter.Compiled) (*LTVReport, error) {
	groups, ids, err := in.byContract(ctx, f)
	if err != nil {
		return nil, err
	}

	cutoff := latestMonth(groups)
	rep := &LTVReport{
		Cutoff:      cutoff.String(),
		BySaleMonth: make(map[string]*LTVSummary),
		ByUnit:      make(map[string]*LTVSummary),
		Retention:   make(map[string]*RetentionRow),
	}
	if !cutoff.Known() {
		return rep, nil
	}

	evals, excluded := evaluateAtCutoff(groups, ids, cutoff, in)
	rep.Excluded = excluded

	var total ltvAcc
	bySale := make(map[string]*ltvAcc)
	byUnit := make(map[string]*ltvAcc)
	for _, e := range evals {
		total.add(e.age, e.cuota, e.collected)
		accFor(bySale, e.sale.String()).add(e.age, e.cuota, e.collected)
		accFor(byUnit, e.unit).add(e.age, e.cuota, e.collected)
	}
	rep.Summary = total.summary()
	rep.BySaleMonth = summaries(bySale)
	rep.ByUnit = summaries(byUnit)

	monthly := make(map[period.Month]*ltvAcc)
	rows := make(map[period.Month]*RetentionRow)
	completedIn := make(map[period.Month]map[string]struct{})
	for _, id := range ids {
		for _, v := range groups[id] {
			m := v.row.ManagementMonth
			if !m.Known() {
				continue
			}
			rr, ok := rows[m]
			if !ok {
				rr = &RetentionRow{}
				rows[m] = rr
				monthly[m] = &ltvAcc{}
			}
			rr.Active++
			if types.IsDelinquent(v.row.Tramo) {
				rr.Delinquent++
			}
			if v.sale.Known() {
				monthly[m].add(period.Age(v.sale, m), v.row.CuotaAmount, in.cumulative(id, v.sale, m))
			}
		}
		rows := groups[id]
		if c := rows[len(rows)-1].completion; c.Known() && c <= cutoff {
			if completedIn[c] == nil {
				completedIn[c] = make(map[string]struct{})
			}
			completedIn[c][id] = struct{}{}
		}
	}
	for m := range completedIn {
		if _, ok := rows[m]; !ok {
			rows[m] = &RetentionRow{}
			monthly[m] = &ltvAcc{}
		}
	}
	for m, rr := range rows {
		rr.LTVSummary = monthly[m].summary()
		rr.Completed = len(completedIn[m])
		rep.Retention[m.String()] = rr
	}
	return rep, nil
}

type FixedAgeReport struct {
	// Age is the selected edad, months elapsed since the sale month. Snapshots are
	// taken at sale+Age and deberia counts the sale month too, so every contract is
	// charged EvaluatedAge = Age+1 cuotas.
	Age          int                    `json:"age"`
	EvaluatedAge int                    `json:"evaluated_age"`
	Summary      LTVSummary             `json:"summary"`
	BySaleMonth  map[string]*LTVSummary `json:"by_sale_month"`
	ByUnit       map[string]*LTVSummary `json:"by_unit"`
	Excluded     int                    `json:"excluded"`
}

// FixedAgeLTV evaluates every filtered contract exactly N months after its sale month,
// N being the selected edad. A contract needs a snapshot at sale+N; without one it is
// excluded rather than extrapolated.
func FixedAgeLTV(ctx context.Context, in Input, f filter.Compiled) (*FixedAgeReport, error) {
	if f.FixedAge <= 0 {
		return nil, ErrFixedAgeRequired
	}
	groups, ids, err := in.byContract(ctx, f)
	if err != nil {
		return nil, err
	}

	rep := &FixedAgeReport{Age: f.FixedAge, EvaluatedAge: f.FixedAge + 1}
	var total ltvAcc
	bySale := make(map[string]*ltvAcc)
	byUnit := make(map[string]*ltvAcc)
	for _, id := range ids {
		rows := groups[id]
		sale := rows[0].sale
		if !sale.Known() {
			rep.Excluded++
			continue
		}
		target := sale.Add(f.FixedAge)

		var snap *resolved
		for i := range rows {
			if rows[i].row.ManagementMonth == target {
				snap = &rows[i]
				break
			}
		}
		if snap == nil {
			rep.Excluded++
			continue
		}

		age := period.Age(sale, target)
		collected := in.cumulative(id, sale, target)
		total.add(age, snap.row.CuotaAmount, collected)
		accFor(bySale, sale.String()).add(age, snap.row.CuotaAmount, collected)
		accFor(byUnit, snap.row.BusinessUnit).add(age, snap.row.CuotaAmount, collected)
	}
	rep.Summary = total.summary()
	rep.BySaleMonth = summaries(bySale)
	rep.ByUnit = summaries(byUnit)
	return rep, nil
}
