// Package metrics holds the calculators. Each one is a pure function of an Input and
// a compiled filter: it reads the datasets and indices and never modifies them.
package metrics

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/index"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/yield"
)

// Input is everything a calculator may read.
type Input struct {
	Set         *dataset.Set
	Collections *index.Collections
	Contracts   *index.Contracts
	Assignments *index.Assignments
	Timelines   *index.Timelines
}

// BuildInput builds every index over set. Callers that memoize indices fill Input directly.
func BuildInput(ctx context.Context, set *dataset.Set) (Input, error) {
	in := Input{Set: set}
	var err error
	if in.Collections, err = index.BuildCollections(ctx, set.Collections); err != nil {
		return Input{}, err
	}
	if in.Contracts, err = index.BuildContracts(ctx, set.Contracts); err != nil {
		return Input{}, err
	}
	if in.Assignments, err = index.BuildAssignments(ctx, set.Assignments); err != nil {
		return Input{}, err
	}
	if in.Timelines, err = index.BuildTimelines(ctx, set.Portfolio); err != nil {
		return Input{}, err
	}
	return in, nil
}

// resolved is a snapshot row joined with its contract master and agent.
type resolved struct {
	idx        int
	row        *types.PortfolioRow
	sale       period.Month
	completion period.Month
	supervisor string
	agent      string
}

func (in Input) master(id string) (types.ContractMaster, bool) {
	if in.Contracts == nil {
		return types.ContractMaster{}, false
	}
	return in.Contracts.Get(id)
}

func (in Input) resolve(i int) resolved {
	r := &in.Set.Portfolio[i]
	v := resolved{
		idx:        i,
		row:        r,
		sale:       r.SaleMonth,
		completion: r.CloseMonth,
		supervisor: normalize.NoSupervisor,
		agent:      normalize.NoAgent,
	}
	if m, ok := in.master(r.ContractID); ok {
		if !v.sale.Known() {
			v.sale = m.SaleMonth
		}
		if m.CompletionMonth.Known() {
			v.completion = m.CompletionMonth
		}
		v.supervisor = m.Supervisor
	}
	if in.Assignments != nil {
		v.agent = in.Assignments.Agent(r.ContractID, r.ManagementMonth, normalize.NoAgent)
	}
	return v
}

// allowed applies every row-level dimension. Payment channel is not row-level: it
// narrows collected amounts instead.
func allowed(f filter.Compiled, v resolved) bool {
	r := v.row
	return f.BusinessUnit.Allows(r.BusinessUnit) &&
		f.CollectionChannel.Allows(r.CollectionChannel) &&
		f.Tramo.AllowsInt(r.Tramo) &&
		f.ManagementMonth.AllowsMonth(r.ManagementMonth) &&
		f.SaleAllowed(v.sale) &&
		f.Supervisor.Allows(v.supervisor) &&
		f.Agent.Allows(v.agent) &&
		f.CompletionMonth.AllowsMonth(v.completion)
}

// eachFiltered calls fn once per (contract, management month). The first row seen for
// a key represents it; fn only sees it when it passes f.
func (in Input) eachFiltered(ctx context.Context, f filter.Compiled, fn func(resolved)) error {
	seen := make(map[index.Key]struct{}, len(in.Set.Portfolio))
	for i := range in.Set.Portfolio {
		if err := yield.Every(ctx, i); err != nil {
			return err
		}
		r := &in.Set.Portfolio[i]
		k := index.Key{Contract: r.ContractID, Month: r.ManagementMonth}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if v := in.resolve(i); allowed(f, v) {
			fn(v)
		}
	}
	return nil
}

// byContract groups the filtered rows per contract, each group ordered by month.
func (in Input) byContract(ctx context.Context, f filter.Compiled) (map[string][]resolved, []string, error) {
	groups := make(map[string][]resolved)
	err := in.eachFiltered(ctx, f, func(v resolved) {
		groups[v.row.ContractID] = append(groups[v.row.ContractID], v)
	})
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(groups))
	for id, g := range groups {
		sort.SliceStable(g, func(a, b int) bool { return g[a].row.ManagementMonth < g[b].row.ManagementMonth })
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return groups, ids, nil
}

func (in Input) cumulative(contract string, from, to period.Month) float64 {
	if in.Collections == nil {
		return 0
	}
	return in.Collections.Cumulative(contract, from, to)
}

// ratio is a/b, defined as 0 when b is 0.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// LTVSummary is the lifetime-value result for a group of contracts.
type LTVSummary struct {
	Contracts   int     `json:"contracts"`
	Deberia     float64 `json:"deberia"`
	Collected   float64 `json:"collected"`
	RatioPago   float64 `json:"ratio_pago"`
	WeightedAge float64 `json:"weighted_age"`
	LTV         float64 `json:"ltv"`
}

// ltvAcc accumulates contract evaluations into an LTVSummary.
type ltvAcc struct {
	contracts int
	deberia   float64
	collected float64
	cuota     float64
	ages      []float64
	weights   []float64
}

func (a *ltvAcc) add(age int, cuota, collected float64) {
	if cuota < 0 {
		cuota = 0
	}
	d := cuota * float64(age)
	a.contracts++
	a.deberia += d
	a.collected += collected
	a.cuota += cuota
	a.ages = append(a.ages, float64(age))
	a.weights = append(a.weights, d)
}

func (a *ltvAcc) summary() LTVSummary {
	s := LTVSummary{Contracts: a.contracts, Deberia: a.deberia, Collected: a.collected}
	if a.deberia <= 0 {
		return s
	}
	s.RatioPago = ratio(a.collected, a.deberia)
	s.WeightedAge = stat.Mean(a.ages, a.weights)
	s.LTV = s.RatioPago * s.WeightedAge
	return s
}

func accFor(m map[string]*ltvAcc, key string) *ltvAcc {
	a, ok := m[key]
	if !ok {
		a = &ltvAcc{}
		m[key] = a
	}
	return a
}

func summaries(m map[string]*ltvAcc) map[string]*LTVSummary {
	out := make(map[string]*LTVSummary, len(m))
	for k, a := range m {
		s := a.summary()
		out[k] = &s
	}
	return out
}
