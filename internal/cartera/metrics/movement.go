package metrics

import (
	"context"
	"strconv"

	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/index"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/yield"
)

type TransitionCount struct {
	Delinquent  int     `json:"delinquent"`
	Transitions int     `json:"transitions"`
	Rate        float64 `json:"rate"`
}

func countFor(m map[string]*TransitionCount, key string) *TransitionCount {
	c, ok := m[key]
	if !ok {
		c = &TransitionCount{}
		m[key] = c
	}
	return c
}

type TransitionReport struct {
	Total   TransitionCount             `json:"total"`
	ByMonth map[string]*TransitionCount `json:"by_month"`
	ByUnit  map[string]*TransitionCount `json:"by_unit"`
	// ByTramo is keyed by the delinquent tramo the contract moved into.
	ByTramo map[string]*TransitionCount `json:"by_tramo"`
	ByAgent map[string]*TransitionCount `json:"by_agent"`
}

// Transitions counts contracts that moved from a current tramo into a delinquent one.
// For each delinquent month M of a contract the most recent snapshot at or before M-1
// decides: a current tramo there is one transition in M. Timelines keep the highest
// tramo per month, so a contract moves at most once per month.
func Transitions(ctx context.Context, in Input, f filter.Compiled) (*TransitionReport, error) {
	rep := &TransitionReport{
		ByMonth: make(map[string]*TransitionCount),
		ByUnit:  make(map[string]*TransitionCount),
		ByTramo: make(map[string]*TransitionCount),
		ByAgent: make(map[string]*TransitionCount),
	}
	if in.Timelines == nil {
		return rep, nil
	}

	for n, id := range in.Timelines.Contracts() {
		if err := yield.Every(ctx, n); err != nil {
			return nil, err
		}
		for _, p := range in.Timelines.Timeline(id) {
			if !types.IsDelinquent(p.Tramo) {
				continue
			}
			v := in.resolve(p.Row)
			if !allowed(f, v) {
				continue
			}

			moved := 0
			if prev, ok := in.Timelines.AtOrBefore(id, p.Month.Add(-1)); ok && !types.IsDelinquent(prev.Tramo) {
				moved = 1
			}
			for _, c := range []*TransitionCount{
				&rep.Total,
				countFor(rep.ByMonth, p.Month.String()),
				countFor(rep.ByUnit, v.row.BusinessUnit),
				countFor(rep.ByTramo, strconv.Itoa(p.Tramo)),
				countFor(rep.ByAgent, v.agent),
			} {
				c.Delinquent++
				c.Transitions += moved
			}
		}
	}

	rep.Total.Rate = ratio(float64(rep.Total.Transitions), float64(rep.Total.Delinquent))
	for _, m := range []map[string]*TransitionCount{rep.ByMonth, rep.ByUnit, rep.ByTramo, rep.ByAgent} {
		for _, c := range m {
			c.Rate = ratio(float64(c.Transitions), float64(c.Delinquent))
		}
	}
	return rep, nil
}

type StatusCount struct {
	Current    int `json:"current"`
	Delinquent int `json:"delinquent"`
	Unknown    int `json:"unknown"`
	Total      int `json:"total"`
}

func (s *StatusCount) add(cat types.StatusCategory) {
	s.Total++
	switch cat {
	case types.StatusCurrent:
		s.Current++
	case types.StatusDelinquent:
		s.Delinquent++
	default:
		s.Unknown++
	}
}

func statusFor(m map[string]*StatusCount, key string) *StatusCount {
	s, ok := m[key]
	if !ok {
		s = &StatusCount{}
		m[key] = s
	}
	return s
}

type CompletedStatusReport struct {
	Total             StatusCount             `json:"total"`
	ByCompletionMonth map[string]*StatusCount `json:"by_completion_month"`
	ByUnit            map[string]*StatusCount `json:"by_unit"`
	BySupervisor      map[string]*StatusCount `json:"by_supervisor"`
}

// snapshotAtCompletion finds the snapshot nearest to the completion month: the latest
// one at or before it, otherwise the earliest one after it.
func snapshotAtCompletion(tl *index.Timelines, c types.ContractMaster) (index.Point, bool) {
	if tl == nil {
		return index.Point{}, false
	}
	if p, ok := tl.AtOrBefore(c.ContractID, c.CompletionMonth); ok {
		return p, true
	}
	return tl.AtOrAfter(c.ContractID, c.CompletionMonth)
}

// completedUnit prefers the master's business unit and falls back to the snapshot's.
func completedUnit(c types.ContractMaster, snap *types.PortfolioRow) string {
	if snap != nil && c.BusinessUnit == normalize.NoUnit {
		return snap.BusinessUnit
	}
	return c.BusinessUnit
}

// contractAllowed applies the filters to a completed contract, joining the snapshot
// at completion when there is one.
func contractAllowed(f filter.Compiled, in Input, c types.ContractMaster, snap *types.PortfolioRow) bool {
	if !f.BusinessUnit.Allows(completedUnit(c, snap)) || !f.Supervisor.Allows(c.Supervisor) ||
		!f.SaleAllowed(c.SaleMonth) || !f.CompletionMonth.AllowsMonth(c.CompletionMonth) {
		return false
	}
	if snap == nil {
		return !f.CollectionChannel.Active() && !f.Tramo.Active() && !f.Agent.Active()
	}
	agent := ""
	if in.Assignments != nil {
		agent = in.Assignments.Agent(c.ContractID, snap.ManagementMonth, "")
	}
	return f.CollectionChannel.Allows(snap.CollectionChannel) && f.Tramo.AllowsInt(snap.Tramo) &&
		(!f.Agent.Active() || f.Agent.Allows(agent))
}

// completedContracts yields every contract master with a known completion month that
// passes f, together with its category at completion. A master without a sale month
// takes the one of its snapshot at completion.
func completedContracts(ctx context.Context, in Input, f filter.Compiled, fn func(c types.ContractMaster, snap *types.PortfolioRow, cat types.StatusCategory)) error {
	if in.Contracts == nil {
		return nil
	}
	var err error
	n := 0
	in.Contracts.Each(func(c types.ContractMaster) {
		if err != nil {
			return
		}
		if err = yield.Every(ctx, n); err != nil {
			return
		}
		n++
		if !c.CompletionMonth.Known() {
			return
		}

		var snap *types.PortfolioRow
		cat := types.StatusUnknown
		if p, ok := snapshotAtCompletion(in.Timelines, c); ok {
			snap = &in.Set.Portfolio[p.Row]
			cat = types.CategoryForTramo(p.Tramo)
			if !c.SaleMonth.Known() {
				c.SaleMonth = snap.SaleMonth
			}
		}
		if !contractAllowed(f, in, c, snap) {
			return
		}
		fn(c, snap, cat)
	})
	return err
}

// CompletedAtStatus classifies every completed contract as current, delinquent or
// unknown according to its snapshot at completion.
func CompletedAtStatus(ctx context.Context, in Input, f filter.Compiled) (*CompletedStatusReport, error) {
	rep := &CompletedStatusReport{
		ByCompletionMonth: make(map[string]*StatusCount),
		ByUnit:            make(map[string]*StatusCount),
		BySupervisor:      make(map[string]*StatusCount),
	}
	err := completedContracts(ctx, in, f, func(c types.ContractMaster, snap *types.PortfolioRow, cat types.StatusCategory) {
		rep.Total.add(cat)
		statusFor(rep.ByCompletionMonth, c.CompletionMonth.String()).add(cat)
		statusFor(rep.ByUnit, completedUnit(c, snap)).add(cat)
		statusFor(rep.BySupervisor, c.Supervisor).add(cat)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
