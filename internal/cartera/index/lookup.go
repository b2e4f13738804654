package index

import (
	"context"
	"sort"

	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/yield"
)

// Contracts maps a contract id to its master record. The first record seen wins.
type Contracts struct {
	byID map[string]int
	rows []types.ContractMaster
}

func BuildContracts(ctx context.Context, rows []types.ContractMaster) (*Contracts, error) {
	c := &Contracts{byID: make(map[string]int, len(rows)), rows: rows}
	for i := range rows {
		if err := yield.Every(ctx, i); err != nil {
			return nil, err
		}
		if _, ok := c.byID[rows[i].ContractID]; !ok {
			c.byID[rows[i].ContractID] = i
		}
	}
	return c, nil
}

// Get returns a copy of the master record for id.
func (c *Contracts) Get(id string) (types.ContractMaster, bool) {
	i, ok := c.byID[id]
	if !ok {
		return types.ContractMaster{}, false
	}
	return c.rows[i], true
}

func (c *Contracts) Len() int { return len(c.byID) }

// Each calls fn for every distinct contract in id order.
func (c *Contracts) Each(fn func(types.ContractMaster)) {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(c.rows[c.byID[id]])
	}
}

// Assignments maps (contract, month) to the agent assigned that month.
type Assignments struct {
	byKey map[Key]string
}

func BuildAssignments(ctx context.Context, rows []types.AssignmentRecord) (*Assignments, error) {
	a := &Assignments{byKey: make(map[Key]string, len(rows))}
	for i := range rows {
		if err := yield.Every(ctx, i); err != nil {
			return nil, err
		}
		k := Key{Contract: rows[i].ContractID, Month: rows[i].AssignmentMonth}
		if _, ok := a.byKey[k]; !ok {
			a.byKey[k] = rows[i].AgentName
		}
	}
	return a, nil
}

// Agent returns the agent for contract in month, or fallback when unassigned.
func (a *Assignments) Agent(contract string, month period.Month, fallback string) string {
	if name, ok := a.byKey[Key{Contract: contract, Month: month}]; ok {
		return name
	}
	return fallback
}

// Point is one month of a contract timeline.
type Point struct {
	Month period.Month
	Tramo int
	Row   int // index into the portfolio slice
}

// Timelines holds, per contract, its snapshots ordered by month. When a contract has
// several rows for one month the highest tramo wins.
type Timelines struct {
	byContract map[string][]Point
}

func BuildTimelines(ctx context.Context, rows []types.PortfolioRow) (*Timelines, error) {
	t := &Timelines{byContract: make(map[string][]Point)}
	for i := range rows {
		if err := yield.Every(ctx, i); err != nil {
			return nil, err
		}
		r := &rows[i]
		if !r.ManagementMonth.Known() {
			continue
		}
		t.byContract[r.ContractID] = append(t.byContract[r.ContractID], Point{Month: r.ManagementMonth, Tramo: r.Tramo, Row: i})
	}

	for id, pts := range t.byContract {
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].Month < pts[b].Month })
		out := pts[:0]
		for _, p := range pts {
			if n := len(out); n > 0 && out[n-1].Month == p.Month {
				if p.Tramo > out[n-1].Tramo {
					out[n-1] = p
				}
				continue
			}
			out = append(out, p)
		}
		t.byContract[id] = out
	}
	return t, nil
}

// Timeline returns a copy of the month-ordered points of contract.
func (t *Timelines) Timeline(contract string) []Point {
	return append([]Point(nil), t.byContract[contract]...)
}

// Contracts lists every contract with at least one dated snapshot, sorted.
func (t *Timelines) Contracts() []string {
	ids := make([]string, 0, len(t.byContract))
	for id := range t.byContract {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AtOrBefore returns the latest point of contract whose month is <= m.
func (t *Timelines) AtOrBefore(contract string, m period.Month) (Point, bool) {
	pts := t.byContract[contract]
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Month > m })
	if i == 0 {
		return Point{}, false
	}
	return pts[i-1], true
}

// AtOrAfter returns the earliest point of contract whose month is >= m.
func (t *Timelines) AtOrAfter(contract string, m period.Month) (Point, bool) {
	pts := t.byContract[contract]
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Month >= m })
	if i == len(pts) {
		return Point{}, false
	}
	return pts[i], true
}

// At returns the point of contract at exactly m.
func (t *Timelines) At(contract string, m period.Month) (Point, bool) {
	p, ok := t.AtOrBefore(contract, m)
	if !ok || p.Month != m {
		return Point{}, false
	}
	return p, true
}
