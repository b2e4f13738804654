package metrics

import (
	"context"
	"strconv"

	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

// CohortCell describes a sale-month cohort a given number of months after sale.
type CohortCell struct {
	Active       int     `json:"active"`
	Current      int     `json:"current"`
	Delinquent   int     `json:"delinquent"`
	Retention    float64 `json:"retention"`
	Deberia      float64 `json:"deberia"`
	Collected    float64 `json:"collected"`
	RecoveryRate float64 `json:"recovery_rate"`
}

type Cohort struct {
	Contracts int `json:"contracts"`
	// Cells is keyed by months after sale, "0" being the sale month.
	Cells map[string]*CohortCell `json:"cells"`
}

type CohortReport struct {
	Cohorts   map[string]*Cohort `json:"cohorts"`
	MaxOffset int                `json:"max_offset"`
}

// Cohorts groups contracts by sale month and follows each cohort month by month:
// how many contracts still show up in the portfolio, how many are delinquent, and the
// cumulative collected against cumulative deberia. A fixed age selection keeps only
// that offset.
func Cohorts(ctx context.Context, in Input, f filter.Compiled) (*CohortReport, error) {
	groups, ids, err := in.byContract(ctx, f)
	if err != nil {
		return nil, err
	}

	rep := &CohortReport{Cohorts: make(map[string]*Cohort)}
	for _, id := range ids {
		rows := groups[id]
		sale := rows[0].sale
		if !sale.Known() {
			continue
		}
		key := sale.String()
		c, ok := rep.Cohorts[key]
		if !ok {
			c = &Cohort{Cells: make(map[string]*CohortCell)}
			rep.Cohorts[key] = c
		}
		c.Contracts++

		for _, v := range rows {
			m := v.row.ManagementMonth
			offset := m.Sub(sale)
			if !m.Known() || offset < 0 {
				continue
			}
			if f.FixedAge > 0 && offset != f.FixedAge {
				continue
			}
			cellKey := strconv.Itoa(offset)
			cell, ok := c.Cells[cellKey]
			if !ok {
				cell = &CohortCell{}
				c.Cells[cellKey] = cell
			}
			cell.Active++
			if types.IsDelinquent(v.row.Tramo) {
				cell.Delinquent++
			} else {
				cell.Current++
			}
			cell.Deberia += v.row.CuotaAmount * float64(period.Age(sale, m))
			cell.Collected += in.cumulative(id, sale, m)
			if offset > rep.MaxOffset {
				rep.MaxOffset = offset
			}
		}
	}

	for _, c := range rep.Cohorts {
		for _, cell := range c.Cells {
			cell.Retention = ratio(float64(cell.Active), float64(c.Contracts))
			cell.RecoveryRate = ratio(cell.Collected, cell.Deberia)
		}
	}
	return rep, nil
}
