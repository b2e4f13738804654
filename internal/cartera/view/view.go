// Package view shapes calculator reports into tables for presentation.
package view

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/alanchaparro/bi-sub000/internal/cartera/metrics"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
)

// Frame is one table of a rendered view.
type Frame struct {
	View    string   `json:"view"`
	Section string   `json:"section"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Round4 rounds to 4 decimals for display.
func Round4(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*1e4) / 1e4
}

// SortKeys orders month keys chronologically (unknown month last), integer keys
// numerically and anything else lexicographically.
func SortKeys(keys []string) {
	allMonths, allInts := true, true
	for _, k := range keys {
		if k != period.UnknownLabel && !period.ParseMonth(k).Known() {
			allMonths = false
		}
		if _, err := strconv.Atoi(k); err != nil {
			allInts = false
		}
	}

	switch {
	case allInts:
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
	case allMonths:
		sort.Slice(keys, func(i, j int) bool {
			return monthOrder(keys[i]) < monthOrder(keys[j])
		})
	default:
		sort.Strings(keys)
	}
}

func monthOrder(k string) int {
	if m := period.ParseMonth(k); m.Known() {
		return int(m)
	}
	return math.MaxInt
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

var bucketColumns = []string{"contracts", "paid_contracts", "due", "collected", "recovery_rate"}

func bucketCells(b metrics.Bucket) []any {
	return []any{b.Contracts, b.Paid, Round4(b.Due), Round4(b.Collected), Round4(b.RecoveryRate)}
}

func bucketFrame(viewName, section, key string, m map[string]*metrics.Bucket) Frame {
	f := Frame{View: viewName, Section: section, Columns: append([]string{key}, bucketColumns...)}
	for _, k := range sortedKeys(m) {
		f.Rows = append(f.Rows, append([]any{k}, bucketCells(*m[k])...))
	}
	return f
}

var ltvColumns = []string{"contracts", "deberia", "collected", "ratio_pago", "weighted_age", "ltv"}

func ltvCells(s metrics.LTVSummary) []any {
	return []any{s.Contracts, Round4(s.Deberia), Round4(s.Collected), Round4(s.RatioPago), Round4(s.WeightedAge), Round4(s.LTV)}
}

func ltvFrame(viewName, section, key string, m map[string]*metrics.LTVSummary) Frame {
	f := Frame{View: viewName, Section: section, Columns: append([]string{key}, ltvColumns...)}
	for _, k := range sortedKeys(m) {
		f.Rows = append(f.Rows, append([]any{k}, ltvCells(*m[k])...))
	}
	return f
}

func summaryFrame(viewName string, extra []string, s metrics.LTVSummary, extraCells ...any) Frame {
	return Frame{
		View:    viewName,
		Section: "summary",
		Columns: append(append([]string{}, extra...), ltvColumns...),
		Rows:    [][]any{append(extraCells, ltvCells(s)...)},
	}
}

func transitionFrame(viewName, section, key string, m map[string]*metrics.TransitionCount) Frame {
	f := Frame{View: viewName, Section: section, Columns: []string{key, "delinquent", "transitions", "rate"}}
	for _, k := range sortedKeys(m) {
		c := m[k]
		f.Rows = append(f.Rows, []any{k, c.Delinquent, c.Transitions, Round4(c.Rate)})
	}
	return f
}

func statusFrame(viewName, section, key string, m map[string]*metrics.StatusCount) Frame {
	f := Frame{View: viewName, Section: section, Columns: []string{key, "current", "delinquent", "unknown", "total"}}
	for _, k := range sortedKeys(m) {
		c := m[k]
		f.Rows = append(f.Rows, []any{k, c.Current, c.Delinquent, c.Unknown, c.Total})
	}
	return f
}

// Render turns a report produced by the named view into frames.
func Render(viewName string, report any) ([]Frame, error) {
	switch r := report.(type) {
	case *metrics.PerformanceReport:
		return renderPerformance(viewName, r), nil
	case *metrics.CohortReport:
		return renderCohorts(viewName, r), nil
	case *metrics.LTVReport:
		return renderLTV(viewName, r), nil
	case *metrics.FixedAgeReport:
		return []Frame{
			summaryFrame(viewName, []string{"age", "evaluated_age", "excluded"}, r.Summary, r.Age, r.EvaluatedAge, r.Excluded),
			ltvFrame(viewName, "by_sale_month", "sale_month", r.BySaleMonth),
			ltvFrame(viewName, "by_unit", "unit", r.ByUnit),
		}, nil
	case *metrics.TransitionReport:
		total := map[string]*metrics.TransitionCount{"TOTAL": &r.Total}
		return []Frame{
			transitionFrame(viewName, "total", "scope", total),
			transitionFrame(viewName, "by_month", "month", r.ByMonth),
			transitionFrame(viewName, "by_unit", "unit", r.ByUnit),
			transitionFrame(viewName, "by_tramo", "tramo", r.ByTramo),
			transitionFrame(viewName, "by_agent", "agent", r.ByAgent),
		}, nil
	case *metrics.CompletedStatusReport:
		total := map[string]*metrics.StatusCount{"TOTAL": &r.Total}
		return []Frame{
			statusFrame(viewName, "total", "scope", total),
			statusFrame(viewName, "by_completion_month", "completion_month", r.ByCompletionMonth),
			statusFrame(viewName, "by_unit", "unit", r.ByUnit),
			statusFrame(viewName, "by_supervisor", "supervisor", r.BySupervisor),
		}, nil
	case *metrics.CompletionReport:
		return renderCompletions(viewName, r), nil
	case *metrics.AnnualReport:
		return renderAnnual(viewName, r), nil
	default:
		return nil, fmt.Errorf("no renderer for %T", report)
	}
}

func renderPerformance(viewName string, r *metrics.PerformanceReport) []Frame {
	trend := Frame{View: viewName, Section: "trend", Columns: append([]string{"month"}, bucketColumns...)}
	tramoKeys := map[string]struct{}{}
	for _, tp := range r.Trend {
		for k := range tp.Tramos {
			tramoKeys[k] = struct{}{}
		}
	}
	tramos := sortedKeys(tramoKeys)
	for _, k := range tramos {
		trend.Columns = append(trend.Columns, "tramo_"+k)
	}
	for _, m := range sortedKeys(r.Trend) {
		tp := r.Trend[m]
		row := append([]any{m}, bucketCells(tp.Bucket)...)
		for _, k := range tramos {
			row = append(row, tp.Tramos[k])
		}
		trend.Rows = append(trend.Rows, row)
	}

	matrix := Frame{View: viewName, Section: "channel_matrix", Columns: []string{"collection_channel", "payment_channel", "contracts", "amount"}}
	for _, cc := range sortedKeys(r.ChannelMatrix) {
		row := r.ChannelMatrix[cc]
		columns := r.PaymentChannels
		if len(columns) == 0 {
			columns = sortedKeys(row)
		}
		for _, pc := range columns {
			cell, ok := row[pc]
			if !ok {
				matrix.Rows = append(matrix.Rows, []any{cc, pc, 0, 0.0})
				continue
			}
			matrix.Rows = append(matrix.Rows, []any{cc, pc, cell.Contracts, Round4(cell.Amount)})
		}
	}

	totals := map[string]*metrics.Bucket{"TOTAL": &r.Totals}
	return []Frame{
		bucketFrame(viewName, "totals", "scope", totals),
		trend,
		bucketFrame(viewName, "by_tramo", "tramo", r.ByTramo),
		bucketFrame(viewName, "by_unit", "unit", r.ByUnit),
		bucketFrame(viewName, "by_collection_channel", "collection_channel", r.ByCollectionChannel),
		bucketFrame(viewName, "by_agent", "agent", r.ByAgent),
		bucketFrame(viewName, "by_supervisor", "supervisor", r.BySupervisor),
		bucketFrame(viewName, "by_payment_channel", "payment_channel", r.ByPaymentChannel),
		matrix,
	}
}

func renderCohorts(viewName string, r *metrics.CohortReport) []Frame {
	f := Frame{View: viewName, Section: "cohorts", Columns: []string{
		"sale_month", "cohort_contracts", "months_after_sale", "active", "current", "delinquent",
		"retention", "deberia", "collected", "recovery_rate",
	}}
	for _, sale := range sortedKeys(r.Cohorts) {
		c := r.Cohorts[sale]
		for _, off := range sortedKeys(c.Cells) {
			cell := c.Cells[off]
			n, _ := strconv.Atoi(off)
			f.Rows = append(f.Rows, []any{
				sale, c.Contracts, n, cell.Active, cell.Current, cell.Delinquent,
				Round4(cell.Retention), Round4(cell.Deberia), Round4(cell.Collected), Round4(cell.RecoveryRate),
			})
		}
	}
	return []Frame{f}
}

func renderLTV(viewName string, r *metrics.LTVReport) []Frame {
	retention := Frame{View: viewName, Section: "retention", Columns: append([]string{"month", "active", "delinquent", "completed"}, ltvColumns...)}
	for _, m := range sortedKeys(r.Retention) {
		rr := r.Retention[m]
		retention.Rows = append(retention.Rows, append([]any{m, rr.Active, rr.Delinquent, rr.Completed}, ltvCells(rr.LTVSummary)...))
	}
	return []Frame{
		summaryFrame(viewName, []string{"cutoff", "excluded"}, r.Summary, r.Cutoff, r.Excluded),
		ltvFrame(viewName, "by_sale_month", "sale_month", r.BySaleMonth),
		ltvFrame(viewName, "by_unit", "unit", r.ByUnit),
		retention,
	}
}

func renderCompletions(viewName string, r *metrics.CompletionReport) []Frame {
	f := Frame{View: viewName, Section: "groups", Columns: append([]string{"sale_month", "unit", "category"}, append(append([]string{}, ltvColumns...), "avg_monthly_collected")...)}
	for _, g := range r.Groups {
		row := append([]any{g.SaleMonth, g.Unit, string(g.Category)}, ltvCells(g.LTVSummary)...)
		f.Rows = append(f.Rows, append(row, Round4(g.AvgMonthlyCollected)))
	}
	return []Frame{
		summaryFrame(viewName, []string{"excluded"}, r.Summary, r.Excluded),
		f,
	}
}

func renderAnnual(viewName string, r *metrics.AnnualReport) []Frame {
	f := Frame{View: viewName, Section: "years", Columns: append([]string{"year", "vigentes", "culminados"},
		append(append([]string{}, ltvColumns...), "ticket_cuota", "ticket_deberia", "ticket_collected")...)}
	for _, y := range sortedKeys(r.Years) {
		a := r.Years[y]
		row := append([]any{y, a.Current, a.Completed}, ltvCells(a.LTVSummary)...)
		f.Rows = append(f.Rows, append(row, Round4(a.TicketCuota), Round4(a.TicketDeberia), Round4(a.TicketCollected)))
	}
	return []Frame{f}
}
