// Package ingest validates a decoded feed against its column contract and turns it
// into normalized typed rows.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"

	"github.com/alanchaparro/bi-sub000/internal/cartera/converter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/files"
	"github.com/alanchaparro/bi-sub000/internal/cartera/normalize"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/utils"
	"github.com/alanchaparro/bi-sub000/internal/cartera/yield"
	"github.com/alanchaparro/bi-sub000/internal/logger"
)

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrEmptyDataset   = files.ErrEmptyFile
	ErrUnknownKind    = errors.New("unknown dataset kind")
)

// SampleLimit caps how many offending line numbers a report keeps per issue.
const SampleLimit = 5

// IsValidation reports whether err is a fatal validation failure, as opposed to an I/O error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingColumns) || errors.Is(err, ErrEmptyDataset) || errors.Is(err, ErrUnknownKind)
}

// Validate folds the headers of df and resolves every field of the dataset's column
// contract. Missing required fields are fatal; missing optional ones come back as warnings.
func Validate(kind types.DatasetKind, df dataframe.DataFrame) (converter.Columns, []string, error) {
	contract, ok := ContractFor(kind)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if err := df.Error(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	if df.Nrow() == 0 {
		return nil, nil, fmt.Errorf("%s: %w", kind, ErrEmptyDataset)
	}
	if err := utils.FoldColumns(df); err != nil {
		return nil, nil, fmt.Errorf("failed to fold headers: %w", err)
	}

	cols := make(converter.Columns)
	var missing []string
	for field, aliases := range contract.Required {
		col := utils.ResolveColumn(&df, aliases)
		if col == "" {
			missing = append(missing, field)
			continue
		}
		cols[field] = col
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, nil, fmt.Errorf("%s: %w: %s", kind, ErrMissingColumns, strings.Join(missing, ", "))
	}

	var warnings []string
	for field, aliases := range contract.Optional {
		col := utils.ResolveColumn(&df, aliases)
		if col == "" {
			warnings = append(warnings, fmt.Sprintf("optional column %s not found", field))
			continue
		}
		cols[field] = col
	}
	sort.Strings(warnings)
	return cols, warnings, nil
}

// Report summarizes one ingest run.
type Report struct {
	BatchID    string   `json:"batch_id"`
	Kind       string   `json:"kind"`
	RowsRead   int      `json:"rows_read"`
	RowsKept   int      `json:"rows_kept"`
	BlankIDs   int      `json:"blank_ids"`
	BadDates   int      `json:"bad_dates"`
	BadNumbers int      `json:"bad_numbers"`
	Samples    []int    `json:"samples,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// IssueCount adds up the dropped or defaulted rows and the column warnings.
func (r *Report) IssueCount() int {
	return r.BlankIDs + r.BadDates + r.BadNumbers + len(r.Warnings)
}

func (r *Report) HasIssues() bool { return r.IssueCount() > 0 }

func (r *Report) note(issues normalize.Issue, line int) {
	if issues == 0 {
		return
	}
	if issues.Has(normalize.IssueBlankID) {
		r.BlankIDs++
	}
	if issues.Has(normalize.IssueBadDate) {
		r.BadDates++
	}
	if issues.Has(normalize.IssueBadNumber) {
		r.BadNumbers++
	}
	if len(r.Samples) < SampleLimit {
		r.Samples = append(r.Samples, line)
	}
}

// Result carries the rows of the ingested dataset; only the slice matching Kind is set.
type Result struct {
	Kind        types.DatasetKind
	Portfolio   []types.PortfolioRow
	Collections []types.CollectionTransaction
	Contracts   []types.ContractMaster
	Assignments []types.AssignmentRecord
	Report      Report
}

func (r *Result) Len() int {
	switch r.Kind {
	case types.Cartera:
		return len(r.Portfolio)
	case types.Cobranzas:
		return len(r.Collections)
	case types.Contratos:
		return len(r.Contracts)
	case types.Gestores:
		return len(r.Assignments)
	}
	return 0
}

// Ingest validates df and converts every row. Rows with a blank contract id are dropped;
// any other row-level problem is normalized to a safe default and only counted.
func Ingest(ctx context.Context, kind types.DatasetKind, df dataframe.DataFrame, appLogger *logger.Logger) (*Result, error) {
	const component = "Ingest"

	cols, warnings, err := Validate(kind, df)
	if err != nil {
		appLogger.Error(component, "Validation failed: dataset=%s err=%v", kind, err)
		return nil, err
	}

	table := converter.NewTable(df, cols)
	res := &Result{
		Kind: kind,
		Report: Report{
			BatchID:  uuid.NewString(),
			Kind:     kind.String(),
			RowsRead: table.Nrow(),
			Warnings: warnings,
		},
	}
	appLogger.Info(component, "Ingesting dataset: dataset=%s rows=%d batch=%s", kind, table.Nrow(), res.Report.BatchID)

	for i := 0; i < table.Nrow(); i++ {
		if err := yield.Every(ctx, i); err != nil {
			return nil, fmt.Errorf("ingest %s interrupted at row %d: %w", kind, i, err)
		}

		var issues normalize.Issue
		switch kind {
		case types.Cartera:
			var row types.PortfolioRow
			row, issues = table.RowToPortfolio(i)
			if !issues.Has(normalize.IssueBlankID) {
				res.Portfolio = append(res.Portfolio, row)
			}
		case types.Cobranzas:
			var row types.CollectionTransaction
			row, issues = table.RowToCollection(i)
			if !issues.Has(normalize.IssueBlankID) {
				res.Collections = append(res.Collections, row)
			}
		case types.Contratos:
			var row types.ContractMaster
			row, issues = table.RowToContract(i)
			if !issues.Has(normalize.IssueBlankID) {
				res.Contracts = append(res.Contracts, row)
			}
		case types.Gestores:
			var row types.AssignmentRecord
			row, issues = table.RowToAssignment(i)
			if !issues.Has(normalize.IssueBlankID) {
				res.Assignments = append(res.Assignments, row)
			}
		}
		// +2: one for the header, one for 1-based line numbers
		res.Report.note(issues, i+2)
	}
	res.Report.RowsKept = res.Len()

	if res.Report.HasIssues() {
		appLogger.Warn(component, "Row issues: dataset=%s blankIds=%d badDates=%d badNumbers=%d samples=%v warnings=%v",
			kind, res.Report.BlankIDs, res.Report.BadDates, res.Report.BadNumbers, res.Report.Samples, res.Report.Warnings)
	}
	appLogger.Info(component, "Dataset ingested: dataset=%s kept=%d of %d", kind, res.Report.RowsKept, res.Report.RowsRead)
	return res, nil
}
