// Package normalize fills the canonical fields of ingested rows. Every function is
// idempotent: canonical values are derived from the raw fields only, so running a
// normalizer twice leaves the row unchanged.
package normalize

import (
	"strings"

	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
	"github.com/alanchaparro/bi-sub000/internal/cartera/utils"
)

// Issue flags row-level data problems. They never reject a row on their own.
type Issue uint8

const (
	IssueBlankID Issue = 1 << iota
	IssueBadDate
	IssueBadNumber
)

func (i Issue) Has(flag Issue) bool { return i&flag != 0 }

const (
	NoChannel    = "SIN_VIA"
	NoAgent      = "SIN_GESTOR"
	NoSupervisor = "SIN_SUPERVISOR"
	NoUnit       = "SIN_UN"
)

func label(raw, fallback string) string {
	if v := utils.CleanLabel(raw); v != "" {
		return v
	}
	return fallback
}

// optionalMonth parses a date that may legitimately be blank.
func optionalMonth(raw string) (period.Month, Issue) {
	if strings.TrimSpace(raw) == "" {
		return period.Unknown, 0
	}
	m := period.ParseMonth(raw)
	if !m.Known() {
		return period.Unknown, IssueBadDate
	}
	return m, 0
}

func requiredMonth(raw string) (period.Month, Issue) {
	m := period.ParseMonth(raw)
	if !m.Known() {
		return period.Unknown, IssueBadDate
	}
	return m, 0
}

func Portfolio(r *types.PortfolioRow) Issue {
	var issues Issue

	r.ContractID = utils.CanonicalContractID(r.RawContractID)
	if r.ContractID == "" {
		issues |= IssueBlankID
	}

	var iss Issue
	r.ManagementMonth, iss = requiredMonth(r.RawManagementDate)
	issues |= iss
	r.SaleMonth, iss = optionalMonth(r.RawSaleDate)
	issues |= iss
	r.CloseMonth, iss = optionalMonth(r.RawCloseDate)
	issues |= iss

	r.BusinessUnit = label(r.BusinessUnit, NoUnit)
	r.CollectionChannel = label(r.CollectionChannel, NoChannel)
	if r.Tramo < 0 {
		r.Tramo = 0
	}
	r.StatusCategory = types.CategoryForTramo(r.Tramo)
	r.Normalized = true
	return issues
}

func Collection(r *types.CollectionTransaction) Issue {
	var issues Issue

	r.ContractID = utils.CanonicalContractID(r.RawContractID)
	if r.ContractID == "" {
		issues |= IssueBlankID
	}

	var iss Issue
	r.TransactionMonth, iss = requiredMonth(r.RawTransactionDate)
	issues |= iss

	r.PaymentChannel = label(r.PaymentChannel, NoChannel)
	r.Normalized = true
	return issues
}

var completedMarkers = []string{"CULMIN", "FINALIZ", "CANCELAD", "PAGADO", "CERRADO"}

func contractStatus(status string, completion period.Month) types.StatusCategory {
	s := utils.CleanLabel(status)
	for _, marker := range completedMarkers {
		if strings.Contains(s, marker) {
			return types.StatusCompleted
		}
	}
	if completion.Known() {
		return types.StatusCompleted
	}
	if s == "" {
		return types.StatusUnknown
	}
	return types.StatusCurrent
}

func Contract(r *types.ContractMaster) Issue {
	var issues Issue

	r.ContractID = utils.CanonicalContractID(r.RawContractID)
	if r.ContractID == "" {
		issues |= IssueBlankID
	}

	if d, ok := period.ParseDate(r.RawSaleDate); ok {
		r.SaleDate = d
		r.SaleMonth = period.FromTime(d)
	} else {
		r.SaleMonth = period.Unknown
		if strings.TrimSpace(r.RawSaleDate) != "" {
			issues |= IssueBadDate
		}
	}

	var iss Issue
	r.CompletionMonth, iss = optionalMonth(r.RawCompletionDate)
	issues |= iss

	r.BusinessUnit = label(r.BusinessUnit, NoUnit)
	r.Supervisor = label(r.Supervisor, NoSupervisor)
	r.StatusCategory = contractStatus(r.Status, r.CompletionMonth)
	r.Normalized = true
	return issues
}

func Assignment(r *types.AssignmentRecord) Issue {
	var issues Issue

	r.ContractID = utils.CanonicalContractID(r.RawContractID)
	if r.ContractID == "" {
		issues |= IssueBlankID
	}

	var iss Issue
	r.AssignmentMonth, iss = requiredMonth(r.RawAssignmentMonth)
	issues |= iss

	r.AgentName = label(r.AgentName, NoAgent)
	r.Normalized = true
	return issues
}
