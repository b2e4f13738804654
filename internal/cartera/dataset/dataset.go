// Package dataset holds the four normalized feeds as one immutable Set and computes the
// content stamps that drive cache invalidation.
package dataset

import (
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/types"
)

// Set is a consistent view of every dataset. Calculators only read from it; a new
// ingest produces a new Set instead of mutating this one.
type Set struct {
	Portfolio   []types.PortfolioRow
	Collections []types.CollectionTransaction
	Contracts   []types.ContractMaster
	Assignments []types.AssignmentRecord
}

// Len returns the row count of one dataset.
func (s *Set) Len(kind types.DatasetKind) int {
	if s == nil {
		return 0
	}
	switch kind {
	case types.Cartera:
		return len(s.Portfolio)
	case types.Cobranzas:
		return len(s.Collections)
	case types.Contratos:
		return len(s.Contracts)
	case types.Gestores:
		return len(s.Assignments)
	}
	return 0
}

// Stamp identifies the content of one dataset: row count plus a fingerprint of the
// first and last rows. Replacing a dataset with a different one changes its stamp.
type Stamp string

func (s *Set) Stamp(kind types.DatasetKind) Stamp {
	n := s.Len(kind)
	if n == 0 {
		return Stamp(fmt.Sprintf("%s:0", kind))
	}

	h := fnv.New64a()
	s.writeRow(h, kind, 0)
	s.writeRow(h, kind, n-1)
	return Stamp(fmt.Sprintf("%s:%d:%016x", kind, n, h.Sum64()))
}

// Stamps returns the stamps of the given datasets in order.
func (s *Set) Stamps(kinds ...types.DatasetKind) []Stamp {
	out := make([]Stamp, len(kinds))
	for i, k := range kinds {
		out[i] = s.Stamp(k)
	}
	return out
}

func (s *Set) writeRow(w io.Writer, kind types.DatasetKind, i int) {
	switch kind {
	case types.Cartera:
		r := s.Portfolio[i]
		fmt.Fprintf(w, "%s|%d|%s|%d|%g|%g|%s|%d|%d", r.ContractID, r.ManagementMonth, r.BusinessUnit, r.Tramo,
			r.CuotaAmount, r.OverdueAmount, r.CollectionChannel, r.SaleMonth, r.CloseMonth)
	case types.Cobranzas:
		r := s.Collections[i]
		fmt.Fprintf(w, "%s|%d|%g|%s", r.ContractID, r.TransactionMonth, r.Amount, r.PaymentChannel)
	case types.Contratos:
		r := s.Contracts[i]
		fmt.Fprintf(w, "%s|%s|%s|%s|%d|%s", r.ContractID, r.BusinessUnit, r.Supervisor,
			r.SaleDate.Format(time.DateOnly), r.CompletionMonth, r.StatusCategory)
	case types.Gestores:
		r := s.Assignments[i]
		fmt.Fprintf(w, "%s|%d|%s", r.ContractID, r.AssignmentMonth, r.AgentName)
	}
}

// with returns a shallow copy of s with one dataset swapped in from res.
func (s *Set) with(res *ingest.Result) *Set {
	next := &Set{}
	if s != nil {
		*next = *s
	}
	switch res.Kind {
	case types.Cartera:
		next.Portfolio = res.Portfolio
	case types.Cobranzas:
		next.Collections = res.Collections
	case types.Contratos:
		next.Contracts = res.Contracts
	case types.Gestores:
		next.Assignments = res.Assignments
	}
	return next
}

// Info describes a loaded dataset for listings.
type Info struct {
	Kind     string    `json:"kind"`
	Rows     int       `json:"rows"`
	Stamp    Stamp     `json:"stamp"`
	BatchID  string    `json:"batch_id,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// Store publishes the current Set. Readers take a snapshot pointer and never see a
// half-replaced dataset.
type Store struct {
	mu      sync.RWMutex
	current *Set
	info    map[types.DatasetKind]Info
}

func NewStore() *Store {
	return &Store{current: &Set{}, info: make(map[types.DatasetKind]Info)}
}

// Current returns the published Set. It must be treated as read-only.
func (st *Store) Current() *Set {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Replace swaps one dataset wholesale with the rows of an ingest result.
func (st *Store) Replace(res *ingest.Result) Info {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.current = st.current.with(res)
	info := Info{
		Kind:     res.Kind.String(),
		Rows:     st.current.Len(res.Kind),
		Stamp:    st.current.Stamp(res.Kind),
		BatchID:  res.Report.BatchID,
		LoadedAt: time.Now(),
	}
	st.info[res.Kind] = info
	return info
}

// List returns one Info per dataset kind, loaded or not.
func (st *Store) List() []Info {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Info, 0, len(types.AllKinds))
	for _, k := range types.AllKinds {
		if info, ok := st.info[k]; ok {
			out = append(out, info)
			continue
		}
		out = append(out, Info{Kind: k.String(), Stamp: st.current.Stamp(k)})
	}
	return out
}
