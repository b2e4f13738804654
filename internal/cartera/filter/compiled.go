package filter

import (
	"strconv"

	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
)

// Match is a compiled set of accepted values. The zero Match accepts everything.
type Match struct {
	values map[string]struct{}
}

func newMatch(values []string) Match {
	if len(values) == 0 {
		return Match{}
	}
	m := Match{values: make(map[string]struct{}, len(values))}
	for _, v := range values {
		m.values[v] = struct{}{}
	}
	return m
}

func (m Match) Active() bool { return len(m.values) > 0 }

func (m Match) Allows(v string) bool {
	if !m.Active() {
		return true
	}
	_, ok := m.values[v]
	return ok
}

func (m Match) AllowsInt(n int) bool {
	if !m.Active() {
		return true
	}
	return m.Allows(strconv.Itoa(n))
}

func (m Match) AllowsMonth(p period.Month) bool {
	if !m.Active() {
		return true
	}
	return m.Allows(p.String())
}

// Compiled is a normalized selection ready for per-row checks.
type Compiled struct {
	BusinessUnit      Match
	CollectionChannel Match
	PaymentChannel    Match
	Tramo             Match
	ManagementMonth   Match
	SaleMonth         Match
	SaleYear          Match
	Supervisor        Match
	Agent             Match
	CompletionMonth   Match

	// FixedAge is the selected "edad", 0 when none.
	FixedAge int
}

// Compile normalizes s and builds its matchers.
func (s Selection) Compile() (Compiled, error) {
	n, err := s.Normalize()
	if err != nil {
		return Compiled{}, err
	}
	c := Compiled{
		BusinessUnit:      newMatch(n[BusinessUnit]),
		CollectionChannel: newMatch(n[CollectionChannel]),
		PaymentChannel:    newMatch(n[PaymentChannel]),
		Tramo:             newMatch(n[Tramo]),
		ManagementMonth:   newMatch(n[ManagementMonth]),
		SaleMonth:         newMatch(n[SaleMonth]),
		SaleYear:          newMatch(n[SaleYear]),
		Supervisor:        newMatch(n[Supervisor]),
		Agent:             newMatch(n[Agent]),
		CompletionMonth:   newMatch(n[CompletionMonth]),
	}
	if ages := n[Age]; len(ages) == 1 {
		c.FixedAge, _ = strconv.Atoi(ages[0])
	}
	return c, nil
}

// SaleAllowed checks the sale month and sale year filters.
func (c Compiled) SaleAllowed(sale period.Month) bool {
	if !c.SaleMonth.AllowsMonth(sale) {
		return false
	}
	return !c.SaleYear.Active() || c.SaleYear.AllowsInt(sale.Year())
}
