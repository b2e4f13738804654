// Package filter models the user's filter selections and turns them, together with
// dataset stamps, into the signature that keys the view caches.
package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/alanchaparro/bi-sub000/internal/cartera/dataset"
	"github.com/alanchaparro/bi-sub000/internal/cartera/period"
	"github.com/alanchaparro/bi-sub000/internal/cartera/utils"
)

// ErrInvalidSelection wraps every rejected filter value.
var ErrInvalidSelection = errors.New("invalid filter selection")

type Dimension string

const (
	BusinessUnit      Dimension = "un"
	CollectionChannel Dimension = "via_cobro"
	PaymentChannel    Dimension = "via_pago"
	Tramo             Dimension = "tramo"
	ManagementMonth   Dimension = "gestion"
	SaleMonth         Dimension = "venta"
	SaleYear          Dimension = "anio_venta"
	Supervisor        Dimension = "supervisor"
	Agent             Dimension = "gestor"
	CompletionMonth   Dimension = "culminacion"
	Age               Dimension = "edad"
)

var Dimensions = []Dimension{
	BusinessUnit, CollectionChannel, PaymentChannel, Tramo, ManagementMonth,
	SaleMonth, SaleYear, Supervisor, Agent, CompletionMonth, Age,
}

func ParseDimension(s string) (Dimension, bool) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// Selection is the set of accepted values per dimension. A dimension that is absent
// or empty does not restrict anything.
type Selection map[Dimension][]string

// Add appends values to dimension d.
func (s Selection) Add(d Dimension, values ...string) Selection {
	s[d] = append(s[d], values...)
	return s
}

// canonical rewrites one value into the form rows carry after normalization, so
// "3/2025", "2025-03" and "03/2025" select the same month.
func canonical(d Dimension, v string) (string, error) {
	v = strings.TrimSpace(v)
	switch d {
	case ManagementMonth, SaleMonth, CompletionMonth:
		if strings.EqualFold(v, period.UnknownLabel) {
			return period.UnknownLabel, nil
		}
		m := period.ParseMonth(v)
		if !m.Known() {
			return "", fmt.Errorf("%w: month %q for %s", ErrInvalidSelection, v, d)
		}
		return m.String(), nil
	case Tramo, SaleYear, Age:
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w: number %q for %s", ErrInvalidSelection, v, d)
		}
		return strconv.Itoa(n), nil
	default:
		return utils.CleanLabel(v), nil
	}
}

// Normalize returns a copy with every value canonical, duplicates removed, values
// sorted and empty dimensions dropped. Insertion order never survives it.
func (s Selection) Normalize() (Selection, error) {
	out := make(Selection, len(s))
	for d, values := range s {
		if _, ok := ParseDimension(string(d)); !ok {
			return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidSelection, d)
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				continue
			}
			c, err := canonical(d, v)
			if err != nil {
				return nil, err
			}
			set[c] = struct{}{}
		}
		if len(set) == 0 {
			continue
		}
		sorted := make([]string, 0, len(set))
		for v := range set {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		out[d] = sorted
	}
	if ages := out[Age]; len(ages) > 1 {
		return nil, fmt.Errorf("%w: %s accepts a single value, got %d", ErrInvalidSelection, Age, len(ages))
	}
	return out, nil
}

// FromQuery reads a selection from URL query values. Repeated keys and
// comma-separated lists both add values; keys that are not dimensions are ignored.
func FromQuery(q url.Values) (Selection, error) {
	s := make(Selection)
	for key, values := range q {
		d, ok := ParseDimension(key)
		if !ok {
			continue
		}
		for _, v := range values {
			s.Add(d, strings.Split(v, ",")...)
		}
	}
	return s.Normalize()
}

type signaturePayload struct {
	View    string              `json:"view"`
	Filters map[string][]string `json:"filters"`
	Stamps  []dataset.Stamp     `json:"stamps"`
}

// Signature is equal for two calls exactly when the view, the normalized selection
// and the stamps of every dataset the view reads are equal.
func Signature(view string, s Selection, stamps []dataset.Stamp) (string, error) {
	norm, err := s.Normalize()
	if err != nil {
		return "", err
	}
	p := signaturePayload{View: view, Filters: make(map[string][]string, len(norm)), Stamps: stamps}
	for d, v := range norm {
		p.Filters[string(d)] = v
	}
	// encoding/json writes map keys sorted, so the encoding is stable
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode signature: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
