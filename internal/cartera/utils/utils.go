package utils

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a money amount written with either es-AR/es-PY separators
// ("1.234.567,89") or en separators ("1,234,567.89"). Currency symbols, spaces and
// accounting parentheses are tolerated. ok is false for malformed input, in which
// case the amount is 0.
func ParseAmount(valStr string) (float64, bool) {
	s := strings.TrimSpace(valStr)
	if s == "" {
		return 0, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-':
			b.WriteRune(r)
		case r == '$', r == ' ', r == '\u00a0', unicode.IsLetter(r):
			// currency markers such as "Gs", "$", "USD"
		default:
			return 0, false
		}
	}
	clean := normalizeSeparators(b.String())
	if clean == "" || clean == "-" {
		return 0, false
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeSeparators decides which of '.' and ',' is the decimal separator.
// The right-most separator wins when both appear; a lone separator followed by
// exactly three digits is treated as a thousands separator.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	}
	return s
}

// ParseInt accepts integers written as "4", "4.0" or " 4 ". Malformed input yields 0, false.
func ParseInt(valStr string) (int, bool) {
	s := strings.TrimSpace(valStr)
	if s == "" {
		return 0, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// CanonicalContractID keeps only the digits of a contract identifier and drops
// leading zeros. Spreadsheet exports such as "12345.0" lose the zero fraction first.
func CanonicalContractID(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, ".,"); i > 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	id := strings.TrimLeft(b.String(), "0")
	if id == "" && b.Len() > 0 {
		return "0"
	}
	return id
}

// CleanLabel trims and upper-cases free-text dimension values so "Cobrador " and
// "COBRADOR" group together.
func CleanLabel(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}
