package utils

import (
	"strings"
	"unicode"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldHeader turns a column header into its lookup form: accents removed,
// lower-cased, runs of spaces/dashes/dots collapsed into "_".
// "Fecha Gestión" -> "fecha_gestion".
func FoldHeader(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	stripped = strings.ToLower(strings.TrimSpace(stripped))

	var b strings.Builder
	underscore := false
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// FoldColumns renames every column of df to its folded form in place.
func FoldColumns(df dataframe.DataFrame) error {
	names := df.Names()
	folded := make([]string, len(names))
	for i, n := range names {
		folded[i] = FoldHeader(n)
	}
	return df.SetNames(folded...)
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// ResolveColumn returns the first alias present in df, or "".
func ResolveColumn(df *dataframe.DataFrame, aliases []string) string {
	if df == nil {
		return ""
	}
	names := df.Names()
	for _, a := range aliases {
		if containsString(names, a) {
			return a
		}
	}
	return ""
}

// ColumnValues returns the whole column as trimmed strings, with NA cells as "".
// Reading a column once is far cheaper than df.Col(...).Elem(i) per cell, which
// copies the series on every call.
func ColumnValues(df *dataframe.DataFrame, col string) []string {
	if df == nil || col == "" || !containsString(df.Names(), col) {
		return nil
	}
	s := df.Col(col)
	out := make([]string, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		out[i] = strings.TrimSpace(e.String())
	}
	return out
}
