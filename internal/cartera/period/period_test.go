package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMonthFormats(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"03/2025", "03/2025"},
		{"3/2025", "03/2025"},
		{"2025-03", "03/2025"},
		{"2025-03-17", "03/2025"},
		{"2025-03-17 10:22:00", "03/2025"},
		{"17/03/2025", "03/2025"},
		{"", UnknownLabel},
		{"not a date", UnknownLabel},
		{"31/02/2025", UnknownLabel},
		{"13/2025", UnknownLabel},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseMonth(c.in).String(), "input %q", c.in)
	}
}

func TestSerialIsMonotonicAcrossYears(t *testing.T) {
	dec := ParseMonth("12/2025")
	jan := ParseMonth("01/2026")
	assert.Equal(t, 1, jan.Sub(dec))
	assert.Equal(t, jan, dec.Add(1))
	assert.Equal(t, dec, jan.Add(-1))

	prev := ParseMonth("01/2020")
	for i := 0; i < 48; i++ {
		next := prev.Add(1)
		assert.Equal(t, 1, next.Sub(prev))
		prev = next
	}
	assert.Equal(t, "01/2024", prev.String())
}

func TestAge(t *testing.T) {
	sale := ParseMonth("01/2025")
	assert.Equal(t, 1, Age(sale, sale))
	assert.Equal(t, 3, Age(sale, ParseMonth("03/2025")))
	assert.Equal(t, 1, Age(sale, ParseMonth("12/2024")))
	assert.Equal(t, 1, Age(Unknown, sale))
}

func TestParseDateKeepsDay(t *testing.T) {
	d, ok := ParseDate("15/01/2025")
	assert.True(t, ok)
	assert.Equal(t, 15, d.Day())

	_, ok = ParseDate("garbage")
	assert.False(t, ok)
}
