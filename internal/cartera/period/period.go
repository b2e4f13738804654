package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month is a year*12 + month serial. Consecutive months differ by exactly 1.
type Month int

// Unknown is the bucket assigned to dates that could not be parsed.
const Unknown Month = 0

const UnknownLabel = "SIN_FECHA"

func FromYM(year, month int) Month {
	if year <= 0 || month < 1 || month > 12 {
		return Unknown
	}
	return Month(year*12 + month)
}

func FromTime(t time.Time) Month {
	if t.IsZero() {
		return Unknown
	}
	return FromYM(t.Year(), int(t.Month()))
}

func (m Month) Known() bool { return m > 0 }

func (m Month) Year() int {
	if !m.Known() {
		return 0
	}
	return (int(m) - 1) / 12
}

func (m Month) MonthOfYear() int {
	if !m.Known() {
		return 0
	}
	return (int(m)-1)%12 + 1
}

// Add shifts the month by n (negative n goes back). Unknown stays Unknown.
func (m Month) Add(n int) Month {
	if !m.Known() {
		return Unknown
	}
	return m + Month(n)
}

// Sub returns the number of months between o and m (m - o).
func (m Month) Sub(o Month) int {
	return int(m) - int(o)
}

func (m Month) String() string {
	if !m.Known() {
		return UnknownLabel
	}
	return fmt.Sprintf("%02d/%04d", m.MonthOfYear(), m.Year())
}

// Age is the contract age in months at bucket: the sale month counts as month 1,
// so bucket == sale yields 1. Never below 1.
func Age(sale, bucket Month) int {
	if !sale.Known() || !bucket.Known() {
		return 1
	}
	age := bucket.Sub(sale) + 1
	if age < 1 {
		return 1
	}
	return age
}

// ParseMonth buckets a date string into its month. Accepted forms: MM/YYYY, M/YYYY,
// YYYY-MM, YYYY-MM-DD (optionally followed by a time), DD/MM/YYYY and YYYY/MM/DD.
// Anything else yields Unknown.
func ParseMonth(s string) Month {
	t, ok := parse(s)
	if !ok {
		return Unknown
	}
	return FromTime(t)
}

// ParseDate returns the exact day for day-precision inputs and the first day of the
// month for month-only inputs. ok is false when the string is not a recognised date.
func ParseDate(s string) (time.Time, bool) {
	return parse(s)
}

func parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	// drop a trailing time component: "2025-03-01 00:00:00", "2025-03-01T00:00:00Z"
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	sep := "/"
	if strings.Contains(s, "-") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	var y, mo, d int
	switch len(nums) {
	case 2:
		if len(parts[0]) == 4 {
			y, mo = nums[0], nums[1]
		} else {
			mo, y = nums[0], nums[1]
		}
		d = 1
	case 3:
		if len(parts[0]) == 4 {
			y, mo, d = nums[0], nums[1], nums[2]
		} else {
			d, mo, y = nums[0], nums[1], nums[2]
		}
	default:
		return time.Time{}, false
	}

	if y < 1900 || y > 2200 || mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// reject rollovers such as 31/02/2025
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
