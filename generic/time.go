package generic

import (
	"time"
)

// =============================================================================
// DAY - Calendar day key used by every persisted per-day map
// =============================================================================

// DayLayout is the format of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar day in UTC, formatted "YYYY-MM-DD".
type Day string

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// ParseDay parses a Day. The empty string is not a valid day.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", err
	}
	return DayOf(t), nil
}

func (d Day) String() string { return string(d) }
func (d Day) IsZero() bool   { return d == "" }

// Time returns midnight UTC of the day, or the zero time if d is malformed.
func (d Day) Time() time.Time {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	t := d.Time()
	if t.IsZero() {
		return d
	}
	return DayOf(t.AddDate(0, 0, n))
}

func (d Day) Before(other Day) bool { return d.Time().Before(other.Time()) }
func (d Day) After(other Day) bool  { return d.Time().After(other.Time()) }

// LastNDays returns n days ending at (and including) d, newest first.
func LastNDays(d Day, n int) []Day {
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, d.AddDays(-i))
	}
	return days
}

// DaysBetween returns the whole number of days from -> to.
func DaysBetween(from, to Day) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}
