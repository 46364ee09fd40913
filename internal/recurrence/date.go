package recurrence

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for stored schedule dates.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Date returns the calendar day y-m-d as a UTC midnight time.
// Out-of-range days normalize the way time.Date does.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day strips the clock and zone from t, keeping its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string into a calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampedDate builds year/month/day, pulling day back to the month's last day
// when the month is too short.
func clampedDate(year int, month time.Month, day int) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return Date(year, month, day)
}

// addMonths moves (year, month) by n months without touching the day.
func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month-1) + n
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
}

// daysBetween counts calendar days from a to b on Unix seconds; a
// time.Duration overflows past roughly 292 years.
func daysBetween(a, b time.Time) int {
	return int((Day(b).Unix() - Day(a).Unix()) / secondsPerDay)
}

func nextDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}

func prevDay(t time.Time) time.Time {
	return t.AddDate(0, 0, -1)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
