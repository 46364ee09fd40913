package recurrence

import (
	"fmt"
	"strconv"
	"time"
)

// Describe renders a rule as a short English phrase such as
// "Every 3 days starting Jan 1, 2024 until Mar 1, 2024".
func Describe(rule Rule) string {
	switch r := rule.(type) {
	case IntervalRule:
		unit := map[Unit]string{Days: "day", Weeks: "week", Months: "month"}[r.Unit]
		return "Every " + period(r.Interval, unit) + " starting " + humanDate(r.Start) + until(r.End)
	case WeeklyRule:
		return "Every " + r.Day.String()
	case MonthlyDateRule:
		return "Monthly on the " + Nth(r.Day)
	case FirstOfMonthRule:
		return "First day of every month"
	case LastOfMonthRule:
		return "Last day of every month"
	case OneTimeRule:
		return "Once on " + humanDate(r.Date)
	case OrdinalMonthlyRule:
		return fmt.Sprintf("The %s %s of every month", r.Ordinal, r.Day)
	case OrdinalBimonthlyRule:
		return fmt.Sprintf("The %s %s of %s months", r.Ordinal, r.Day, r.Parity)
	case FirstLastIntervalRule:
		edge := map[Edge]string{FirstDay: "First", LastDay: "Last"}[r.Edge]
		return fmt.Sprintf("%s day of every %s starting %s%s",
			edge, period(r.Interval, "month"), humanDate(r.Start), until(r.End))
	case TimesPerMonthRule:
		if r.Count == 1 {
			return "Once a month"
		}
		return fmt.Sprintf("%d times a month", r.Count)
	case YearlyWeekRule:
		return fmt.Sprintf("Every year in the %s week of %s", Nth(r.Week), r.Month)
	case YearlyDateRule:
		return fmt.Sprintf("Every year on %s %d", r.Month, r.Day)
	case SeasonalRule:
		return "Every " + string(r.Season)
	}
	return "Unknown schedule"
}

// DescribeRecord describes a stored record, falling back to a fixed phrase
// when the record does not decode.
func DescribeRecord(rec Record) string {
	rule, err := rec.Rule()
	if err != nil {
		return "Invalid schedule"
	}
	return Describe(rule)
}

// Nth formats n with its English suffix: 1st, 2nd, 3rd, 4th, 11th, 22nd.
func Nth(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// period renders "day" for one unit and "3 days" for more.
func period(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func until(end *time.Time) string {
	if end == nil {
		return ""
	}
	return " until " + humanDate(*end)
}

func humanDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
