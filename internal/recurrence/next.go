package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// NextOccurrence returns the earliest date strictly after from on which the
// rule is due. One-time rules are the exception: they return their date while
// from is on or before it. A zero time means the rule has no further
// occurrence; an error means the rule itself could not be evaluated.
func NextOccurrence(rule Rule, from time.Time) (time.Time, error) {
	if rule == nil {
		return time.Time{}, errors.New("next occurrence: nil rule")
	}
	from = Day(from)

	switch r := rule.(type) {
	case IntervalRule:
		return bounded(nextInterval(r, from), r.End), nil
	case WeeklyRule:
		return nextWeekday(from, r.Day), nil
	case MonthlyDateRule:
		return nextMonthlyDate(from, r.Day), nil
	case FirstOfMonthRule:
		return Date(from.Year(), from.Month()+1, 1), nil
	case LastOfMonthRule:
		// Always the following month, even when from is early in its own.
		return Date(from.Year(), from.Month()+2, 0), nil
	case OneTimeRule:
		if from.After(r.Date) {
			return time.Time{}, nil
		}
		return r.Date, nil
	case OrdinalMonthlyRule:
		return nextOrdinal(from, r.Ordinal, r.Day, nil), nil
	case OrdinalBimonthlyRule:
		return nextOrdinal(from, r.Ordinal, r.Day, r.Parity.matches), nil
	case FirstLastIntervalRule:
		return bounded(nextFirstLast(r, from), r.End), nil
	case TimesPerMonthRule:
		return nextSpread(from, r.Count), nil
	case YearlyWeekRule:
		return nextYearly(from, r.Month, 7*(r.Week-1)+1), nil
	case YearlyDateRule:
		return nextYearly(from, r.Month, r.Day), nil
	case SeasonalRule:
		return nextYearly(from, seasonStart[r.Season], 1), nil
	}
	return time.Time{}, fmt.Errorf("next occurrence: %w: %T", ErrUnknownKind, rule)
}

// onOrAfter returns the first occurrence on or after day.
func onOrAfter(rule Rule, day time.Time) (time.Time, error) {
	switch rule.(type) {
	case OneTimeRule:
		return NextOccurrence(rule, day)
	case LastOfMonthRule:
		day = Day(day)
		return Date(day.Year(), day.Month()+1, 0), nil
	}
	return NextOccurrence(rule, prevDay(day))
}

func bounded(d time.Time, end *time.Time) time.Time {
	if end != nil && d.After(*end) {
		return time.Time{}
	}
	return d
}

func nextInterval(r IntervalRule, from time.Time) time.Time {
	if from.Before(r.Start) {
		return r.Start
	}
	switch r.Unit {
	case Days, Weeks:
		step := r.Interval
		if r.Unit == Weeks {
			step *= 7
		}
		k := daysBetween(r.Start, from)/step + 1
		return r.Start.AddDate(0, 0, k*step)
	default:
		k := floorDiv(monthsBetween(r.Start, from), r.Interval)
		for {
			y, m := addMonths(r.Start.Year(), r.Start.Month(), k*r.Interval)
			if d := clampedDate(y, m, r.Start.Day()); d.After(from) {
				return d
			}
			k++
		}
	}
}

func nextWeekday(from time.Time, day time.Weekday) time.Time {
	delta := (int(day) - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDate(0, 0, delta)
}

func nextMonthlyDate(from time.Time, day int) time.Time {
	if d := clampedDate(from.Year(), from.Month(), day); d.After(from) {
		return d
	}
	y, m := addMonths(from.Year(), from.Month(), 1)
	return clampedDate(y, m, day)
}

// ordinalWeekday resolves "the o-th wd of year/month". Last counts back from
// the month's final day.
func ordinalWeekday(year int, month time.Month, o Ordinal, wd time.Weekday) time.Time {
	if o == Last {
		last := Date(year, month+1, 0)
		back := (int(last.Weekday()) - int(wd) + 7) % 7
		return last.AddDate(0, 0, -back)
	}
	first := Date(year, month, 1)
	ahead := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, ahead+7*(int(o)-1))
}

func nextOrdinal(from time.Time, o Ordinal, wd time.Weekday, allow func(time.Month) bool) time.Time {
	y, m := from.Year(), from.Month()
	// Any month-parity filter admits one month in two, so three months suffice.
	for i := 0; i < 3; i++ {
		ym, mm := addMonths(y, m, i)
		if allow != nil && !allow(mm) {
			continue
		}
		if d := ordinalWeekday(ym, mm, o, wd); d.After(from) {
			return d
		}
	}
	return time.Time{}
}

func edgeOfMonth(year int, month time.Month, edge Edge) time.Time {
	if edge == LastDay {
		return Date(year, month+1, 0)
	}
	return Date(year, month, 1)
}

func nextFirstLast(r FirstLastIntervalRule, from time.Time) time.Time {
	floor := nextDay(from)
	if floor.Before(r.Start) {
		floor = r.Start
	}
	k := floorDiv(monthsBetween(r.Start, floor), r.Interval)
	if k < 0 {
		k = 0
	}
	for {
		y, m := addMonths(r.Start.Year(), r.Start.Month(), k*r.Interval)
		if d := edgeOfMonth(y, m, r.Edge); !d.Before(floor) {
			return d
		}
		k++
	}
}

// spreadDays returns count days spaced evenly through a month of n days,
// starting on the 1st.
func spreadDays(n, count int) []int {
	days := make([]int, count)
	for i := range days {
		days[i] = 1 + i*n/count
	}
	return days
}

func nextSpread(from time.Time, count int) time.Time {
	y, m := from.Year(), from.Month()
	for _, day := range spreadDays(daysInMonth(y, m), count) {
		if day > from.Day() {
			return Date(y, m, day)
		}
	}
	return Date(y, m+1, 1)
}

func nextYearly(from time.Time, month time.Month, day int) time.Time {
	if d := clampedDate(from.Year(), month, day); d.After(from) {
		return d
	}
	return clampedDate(from.Year()+1, month, day)
}
