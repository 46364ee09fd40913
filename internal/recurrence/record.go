package recurrence

import (
	"fmt"
	"time"
)

// Record is the flat, persisted form of a schedule. Only the fields of the
// active Kind are set; the rest stay nil.
type Record struct {
	ID           int64   `json:"id"`
	Kind         Kind    `json:"kind"`
	Interval     *int    `json:"interval,omitempty"`
	StartDate    *string `json:"start_date,omitempty"`
	EndDate      *string `json:"end_date,omitempty"`
	DayOfWeek    *string `json:"day_of_week,omitempty"`
	DayOfMonth   *int    `json:"day_of_month,omitempty"`
	Ordinal      *string `json:"ordinal,omitempty"`
	MonthParity  *string `json:"month_parity,omitempty"`
	FirstOrLast  *string `json:"first_or_last,omitempty"`
	TimesCount   *int    `json:"times_count,omitempty"`
	// WeekOfYear holds the week within Month (1 = days 1-7), not an ISO week.
	WeekOfYear   *int    `json:"week_of_year,omitempty"`
	Month        *int    `json:"month,omitempty"`
	Season       *string `json:"season,omitempty"`
	SpecificDate *string `json:"specific_date,omitempty"`
}

// Rule decodes and validates the record. Errors wrap ErrUnknownKind or
// ErrInvalidRule.
func (r Record) Rule() (Rule, error) {
	switch r.Kind {
	case KindIntervalDays, KindIntervalWeeks, KindIntervalMonths:
		n, start, end, err := r.intervalFields()
		if err != nil {
			return nil, err
		}
		switch r.Kind {
		case KindIntervalDays:
			return EveryNDays(n, start, end)
		case KindIntervalWeeks:
			return EveryNWeeks(n, start, end)
		default:
			return EveryNMonths(n, start, end)
		}

	case KindWeekly:
		day, err := r.weekday()
		if err != nil {
			return nil, err
		}
		return Weekly(day)

	case KindMonthlyDate:
		if r.DayOfMonth == nil {
			return nil, missing("day_of_month")
		}
		return MonthlyOnDay(*r.DayOfMonth)

	case KindFirstOfMonth:
		return FirstOfMonth(), nil

	case KindLastOfMonth:
		return LastOfMonth(), nil

	case KindOneTime:
		d, err := requiredDate("specific_date", r.SpecificDate)
		if err != nil {
			return nil, err
		}
		return OneTime(d)

	case KindOrdinalMonthly, KindOrdinalBimonthly:
		if r.Ordinal == nil {
			return nil, missing("ordinal")
		}
		o, err := ParseOrdinal(*r.Ordinal)
		if err != nil {
			return nil, err
		}
		day, err := r.weekday()
		if err != nil {
			return nil, err
		}
		if r.Kind == KindOrdinalMonthly {
			return OrdinalMonthly(o, day)
		}
		if r.MonthParity == nil {
			return nil, missing("month_parity")
		}
		p, err := ParseParity(*r.MonthParity)
		if err != nil {
			return nil, err
		}
		return OrdinalBimonthly(o, day, p)

	case KindFirstLastIntervalMonths:
		if r.FirstOrLast == nil {
			return nil, missing("first_or_last")
		}
		edge, err := ParseEdge(*r.FirstOrLast)
		if err != nil {
			return nil, err
		}
		n, start, end, err := r.intervalFields()
		if err != nil {
			return nil, err
		}
		return FirstLastEveryNMonths(edge, n, start, end)

	case KindTimesPerMonth:
		if r.TimesCount == nil {
			return nil, missing("times_count")
		}
		return TimesPerMonth(*r.TimesCount)

	case KindYearlyWeek:
		if r.WeekOfYear == nil {
			return nil, missing("week_of_year")
		}
		if r.Month == nil {
			return nil, missing("month")
		}
		return YearlyWeek(*r.WeekOfYear, time.Month(*r.Month))

	case KindYearlyDate:
		if r.Month == nil {
			return nil, missing("month")
		}
		if r.DayOfMonth == nil {
			return nil, missing("day_of_month")
		}
		return YearlyOnDate(time.Month(*r.Month), *r.DayOfMonth)

	case KindSeasonal:
		if r.Season == nil {
			return nil, missing("season")
		}
		s, err := ParseSeason(*r.Season)
		if err != nil {
			return nil, err
		}
		return Seasonal(s)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
}

func (r Record) intervalFields() (int, time.Time, *time.Time, error) {
	if r.Interval == nil {
		return 0, time.Time{}, nil, missing("interval")
	}
	start, err := requiredDate("start_date", r.StartDate)
	if err != nil {
		return 0, time.Time{}, nil, err
	}
	var end *time.Time
	if r.EndDate != nil && *r.EndDate != "" {
		e, err := ParseDate(*r.EndDate)
		if err != nil {
			return 0, time.Time{}, nil, fmt.Errorf("%w: end_date: %w", ErrInvalidRule, err)
		}
		end = &e
	}
	return *r.Interval, start, end, nil
}

func (r Record) weekday() (time.Weekday, error) {
	if r.DayOfWeek == nil {
		return 0, missing("day_of_week")
	}
	return ParseWeekday(*r.DayOfWeek)
}

func requiredDate(field string, s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, missing(field)
	}
	d, err := ParseDate(*s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrInvalidRule, field, err)
	}
	return d, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidRule, field)
}

// Encode flattens a rule into a Record with only that kind's fields set.
func Encode(rule Rule) Record {
	rec := Record{Kind: rule.Kind()}
	switch r := rule.(type) {
	case IntervalRule:
		rec.Interval = ptr(r.Interval)
		rec.StartDate = ptr(FormatDate(r.Start))
		rec.EndDate = datePtr(r.End)
	case WeeklyRule:
		rec.DayOfWeek = ptr(r.Day.String())
	case MonthlyDateRule:
		rec.DayOfMonth = ptr(r.Day)
	case OneTimeRule:
		rec.SpecificDate = ptr(FormatDate(r.Date))
	case OrdinalMonthlyRule:
		rec.Ordinal = ptr(r.Ordinal.String())
		rec.DayOfWeek = ptr(r.Day.String())
	case OrdinalBimonthlyRule:
		rec.Ordinal = ptr(r.Ordinal.String())
		rec.DayOfWeek = ptr(r.Day.String())
		rec.MonthParity = ptr(string(r.Parity))
	case FirstLastIntervalRule:
		rec.FirstOrLast = ptr(string(r.Edge))
		rec.Interval = ptr(r.Interval)
		rec.StartDate = ptr(FormatDate(r.Start))
		rec.EndDate = datePtr(r.End)
	case TimesPerMonthRule:
		rec.TimesCount = ptr(r.Count)
	case YearlyWeekRule:
		rec.WeekOfYear = ptr(r.Week)
		rec.Month = ptr(int(r.Month))
	case YearlyDateRule:
		rec.Month = ptr(int(r.Month))
		rec.DayOfMonth = ptr(r.Day)
	case SeasonalRule:
		rec.Season = ptr(string(r.Season))
	}
	return rec
}

// Normalize decodes and re-encodes the record, dropping fields that do not
// belong to its kind and canonicalizing names ("mon" becomes "Monday").
func (r Record) Normalize() (Record, error) {
	rule, err := r.Rule()
	if err != nil {
		return Record{}, err
	}
	out := Encode(rule)
	out.ID = r.ID
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return ptr(FormatDate(*t))
}
