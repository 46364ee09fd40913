package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownKind marks a schedule whose kind tag this package does not know.
	ErrUnknownKind = errors.New("unknown schedule kind")
	// ErrInvalidRule marks a schedule whose fields are missing or out of range.
	ErrInvalidRule = errors.New("invalid schedule")
)

type Kind string

const (
	KindIntervalDays            Kind = "interval_days"
	KindIntervalWeeks           Kind = "interval_weeks"
	KindIntervalMonths          Kind = "interval_months"
	KindWeekly                  Kind = "weekly"
	KindMonthlyDate             Kind = "monthly_date"
	KindFirstOfMonth            Kind = "first_of_month"
	KindLastOfMonth             Kind = "last_of_month"
	KindOneTime                 Kind = "one_time"
	KindOrdinalMonthly          Kind = "ordinal_monthly"
	KindOrdinalBimonthly        Kind = "ordinal_bimonthly"
	KindFirstLastIntervalMonths Kind = "first_last_interval_months"
	KindTimesPerMonth           Kind = "times_per_month"
	KindYearlyWeek              Kind = "yearly_week"
	KindYearlyDate              Kind = "yearly_date"
	KindSeasonal                Kind = "seasonal"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{
	KindIntervalDays, KindIntervalWeeks, KindIntervalMonths,
	KindWeekly, KindMonthlyDate, KindFirstOfMonth, KindLastOfMonth,
	KindOneTime, KindOrdinalMonthly, KindOrdinalBimonthly,
	KindFirstLastIntervalMonths, KindTimesPerMonth,
	KindYearlyWeek, KindYearlyDate, KindSeasonal,
}

// Rule is one recurrence rule. The concrete types below are the only
// implementations; switch on them to handle each kind.
type Rule interface {
	Kind() Kind
	rule()
}

// Unit is the step of an interval rule.
type Unit int

const (
	Days Unit = iota
	Weeks
	Months
)

var unitKinds = map[Unit]Kind{
	Days:   KindIntervalDays,
	Weeks:  KindIntervalWeeks,
	Months: KindIntervalMonths,
}

// Ordinal selects a weekday within a month. Last is the final one.
type Ordinal int

const (
	Last   Ordinal = -1
	First  Ordinal = 1
	Second Ordinal = 2
	Third  Ordinal = 3
	Fourth Ordinal = 4
)

var ordinalNames = map[Ordinal]string{
	First:  "first",
	Second: "second",
	Third:  "third",
	Fourth: "fourth",
	Last:   "last",
}

func (o Ordinal) String() string {
	return ordinalNames[o]
}

func ParseOrdinal(s string) (Ordinal, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for o, name := range ordinalNames {
		if name == key {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown ordinal %q", ErrInvalidRule, s)
}

// Parity picks even-numbered (Feb, Apr, ...) or odd-numbered (Jan, Mar, ...) months.
type Parity string

const (
	EvenMonths Parity = "even"
	OddMonths  Parity = "odd"
)

func (p Parity) matches(m time.Month) bool {
	if p == EvenMonths {
		return m%2 == 0
	}
	return m%2 == 1
}

func ParseParity(s string) (Parity, error) {
	switch Parity(strings.ToLower(strings.TrimSpace(s))) {
	case EvenMonths:
		return EvenMonths, nil
	case OddMonths:
		return OddMonths, nil
	}
	return "", fmt.Errorf("%w: unknown month parity %q", ErrInvalidRule, s)
}

// Edge is the first or last day of a month.
type Edge string

const (
	FirstDay Edge = "first"
	LastDay  Edge = "last"
)

func ParseEdge(s string) (Edge, error) {
	switch Edge(strings.ToLower(strings.TrimSpace(s))) {
	case FirstDay:
		return FirstDay, nil
	case LastDay:
		return LastDay, nil
	}
	return "", fmt.Errorf("%w: first_or_last must be first or last, got %q", ErrInvalidRule, s)
}

type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
	Winter Season = "winter"
)

// seasonStart is the meteorological first month of each season; the
// occurrence is the 1st of that month.
var seasonStart = map[Season]time.Month{
	Spring: time.March,
	Summer: time.June,
	Fall:   time.September,
	Winter: time.December,
}

func ParseSeason(s string) (Season, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "autumn" {
		return Fall, nil
	}
	if _, ok := seasonStart[Season(key)]; ok {
		return Season(key), nil
	}
	return "", fmt.Errorf("%w: unknown season %q", ErrInvalidRule, s)
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if key == name || (len(key) == 3 && key == name[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown day of week %q", ErrInvalidRule, s)
}

// --- Rule types ---

// IntervalRule recurs every Interval units on a grid anchored at Start.
type IntervalRule struct {
	Unit     Unit
	Interval int
	Start    time.Time
	End      *time.Time
}

type WeeklyRule struct {
	Day time.Weekday
}

// MonthlyDateRule recurs on Day each month, clamped to the month's length.
type MonthlyDateRule struct {
	Day int
}

type FirstOfMonthRule struct{}

type LastOfMonthRule struct{}

type OneTimeRule struct {
	Date time.Time
}

type OrdinalMonthlyRule struct {
	Ordinal Ordinal
	Day     time.Weekday
}

type OrdinalBimonthlyRule struct {
	Ordinal Ordinal
	Day     time.Weekday
	Parity  Parity
}

// FirstLastIntervalRule recurs on the first or last day of every Interval-th
// month, counted from Start's month.
type FirstLastIntervalRule struct {
	Edge     Edge
	Interval int
	Start    time.Time
	End      *time.Time
}

// TimesPerMonthRule spreads Count occurrences evenly over each month.
type TimesPerMonthRule struct {
	Count int
}

// YearlyWeekRule recurs once a year on the first day of week Week of Month,
// where week 1 is days 1-7, week 2 is days 8-14 and so on.
type YearlyWeekRule struct {
	Week  int
	Month time.Month
}

type YearlyDateRule struct {
	Month time.Month
	Day   int
}

type SeasonalRule struct {
	Season Season
}

func (r IntervalRule) Kind() Kind        { return unitKinds[r.Unit] }
func (WeeklyRule) Kind() Kind            { return KindWeekly }
func (MonthlyDateRule) Kind() Kind       { return KindMonthlyDate }
func (FirstOfMonthRule) Kind() Kind      { return KindFirstOfMonth }
func (LastOfMonthRule) Kind() Kind       { return KindLastOfMonth }
func (OneTimeRule) Kind() Kind           { return KindOneTime }
func (OrdinalMonthlyRule) Kind() Kind    { return KindOrdinalMonthly }
func (OrdinalBimonthlyRule) Kind() Kind  { return KindOrdinalBimonthly }
func (FirstLastIntervalRule) Kind() Kind { return KindFirstLastIntervalMonths }
func (TimesPerMonthRule) Kind() Kind     { return KindTimesPerMonth }
func (YearlyWeekRule) Kind() Kind        { return KindYearlyWeek }
func (YearlyDateRule) Kind() Kind        { return KindYearlyDate }
func (SeasonalRule) Kind() Kind          { return KindSeasonal }

func (IntervalRule) rule()          {}
func (WeeklyRule) rule()            {}
func (MonthlyDateRule) rule()       {}
func (FirstOfMonthRule) rule()      {}
func (LastOfMonthRule) rule()       {}
func (OneTimeRule) rule()           {}
func (OrdinalMonthlyRule) rule()    {}
func (OrdinalBimonthlyRule) rule()  {}
func (FirstLastIntervalRule) rule() {}
func (TimesPerMonthRule) rule()     {}
func (YearlyWeekRule) rule()        {}
func (YearlyDateRule) rule()        {}
func (SeasonalRule) rule()          {}

// --- Constructors ---

func EveryNDays(n int, start time.Time, end *time.Time) (IntervalRule, error) {
	return newInterval(Days, n, start, end)
}

func EveryNWeeks(n int, start time.Time, end *time.Time) (IntervalRule, error) {
	return newInterval(Weeks, n, start, end)
}

func EveryNMonths(n int, start time.Time, end *time.Time) (IntervalRule, error) {
	return newInterval(Months, n, start, end)
}

func newInterval(unit Unit, n int, start time.Time, end *time.Time) (IntervalRule, error) {
	if n <= 0 {
		return IntervalRule{}, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRule, n)
	}
	if start.IsZero() {
		return IntervalRule{}, fmt.Errorf("%w: start date is required", ErrInvalidRule)
	}
	return IntervalRule{Unit: unit, Interval: n, Start: Day(start), End: dayPtr(end)}, nil
}

func Weekly(day time.Weekday) (WeeklyRule, error) {
	if day < time.Sunday || day > time.Saturday {
		return WeeklyRule{}, fmt.Errorf("%w: invalid weekday %d", ErrInvalidRule, day)
	}
	return WeeklyRule{Day: day}, nil
}

func MonthlyOnDay(day int) (MonthlyDateRule, error) {
	if day < 1 || day > 31 {
		return MonthlyDateRule{}, fmt.Errorf("%w: day of month must be 1-31, got %d", ErrInvalidRule, day)
	}
	return MonthlyDateRule{Day: day}, nil
}

func FirstOfMonth() FirstOfMonthRule { return FirstOfMonthRule{} }

func LastOfMonth() LastOfMonthRule { return LastOfMonthRule{} }

func OneTime(date time.Time) (OneTimeRule, error) {
	if date.IsZero() {
		return OneTimeRule{}, fmt.Errorf("%w: specific date is required", ErrInvalidRule)
	}
	return OneTimeRule{Date: Day(date)}, nil
}

func OrdinalMonthly(o Ordinal, day time.Weekday) (OrdinalMonthlyRule, error) {
	if _, ok := ordinalNames[o]; !ok {
		return OrdinalMonthlyRule{}, fmt.Errorf("%w: invalid ordinal %d", ErrInvalidRule, o)
	}
	if _, err := Weekly(day); err != nil {
		return OrdinalMonthlyRule{}, err
	}
	return OrdinalMonthlyRule{Ordinal: o, Day: day}, nil
}

func OrdinalBimonthly(o Ordinal, day time.Weekday, parity Parity) (OrdinalBimonthlyRule, error) {
	base, err := OrdinalMonthly(o, day)
	if err != nil {
		return OrdinalBimonthlyRule{}, err
	}
	if parity != EvenMonths && parity != OddMonths {
		return OrdinalBimonthlyRule{}, fmt.Errorf("%w: invalid month parity %q", ErrInvalidRule, parity)
	}
	return OrdinalBimonthlyRule{Ordinal: base.Ordinal, Day: base.Day, Parity: parity}, nil
}

func FirstLastEveryNMonths(edge Edge, n int, start time.Time, end *time.Time) (FirstLastIntervalRule, error) {
	if edge != FirstDay && edge != LastDay {
		return FirstLastIntervalRule{}, fmt.Errorf("%w: invalid edge %q", ErrInvalidRule, edge)
	}
	base, err := newInterval(Months, n, start, end)
	if err != nil {
		return FirstLastIntervalRule{}, err
	}
	return FirstLastIntervalRule{Edge: edge, Interval: base.Interval, Start: base.Start, End: base.End}, nil
}

// MaxTimesPerMonth keeps every spread day distinct even in February.
const MaxTimesPerMonth = 28

func TimesPerMonth(count int) (TimesPerMonthRule, error) {
	if count < 1 || count > MaxTimesPerMonth {
		return TimesPerMonthRule{}, fmt.Errorf("%w: times per month must be 1-%d, got %d", ErrInvalidRule, MaxTimesPerMonth, count)
	}
	return TimesPerMonthRule{Count: count}, nil
}

func YearlyWeek(week int, month time.Month) (YearlyWeekRule, error) {
	if week < 1 || week > 5 {
		return YearlyWeekRule{}, fmt.Errorf("%w: week must be 1-5, got %d", ErrInvalidRule, week)
	}
	if month < time.January || month > time.December {
		return YearlyWeekRule{}, fmt.Errorf("%w: month must be 1-12, got %d", ErrInvalidRule, month)
	}
	return YearlyWeekRule{Week: week, Month: month}, nil
}

func YearlyOnDate(month time.Month, day int) (YearlyDateRule, error) {
	if month < time.January || month > time.December {
		return YearlyDateRule{}, fmt.Errorf("%w: month must be 1-12, got %d", ErrInvalidRule, month)
	}
	// 2024 is a leap year, so Feb 29 passes here and clamps in other years.
	if day < 1 || day > daysInMonth(2024, month) {
		return YearlyDateRule{}, fmt.Errorf("%w: %s has no day %d", ErrInvalidRule, month, day)
	}
	return YearlyDateRule{Month: month, Day: day}, nil
}

func Seasonal(season Season) (SeasonalRule, error) {
	if _, ok := seasonStart[season]; !ok {
		return SeasonalRule{}, fmt.Errorf("%w: unknown season %q", ErrInvalidRule, season)
	}
	return SeasonalRule{Season: season}, nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}
