package recurrence

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Task is the slice of a task the expander reports on.
type Task struct {
	ID          int64
	Title       string
	ForEveryone bool
	Assignees   []string
}

// Occurrence is one date on which a task is due. It is computed on every
// query and never stored.
type Occurrence struct {
	Date        time.Time `json:"date"`
	TaskID      int64     `json:"task_id"`
	TaskTitle   string    `json:"task_title"`
	ForEveryone bool      `json:"for_everyone"`
	AssignedTo  []string  `json:"assigned_to"`
	ScheduleID  int64     `json:"schedule_id"`
}

// OccurrencesInRange lists every occurrence of every task's schedules between
// start and end inclusive, ordered by date, then task title, task ID and
// schedule ID. Schedules that fail to decode are logged and skipped.
func OccurrencesInRange(tasks []Task, schedules map[int64][]Record, start, end time.Time) []Occurrence {
	start, end = Day(start), Day(end)
	var out []Occurrence
	for _, task := range tasks {
		for _, rec := range schedules[task.ID] {
			rule, err := rec.Rule()
			if err != nil {
				logDecodeError(task.ID, rec, err)
				continue
			}
			for _, d := range Dates(rule, start, end) {
				out = append(out, Occurrence{
					Date:        d,
					TaskID:      task.ID,
					TaskTitle:   task.Title,
					ForEveryone: task.ForEveryone,
					AssignedTo:  task.Assignees,
					ScheduleID:  rec.ID,
				})
			}
		}
	}
	SortOccurrences(out)
	return out
}

// Dates lists the dates of one rule between start and end inclusive. Each
// step jumps straight to the next due date, and the cursor always moves past
// the date just emitted.
func Dates(rule Rule, start, end time.Time) []time.Time {
	var dates []time.Time
	cursor, end := Day(start), Day(end)
	for !cursor.After(end) {
		d, err := onOrAfter(rule, cursor)
		if err != nil {
			slog.Warn("cannot evaluate schedule", "kind", rule.Kind(), "error", err)
			break
		}
		if d.IsZero() {
			slog.Debug("schedule exhausted", "kind", rule.Kind(), "after", FormatDate(cursor))
			break
		}
		if d.Before(cursor) {
			slog.Error("schedule went backwards", "kind", rule.Kind(), "after", FormatDate(cursor), "got", FormatDate(d))
			break
		}
		if d.After(end) {
			break
		}
		dates = append(dates, d)
		cursor = nextDay(d)
	}
	return dates
}

// NextForTask returns the earliest occurrence strictly after from across a
// task's schedules, or a zero time when none of them recurs again.
func NextForTask(records []Record, from time.Time) (time.Time, Record) {
	return earliest(records, from, NextOccurrence)
}

// DueForTask is NextForTask counting an occurrence on day itself.
func DueForTask(records []Record, day time.Time) (time.Time, Record) {
	return earliest(records, Day(day), onOrAfter)
}

func earliest(records []Record, from time.Time, next func(Rule, time.Time) (time.Time, error)) (time.Time, Record) {
	var best time.Time
	var bestRec Record
	for _, rec := range records {
		rule, err := rec.Rule()
		if err != nil {
			logDecodeError(0, rec, err)
			continue
		}
		d, err := next(rule, from)
		if err != nil || d.IsZero() {
			continue
		}
		if best.IsZero() || d.Before(best) {
			best, bestRec = d, rec
		}
	}
	if best.IsZero() {
		slog.Debug("no further occurrences", "from", FormatDate(from), "schedules", len(records))
	}
	return best, bestRec
}

// SortOccurrences orders occurrences by date, then case-insensitive task
// title, task ID and schedule ID.
func SortOccurrences(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		a, b := occ[i], occ[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if ta, tb := strings.ToLower(a.TaskTitle), strings.ToLower(b.TaskTitle); ta != tb {
			return ta < tb
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		return a.ScheduleID < b.ScheduleID
	})
}

func logDecodeError(taskID int64, rec Record, err error) {
	if errors.Is(err, ErrUnknownKind) {
		slog.Warn("unknown schedule kind", "task_id", taskID, "schedule_id", rec.ID, "kind", rec.Kind)
		return
	}
	slog.Error("invalid schedule", "task_id", taskID, "schedule_id", rec.ID, "kind", rec.Kind, "error", err)
}
