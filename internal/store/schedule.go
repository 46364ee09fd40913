package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.Schedule, error) {
	var s model.Schedule
	var kind string
	var interval, dayOfMonth, timesCount, weekOfYear, month sql.NullInt64
	var startDate, endDate, dayOfWeek, ordinal, parity, firstOrLast, season, specificDate sql.NullString
	err := scanner.Scan(
		&s.ID, &s.TaskID, &kind, &interval, &startDate, &endDate, &dayOfWeek, &dayOfMonth,
		&ordinal, &parity, &firstOrLast, &timesCount, &weekOfYear, &month, &season,
		&specificDate, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Kind = recurrence.Kind(kind)
	s.Interval = intPtr(interval)
	s.StartDate = strPtr(startDate)
	s.EndDate = strPtr(endDate)
	s.DayOfWeek = strPtr(dayOfWeek)
	s.DayOfMonth = intPtr(dayOfMonth)
	s.Ordinal = strPtr(ordinal)
	s.MonthParity = strPtr(parity)
	s.FirstOrLast = strPtr(firstOrLast)
	s.TimesCount = intPtr(timesCount)
	s.WeekOfYear = intPtr(weekOfYear)
	s.Month = intPtr(month)
	s.Season = strPtr(season)
	s.SpecificDate = strPtr(specificDate)
	s.Description = recurrence.DescribeRecord(s.Record)
	return &s, nil
}

const scheduleCols = `id, task_id, kind, interval, start_date, end_date, day_of_week, day_of_month,
	ordinal, month_parity, first_or_last, times_count, week_of_year, month, season,
	specific_date, created_at`

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// value unwraps an optional field into a query argument, NULL when absent.
func value[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Create validates rec, drops fields that do not belong to its kind and
// attaches it to the task.
func (s *ScheduleStore) Create(taskID int64, rec recurrence.Record) (*model.Schedule, error) {
	rec, err := rec.Normalize()
	if err != nil {
		return nil, fmt.Errorf("validate schedule: %w", err)
	}
	result, err := s.db.Exec(
		`INSERT INTO schedules (task_id, kind, interval, start_date, end_date, day_of_week, day_of_month,
			ordinal, month_parity, first_or_last, times_count, week_of_year, month, season, specific_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, string(rec.Kind), value(rec.Interval), value(rec.StartDate), value(rec.EndDate),
		value(rec.DayOfWeek), value(rec.DayOfMonth), value(rec.Ordinal), value(rec.MonthParity),
		value(rec.FirstOrLast), value(rec.TimesCount), value(rec.WeekOfYear), value(rec.Month),
		value(rec.Season), value(rec.SpecificDate),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ScheduleStore) GetByID(id int64) (*model.Schedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

func (s *ScheduleStore) ListByTask(taskID int64) ([]model.Schedule, error) {
	rows, err := s.db.Query(`SELECT `+scheduleCols+` FROM schedules WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sched)
	}
	return schedules, rows.Err()
}

// RecordsByTask returns every stored schedule grouped by task ID, ready for
// recurrence.OccurrencesInRange.
func (s *ScheduleStore) RecordsByTask() (map[int64][]recurrence.Record, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleCols + ` FROM schedules ORDER BY task_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list all schedules: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]recurrence.Record)
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out[sched.TaskID] = append(out[sched.TaskID], sched.Record)
	}
	return out, rows.Err()
}

// Delete removes one schedule of a task. It reports whether a row matched.
func (s *ScheduleStore) Delete(taskID, id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM schedules WHERE id = ? AND task_id = ?`, id, taskID)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
