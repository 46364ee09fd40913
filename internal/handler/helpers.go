package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
	"github.com/dukerupert/taskcal/internal/websocket"
)

const (
	perPage      = 50
	maxRangeDays = 731
)

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathInt(r, "id")
}

func parsePathInt(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clock reports the current calendar day in the household's time zone.
type clock struct {
	loc *time.Location
	now func() time.Time
}

func newClock(loc *time.Location) clock {
	if loc == nil {
		loc = time.Local
	}
	return clock{loc: loc, now: time.Now}
}

func (c clock) today() time.Time {
	return recurrence.Day(c.now().In(c.loc))
}

// queryDate reads a YYYY-MM-DD query parameter, falling back when absent.
func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := recurrence.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return d, nil
}

// queryInt reads a bounded integer query parameter.
func queryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}
	return n, nil
}

// paginate returns one page of items and the page count. showAll returns
// everything as a single page.
func paginate[T any](items []T, page int, showAll bool) ([]T, int) {
	if showAll {
		return items, 1
	}
	pages := (len(items) + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}, pages
	}
	end := min(start+perPage, len(items))
	return items[start:end], pages
}

// occurrenceSource loads tasks and schedules for expansion.
type occurrenceSource struct {
	tasks     *store.TaskStore
	schedules *store.ScheduleStore
}

func (s occurrenceSource) load() ([]model.Task, map[int64][]recurrence.Record, error) {
	tasks, err := s.tasks.List()
	if err != nil {
		return nil, nil, err
	}
	records, err := s.schedules.RecordsByTask()
	if err != nil {
		return nil, nil, err
	}
	return tasks, records, nil
}

// between expands every task's schedules over start..end inclusive and
// returns the task list alongside.
func (s occurrenceSource) between(start, end time.Time) ([]recurrence.Occurrence, []model.Task, error) {
	tasks, records, err := s.load()
	if err != nil {
		return nil, nil, err
	}
	core := make([]recurrence.Task, len(tasks))
	for i, t := range tasks {
		core[i] = t.Recurrence()
	}
	occ := recurrence.OccurrencesInRange(core, records, start, end)
	if occ == nil {
		occ = []recurrence.Occurrence{}
	}
	return occ, tasks, nil
}

func broadcaster(hub *websocket.Hub) func(websocket.Message) {
	return func(msg websocket.Message) {
		if hub != nil {
			hub.Broadcast(msg)
		}
	}
}
