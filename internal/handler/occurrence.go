package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/taskcal/internal/agenda"
	"github.com/dukerupert/taskcal/internal/auth"
	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
)

const (
	weekDays         = 7
	defaultUpcoming  = 180
	printDateLayout  = "01/02/2006"
	printParamLayout = "01022006"
)

type OccurrenceHandler struct {
	source occurrenceSource
	clock  clock
	logger *slog.Logger
}

func NewOccurrenceHandler(ts *store.TaskStore, ss *store.ScheduleStore, loc *time.Location, logger *slog.Logger) *OccurrenceHandler {
	return &OccurrenceHandler{
		source: occurrenceSource{tasks: ts, schedules: ss},
		clock:  newClock(loc),
		logger: logger,
	}
}

type rangeResponse struct {
	Start       string                  `json:"start"`
	End         string                  `json:"end"`
	Occurrences []recurrence.Occurrence `json:"occurrences"`
}

// Range lists occurrences between start and end inclusive. mine=1 keeps
// tasks for everyone plus those assigned to the caller.
func (h *OccurrenceHandler) Range(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	start, err := queryDate(r, "start", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := queryDate(r, "end", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range is limited to %d days", maxRangeDays))
		return
	}

	occ, ok := h.expand(w, r, start, end)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{
		Start:       recurrence.FormatDate(start),
		End:         recurrence.FormatDate(end),
		Occurrences: occ,
	})
}

type dayGroup struct {
	Date        string                  `json:"date"`
	Weekday     string                  `json:"weekday"`
	Occurrences []recurrence.Occurrence `json:"occurrences"`
}

// Week groups seven days of occurrences by date, starting today unless
// start is given. Days without occurrences are still listed.
func (h *OccurrenceHandler) Week(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start", h.clock.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end := start.AddDate(0, 0, weekDays-1)

	occ, ok := h.expand(w, r, start, end)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, groupByDay(occ, start, weekDays))
}

// groupByDay buckets occurrences into n consecutive days from start.
func groupByDay(occ []recurrence.Occurrence, start time.Time, n int) []dayGroup {
	days := make([]dayGroup, n)
	index := make(map[string]int, n)
	for i := range days {
		d := start.AddDate(0, 0, i)
		key := recurrence.FormatDate(d)
		days[i] = dayGroup{Date: key, Weekday: d.Weekday().String(), Occurrences: []recurrence.Occurrence{}}
		index[key] = i
	}
	for _, o := range occ {
		if i, ok := index[recurrence.FormatDate(o.Date)]; ok {
			days[i].Occurrences = append(days[i].Occurrences, o)
		}
	}
	return days
}

type monthResponse struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Lines []string `json:"lines"`
}

// Month renders the print view. The period is month=YYYY-MM, or start and
// end as MMDDYYYY, or the current month. format=text returns plain lines.
func (h *OccurrenceHandler) Month(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.printPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, ok := h.expand(w, r, start, end)
	if !ok {
		return
	}
	lines := printLines(occ)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
		return
	}
	writeJSON(w, http.StatusOK, monthResponse{
		Start: recurrence.FormatDate(start),
		End:   recurrence.FormatDate(end),
		Lines: lines,
	})
}

func (h *OccurrenceHandler) printPeriod(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if m := q.Get("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("month must be YYYY-MM")
		}
		start, end := monthBounds(t)
		return start, end, nil
	}
	if s, e := q.Get("start"), q.Get("end"); s != "" && e != "" {
		start, err := time.Parse(printParamLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start must be MMDDYYYY")
		}
		end, err := time.Parse(printParamLayout, e)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end must be MMDDYYYY")
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end is before start")
		}
		if end.Sub(start) > maxRangeDays*24*time.Hour {
			return time.Time{}, time.Time{}, fmt.Errorf("range is limited to %d days", maxRangeDays)
		}
		return start, end, nil
	}
	start, end := monthBounds(h.clock.today())
	return start, end, nil
}

func monthBounds(t time.Time) (time.Time, time.Time) {
	first := recurrence.Date(t.Year(), t.Month(), 1)
	return first, first.AddDate(0, 1, -1)
}

// printLines formats occurrences as "MM/DD/YYYY DAY Title".
func printLines(occ []recurrence.Occurrence) []string {
	lines := make([]string, len(occ))
	for i, o := range occ {
		day := strings.ToUpper(o.Date.Format("Mon"))
		lines[i] = fmt.Sprintf("%s %s %s", o.Date.Format(printDateLayout), day, o.TaskTitle)
	}
	return lines
}

// Upcoming lists occurrences from today (or start) for the next days days.
func (h *OccurrenceHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start", h.clock.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := queryInt(r, "days", defaultUpcoming, 1, maxRangeDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end := start.AddDate(0, 0, days)

	occ, ok := h.expand(w, r, start, end)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{
		Start:       recurrence.FormatDate(start),
		End:         recurrence.FormatDate(end),
		Occurrences: occ,
	})
}

// expand runs the range expander and applies the mine filter.
func (h *OccurrenceHandler) expand(w http.ResponseWriter, r *http.Request, start, end time.Time) ([]recurrence.Occurrence, bool) {
	occ, tasks, err := h.source.between(start, end)
	if err != nil {
		h.logger.Error("failed to expand occurrences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list occurrences")
		return nil, false
	}
	if r.URL.Query().Get("mine") == "1" {
		occ = mine(occ, tasks, auth.UserID(r.Context()))
	}
	return occ, true
}

func mine(occ []recurrence.Occurrence, tasks []model.Task, userID int64) []recurrence.Occurrence {
	assignees := make(map[int64][]int64, len(tasks))
	for _, t := range tasks {
		assignees[t.ID] = t.AssigneeIDs
	}
	return agenda.ForUser(occ, assignees, userID)
}
