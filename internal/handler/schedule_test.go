package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
)

func TestScheduleCreateListDelete(t *testing.T) {
	e := setupHandlerTest(t)
	task := e.addTask(t, "Change HVAC filter")
	id := strconv.FormatInt(task.ID, 10)

	body := recurrence.Record{
		Kind:      recurrence.KindIntervalMonths,
		Interval:  num(3),
		StartDate: str("2024-01-15"),
		Season:    str("winter"),
	}
	rec := serve(e.scheduleH.Create, request("POST", "/api/tasks/"+id+"/schedules", body, e.ana, "id", id))
	expectStatus(t, rec, http.StatusCreated)
	created := decode[model.Schedule](t, rec)
	if created.Description != "Every 3 months starting Jan 15, 2024" {
		t.Errorf("description = %q", created.Description)
	}
	if created.Season != nil {
		t.Error("unrelated field was stored")
	}

	rec = serve(e.scheduleH.List, request("GET", "/api/tasks/"+id+"/schedules", nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]model.Schedule](t, rec); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}

	sid := strconv.FormatInt(created.ID, 10)
	rec = serve(e.scheduleH.Delete, request("DELETE", "/", nil, e.ana, "id", "999", "schedule_id", sid))
	expectStatus(t, rec, http.StatusNotFound)

	rec = serve(e.scheduleH.Delete, request("DELETE", "/", nil, e.ana, "id", id, "schedule_id", sid))
	expectStatus(t, rec, http.StatusNoContent)

	rec = serve(e.scheduleH.List, request("GET", "/", nil, e.ana, "id", id))
	if list := decode[[]model.Schedule](t, rec); len(list) != 0 {
		t.Errorf("schedules after delete = %d", len(list))
	}
}

func TestScheduleCreateRejectsInvalid(t *testing.T) {
	e := setupHandlerTest(t)
	task := e.addTask(t, "Bins")
	id := strconv.FormatInt(task.ID, 10)

	for _, body := range []recurrence.Record{
		{Kind: recurrence.KindWeekly},
		{Kind: recurrence.KindWeekly, DayOfWeek: str("someday")},
		{Kind: "fortnightly"},
		{Kind: recurrence.KindTimesPerMonth, TimesCount: num(29)},
	} {
		rec := serve(e.scheduleH.Create, request("POST", "/", body, e.ana, "id", id))
		expectStatus(t, rec, http.StatusBadRequest)
	}

	rec := serve(e.scheduleH.Create, request("POST", "/", recurrence.Record{Kind: recurrence.KindFirstOfMonth}, e.ana, "id", "404"))
	expectStatus(t, rec, http.StatusNotFound)
}

func TestScheduleNext(t *testing.T) {
	e := setupHandlerTest(t)
	task := e.addTask(t, "Pay rent",
		recurrence.Record{Kind: recurrence.KindFirstOfMonth},
		recurrence.Record{Kind: recurrence.KindMonthlyDate, DayOfMonth: num(15)},
	)
	id := strconv.FormatInt(task.ID, 10)

	rec := serve(e.scheduleH.Next, request("GET", "/api/tasks/"+id+"/next?from=2024-06-15", nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusOK)
	got := decode[nextResponse](t, rec)
	if got.Next == nil || *got.Next != "2024-07-01" || got.Description != "First day of every month" {
		t.Errorf("next = %+v", got)
	}

	// Defaults to today, 2024-06-10.
	rec = serve(e.scheduleH.Next, request("GET", "/api/tasks/"+id+"/next", nil, e.ana, "id", id))
	got = decode[nextResponse](t, rec)
	if got.From != "2024-06-10" || got.Next == nil || *got.Next != "2024-06-15" {
		t.Errorf("next from today = %+v", got)
	}

	rec = serve(e.scheduleH.Next, request("GET", "/?from=06/15/2024", nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusBadRequest)

	done := e.addTask(t, "Once", recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2024-01-01")})
	did := strconv.FormatInt(done.ID, 10)
	rec = serve(e.scheduleH.Next, request("GET", "/", nil, e.ana, "id", did))
	expectStatus(t, rec, http.StatusOK)
	if got := decode[nextResponse](t, rec); got.Next != nil || got.ScheduleID != nil {
		t.Errorf("exhausted task next = %+v", got)
	}
}
