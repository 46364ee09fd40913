package handler

import (
	"net/http"
	"slices"
	"strconv"
	"testing"

	"github.com/dukerupert/taskcal/internal/recurrence"
)

func TestTaskCreate(t *testing.T) {
	e := setupHandlerTest(t)

	body := map[string]any{
		"title":        "  water THE   plants ",
		"description":  "Porch too",
		"for_everyone": true,
		"schedules": []recurrence.Record{
			{Kind: recurrence.KindWeekly, DayOfWeek: str("wed")},
		},
	}
	rec := serve(e.taskH.Create, request("POST", "/api/tasks", body, e.bob))
	expectStatus(t, rec, http.StatusCreated)

	got := decode[taskView](t, rec)
	if got.Title != "Water the plants" {
		t.Errorf("title = %q, want normalized", got.Title)
	}
	if got.CreatedBy != "Bob" {
		t.Errorf("created_by = %q, want Bob", got.CreatedBy)
	}
	if len(got.Schedules) != 1 || got.Schedules[0].Description != "Every Wednesday" {
		t.Fatalf("schedules = %+v", got.Schedules)
	}
	if got.Next == nil || *got.Next != "2024-06-12" {
		t.Errorf("next = %v, want 2024-06-12", got.Next)
	}
}

func TestTaskCreateValidation(t *testing.T) {
	e := setupHandlerTest(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty title", map[string]any{"title": "   ", "for_everyone": true}},
		{"no assignees", map[string]any{"title": "Bins"}},
		{"unknown assignee", map[string]any{"title": "Bins", "assignee_ids": []int64{999}}},
		{"bad schedule", map[string]any{
			"title": "Bins", "for_everyone": true,
			"schedules": []recurrence.Record{{Kind: recurrence.KindMonthlyDate, DayOfMonth: num(32)}},
		}},
		{"unknown kind", map[string]any{
			"title": "Bins", "for_everyone": true,
			"schedules": []recurrence.Record{{Kind: "hourly"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e.taskH.Create, request("POST", "/api/tasks", tt.body, e.ana))
			expectStatus(t, rec, http.StatusBadRequest)
		})
	}

	tasks, err := e.tasks.List()
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("rejected requests stored %d tasks", len(tasks))
	}
}

func TestTaskGetUpdateDelete(t *testing.T) {
	e := setupHandlerTest(t)
	task := e.addTask(t, "Mow lawn", recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2024-06-10")})
	id := strconv.FormatInt(task.ID, 10)

	rec := serve(e.taskH.Get, request("GET", "/api/tasks/"+id, nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusOK)
	got := decode[taskView](t, rec)
	if got.Next == nil || *got.Next != "2024-06-10" {
		t.Errorf("next = %v, want today", got.Next)
	}

	body := map[string]any{"title": "mow the lawn", "assignee_ids": []int64{e.bob.ID}}
	rec = serve(e.taskH.Update, request("PUT", "/api/tasks/"+id, body, e.ana, "id", id))
	expectStatus(t, rec, http.StatusOK)
	got = decode[taskView](t, rec)
	if got.Title != "Mow the lawn" || got.ForEveryone || !slices.Equal(got.Assignees, []string{"Bob"}) {
		t.Errorf("updated = %+v", got.Task)
	}
	if len(got.Schedules) != 1 {
		t.Errorf("update dropped schedules: %+v", got.Schedules)
	}

	rec = serve(e.taskH.Delete, request("DELETE", "/api/tasks/"+id, nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusNoContent)

	rec = serve(e.taskH.Get, request("GET", "/api/tasks/"+id, nil, e.ana, "id", id))
	expectStatus(t, rec, http.StatusNotFound)

	rec = serve(e.taskH.Get, request("GET", "/api/tasks/abc", nil, e.ana, "id", "abc"))
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestTaskListAlphabeticalPages(t *testing.T) {
	e := setupHandlerTest(t)
	for i := 0; i < 55; i++ {
		e.addTask(t, "Task "+strconv.Itoa(100+i))
	}

	rec := serve(e.taskH.List, request("GET", "/api/tasks?page=2", nil, e.ana))
	expectStatus(t, rec, http.StatusOK)
	got := decode[taskListing](t, rec)
	if got.View != "alphabetical" || got.Total != 55 || got.TotalPages != 2 || len(got.Tasks) != 5 {
		t.Fatalf("page 2 = view %s total %d pages %d len %d", got.View, got.Total, got.TotalPages, len(got.Tasks))
	}
	if got.Tasks[0].Title != "Task 150" {
		t.Errorf("first on page 2 = %q, want Task 150", got.Tasks[0].Title)
	}

	rec = serve(e.taskH.List, request("GET", "/api/tasks?show_all=1", nil, e.ana))
	got = decode[taskListing](t, rec)
	if len(got.Tasks) != 55 || got.TotalPages != 1 {
		t.Errorf("show_all = len %d pages %d", len(got.Tasks), got.TotalPages)
	}

	rec = serve(e.taskH.List, request("GET", "/api/tasks?page=9", nil, e.ana))
	got = decode[taskListing](t, rec)
	if len(got.Tasks) != 0 {
		t.Errorf("page past the end returned %d tasks", len(got.Tasks))
	}

	rec = serve(e.taskH.List, request("GET", "/api/tasks?page=0", nil, e.ana))
	expectStatus(t, rec, http.StatusBadRequest)
	rec = serve(e.taskH.List, request("GET", "/api/tasks?view=random", nil, e.ana))
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestTaskListChronological(t *testing.T) {
	e := setupHandlerTest(t)
	e.addTask(t, "Vacuum", recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2024-06-20")})
	e.addTask(t, "Bins", recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2024-06-11")})
	e.addTask(t, "Past", recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2024-06-09")})
	e.addTask(t, "Far", recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2025-06-09")})

	rec := serve(e.taskH.List, request("GET", "/api/tasks?view=chronological", nil, e.ana))
	expectStatus(t, rec, http.StatusOK)
	got := decode[taskListing](t, rec)

	want := []string{"2024-06-11", "2024-06-20"}
	if !slices.Equal(dates(got.Occurrences), want) {
		t.Errorf("dates = %v, want %v", dates(got.Occurrences), want)
	}
	if got.Occurrences[0].TaskTitle != "Bins" {
		t.Errorf("first = %q, want Bins", got.Occurrences[0].TaskTitle)
	}
}
