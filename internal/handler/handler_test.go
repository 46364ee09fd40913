package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/taskcal/internal/auth"
	"github.com/dukerupert/taskcal/internal/database"
	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
)

// 2024-06-10 is a Monday.
var testNow = time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	users       *store.UserStore
	tasks       *store.TaskStore
	schedules   *store.ScheduleStore
	sessions    *store.SessionStore
	pushes      *store.PushStore
	taskH       *TaskHandler
	scheduleH   *ScheduleHandler
	occurrenceH *OccurrenceHandler
	userH       *UserHandler
	authH       *AuthHandler
	ana, bob    *model.User
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	e := &testEnv{
		users:     store.NewUserStore(db),
		tasks:     store.NewTaskStore(db),
		schedules: store.NewScheduleStore(db),
		sessions:  store.NewSessionStore(db, time.Hour),
		pushes:    store.NewPushStore(db),
	}
	e.taskH = NewTaskHandler(e.tasks, e.schedules, e.users, nil, time.UTC, logger)
	e.scheduleH = NewScheduleHandler(e.tasks, e.schedules, nil, time.UTC, logger)
	e.occurrenceH = NewOccurrenceHandler(e.tasks, e.schedules, time.UTC, logger)
	e.userH = NewUserHandler(e.users, logger)
	e.authH = NewAuthHandler(e.users, e.sessions, time.Hour, logger)

	fixed := func() time.Time { return testNow }
	e.taskH.clock.now = fixed
	e.scheduleH.clock.now = fixed
	e.occurrenceH.clock.now = fixed

	if e.ana, err = e.users.Create("Ana", "correct horse", true); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if e.bob, err = e.users.Create("Bob", "battery staple", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return e
}

// request builds a request signed in as user with optional path values.
func request(method, target string, body any, user *model.User, pathValues ...string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{
			UserID:    user.ID,
			FirstName: user.FirstName,
			IsAdmin:   user.IsAdmin,
		}))
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

// addTask stores a task for everyone with the given schedules.
func (e *testEnv) addTask(t *testing.T, title string, recs ...recurrence.Record) *model.Task {
	t.Helper()
	task, err := e.tasks.Create(title, "", true, nil, "Ana")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	for _, rec := range recs {
		if _, err := e.schedules.Create(task.ID, rec); err != nil {
			t.Fatalf("create schedule: %v", err)
		}
	}
	return task
}

func dates(occ []recurrence.Occurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = recurrence.FormatDate(o.Date)
	}
	return out
}
