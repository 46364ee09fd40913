package seed

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/taskcal/internal/database"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
)

const sampleYAML = `
users:
  - first_name: anthony
    password: claude101
  - first_name: rita
    password: claude101
    admin: true
tasks:
  - title: water the Plants
    for_everyone: true
    created_by: rita
    schedules:
      - kind: interval_days
        interval: 3
        start_date: 2024-01-01
      - kind: weekly
        day_of_week: sat
  - title: bins out
    assignees: [Anthony]
    schedules:
      - kind: ordinal_bimonthly
        ordinal: last
        day_of_week: Monday
        month_parity: odd
`

func setupSeeder(t *testing.T) (*Seeder, *store.UserStore, *store.TaskStore, *store.ScheduleStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	schedules := store.NewScheduleStore(db)
	return New(users, tasks, schedules, slog.Default()), users, tasks, schedules
}

func TestParseYAML(t *testing.T) {
	f, err := Parse("seed.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	require.Len(t, f.Users, 2)
	assert.Equal(t, "anthony", f.Users[0].FirstName)
	assert.True(t, f.Users[1].Admin)

	require.Len(t, f.Tasks, 2)
	water := f.Tasks[0]
	require.Len(t, water.Schedules, 2)
	assert.Equal(t, recurrence.KindIntervalDays, water.Schedules[0].Kind)
	require.NotNil(t, water.Schedules[0].StartDate)
	assert.Equal(t, "2024-01-01", *water.Schedules[0].StartDate)
	require.NotNil(t, water.Schedules[0].Interval)
	assert.Equal(t, 3, *water.Schedules[0].Interval)
	assert.Equal(t, []string{"Anthony"}, f.Tasks[1].Assignees)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse("seed.yml", []byte("users:\n  - name: bob\n"))
	assert.Error(t, err)

	_, err = Parse("seed.json", []byte(`{"tasks":[{"title":"x","colour":"red"}]}`))
	assert.Error(t, err)

	_, err = Parse("seed.yaml", []byte("users: [unterminated"))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	f, err := Parse("seed.json", []byte(`{"users":[{"first_name":"sam","password":"pw"}]}`))
	require.NoError(t, err)
	require.Len(t, f.Users, 1)
	assert.Equal(t, "sam", f.Users[0].FirstName)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "household.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Tasks, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	f := &File{
		Users: []User{
			{FirstName: "", Password: "pw"},
			{FirstName: "kyle", Password: ""},
			{FirstName: "sam", Password: "pw"},
			{FirstName: "SAM", Password: "pw"},
		},
		Tasks: []Task{
			{Title: " ", ForEveryone: true},
			{Title: "Bins"},
			{Title: "Rent", ForEveryone: true, Schedules: []recurrence.Record{{Kind: recurrence.KindMonthlyDate}}},
		},
	}
	err := Validate(f)
	require.Error(t, err)
	for _, want := range []string{"users[0]", "users[1] Kyle", "users[3] Sam: listed twice", "tasks[0]", "tasks[1]", "tasks[2] \"Rent\" schedules[0]"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestApply(t *testing.T) {
	s, users, tasks, schedules := setupSeeder(t)
	f, err := Parse("seed.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	res, err := s.Apply(f)
	require.NoError(t, err)
	assert.Equal(t, Result{UsersCreated: 2, TasksCreated: 2, SchedulesCreated: 3}, res)

	rita, err := users.Authenticate("Rita", "claude101")
	require.NoError(t, err)
	require.NotNil(t, rita)
	assert.True(t, rita.IsAdmin)

	list, err := tasks.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bins out", list[0].Title)
	assert.Equal(t, []string{"Anthony"}, list[0].Assignees)
	assert.Equal(t, "Seed", list[0].CreatedBy)
	assert.Equal(t, "Water the plants", list[1].Title)
	assert.Equal(t, "Rita", list[1].CreatedBy)

	scheds, err := schedules.ListByTask(list[1].ID)
	require.NoError(t, err)
	require.Len(t, scheds, 2)
	assert.Equal(t, "Every Saturday", scheds[1].Description)

	// A second run updates passwords and skips existing tasks.
	f.Users[0].Password = "new secret"
	f.Users[1].Admin = false
	res, err = s.Apply(f)
	require.NoError(t, err)
	assert.Equal(t, Result{UsersUpdated: 2, TasksSkipped: 2}, res)

	anthony, err := users.Authenticate("Anthony", "new secret")
	require.NoError(t, err)
	assert.NotNil(t, anthony)
	rita, err = users.GetByFirstName("Rita")
	require.NoError(t, err)
	assert.False(t, rita.IsAdmin)
}

func TestApplyUnknownAssignee(t *testing.T) {
	s, _, tasks, _ := setupSeeder(t)
	f := &File{Tasks: []Task{{Title: "Mow", Assignees: []string{"nobody"}}}}

	_, err := s.Apply(f)
	assert.ErrorContains(t, err, `unknown assignee "nobody"`)

	list, err := tasks.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestApplyInvalidFileWritesNothing(t *testing.T) {
	s, users, _, _ := setupSeeder(t)
	f := &File{
		Users: []User{{FirstName: "ok", Password: "pw"}},
		Tasks: []Task{{Title: "Bad", ForEveryone: true, Schedules: []recurrence.Record{{Kind: "hourly"}}}},
	}
	_, err := s.Apply(f)
	require.Error(t, err)

	list, err := users.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSummary(t *testing.T) {
	s, users, _, _ := setupSeeder(t)
	f, err := Parse("seed.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	_, err = s.Apply(f)
	require.NoError(t, err)

	list, err := users.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Anthony (member)", "Rita (admin)"}, Summary(list))
}
