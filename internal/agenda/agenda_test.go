package agenda

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/taskcal/internal/database"
	"github.com/dukerupert/taskcal/internal/push"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
	"github.com/dukerupert/taskcal/internal/websocket"
)

type sent struct {
	userID int64
	msg    websocket.Message
}

type fakeNotifier struct {
	mu        sync.Mutex
	users     []int64
	broadcast []websocket.Message
	direct    []sent
}

func (f *fakeNotifier) Broadcast(msg websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, msg)
}

func (f *fakeNotifier) SendToUser(userID int64, msg websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, sent{userID, msg})
}

func (f *fakeNotifier) ConnectedUsers() []int64 { return f.users }

type fakePusher struct {
	users []int64
	sent  map[int64]push.Payload
}

func (f *fakePusher) UserIDs() ([]int64, error) { return f.users, nil }

func (f *fakePusher) NotifyUser(userID int64, p push.Payload) (int, error) {
	if f.sent == nil {
		f.sent = make(map[int64]push.Payload)
	}
	f.sent[userID] = p
	return 1, nil
}

type countingSweeper struct{ calls int }

func (c *countingSweeper) Cleanup() { c.calls++ }

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

func titles(v any) []string {
	occ, _ := v.([]recurrence.Occurrence)
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.TaskTitle
	}
	return out
}

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("06:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 6 * * *", spec)

	spec, err = buildDailySpec("0:05")
	require.NoError(t, err)
	assert.Equal(t, "0 5 0 * * *", spec)

	_, err = buildDailySpec("25:00")
	assert.Error(t, err)
	_, err = buildDailySpec("noon")
	assert.Error(t, err)
}

func TestScheduleDailyNextRun(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	s := NewScheduler(nil, nil, nil, &fakeNotifier{}, loc, slog.Default())

	id, err := s.ScheduleDaily("06:00")
	require.NoError(t, err)

	from := time.Date(2024, 6, 10, 7, 0, 0, 0, loc)
	want := time.Date(2024, 6, 11, 6, 0, 0, 0, loc)
	assert.True(t, s.NextRun(id, from).Equal(want), "next run = %s", s.NextRun(id, from))

	from = time.Date(2024, 6, 10, 5, 59, 0, 0, loc)
	want = time.Date(2024, 6, 10, 6, 0, 0, 0, loc)
	assert.True(t, s.NextRun(id, from).Equal(want))

	_, err = s.ScheduleDaily("6")
	assert.Error(t, err)
}

func TestAddDaily(t *testing.T) {
	s := NewScheduler(nil, nil, nil, &fakeNotifier{}, time.UTC, slog.Default())

	id, err := s.AddDaily("03:30", "backup", func() error { return nil })
	require.NoError(t, err)

	from := time.Date(2024, 6, 10, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 11, 3, 30, 0, 0, time.UTC), s.NextRun(id, from))

	_, err = s.AddDaily("25:00", "backup", func() error { return nil })
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil, nil, nil, &fakeNotifier{}, time.UTC, slog.Default())
	_, err := s.ScheduleDaily("03:00")
	require.NoError(t, err)

	s.Start()
	s.Stop()
}

func TestRun(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	schedules := store.NewScheduleStore(db)
	sessions := store.NewSessionStore(db, time.Hour)

	ana, err := users.Create("Ana", "pw", false)
	require.NoError(t, err)
	bob, err := users.Create("Bob", "pw", false)
	require.NoError(t, err)
	stale, err := sessions.Create(ana.ID)
	require.NoError(t, err)
	_, err = sessions.Create(bob.ID)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE sessions SET expires_at = ? WHERE id = ?`, time.Now().UTC().Add(-time.Minute), stale.ID)
	require.NoError(t, err)

	water, err := tasks.Create("Water plants", "", true, nil, "Ana")
	require.NoError(t, err)
	bins, err := tasks.Create("Bins out", "", false, []int64{ana.ID}, "Ana")
	require.NoError(t, err)
	mow, err := tasks.Create("Mow lawn", "", false, []int64{bob.ID}, "Bob")
	require.NoError(t, err)

	_, err = schedules.Create(water.ID, recurrence.Record{Kind: recurrence.KindWeekly, DayOfWeek: str("Monday")})
	require.NoError(t, err)
	_, err = schedules.Create(bins.ID, recurrence.Record{Kind: recurrence.KindIntervalDays, Interval: num(1), StartDate: str("2024-06-01")})
	require.NoError(t, err)
	_, err = schedules.Create(mow.ID, recurrence.Record{Kind: recurrence.KindWeekly, DayOfWeek: str("Tuesday")})
	require.NoError(t, err)

	notifier := &fakeNotifier{users: []int64{ana.ID, bob.ID}}
	sweeper := &countingSweeper{}
	s := NewScheduler(tasks, schedules, sessions, notifier, time.UTC, slog.Default(), sweeper)
	pusher := &fakePusher{users: []int64{ana.ID, bob.ID, 999}}
	s.SetPusher(pusher)
	// 2024-06-10 is a Monday.
	s.now = func() time.Time { return time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC) }

	sum, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, "2024-06-10", recurrence.FormatDate(sum.Date))
	assert.Equal(t, 2, sum.Occurrences)
	assert.Equal(t, 2, sum.UsersNotified)
	assert.Equal(t, int64(1), sum.SessionsExpired)
	assert.Equal(t, 1, sweeper.calls)

	require.Len(t, notifier.broadcast, 1)
	daily := notifier.broadcast[0]
	assert.Equal(t, "agenda_daily", daily.Type)
	assert.Equal(t, "2024-06-10", daily.Extra["date"])
	assert.Equal(t, []string{"Bins out", "Water plants"}, titles(daily.Extra["occurrences"]))

	require.Len(t, notifier.direct, 2)
	assert.Equal(t, ana.ID, notifier.direct[0].userID)
	assert.Equal(t, "agenda_mine", notifier.direct[0].msg.Type)
	assert.Equal(t, []string{"Bins out", "Water plants"}, titles(notifier.direct[0].msg.Extra["occurrences"]))
	assert.Equal(t, bob.ID, notifier.direct[1].userID)
	assert.Equal(t, []string{"Water plants"}, titles(notifier.direct[1].msg.Extra["occurrences"]))

	// User 999 has no assignments but still gets tasks meant for everyone.
	assert.Equal(t, 3, sum.PushesSent)
	assert.Equal(t, "2 tasks today", pusher.sent[ana.ID].Title)
	assert.Equal(t, "Bins out, Water plants", pusher.sent[ana.ID].Body)
	assert.Equal(t, "agenda-2024-06-10", pusher.sent[ana.ID].Tag)
	assert.Equal(t, "1 task today", pusher.sent[bob.ID].Title)
}

func TestPayload(t *testing.T) {
	occ := []recurrence.Occurrence{
		{TaskID: 1, TaskTitle: "Bins out"},
		{TaskID: 2, TaskTitle: "Dishes"},
		{TaskID: 2, TaskTitle: "Dishes"},
		{TaskID: 3, TaskTitle: "Feed cat"},
		{TaskID: 4, TaskTitle: "Mow lawn"},
		{TaskID: 5, TaskTitle: "Water plants"},
	}
	p := Payload(occ, "2024-06-10")
	assert.Equal(t, "5 tasks today", p.Title)
	assert.Equal(t, "Bins out, Dishes, Feed cat and 2 more", p.Body)
}

func TestRunUsesLocalCalendarDay(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tasks := store.NewTaskStore(db)
	schedules := store.NewScheduleStore(db)
	task, err := tasks.Create("Call grandma", "", true, nil, "Ana")
	require.NoError(t, err)
	_, err = schedules.Create(task.ID, recurrence.Record{Kind: recurrence.KindOneTime, SpecificDate: str("2024-06-09")})
	require.NoError(t, err)

	loc := time.FixedZone("UTC-7", -7*60*60)
	notifier := &fakeNotifier{}
	s := NewScheduler(tasks, schedules, nil, notifier, loc, slog.Default())
	// 03:00 UTC on the 10th is still the evening of the 9th in UTC-7.
	s.now = func() time.Time { return time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC) }

	sum, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-09", recurrence.FormatDate(sum.Date))
	assert.Equal(t, 1, sum.Occurrences)
	assert.Empty(t, notifier.direct)
}

func TestForUser(t *testing.T) {
	occ := []recurrence.Occurrence{
		{TaskID: 1, TaskTitle: "Everyone", ForEveryone: true},
		{TaskID: 2, TaskTitle: "Ana's"},
		{TaskID: 3, TaskTitle: "Unassigned"},
	}
	assignees := map[int64][]int64{2: {7}}

	assert.Equal(t, []string{"Everyone", "Ana's"}, titles(ForUser(occ, assignees, 7)))
	assert.Equal(t, []string{"Everyone"}, titles(ForUser(occ, assignees, 8)))
}
