// Package agenda runs the daily job that pushes today's occurrences to
// connected clients and sweeps expired sessions. Other daily jobs, such as
// backups, share its cron.
package agenda

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/taskcal/internal/config"
	"github.com/dukerupert/taskcal/internal/push"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
	"github.com/dukerupert/taskcal/internal/websocket"
)

// Notifier delivers agenda messages. *websocket.Hub satisfies it.
type Notifier interface {
	Broadcast(msg websocket.Message)
	SendToUser(userID int64, msg websocket.Message)
	ConnectedUsers() []int64
}

// Pusher sends the agenda to users' subscribed devices. *push.Notifier
// satisfies it.
type Pusher interface {
	UserIDs() ([]int64, error)
	NotifyUser(userID int64, payload push.Payload) (int, error)
}

// Sweeper drops stale in-memory state, such as rate limiter buckets.
type Sweeper interface {
	Cleanup()
}

// Summary reports what one run of the job did.
type Summary struct {
	Date            time.Time
	Occurrences     int
	UsersNotified   int
	PushesSent      int
	SessionsExpired int64
}

type Scheduler struct {
	cron      *cron.Cron
	tasks     *store.TaskStore
	schedules *store.ScheduleStore
	sessions  *store.SessionStore
	notifier  Notifier
	pusher    Pusher
	sweepers  []Sweeper
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewScheduler(tasks *store.TaskStore, schedules *store.ScheduleStore, sessions *store.SessionStore, notifier Notifier, loc *time.Location, logger *slog.Logger, sweepers ...Sweeper) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		tasks:     tasks,
		schedules: schedules,
		sessions:  sessions,
		notifier:  notifier,
		sweepers:  sweepers,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// ScheduleDaily registers the agenda job at the given HH:MM wall-clock time.
func (s *Scheduler) ScheduleDaily(clock string) (cron.EntryID, error) {
	return s.AddDaily(clock, "agenda", func() error {
		_, err := s.Run()
		return err
	})
}

// AddDaily runs job every day at clock (HH:MM) in the scheduler's location.
// Failures are logged under name.
func (s *Scheduler) AddDaily(clock, name string, job func() error) (cron.EntryID, error) {
	spec, err := buildDailySpec(clock)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, func() {
		if err := job(); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
}

// SetPusher enables web push delivery of each user's agenda.
func (s *Scheduler) SetPusher(p Pusher) {
	s.pusher = p
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("agenda scheduler started", "location", s.loc.String())
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// NextRun reports when the registered job fires next after t.
func (s *Scheduler) NextRun(id cron.EntryID, t time.Time) time.Time {
	e := s.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}
	}
	return e.Schedule.Next(t.In(s.loc))
}

// Run computes today's occurrences, broadcasts them, sends each connected
// user the subset that concerns them, and sweeps expired state.
func (s *Scheduler) Run() (Summary, error) {
	today := recurrence.Day(s.now().In(s.loc))
	sum := Summary{Date: today}

	tasks, err := s.tasks.List()
	if err != nil {
		return sum, fmt.Errorf("agenda: %w", err)
	}
	records, err := s.schedules.RecordsByTask()
	if err != nil {
		return sum, fmt.Errorf("agenda: %w", err)
	}

	core := make([]recurrence.Task, len(tasks))
	assignees := make(map[int64][]int64, len(tasks))
	for i, t := range tasks {
		core[i] = t.Recurrence()
		assignees[t.ID] = t.AssigneeIDs
	}

	occ := recurrence.OccurrencesInRange(core, records, today, today)
	sum.Occurrences = len(occ)
	date := recurrence.FormatDate(today)

	s.notifier.Broadcast(websocket.NewMessage(websocket.EntityAgenda, websocket.ActionDaily, 0, map[string]any{
		"date":        date,
		"occurrences": occ,
	}))

	for _, uid := range s.notifier.ConnectedUsers() {
		mine := ForUser(occ, assignees, uid)
		s.notifier.SendToUser(uid, websocket.NewMessage(websocket.EntityAgenda, websocket.ActionMine, 0, map[string]any{
			"date":        date,
			"occurrences": mine,
		}))
		sum.UsersNotified++
	}

	if s.pusher != nil {
		sum.PushesSent = s.pushAgenda(occ, assignees, date)
	}

	if s.sessions != nil {
		n, err := s.sessions.DeleteExpired()
		if err != nil {
			s.logger.Error("failed to delete expired sessions", "error", err)
		}
		sum.SessionsExpired = n
	}
	for _, sw := range s.sweepers {
		sw.Cleanup()
	}

	s.logger.Info("agenda sent",
		"date", date,
		"occurrences", sum.Occurrences,
		"users", sum.UsersNotified,
		"pushes", sum.PushesSent,
		"sessions_expired", sum.SessionsExpired,
	)
	return sum, nil
}

func (s *Scheduler) pushAgenda(occ []recurrence.Occurrence, assignees map[int64][]int64, date string) int {
	ids, err := s.pusher.UserIDs()
	if err != nil {
		s.logger.Error("failed to list push users", "error", err)
		return 0
	}
	total := 0
	for _, uid := range ids {
		mine := ForUser(occ, assignees, uid)
		if len(mine) == 0 {
			continue
		}
		n, err := s.pusher.NotifyUser(uid, Payload(mine, date))
		if err != nil {
			s.logger.Error("agenda push failed", "user_id", uid, "error", err)
			continue
		}
		total += n
	}
	return total
}

// Payload summarizes a user's occurrences for a push notification. At most
// three titles are named.
func Payload(occ []recurrence.Occurrence, date string) push.Payload {
	const shown = 3
	names := make([]string, 0, shown)
	seen := make(map[int64]bool)
	extra := 0
	for _, o := range occ {
		if seen[o.TaskID] {
			continue
		}
		seen[o.TaskID] = true
		if len(names) < shown {
			names = append(names, o.TaskTitle)
		} else {
			extra++
		}
	}
	body := strings.Join(names, ", ")
	if extra > 0 {
		body += fmt.Sprintf(" and %d more", extra)
	}
	title := "1 task today"
	if n := len(names) + extra; n != 1 {
		title = fmt.Sprintf("%d tasks today", n)
	}
	return push.Payload{
		Title: title,
		Body:  body,
		URL:   "/api/occurrences/week?mine=1",
		Tag:   "agenda-" + date,
	}
}

// ForUser keeps occurrences of tasks meant for everyone or assigned to userID.
// assignees maps task IDs to their assigned user IDs.
func ForUser(occ []recurrence.Occurrence, assignees map[int64][]int64, userID int64) []recurrence.Occurrence {
	out := []recurrence.Occurrence{}
	for _, o := range occ {
		if o.ForEveryone || slices.Contains(assignees[o.TaskID], userID) {
			out = append(out, o)
		}
	}
	return out
}

func buildDailySpec(clock string) (string, error) {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		return "", err
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
