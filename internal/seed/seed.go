// Package seed loads users and tasks from a YAML or JSON file into the
// database.
package seed

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/store"
	"github.com/dukerupert/taskcal/internal/title"
)

// Result counts what Apply changed.
type Result struct {
	UsersCreated     int
	UsersUpdated     int
	TasksCreated     int
	TasksSkipped     int
	SchedulesCreated int
}

type Seeder struct {
	users     *store.UserStore
	tasks     *store.TaskStore
	schedules *store.ScheduleStore
	logger    *slog.Logger
}

func New(users *store.UserStore, tasks *store.TaskStore, schedules *store.ScheduleStore, logger *slog.Logger) *Seeder {
	return &Seeder{users: users, tasks: tasks, schedules: schedules, logger: logger}
}

// Validate checks the whole file before anything is written.
func Validate(f *File) error {
	var errs []error
	names := make(map[string]bool)
	for i, u := range f.Users {
		name := title.Name(u.FirstName)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("users[%d]: first_name is required", i))
		case u.Password == "":
			errs = append(errs, fmt.Errorf("users[%d] %s: password is required", i, name))
		case names[strings.ToLower(name)]:
			errs = append(errs, fmt.Errorf("users[%d] %s: listed twice", i, name))
		}
		names[strings.ToLower(name)] = true
	}
	for i, t := range f.Tasks {
		if title.Normalize(t.Title) == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: title is required", i))
		}
		if !t.ForEveryone && len(t.Assignees) == 0 {
			errs = append(errs, fmt.Errorf("tasks[%d] %q: needs assignees or for_everyone", i, t.Title))
		}
		for j, rec := range t.Schedules {
			if _, err := rec.Normalize(); err != nil {
				errs = append(errs, fmt.Errorf("tasks[%d] %q schedules[%d]: %w", i, t.Title, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Apply creates missing users, resets the password and admin flag of
// existing ones, and adds tasks whose title is not already present.
func (s *Seeder) Apply(f *File) (Result, error) {
	var res Result
	if err := Validate(f); err != nil {
		return res, err
	}

	for _, u := range f.Users {
		name := title.Name(u.FirstName)
		existing, err := s.users.GetByFirstName(name)
		if err != nil {
			return res, err
		}
		if existing == nil {
			if _, err := s.users.Create(name, u.Password, u.Admin); err != nil {
				return res, err
			}
			s.logger.Info("user created", "first_name", name, "admin", u.Admin)
			res.UsersCreated++
			continue
		}
		if err := s.users.UpdatePassword(existing.ID, u.Password); err != nil {
			return res, err
		}
		if err := s.users.SetAdmin(existing.ID, u.Admin); err != nil {
			return res, err
		}
		s.logger.Info("user updated", "first_name", existing.FirstName, "admin", u.Admin)
		res.UsersUpdated++
	}

	current, err := s.tasks.List()
	if err != nil {
		return res, err
	}
	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[strings.ToLower(t.Title)] = true
	}

	for _, t := range f.Tasks {
		name := title.Normalize(t.Title)
		if seen[strings.ToLower(name)] {
			s.logger.Debug("task exists, skipping", "title", name)
			res.TasksSkipped++
			continue
		}

		var ids []int64
		if !t.ForEveryone {
			if ids, err = s.resolve(t.Assignees); err != nil {
				return res, fmt.Errorf("task %q: %w", name, err)
			}
		}
		createdBy := title.Name(t.CreatedBy)
		if createdBy == "" {
			createdBy = "Seed"
		}

		task, err := s.tasks.Create(name, strings.TrimSpace(t.Description), t.ForEveryone, ids, createdBy)
		if err != nil {
			return res, err
		}
		for _, rec := range t.Schedules {
			if _, err := s.schedules.Create(task.ID, rec); err != nil {
				return res, fmt.Errorf("task %q: %w", name, err)
			}
			res.SchedulesCreated++
		}
		seen[strings.ToLower(name)] = true
		res.TasksCreated++
	}
	return res, nil
}

func (s *Seeder) resolve(names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		u, err := s.users.GetByFirstName(title.Name(n))
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("unknown assignee %q", n)
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Summary renders users the way the admin screen lists them.
func Summary(users []model.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		role := "member"
		if u.IsAdmin {
			role = "admin"
		}
		out[i] = fmt.Sprintf("%s (%s)", u.FirstName, role)
	}
	return out
}
