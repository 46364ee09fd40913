package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/taskcal/internal/auth"
	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
	"github.com/dukerupert/taskcal/internal/title"
	"github.com/dukerupert/taskcal/internal/websocket"
)

const chronologicalDays = 180

type TaskHandler struct {
	taskStore     *store.TaskStore
	scheduleStore *store.ScheduleStore
	userStore     *store.UserStore
	source        occurrenceSource
	clock         clock
	broadcast     func(websocket.Message)
	logger        *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ss *store.ScheduleStore, us *store.UserStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskStore:     ts,
		scheduleStore: ss,
		userStore:     us,
		source:        occurrenceSource{tasks: ts, schedules: ss},
		clock:         newClock(loc),
		broadcast:     broadcaster(hub),
		logger:        logger,
	}
}

type taskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	ForEveryone bool                `json:"for_everyone"`
	AssigneeIDs []int64             `json:"assignee_ids"`
	Schedules   []recurrence.Record `json:"schedules"`
}

// taskView is a task with its schedules and next due date.
type taskView struct {
	model.Task
	Schedules []model.Schedule `json:"schedules"`
	Next      *string          `json:"next"`
}

// taskListing is one page of the all-tasks view. Alphabetical pages carry
// tasks; chronological pages carry upcoming occurrences.
type taskListing struct {
	View        string                  `json:"view"`
	Page        int                     `json:"page"`
	TotalPages  int                     `json:"total_pages"`
	Total       int                     `json:"total"`
	ShowAll     bool                    `json:"show_all"`
	Tasks       []taskView              `json:"tasks,omitempty"`
	Occurrences []recurrence.Occurrence `json:"occurrences,omitempty"`
}

var errNoAssignees = errors.New("assign at least one person or mark the task for everyone")

// validate normalizes the request in place.
func (h *TaskHandler) validate(req *taskRequest) error {
	req.Title = title.Normalize(req.Title)
	if req.Title == "" {
		return errors.New("title is required")
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.ForEveryone {
		req.AssigneeIDs = nil
		return nil
	}
	if len(req.AssigneeIDs) == 0 {
		return errNoAssignees
	}
	for _, id := range req.AssigneeIDs {
		u, err := h.userStore.GetByID(id)
		if err != nil {
			return err
		}
		if u == nil {
			return errors.New("unknown assignee")
		}
	}
	return nil
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i, rec := range req.Schedules {
		if _, err := rec.Normalize(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("schedule %d: %v", i+1, err))
			return
		}
	}

	task, err := h.taskStore.Create(req.Title, req.Description, req.ForEveryone, req.AssigneeIDs, auth.FirstName(r.Context()))
	if err != nil {
		h.logger.Error("failed to create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	for _, rec := range req.Schedules {
		if _, err := h.scheduleStore.Create(task.ID, rec); err != nil {
			h.logger.Error("failed to create schedule", "task_id", task.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create schedule")
			return
		}
	}

	h.broadcast(websocket.NewMessage(websocket.EntityTask, websocket.ActionCreated, task.ID, nil))

	view, err := h.view(*task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// List serves the all-tasks view: view=alphabetical (default) or
// view=chronological, 50 per page unless show_all=1.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := q.Get("view")
	if view == "" {
		view = "alphabetical"
	}
	if view != "alphabetical" && view != "chronological" {
		writeError(w, http.StatusBadRequest, "view must be alphabetical or chronological")
		return
	}
	page, err := queryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	showAll := q.Get("show_all") == "1"

	out := taskListing{View: view, Page: page, ShowAll: showAll}

	if view == "chronological" {
		today := h.clock.today()
		occ, _, err := h.source.between(today, today.AddDate(0, 0, chronologicalDays))
		if err != nil {
			h.logger.Error("failed to list occurrences", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list tasks")
			return
		}
		out.Total = len(occ)
		out.Occurrences, out.TotalPages = paginate(occ, page, showAll)
		writeJSON(w, http.StatusOK, out)
		return
	}

	tasks, records, err := h.source.load()
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, h.summarize(t, records[t.ID]))
	}
	out.Total = len(views)
	out.Tasks, out.TotalPages = paginate(views, page, showAll)
	writeJSON(w, http.StatusOK, out)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	view, err := h.view(*task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Schedules) > 0 {
		writeError(w, http.StatusBadRequest, "manage schedules through /api/tasks/{id}/schedules")
		return
	}
	if err := h.validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskStore.Update(existing.ID, req.Title, req.Description, req.ForEveryone, req.AssigneeIDs)
	if err != nil {
		h.logger.Error("failed to update task", "task_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityTask, websocket.ActionUpdated, task.ID, nil))

	view, err := h.view(*task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.taskStore.Delete(task.ID); err != nil {
		h.logger.Error("failed to delete task", "task_id", task.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntityTask, websocket.ActionDeleted, task.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the {id} path value, writing the error response itself
// when the task cannot be loaded.
func (h *TaskHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	return lookupTask(h.taskStore, w, r)
}

func lookupTask(ts *store.TaskStore, w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	task, err := ts.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil, false
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) view(t model.Task) (taskView, error) {
	schedules, err := h.scheduleStore.ListByTask(t.ID)
	if err != nil {
		return taskView{}, err
	}
	records := make([]recurrence.Record, len(schedules))
	for i, s := range schedules {
		records[i] = s.Record
	}
	v := h.summarize(t, records)
	if schedules != nil {
		v.Schedules = schedules
	}
	return v, nil
}

// summarize builds a view from raw records, describing each one.
func (h *TaskHandler) summarize(t model.Task, records []recurrence.Record) taskView {
	v := taskView{Task: t, Schedules: make([]model.Schedule, 0, len(records))}
	for _, rec := range records {
		v.Schedules = append(v.Schedules, model.Schedule{
			Record:      rec,
			TaskID:      t.ID,
			Description: recurrence.DescribeRecord(rec),
		})
	}
	if next, _ := recurrence.DueForTask(records, h.clock.today()); !next.IsZero() {
		s := recurrence.FormatDate(next)
		v.Next = &s
	}
	return v
}
