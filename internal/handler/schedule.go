package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/taskcal/internal/model"
	"github.com/dukerupert/taskcal/internal/recurrence"
	"github.com/dukerupert/taskcal/internal/store"
	"github.com/dukerupert/taskcal/internal/websocket"
)

type ScheduleHandler struct {
	taskStore     *store.TaskStore
	scheduleStore *store.ScheduleStore
	clock         clock
	broadcast     func(websocket.Message)
	logger        *slog.Logger
}

func NewScheduleHandler(ts *store.TaskStore, ss *store.ScheduleStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		taskStore:     ts,
		scheduleStore: ss,
		clock:         newClock(loc),
		broadcast:     broadcaster(hub),
		logger:        logger,
	}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	task, ok := lookupTask(h.taskStore, w, r)
	if !ok {
		return
	}
	schedules, err := h.scheduleStore.ListByTask(task.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []model.Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	task, ok := lookupTask(h.taskStore, w, r)
	if !ok {
		return
	}

	var rec recurrence.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, err := rec.Rule(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.scheduleStore.Create(task.ID, rec)
	if err != nil {
		h.logger.Error("failed to create schedule", "task_id", task.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntitySchedule, websocket.ActionCreated, sched.ID, map[string]any{
		"task_id": task.ID,
	}))

	writeJSON(w, http.StatusCreated, sched)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	id, err := parsePathInt(r, "schedule_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	found, err := h.scheduleStore.Delete(taskID, id)
	if err != nil {
		h.logger.Error("failed to delete schedule", "task_id", taskID, "schedule_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	h.broadcast(websocket.NewMessage(websocket.EntitySchedule, websocket.ActionDeleted, id, map[string]any{
		"task_id": taskID,
	}))

	w.WriteHeader(http.StatusNoContent)
}

type nextResponse struct {
	TaskID      int64   `json:"task_id"`
	From        string  `json:"from"`
	Next        *string `json:"next"`
	ScheduleID  *int64  `json:"schedule_id"`
	Description string  `json:"description,omitempty"`
}

// Next reports the task's first occurrence strictly after from (default
// today). Next is null when no schedule recurs again.
func (h *ScheduleHandler) Next(w http.ResponseWriter, r *http.Request) {
	task, ok := lookupTask(h.taskStore, w, r)
	if !ok {
		return
	}
	from, err := queryDate(r, "from", h.clock.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedules, err := h.scheduleStore.ListByTask(task.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	records := make([]recurrence.Record, len(schedules))
	for i, s := range schedules {
		records[i] = s.Record
	}

	resp := nextResponse{TaskID: task.ID, From: recurrence.FormatDate(from)}
	if next, rec := recurrence.NextForTask(records, from); !next.IsZero() {
		d := recurrence.FormatDate(next)
		resp.Next = &d
		resp.ScheduleID = &rec.ID
		resp.Description = recurrence.DescribeRecord(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}
