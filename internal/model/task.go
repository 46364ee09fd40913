package model

import (
	"time"

	"github.com/dukerupert/taskcal/internal/recurrence"
)

// Task is a household chore or reminder. When ForEveryone is false the task
// belongs to the users listed in AssigneeIDs.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ForEveryone bool      `json:"for_everyone"`
	AssigneeIDs []int64   `json:"assignee_ids"`
	Assignees   []string  `json:"assignees"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Recurrence returns the view of the task used for occurrence reporting.
func (t Task) Recurrence() recurrence.Task {
	return recurrence.Task{
		ID:          t.ID,
		Title:       t.Title,
		ForEveryone: t.ForEveryone,
		Assignees:   t.Assignees,
	}
}
