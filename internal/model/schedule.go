package model

import (
	"time"

	"github.com/dukerupert/taskcal/internal/recurrence"
)

type Schedule struct {
	recurrence.Record
	TaskID      int64     `json:"task_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
