package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/taskcal/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	err := scanner.Scan(&t.ID, &t.Title, &t.Description, &t.ForEveryone, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const taskCols = `id, title, description, for_everyone, created_by, created_at, updated_at`

// Create inserts a task and its assignments in one transaction. Assignees are
// ignored for tasks meant for everyone.
func (s *TaskStore) Create(title, description string, forEveryone bool, assigneeIDs []int64, createdBy string) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO tasks (title, description, for_everyone, created_by) VALUES (?, ?, ?, ?)`,
		title, description, forEveryone, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if !forEveryone {
		if err := insertAssignments(tx, id, assigneeIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	tasks := []model.Task{*t}
	if err := s.attachAssignees(tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// List returns every task ordered alphabetically by title.
func (s *TaskStore) List() ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskCols + ` FROM tasks ORDER BY title COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	rows.Close()

	if err := s.attachAssignees(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update replaces the task's fields and its full set of assignments.
func (s *TaskStore) Update(id int64, title, description string, forEveryone bool, assigneeIDs []int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE tasks SET title = ?, description = ?, for_everyone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, forEveryone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM task_assignments WHERE task_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clear assignments: %w", err)
	}
	if !forEveryone {
		if err := insertAssignments(tx, id, assigneeIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a task. Its schedules and assignments go with it.
func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func insertAssignments(tx *sql.Tx, taskID int64, userIDs []int64) error {
	for _, uid := range userIDs {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO task_assignments (task_id, user_id) VALUES (?, ?)`,
			taskID, uid,
		)
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

// attachAssignees fills AssigneeIDs and Assignees for tasks in place.
func (s *TaskStore) attachAssignees(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}

	rows, err := s.db.Query(
		`SELECT ta.task_id, u.id, u.first_name
		 FROM task_assignments ta
		 JOIN users u ON u.id = ta.user_id
		 ORDER BY u.first_name COLLATE NOCASE`,
	)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, userID int64
		var name string
		if err := rows.Scan(&taskID, &userID, &name); err != nil {
			return fmt.Errorf("scan assignment: %w", err)
		}
		i, ok := index[taskID]
		if !ok {
			continue
		}
		tasks[i].AssigneeIDs = append(tasks[i].AssigneeIDs, userID)
		tasks[i].Assignees = append(tasks[i].Assignees, name)
	}
	return rows.Err()
}
