package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Emmanuel1440/task-manager-api/internal/models"
)

// TaskPatch carries a partial update; nil fields keep their stored values.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Completed   *bool      `json:"completed"`
	DueDate     *time.Time `json:"dueDate"`
	Recurrence  *string    `json:"recurrence"`
}

// TaskServiceProvider defines the interface for task services.
type TaskServiceProvider interface {
	GetAllForUser(userID string) ([]models.Task, error)
	GetByID(userID, id string) (models.Task, error)
	Create(userID, title, description string, dueDate *time.Time, recurrence string) (models.Task, error)
	Update(userID, id string, patch TaskPatch) (models.Task, error)
	Delete(userID, id string) error

	// Sweeper support, not scoped to a user.
	FindNewlyOverdue(now time.Time) ([]models.Task, error)
	MarkOverdue(id string) error
	FindCompletedRecurring() ([]models.Task, error)
	Reopen(id string, due time.Time) error
}

// TaskService provides business logic for task management. Every caller-facing
// query is filtered by the owning user.
type TaskService struct {
	db     *sql.DB
	events EventServiceProvider
}

// NewTaskService creates a new TaskService.
func NewTaskService(db *sql.DB, events EventServiceProvider) *TaskService {
	return &TaskService{db: db, events: events}
}

const taskColumns = "id, user_id, title, description, completed, overdue, due_date, recurrence, created_at, updated_at"

// scanTask is a helper to scan a task from a row or rows object.
func scanTask(scanner interface{ Scan(...interface{}) error }) (models.Task, error) {
	var task models.Task
	var desc, recurrence sql.NullString
	var due sql.NullTime

	err := scanner.Scan(
		&task.ID, &task.UserID, &task.Title, &desc, &task.Completed,
		&task.Overdue, &due, &recurrence, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return task, err
	}

	task.Description = desc.String
	task.Recurrence = recurrence.String
	if due.Valid {
		t := due.Time
		task.DueDate = &t
	}
	return task, nil
}

// GetAllForUser retrieves all tasks owned by a user.
func (s *TaskService) GetAllForUser(userID string) ([]models.Task, error) {
	rows, err := s.db.Query("SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY created_at", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// A user with no tasks gets [], not null.
	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetByID retrieves a single task owned by a user.
func (s *TaskService) GetByID(userID, id string) (models.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ? AND user_id = ?", id, userID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

// Create adds a new task for a user.
func (s *TaskService) Create(userID, title, description string, dueDate *time.Time, recurrence string) (models.Task, error) {
	if recurrence != "" {
		if _, err := cron.ParseStandard(recurrence); err != nil {
			return models.Task{}, ErrInvalidRecurrence
		}
	}

	now := time.Now().UTC()
	task := models.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		Recurrence:  recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stmt, err := s.db.Prepare("INSERT INTO tasks(id, user_id, title, description, due_date, recurrence, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.Task{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(task.ID, task.UserID, task.Title, task.Description, task.DueDate, task.Recurrence, task.CreatedAt, task.UpdatedAt); err != nil {
		return models.Task{}, err
	}

	s.events.Record("task.created", "info", fmt.Sprintf("Task %q created", task.Title), &task.ID, userID)
	return task, nil
}

// Update applies a partial update to a task owned by a user.
func (s *TaskService) Update(userID, id string, patch TaskPatch) (models.Task, error) {
	task, err := s.GetByID(userID, id)
	if err != nil {
		return models.Task{}, err
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
		if task.Completed {
			task.Overdue = false
		}
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
		task.Overdue = false
	}
	if patch.Recurrence != nil {
		if *patch.Recurrence != "" {
			if _, err := cron.ParseStandard(*patch.Recurrence); err != nil {
				return models.Task{}, ErrInvalidRecurrence
			}
		}
		task.Recurrence = *patch.Recurrence
	}
	task.UpdatedAt = time.Now().UTC()

	stmt, err := s.db.Prepare("UPDATE tasks SET title = ?, description = ?, completed = ?, overdue = ?, due_date = ?, recurrence = ?, updated_at = ? WHERE id = ? AND user_id = ?")
	if err != nil {
		return models.Task{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(task.Title, task.Description, task.Completed, task.Overdue, task.DueDate, task.Recurrence, task.UpdatedAt, id, userID); err != nil {
		return models.Task{}, err
	}

	s.events.Record("task.updated", "info", fmt.Sprintf("Task %q updated", task.Title), &task.ID, userID)
	return task, nil
}

// Delete removes a task owned by a user.
func (s *TaskService) Delete(userID, id string) error {
	task, err := s.GetByID(userID, id)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec("DELETE FROM tasks WHERE id = ? AND user_id = ?", id, userID); err != nil {
		return err
	}

	s.events.Record("task.deleted", "info", fmt.Sprintf("Task %q deleted", task.Title), &task.ID, userID)
	return nil
}

// FindNewlyOverdue returns open tasks whose due date has passed and that have
// not yet been flagged.
func (s *TaskService) FindNewlyOverdue(now time.Time) ([]models.Task, error) {
	rows, err := s.db.Query("SELECT "+taskColumns+" FROM tasks WHERE completed = 0 AND overdue = 0 AND due_date IS NOT NULL AND due_date < ?", now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// MarkOverdue flags a task as overdue.
func (s *TaskService) MarkOverdue(id string) error {
	_, err := s.db.Exec("UPDATE tasks SET overdue = 1 WHERE id = ?", id)
	return err
}

// FindCompletedRecurring returns completed tasks that carry a recurrence
// expression.
func (s *TaskService) FindCompletedRecurring() ([]models.Task, error) {
	rows, err := s.db.Query("SELECT " + taskColumns + " FROM tasks WHERE completed = 1 AND recurrence IS NOT NULL AND recurrence != ''")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Reopen clears the completed flag of a recurring task and advances its due
// date to the next activation.
func (s *TaskService) Reopen(id string, due time.Time) error {
	_, err := s.db.Exec("UPDATE tasks SET completed = 0, overdue = 0, due_date = ?, updated_at = ? WHERE id = ?", due, time.Now().UTC(), id)
	return err
}
