package models

import "time"

// Task represents a single to-do item owned by a user.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Overdue     bool       `json:"overdue"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	// Recurrence is an optional cron expression. When set, a completed task
	// is reopened by the sweeper at its next activation.
	Recurrence string    `json:"recurrence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
