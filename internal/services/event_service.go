package services

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/Emmanuel1440/task-manager-api/internal/models"
	ws "github.com/Emmanuel1440/task-manager-api/internal/websocket"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	Record(eventType, level, message string, taskID *string, userID string) error
	GetRecentEvents(userID string, limit int) ([]models.Event, error)
}

// EventService persists activity events and pushes them to connected
// websocket clients of the affected user.
type EventService struct {
	db  *sql.DB
	hub *ws.Hub
}

// NewEventService creates a new EventService. The hub may be nil, in which
// case events are persisted but not broadcast.
func NewEventService(db *sql.DB, hub *ws.Hub) *EventService {
	return &EventService{db: db, hub: hub}
}

// Record logs a new event to the database and broadcasts it.
func (s *EventService) Record(eventType, level, message string, taskID *string, userID string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		TaskID:    taskID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	stmt, err := s.db.Prepare("INSERT INTO events (id, type, level, message, task_id, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(event.ID, event.Type, event.Level, event.Message, event.TaskID, event.UserID, event.CreatedAt); err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastTo(userID, ws.NewEventMessage(event))
	}
	return nil
}

// GetRecentEvents retrieves the most recent events for a user.
func (s *EventService) GetRecentEvents(userID string, limit int) ([]models.Event, error) {
	rows, err := s.db.Query("SELECT id, type, level, message, task_id, user_id, created_at FROM events WHERE user_id = ? ORDER BY created_at DESC LIMIT ?", userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var taskID sql.NullString
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &taskID, &event.UserID, &event.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			event.TaskID = &taskID.String
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
