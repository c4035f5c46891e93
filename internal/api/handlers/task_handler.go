package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Emmanuel1440/task-manager-api/internal/auth"
	"github.com/Emmanuel1440/task-manager-api/internal/services"
)

// TaskHandler handles HTTP requests for task management.
type TaskHandler struct {
	service services.TaskServiceProvider
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider) *TaskHandler {
	return &TaskHandler{service: service}
}

// CreateTaskPayload defines the structure for task creation requests.
type CreateTaskPayload struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Recurrence  string     `json:"recurrence"`
}

// userID extracts the authenticated user from the request context.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return "", false
	}
	return claims.UserID, true
}

// GetAll handles the request to list the caller's tasks.
func (h *TaskHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.GetAllForUser(uid)
	if err != nil {
		log.Error().Err(err).Str("user_id", uid).Msg("Failed to fetch tasks")
		respondError(w, http.StatusInternalServerError, "Failed to fetch tasks")
		return
	}

	respondJSON(w, http.StatusOK, tasks)
}

// Create handles the request to create a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var payload CreateTaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := validatePayload(payload); fieldErrors != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Validation failed", "fields": fieldErrors})
		return
	}

	task, err := h.service.Create(uid, payload.Title, payload.Description, payload.DueDate, payload.Recurrence)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRecurrence) {
			respondError(w, http.StatusBadRequest, "Invalid recurrence expression")
			return
		}
		log.Error().Err(err).Str("user_id", uid).Msg("Failed to create task")
		respondError(w, http.StatusBadRequest, "Task creation failed")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// Update handles partial updates of an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var patch services.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.service.Update(uid, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			respondError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, services.ErrInvalidRecurrence):
			respondError(w, http.StatusBadRequest, "Invalid recurrence expression")
		default:
			log.Error().Err(err).Str("task_id", id).Msg("Failed to update task")
			respondError(w, http.StatusInternalServerError, "Failed to update task")
		}
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// Delete handles the removal of a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(uid, id); err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			respondError(w, http.StatusNotFound, "Task not found")
			return
		}
		log.Error().Err(err).Str("task_id", id).Msg("Failed to delete task")
		respondError(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
