package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Emmanuel1440/task-manager-api/internal/services"
)

// EventHandler serves the activity event log.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent returns the caller's most recent activity events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.service.GetRecentEvents(uid, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", uid).Msg("Failed to fetch events")
		respondError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}
