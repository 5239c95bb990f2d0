package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/services"
)

// EventHandler serves the persisted event mirror.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get the most recent mirrored events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	monitor := r.URL.Query().Get("monitor")
	events, err := h.service.GetRecentEvents(queryLimit(r, 100), monitor)
	if err != nil {
		log.Error().Err(err).Str("monitor", monitor).Msg("Failed to retrieve mirrored events")
		http.Error(w, "Failed to retrieve events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
