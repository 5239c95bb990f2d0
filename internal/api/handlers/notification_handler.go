package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/isdelr/sitepulse/internal/services"
)

// NotificationHandler handles toast dismissal.
type NotificationHandler struct {
	service services.NotificationServiceProvider
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service services.NotificationServiceProvider) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// GetActive returns the visible toasts.
func (h *NotificationHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Active())
}

// Dismiss hides one toast.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if !h.service.Dismiss(chi.URLParam(r, "id")) {
		http.Error(w, "Notification not active", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DismissAll hides every toast.
func (h *NotificationHandler) DismissAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"dismissed": h.service.DismissAll()})
}
