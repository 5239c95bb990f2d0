package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/services"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

const maxRecordBody = 64 * 1024

// TelemetryProvider gives access to the monitors.
type TelemetryProvider interface {
	Monitors() []services.MonitorProvider
	Monitor(name string) (services.MonitorProvider, bool)
}

// IngestObserver is told about payloads a monitor rejected.
type IngestObserver interface {
	IngestRejected(monitor string)
}

// MonitorHandler handles HTTP requests for the telemetry monitors.
type MonitorHandler struct {
	telemetry TelemetryProvider
	observer  IngestObserver
}

// NewMonitorHandler creates a new MonitorHandler. observer may be nil.
func NewMonitorHandler(t TelemetryProvider, observer IngestObserver) *MonitorHandler {
	return &MonitorHandler{telemetry: t, observer: observer}
}

// MonitorSummary is one row of the monitor list.
type MonitorSummary struct {
	Name          string          `json:"name"`
	State         telemetry.State `json:"state"`
	Total         int             `json:"total"`
	GroupCount    int             `json:"groupCount"`
	RatePerMinute float64         `json:"ratePerMinute"`
	LastEventAt   time.Time       `json:"lastEventAt"`
}

// MonitorDetail is a snapshot with the monitor specific view.
type MonitorDetail struct {
	Snapshot telemetry.Snapshot `json:"snapshot"`
	View     any                `json:"view"`
}

// GetAll lists every monitor with its headline figures.
func (h *MonitorHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	monitors := h.telemetry.Monitors()
	out := make([]MonitorSummary, 0, len(monitors))
	for _, m := range monitors {
		snap := m.Snapshot()
		out = append(out, MonitorSummary{
			Name:          m.Name(),
			State:         snap.State,
			Total:         snap.Total,
			GroupCount:    snap.GroupCount,
			RatePerMinute: snap.RatePerMinute,
			LastEventAt:   snap.LastEventAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns the snapshot and derived view of one monitor.
func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MonitorDetail{Snapshot: m.Snapshot(), View: m.View()})
}

// GetGroups returns every group of a monitor, most frequent first.
func (h *MonitorHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Groups())
}

// GetGroup returns one group by key.
func (h *MonitorHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	key := telemetry.GroupKey(chi.URLParam(r, "key"))
	g, found := m.Group(key)
	if !found {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetEvents returns the most recent in-memory events of a monitor, newest first.
func (h *MonitorHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Recent(queryLimit(r, 50)))
}

// Record records an event posted by a widget.
func (h *MonitorHandler) Record(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req models.RecordRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.rejected(m.Name())
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := m.Ingest(req)
	if err != nil {
		h.rejected(m.Name())
		log.Warn().Err(err).Str("monitor", m.Name()).Msg("Rejected widget payload")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Sweep forces a retention sweep of one monitor.
func (h *MonitorHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	removed := m.Sweep()
	log.Info().Str("monitor", m.Name()).Int("removed", removed).Msg("Manual retention sweep")
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Clear resets a monitor.
func (h *MonitorHandler) Clear(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookup(w, r)
	if !ok {
		return
	}
	m.Clear()
	log.Info().Str("monitor", m.Name()).Msg("Monitor cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitorHandler) lookup(w http.ResponseWriter, r *http.Request) (services.MonitorProvider, bool) {
	name := chi.URLParam(r, "name")
	m, ok := h.telemetry.Monitor(name)
	if !ok {
		http.Error(w, "Monitor not found", http.StatusNotFound)
		return nil, false
	}
	return m, true
}

func (h *MonitorHandler) rejected(monitor string) {
	if h.observer != nil {
		h.observer.IngestRejected(monitor)
	}
}

func queryLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
