package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// NotificationMonitor is the name of the notification monitor.
const NotificationMonitor = "notifications"

// NotificationServiceProvider defines the interface for toast management.
type NotificationServiceProvider interface {
	Notify(n models.Notification, ctx telemetry.Context) models.Notification
	Dismiss(id string) bool
	DismissAll() int
	Active() []models.Notification
}

// NotificationService records toasts and dismisses them after their timeout.
type NotificationService struct {
	*telemetry.Aggregator

	defaultDismiss time.Duration
	// schedule runs fn after d and returns a function that cancels it.
	schedule func(d time.Duration, fn func()) func() bool

	mu        sync.Mutex
	active    map[string]models.Notification
	timers    map[string]func() bool
	dismissed int
}

// NewNotificationService creates a new NotificationService. Toasts without an
// explicit timeout are dismissed after defaultDismiss; error toasts stay open.
func NewNotificationService(defaultDismiss time.Duration, opts ...telemetry.Option) *NotificationService {
	return &NotificationService{
		Aggregator:     telemetry.New(NotificationMonitor, classifyNotification, opts...),
		defaultDismiss: defaultDismiss,
		schedule: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
		active: make(map[string]models.Notification),
		timers: make(map[string]func() bool),
	}
}

// Notify records a toast and shows it until it is dismissed or times out.
func (s *NotificationService) Notify(n models.Notification, ctx telemetry.Context) models.Notification {
	n, _ = s.notify(n, ctx)
	return n
}

func (s *NotificationService) notify(n models.Notification, ctx telemetry.Context) (models.Notification, telemetry.Event) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.Type = strings.ToLower(strings.TrimSpace(n.Type))
	if n.Type == "" {
		n.Type = "info"
	}
	n.CreatedAt = s.Now()

	s.mu.Lock()
	if cancel, ok := s.timers[n.ID]; ok {
		cancel()
		delete(s.timers, n.ID)
	}
	s.active[n.ID] = n
	if d := s.dismissAfter(n); d > 0 {
		id := n.ID
		s.timers[id] = s.schedule(d, func() {
			if s.Dismiss(id) {
				log.Debug().Str("notification_id", id).Msg("Notification auto-dismissed")
			}
		})
	}
	s.mu.Unlock()

	return n, s.Record(telemetry.CategoryNotification, n, ctx)
}

// Ingest records a toast posted by the notification widget.
func (s *NotificationService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	n, err := decodePayload[models.Notification](req.Payload)
	if err != nil {
		return telemetry.Event{}, fmt.Errorf("invalid notification: %w", err)
	}
	_, e := s.notify(n, req.Context)
	return e, nil
}

// Dismiss hides an active toast. It reports whether the toast was active.
func (s *NotificationService) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	if cancel, ok := s.timers[id]; ok {
		cancel()
		delete(s.timers, id)
	}
	s.dismissed++
	return true
}

// DismissAll hides every active toast and returns how many were hidden.
func (s *NotificationService) DismissAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.active)
	s.stopTimersLocked()
	s.active = make(map[string]models.Notification)
	s.dismissed += n
	return n
}

// Active returns the visible toasts, oldest first.
func (s *NotificationService) Active() []models.Notification {
	s.mu.Lock()
	out := make([]models.Notification, 0, len(s.active))
	for _, n := range s.active {
		out = append(out, n)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Clear drops the recorded history together with every visible toast.
func (s *NotificationService) Clear() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.active = make(map[string]models.Notification)
	s.dismissed = 0
	s.mu.Unlock()

	s.Aggregator.Clear()
}

// Close stops every pending auto-dismiss timer.
func (s *NotificationService) Close() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.mu.Unlock()
}

// Metrics derives the notification dashboard figures.
func (s *NotificationService) Metrics() models.NotificationMetrics {
	snap := s.Snapshot()
	active := s.Active()

	s.mu.Lock()
	dismissed := s.dismissed
	s.mu.Unlock()

	return models.NotificationMetrics{
		Total:       snap.Total,
		ByType:      snap.ByLevel,
		Active:      active,
		ActiveCount: len(active),
		Dismissed:   dismissed,
	}
}

// View returns the monitor specific figures.
func (s *NotificationService) View() any { return s.Metrics() }

func (s *NotificationService) dismissAfter(n models.Notification) time.Duration {
	switch {
	case n.AutoDismissMs > 0:
		return time.Duration(n.AutoDismissMs) * time.Millisecond
	case n.AutoDismissMs < 0, n.Type == "error":
		return 0
	default:
		return s.defaultDismiss
	}
}

func (s *NotificationService) stopTimersLocked() {
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
}

func classifyNotification(_ telemetry.Category, payload any) telemetry.Descriptor {
	n, ok := payload.(models.Notification)
	if !ok {
		return telemetry.Descriptor{}
	}
	title := strings.TrimSpace(n.Title)
	return telemetry.Descriptor{
		Fields: []string{n.Type, title},
		Level:  n.Type,
		Label:  title,
	}
}
