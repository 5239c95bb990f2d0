package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

const (
	// DefaultMirrorLimit is how many events the mirror keeps across all monitors.
	DefaultMirrorLimit = 1000
	mirrorQueueSize    = 256
)

// EventServiceProvider defines the interface for the persisted event mirror.
type EventServiceProvider interface {
	SaveEvent(monitor string, e telemetry.Event) error
	GetRecentEvents(limit int, monitor string) ([]models.StoredEvent, error)
	ClearEvents(monitor string) error
}

type mirrorOp struct {
	monitor string
	event   *telemetry.Event
	clear   bool
}

// EventService mirrors recorded events into SQLite. Mirroring is best
// effort: a full queue drops the event and write failures are only logged.
type EventService struct {
	db    *sql.DB
	limit int

	queue    chan mirrorOp
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewEventService creates a new EventService keeping at most limit events.
func NewEventService(db *sql.DB, limit int) *EventService {
	if limit <= 0 {
		limit = DefaultMirrorLimit
	}
	return &EventService{
		db:    db,
		limit: limit,
		queue: make(chan mirrorOp, mirrorQueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Mirror subscribes the service to every monitor. The returned function unsubscribes.
func (s *EventService) Mirror(monitors []MonitorProvider) func() {
	unsubs := make([]func(), 0, len(monitors))
	for _, m := range monitors {
		name := m.Name()
		unsubs = append(unsubs, m.Subscribe(func(u telemetry.Update) {
			switch u.Kind {
			case telemetry.UpdateRecorded:
				s.enqueue(mirrorOp{monitor: name, event: u.Event})
			case telemetry.UpdateCleared:
				s.enqueue(mirrorOp{monitor: name, clear: true})
			}
		}))
	}
	return func() {
		for _, fn := range unsubs {
			fn()
		}
	}
}

func (s *EventService) enqueue(op mirrorOp) {
	select {
	case s.queue <- op:
	default:
		log.Warn().Str("monitor", op.monitor).Msg("Event mirror queue full, dropping event")
	}
}

// Run drains the mirror queue until Stop is called.
func (s *EventService) Run() {
	log.Info().Int("limit", s.limit).Msg("Starting event mirror")
	defer close(s.done)
	for {
		select {
		case op := <-s.queue:
			s.apply(op)
		case <-s.quit:
			for {
				select {
				case op := <-s.queue:
					s.apply(op)
				default:
					log.Info().Msg("Stopping event mirror")
					return
				}
			}
		}
	}
}

// Stop flushes the queued events and stops Run, waiting at most timeout.
func (s *EventService) Stop(timeout time.Duration) {
	s.stopOnce.Do(func() {
		close(s.quit)
		select {
		case <-s.done:
		case <-time.After(timeout):
			log.Warn().Msg("Event mirror flush timed out")
		}
	})
}

func (s *EventService) apply(op mirrorOp) {
	if op.clear {
		if err := s.ClearEvents(op.monitor); err != nil {
			log.Error().Err(err).Str("monitor", op.monitor).Msg("Failed to clear mirrored events")
		}
		return
	}
	if op.event == nil {
		return
	}
	if err := s.SaveEvent(op.monitor, *op.event); err != nil {
		log.Error().Err(err).Str("monitor", op.monitor).Str("event_id", op.event.ID).Msg("Failed to mirror event")
	}
}

// SaveEvent stores one event and trims the table to the configured limit.
func (s *EventService) SaveEvent(monitor string, e telemetry.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	ctx, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	stmt, err := s.db.Prepare("INSERT OR REPLACE INTO events (id, monitor, category, group_key, level, payload_json, context_json, created_at_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(e.ID, monitor, string(e.Category), string(e.Key), e.Level, string(payload), string(ctx), e.Timestamp.UnixNano())
	if err != nil {
		return err
	}

	_, err = s.db.Exec("DELETE FROM events WHERE id IN (SELECT id FROM events ORDER BY created_at_ns DESC, rowid DESC LIMIT -1 OFFSET ?)", s.limit)
	if err != nil {
		return fmt.Errorf("failed to trim events: %w", err)
	}
	return nil
}

// GetRecentEvents retrieves the most recent mirrored events, newest first.
// An empty monitor returns events of every monitor.
func (s *EventService) GetRecentEvents(limit int, monitor string) ([]models.StoredEvent, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	var (
		rows *sql.Rows
		err  error
	)
	const cols = "SELECT id, monitor, category, group_key, level, payload_json, context_json, created_at_ns FROM events"
	if monitor == "" {
		rows, err = s.db.Query(cols+" ORDER BY created_at_ns DESC, rowid DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(cols+" WHERE monitor = ? ORDER BY created_at_ns DESC, rowid DESC LIMIT ?", monitor, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.StoredEvent{}
	for rows.Next() {
		var (
			event            models.StoredEvent
			level            sql.NullString
			payload, context sql.NullString
			createdAt        int64
		)
		if err := rows.Scan(&event.ID, &event.Monitor, &event.Category, &event.GroupKey, &level, &payload, &context, &createdAt); err != nil {
			return nil, err
		}
		event.Level = level.String
		event.Payload = rawJSON(payload)
		event.Context = rawJSON(context)
		event.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

// ClearEvents removes the mirrored events of a monitor, or all of them when monitor is empty.
func (s *EventService) ClearEvents(monitor string) error {
	if monitor == "" {
		_, err := s.db.Exec("DELETE FROM events")
		return err
	}
	_, err := s.db.Exec("DELETE FROM events WHERE monitor = ?", monitor)
	return err
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s.String)
}
