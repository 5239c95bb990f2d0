package services

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/isdelr/sitepulse/internal/database"
	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventServiceTrimsToLimit(t *testing.T) {
	es := NewEventService(newTestDB(t), 3)
	logs := NewLogService()

	var ids []string
	for i := 0; i < 5; i++ {
		e := logs.Log("info", "hello", nil, telemetry.Context{Path: "/"})
		e.Timestamp = t0.Add(time.Duration(i) * time.Second)
		if err := es.SaveEvent(LogMonitor, e); err != nil {
			t.Fatalf("save event %d: %v", i, err)
		}
		ids = append(ids, e.ID)
	}

	events, err := es.GetRecentEvents(0, "")
	if err != nil {
		t.Fatalf("get recent events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if events[i].ID != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].ID)
		}
	}
	if !events[0].CreatedAt.Equal(t0.Add(4 * time.Second)) {
		t.Fatalf("unexpected timestamp %v", events[0].CreatedAt)
	}
	if string(events[0].Payload) != `{"level":"info","message":"hello"}` {
		t.Fatalf("unexpected payload %s", events[0].Payload)
	}
}

func TestEventServiceMirrorsMonitors(t *testing.T) {
	es := NewEventService(newTestDB(t), 10)
	tel := NewTelemetry(time.Second)
	defer tel.Close()

	unsub := es.Mirror(tel.Monitors())
	defer unsub()
	go es.Run()

	tel.Logs.Log("error", "boom", nil, telemetry.Context{})
	tel.Analytics.TrackPageView(models.PageView{Path: "/"}, telemetry.Context{})
	es.Stop(2 * time.Second)

	events, err := es.GetRecentEvents(10, "")
	if err != nil {
		t.Fatalf("get recent events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 mirrored events, got %d", len(events))
	}

	logsOnly, err := es.GetRecentEvents(10, LogMonitor)
	if err != nil {
		t.Fatalf("get log events: %v", err)
	}
	if len(logsOnly) != 1 || logsOnly[0].Level != "error" {
		t.Fatalf("unexpected log events %+v", logsOnly)
	}

	if err := es.ClearEvents(LogMonitor); err != nil {
		t.Fatalf("clear: %v", err)
	}
	remaining, _ := es.GetRecentEvents(10, "")
	if len(remaining) != 1 || remaining[0].Monitor != AnalyticsMonitor {
		t.Fatalf("expected only analytics event to remain, got %+v", remaining)
	}
}

func TestOperatorAuthentication(t *testing.T) {
	s := NewOperatorService(newTestDB(t))

	op, err := s.CreateOperator(" Dev@Example.com ", "secret")
	if err != nil {
		t.Fatalf("create operator: %v", err)
	}
	if op.Email != "dev@example.com" || op.ID == "" {
		t.Fatalf("unexpected operator %+v", op)
	}

	got, err := s.AuthenticateOperator("dev@example.com", "secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != op.ID || got.PasswordHash != "" {
		t.Fatalf("unexpected authenticated operator %+v", got)
	}

	if _, err := s.AuthenticateOperator("dev@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := s.AuthenticateOperator("nobody@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestEnsureOperatorIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	s := NewOperatorService(db)

	for i := 0; i < 2; i++ {
		if err := s.EnsureOperator("admin@example.com", "pw"); err != nil {
			t.Fatalf("ensure operator run %d: %v", i+1, err)
		}
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM operators").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 operator, got %d", n)
	}
}
