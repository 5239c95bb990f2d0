package services

import (
	"fmt"
	"strings"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// LogMonitor is the name of the logging monitor.
const LogMonitor = "logs"

// LogService groups console log lines by level and message.
type LogService struct {
	*telemetry.Aggregator
}

// NewLogService creates a new LogService.
func NewLogService(opts ...telemetry.Option) *LogService {
	return &LogService{Aggregator: telemetry.New(LogMonitor, classifyLog, opts...)}
}

// Log records a log line.
func (s *LogService) Log(level, message string, data map[string]any, ctx telemetry.Context) telemetry.Event {
	return s.Record(telemetry.CategoryLog, models.LogEntry{Level: level, Message: message, Data: data}, ctx)
}

// Ingest records a log line posted by the logging widget.
func (s *LogService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	entry, err := decodePayload[models.LogEntry](req.Payload)
	if err != nil {
		return telemetry.Event{}, fmt.Errorf("invalid log entry: %w", err)
	}
	return s.Record(telemetry.CategoryLog, entry, req.Context), nil
}

// Metrics derives the logging dashboard figures.
func (s *LogService) Metrics() models.LogMetrics {
	snap := s.Snapshot()
	m := models.LogMetrics{
		TotalLogs:     snap.Total,
		LogsByLevel:   snap.ByLevel,
		LogsPerMinute: snap.RatePerMinute,
	}
	m.TopMessages = telemetry.Derive("logs.topMessages", []models.MessageCount{}, func() []models.MessageCount {
		out := make([]models.MessageCount, 0, len(snap.Top))
		for _, g := range snap.Top {
			out = append(out, models.MessageCount{Message: g.Label, Level: g.Level, Count: g.Count})
		}
		return out
	})
	m.ErrorRate = telemetry.Derive("logs.errorRate", 0.0, func() float64 {
		return percent(snap.ByLevel["error"], snap.Total)
	})
	return m
}

// View returns the monitor specific figures.
func (s *LogService) View() any { return s.Metrics() }

func classifyLog(_ telemetry.Category, payload any) telemetry.Descriptor {
	entry, ok := payload.(models.LogEntry)
	if !ok {
		return telemetry.Descriptor{}
	}
	level := normalizeLevel(entry.Level)
	return telemetry.Descriptor{
		Fields: []string{level, entry.Message},
		Level:  level,
		Label:  entry.Message,
	}
}

// normalizeLevel maps the console method names onto the four levels the dashboard shows.
func normalizeLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warning":
		return "warn"
	case "err", "fatal":
		return "error"
	case "log", "notice":
		return "info"
	case "trace":
		return "debug"
	default:
		return l
	}
}
