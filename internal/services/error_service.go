package services

import (
	"fmt"
	"strings"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// ErrorMonitor is the name of the error monitor.
const ErrorMonitor = "errors"

var errorSeverities = []string{"low", "medium", "high", "critical"}

// Severity of well known browser error names when the report carries none.
var severityByName = map[string]string{
	"ChunkLoadError": "critical",
	"SecurityError":  "critical",
	"TypeError":      "high",
	"ReferenceError": "high",
	"SyntaxError":    "high",
	"RangeError":     "medium",
	"NetworkError":   "medium",
	"AbortError":     "low",
}

// ErrorService groups browser errors by name and message.
type ErrorService struct {
	*telemetry.Aggregator
}

// NewErrorService creates a new ErrorService.
func NewErrorService(opts ...telemetry.Option) *ErrorService {
	return &ErrorService{Aggregator: telemetry.New(ErrorMonitor, classifyError, opts...)}
}

// Report records a caught error.
func (s *ErrorService) Report(report models.ErrorReport, ctx telemetry.Context) telemetry.Event {
	return s.Record(telemetry.CategoryError, report, ctx)
}

// Ingest records an error posted by the error boundary widget.
func (s *ErrorService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	report, err := decodePayload[models.ErrorReport](req.Payload)
	if err != nil {
		return telemetry.Event{}, fmt.Errorf("invalid error report: %w", err)
	}
	return s.Report(report, req.Context), nil
}

// Metrics derives the error dashboard figures.
func (s *ErrorService) Metrics() models.ErrorMetrics {
	snap := s.Snapshot()
	m := models.ErrorMetrics{
		TotalErrors:     snap.Total,
		ErrorsPerMinute: snap.RatePerMinute,
	}
	m.BySeverity = telemetry.Derive("errors.bySeverity", map[string]int{}, func() map[string]int {
		out := make(map[string]int, len(errorSeverities))
		for _, sev := range errorSeverities {
			out[sev] = snap.ByLevel[sev]
		}
		return out
	})

	groups := s.Groups()
	m.ByName = telemetry.Derive("errors.byName", map[string]int{}, func() map[string]int {
		out := make(map[string]int)
		for _, g := range groups {
			if name := g.Attrs["name"]; name != "" {
				out[name] += g.Count
			}
		}
		return out
	})
	m.TopErrors = telemetry.Derive("errors.topErrors", []models.ErrorSummary{}, func() []models.ErrorSummary {
		out := make([]models.ErrorSummary, 0, len(snap.Top))
		for _, g := range snap.Top {
			out = append(out, models.ErrorSummary{
				Name:     g.Attrs["name"],
				Message:  g.Attrs["message"],
				Severity: g.Level,
				Count:    g.Count,
				LastSeen: g.LastSeen,
			})
		}
		return out
	})
	m.AffectedPaths = telemetry.Derive("errors.affectedPaths", 0, func() int {
		paths := make(map[string]struct{})
		for _, g := range groups {
			for _, c := range g.Samples {
				if c.Path != "" {
					paths[c.Path] = struct{}{}
				}
			}
		}
		return len(paths)
	})
	return m
}

// View returns the monitor specific figures.
func (s *ErrorService) View() any { return s.Metrics() }

func classifyError(_ telemetry.Category, payload any) telemetry.Descriptor {
	report, ok := payload.(models.ErrorReport)
	if !ok {
		return telemetry.Descriptor{}
	}
	name := strings.TrimSpace(report.Name)
	message := strings.TrimSpace(report.Message)
	return telemetry.Descriptor{
		Fields: []string{name, message},
		Level:  errorSeverity(report),
		Label:  name + ": " + message,
		Attrs:  map[string]string{"name": name, "message": message},
	}
}

func errorSeverity(r models.ErrorReport) string {
	sev := strings.ToLower(strings.TrimSpace(r.Severity))
	for _, known := range errorSeverities {
		if sev == known {
			return sev
		}
	}
	if r.Handled {
		return "low"
	}
	if sev, ok := severityByName[strings.TrimSpace(r.Name)]; ok {
		return sev
	}
	msg := strings.ToLower(r.Message)
	if strings.Contains(msg, "failed to fetch") || strings.Contains(msg, "network") || strings.Contains(msg, "timeout") {
		return "medium"
	}
	return "high"
}
