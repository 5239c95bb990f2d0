package services

import (
	"fmt"
	"strings"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// AnalyticsMonitor is the name of the analytics monitor.
const AnalyticsMonitor = "analytics"

// Event names that count as a lead.
var conversionEvents = map[string]bool{
	"inspection_request":  true,
	"contact_form_submit": true,
	"phone_click":         true,
	"emergency_call":      true,
}

// AnalyticsService groups page views by path and interactions by name and action.
type AnalyticsService struct {
	*telemetry.Aggregator
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(opts ...telemetry.Option) *AnalyticsService {
	return &AnalyticsService{Aggregator: telemetry.New(AnalyticsMonitor, classifyAnalytics, opts...)}
}

// TrackPageView records a rendered page.
func (s *AnalyticsService) TrackPageView(view models.PageView, ctx telemetry.Context) telemetry.Event {
	if ctx.Path == "" {
		ctx.Path = normalizePath(view.Path)
	}
	return s.Record(telemetry.CategoryPageView, view, ctx)
}

// TrackEvent records a user interaction.
func (s *AnalyticsService) TrackEvent(ev models.AnalyticsEvent, ctx telemetry.Context) telemetry.Event {
	return s.Record(telemetry.CategoryAnalytics, ev, ctx)
}

// Ingest records a page view or an interaction depending on the request category.
func (s *AnalyticsService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	switch telemetry.Category(req.Category) {
	case telemetry.CategoryPageView:
		view, err := decodePayload[models.PageView](req.Payload)
		if err != nil {
			return telemetry.Event{}, fmt.Errorf("invalid page view: %w", err)
		}
		return s.TrackPageView(view, req.Context), nil
	case "", telemetry.CategoryAnalytics, "event":
		ev, err := decodePayload[models.AnalyticsEvent](req.Payload)
		if err != nil {
			return telemetry.Event{}, fmt.Errorf("invalid analytics event: %w", err)
		}
		return s.TrackEvent(ev, req.Context), nil
	default:
		return telemetry.Event{}, fmt.Errorf("unsupported analytics category %q", req.Category)
	}
}

// Metrics derives the analytics dashboard figures.
func (s *AnalyticsService) Metrics() models.AnalyticsMetrics {
	snap := s.Snapshot()
	groups := s.Groups()
	m := models.AnalyticsMetrics{
		PageViews: snap.ByCategory[telemetry.CategoryPageView],
		Events:    snap.ByCategory[telemetry.CategoryAnalytics],
	}
	m.TopPages = telemetry.Derive("analytics.topPages", []models.PageCount{}, func() []models.PageCount {
		out := []models.PageCount{}
		for _, g := range groups {
			if g.Category != telemetry.CategoryPageView || g.Attrs["path"] == "" {
				continue
			}
			out = append(out, models.PageCount{Path: g.Attrs["path"], Title: g.Attrs["title"], Views: g.Count})
			if len(out) == s.TopN() {
				break
			}
		}
		return out
	})
	m.EventsByName = telemetry.Derive("analytics.eventsByName", map[string]int{}, func() map[string]int {
		out := make(map[string]int)
		for _, g := range groups {
			if g.Category == telemetry.CategoryAnalytics && g.Attrs["name"] != "" {
				out[g.Attrs["name"]] += g.Count
			}
		}
		return out
	})
	m.UniqueSessions = telemetry.Derive("analytics.uniqueSessions", 0, func() int {
		sessions := make(map[string]struct{})
		for _, e := range s.Recent(0) {
			if e.Context.SessionID != "" {
				sessions[e.Context.SessionID] = struct{}{}
			}
		}
		return len(sessions)
	})
	for name, n := range m.EventsByName {
		if conversionEvents[name] {
			m.Conversions += n
		}
	}
	m.ConversionRate = telemetry.Derive("analytics.conversionRate", 0.0, func() float64 {
		return percent(m.Conversions, m.UniqueSessions)
	})
	return m
}

// View returns the monitor specific figures.
func (s *AnalyticsService) View() any { return s.Metrics() }

func classifyAnalytics(_ telemetry.Category, payload any) telemetry.Descriptor {
	switch p := payload.(type) {
	case models.PageView:
		path := normalizePath(p.Path)
		label := path
		if p.Title != "" {
			label = p.Title
		}
		return telemetry.Descriptor{
			Fields: []string{path},
			Label:  label,
			Attrs:  map[string]string{"path": path, "title": p.Title},
		}
	case models.AnalyticsEvent:
		name := strings.TrimSpace(p.Name)
		action := strings.TrimSpace(p.Action)
		fields := []string{name}
		label := name
		if action != "" {
			fields = append(fields, action)
			label = name + " / " + action
		}
		return telemetry.Descriptor{
			Fields: fields,
			Label:  label,
			Attrs:  map[string]string{"name": name, "action": action},
		}
	}
	return telemetry.Descriptor{}
}
