package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// CMSMonitor is the name of the content monitor.
const CMSMonitor = "cms"

// CMSService groups content changes and keeps a registry of the site's pages.
type CMSService struct {
	*telemetry.Aggregator

	mu    sync.RWMutex
	pages map[string]models.PageEntry
}

// NewCMSService creates a new CMSService.
func NewCMSService(opts ...telemetry.Option) *CMSService {
	return &CMSService{
		Aggregator: telemetry.New(CMSMonitor, classifyContent, opts...),
		pages:      make(map[string]models.PageEntry),
	}
}

// ContentChanged records a change and updates the page registry. Deleting a
// page only marks it inactive.
func (s *CMSService) ContentChanged(change models.ContentChange, ctx telemetry.Context) telemetry.Event {
	change.ContentType = strings.ToLower(strings.TrimSpace(change.ContentType))
	change.Action = strings.ToLower(strings.TrimSpace(change.Action))
	change.Path = normalizePath(change.Path)
	if ctx.Path == "" {
		ctx.Path = change.Path
	}
	if change.ContentType == "page" && change.ContentID != "" {
		s.trackPage(change)
	}
	return s.Record(telemetry.CategoryContent, change, ctx)
}

// Ingest records a change posted by the CMS.
func (s *CMSService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	change, err := decodePayload[models.ContentChange](req.Payload)
	if err != nil {
		return telemetry.Event{}, fmt.Errorf("invalid content change: %w", err)
	}
	return s.ContentChanged(change, req.Context), nil
}

// Pages returns the page registry ordered by path.
func (s *CMSService) Pages() []models.PageEntry {
	s.mu.RLock()
	out := make([]models.PageEntry, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].ContentID < out[j].ContentID
	})
	return out
}

// Clear drops the change history and the page registry.
func (s *CMSService) Clear() {
	s.mu.Lock()
	s.pages = make(map[string]models.PageEntry)
	s.mu.Unlock()

	s.Aggregator.Clear()
}

// Metrics derives the content dashboard figures.
func (s *CMSService) Metrics() models.CMSMetrics {
	snap := s.Snapshot()
	groups := s.Groups()
	m := models.CMSMetrics{
		TotalChanges: snap.Total,
		ByAction:     snap.ByLevel,
		Pages:        s.Pages(),
	}
	m.ByType = telemetry.Derive("cms.byType", map[string]int{}, func() map[string]int {
		out := make(map[string]int)
		for _, g := range groups {
			if t := g.Attrs["type"]; t != "" {
				out[t] += g.Count
			}
		}
		return out
	})
	for _, p := range m.Pages {
		if p.Active {
			m.ActivePages++
		} else {
			m.InactivePages++
		}
	}
	return m
}

// View returns the monitor specific figures.
func (s *CMSService) View() any { return s.Metrics() }

func (s *CMSService) trackPage(change models.ContentChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pages[change.ContentID]
	if !ok {
		entry = models.PageEntry{ContentID: change.ContentID}
	}
	if change.Path != "" {
		entry.Path = change.Path
	}
	if change.Title != "" {
		entry.Title = change.Title
	}
	switch change.Action {
	case "delete", "unpublish", "archive":
		entry.Active = false
	default:
		entry.Active = true
	}
	entry.UpdatedAt = s.Now()
	s.pages[change.ContentID] = entry
}

func classifyContent(_ telemetry.Category, payload any) telemetry.Descriptor {
	c, ok := payload.(models.ContentChange)
	if !ok {
		return telemetry.Descriptor{}
	}
	label := c.Title
	if label == "" {
		label = c.ContentType + " " + c.ContentID
	}
	return telemetry.Descriptor{
		Fields: []string{c.ContentType, c.ContentID, c.Action},
		Level:  c.Action,
		Label:  label,
		Attrs: map[string]string{
			"type":   c.ContentType,
			"id":     c.ContentID,
			"action": c.Action,
			"path":   c.Path,
		},
	}
}
