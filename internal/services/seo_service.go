package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// SEOMonitor is the name of the SEO and accessibility monitor.
const SEOMonitor = "seo"

// WCAG success criteria of the audit rules; other rules are plain SEO checks.
var ruleGuidelines = map[string]string{
	"image-alt":       "1.1.1",
	"heading-order":   "1.3.1",
	"color-contrast":  "1.4.3",
	"document-title":  "2.4.2",
	"link-name":       "2.4.4",
	"html-has-lang":   "3.1.1",
	"label":           "3.3.2",
	"button-name":     "4.1.2",
	"aria-valid-attr": "4.1.2",
}

var severityWeights = map[string]int{
	"critical": 15,
	"serious":  10,
	"moderate": 5,
	"minor":    2,
}

// SEOService groups audit findings by rule and path and scores every page.
type SEOService struct {
	*telemetry.Aggregator

	mu          sync.Mutex
	invalidated map[string]time.Time
	unwatch     []func()
}

// NewSEOService creates a new SEOService.
func NewSEOService(opts ...telemetry.Option) *SEOService {
	return &SEOService{
		Aggregator:  telemetry.New(SEOMonitor, classifySEO, opts...),
		invalidated: make(map[string]time.Time),
	}
}

// ReportIssue records one audit finding.
func (s *SEOService) ReportIssue(issue models.SEOIssue, ctx telemetry.Context) telemetry.Event {
	issue.Path = normalizePath(issue.Path)
	if ctx.Path == "" {
		ctx.Path = issue.Path
	}
	return s.Record(telemetry.CategorySEO, issue, ctx)
}

// Ingest records a finding posted by the audit widget.
func (s *SEOService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	issue, err := decodePayload[models.SEOIssue](req.Payload)
	if err != nil {
		return telemetry.Event{}, fmt.Errorf("invalid seo issue: %w", err)
	}
	return s.ReportIssue(issue, req.Context), nil
}

// WatchContent invalidates the audit of every page the content monitor
// reports a change for.
func (s *SEOService) WatchContent(src telemetry.Subscribable) {
	unsub := src.Subscribe(func(u telemetry.Update) {
		if u.Kind != telemetry.UpdateRecorded || u.Event == nil {
			return
		}
		path := u.Event.Context.Path
		if c, ok := u.Event.Payload.(models.ContentChange); ok && c.Path != "" {
			path = c.Path
		}
		if path == "" {
			return
		}
		s.InvalidateAt(path, u.Event.Timestamp)
		log.Debug().Str("path", path).Msg("SEO audit invalidated by content change")
	})

	s.mu.Lock()
	s.unwatch = append(s.unwatch, unsub)
	s.mu.Unlock()
}

// Invalidate marks the audit of a page as outdated from now on.
func (s *SEOService) Invalidate(path string) {
	s.InvalidateAt(path, s.Now())
}

// InvalidateAt marks the audit of a page as outdated. Findings seen at or
// before at no longer count toward the page score.
func (s *SEOService) InvalidateAt(path string, at time.Time) {
	path = normalizePath(path)
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.invalidated[path]; !ok || at.After(prev) {
		s.invalidated[path] = at
	}
}

// Pages scores every audited page, ordered by path.
func (s *SEOService) Pages() []models.PageScore {
	s.mu.Lock()
	invalidated := make(map[string]time.Time, len(s.invalidated))
	for k, v := range s.invalidated {
		invalidated[k] = v
	}
	s.mu.Unlock()

	byPath := make(map[string]*models.PageScore)
	for _, g := range s.Groups() {
		path := g.Attrs["path"]
		if path == "" {
			continue
		}
		page, ok := byPath[path]
		if !ok {
			page = &models.PageScore{Path: path, Score: 100}
			byPath[path] = page
		}
		if at, ok := invalidated[path]; ok && !g.LastSeen.After(at) {
			continue
		}
		page.Issues++
		page.Score -= severityWeights[g.Level]
	}
	for path := range invalidated {
		if _, ok := byPath[path]; !ok {
			byPath[path] = &models.PageScore{Path: path, Score: 100}
		}
	}

	out := make([]models.PageScore, 0, len(byPath))
	for path, page := range byPath {
		if page.Score < 0 {
			page.Score = 0
		}
		_, wasInvalidated := invalidated[path]
		page.Stale = wasInvalidated && page.Issues == 0
		out = append(out, *page)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Clear drops findings and invalidations.
func (s *SEOService) Clear() {
	s.mu.Lock()
	s.invalidated = make(map[string]time.Time)
	s.mu.Unlock()

	s.Aggregator.Clear()
}

// Close stops watching content sources.
func (s *SEOService) Close() {
	s.mu.Lock()
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	for _, fn := range unwatch {
		fn()
	}
}

// Metrics derives the SEO dashboard figures.
func (s *SEOService) Metrics() models.SEOMetrics {
	snap := s.Snapshot()
	groups := s.Groups()
	m := models.SEOMetrics{
		TotalIssues:      snap.Total,
		DistinctIssues:   snap.GroupCount,
		IssuesBySeverity: snap.ByLevel,
	}
	m.IssuesByGuideline = telemetry.Derive("seo.issuesByGuideline", map[string]int{}, func() map[string]int {
		out := make(map[string]int)
		for _, g := range groups {
			if gl := g.Attrs["guideline"]; gl != "" {
				out[gl] += g.Count
			}
		}
		return out
	})
	m.Pages = telemetry.Derive("seo.pages", []models.PageScore{}, s.Pages)
	m.AverageScore = telemetry.Derive("seo.averageScore", 0.0, func() float64 {
		if len(m.Pages) == 0 {
			return 0
		}
		total := 0
		for _, p := range m.Pages {
			total += p.Score
		}
		return float64(total) / float64(len(m.Pages))
	})
	return m
}

// View returns the monitor specific figures.
func (s *SEOService) View() any { return s.Metrics() }

func classifySEO(_ telemetry.Category, payload any) telemetry.Descriptor {
	issue, ok := payload.(models.SEOIssue)
	if !ok {
		return telemetry.Descriptor{}
	}
	rule := strings.ToLower(strings.TrimSpace(issue.Rule))
	severity := strings.ToLower(strings.TrimSpace(issue.Severity))
	if _, known := severityWeights[severity]; !known {
		severity = "moderate"
	}
	guideline := issue.Guideline
	if guideline == "" {
		guideline = ruleGuidelines[rule]
	}
	if guideline == "" {
		guideline = "seo"
	}
	label := rule
	if issue.Message != "" {
		label = issue.Message
	}
	return telemetry.Descriptor{
		Fields: []string{rule, issue.Path},
		Level:  severity,
		Label:  label,
		Attrs: map[string]string{
			"rule":      rule,
			"path":      issue.Path,
			"guideline": guideline,
		},
	}
}
