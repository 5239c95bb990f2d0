package services

import (
	"testing"
	"time"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

func TestCMSPageRegistrySoftDelete(t *testing.T) {
	s := NewCMSService()
	s.ContentChanged(models.ContentChange{ContentType: "Page", ContentID: "p1", Action: "create", Path: "/about/", Title: "About"}, telemetry.Context{})
	s.ContentChanged(models.ContentChange{ContentType: "block", ContentID: "b1", Action: "update"}, telemetry.Context{})
	s.ContentChanged(models.ContentChange{ContentType: "page", ContentID: "p1", Action: "delete"}, telemetry.Context{})

	pages := s.Pages()
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %+v", pages)
	}
	if pages[0].Path != "/about" || pages[0].Title != "About" || pages[0].Active {
		t.Fatalf("expected inactive /about page, got %+v", pages[0])
	}

	m := s.Metrics()
	if m.TotalChanges != 3 || m.ByType["page"] != 2 || m.ByType["block"] != 1 {
		t.Fatalf("unexpected change counts %+v", m)
	}
	if m.ByAction["delete"] != 1 || m.ActivePages != 0 || m.InactivePages != 1 {
		t.Fatalf("unexpected page counts %+v", m)
	}

	s.Clear()
	if len(s.Pages()) != 0 {
		t.Fatal("expected clear to empty the page registry")
	}
}

func TestSEOPageScore(t *testing.T) {
	s := NewSEOService()
	s.ReportIssue(models.SEOIssue{Rule: "image-alt", Severity: "serious", Path: "/about"}, telemetry.Context{})
	s.ReportIssue(models.SEOIssue{Rule: "meta-description", Path: "/about"}, telemetry.Context{})
	s.ReportIssue(models.SEOIssue{Rule: "image-alt", Severity: "serious", Path: "/about"}, telemetry.Context{})

	m := s.Metrics()
	if m.TotalIssues != 3 || m.DistinctIssues != 2 {
		t.Fatalf("unexpected issue counts %+v", m)
	}
	if m.IssuesByGuideline["1.1.1"] != 2 || m.IssuesByGuideline["seo"] != 1 {
		t.Fatalf("unexpected guidelines %v", m.IssuesByGuideline)
	}
	if len(m.Pages) != 1 || m.Pages[0].Score != 85 || m.Pages[0].Issues != 2 {
		t.Fatalf("unexpected pages %+v", m.Pages)
	}
	if m.AverageScore != 85 {
		t.Fatalf("expected average 85, got %v", m.AverageScore)
	}
}

func TestContentChangeInvalidatesSEOAudit(t *testing.T) {
	clock := newClock()
	tel := NewTelemetry(time.Second, telemetry.WithClock(clock.Now))
	defer tel.Close()

	tel.SEO.ReportIssue(models.SEOIssue{Rule: "image-alt", Severity: "serious", Path: "/about"}, telemetry.Context{})

	clock.Advance(time.Minute)
	tel.CMS.ContentChanged(models.ContentChange{ContentType: "page", ContentID: "p1", Action: "update", Path: "/about/"}, telemetry.Context{})

	pages := tel.SEO.Pages()
	if len(pages) != 1 || !pages[0].Stale || pages[0].Score != 100 || pages[0].Issues != 0 {
		t.Fatalf("expected stale page after content change, got %+v", pages)
	}

	clock.Advance(time.Minute)
	tel.SEO.ReportIssue(models.SEOIssue{Rule: "image-alt", Severity: "serious", Path: "/about"}, telemetry.Context{})
	pages = tel.SEO.Pages()
	if pages[0].Stale || pages[0].Score != 90 || pages[0].Issues != 1 {
		t.Fatalf("expected fresh audit to count again, got %+v", pages[0])
	}
}

func TestTelemetryCloseStopsContentWatch(t *testing.T) {
	tel := NewTelemetry(time.Second)
	tel.Close()

	tel.CMS.ContentChanged(models.ContentChange{ContentType: "page", ContentID: "p1", Action: "update", Path: "/x"}, telemetry.Context{})
	if pages := tel.SEO.Pages(); len(pages) != 0 {
		t.Fatalf("expected no invalidation after close, got %+v", pages)
	}
}

func TestTelemetryMonitors(t *testing.T) {
	tel := NewTelemetry(time.Second)
	defer tel.Close()

	want := []string{LogMonitor, ErrorMonitor, AnalyticsMonitor, PerformanceMonitor, NotificationMonitor, CMSMonitor, SEOMonitor}
	monitors := tel.Monitors()
	if len(monitors) != len(want) {
		t.Fatalf("expected %d monitors, got %d", len(want), len(monitors))
	}
	for i, m := range monitors {
		if m.Name() != want[i] {
			t.Errorf("monitor %d: expected %s, got %s", i, want[i], m.Name())
		}
		if m.State() != telemetry.StateUninitialized {
			t.Errorf("monitor %s should start uninitialized", m.Name())
		}
	}
	if _, ok := tel.Monitor("seo"); !ok {
		t.Fatal("expected seo monitor lookup to succeed")
	}
	if _, ok := tel.Monitor("nope"); ok {
		t.Fatal("expected unknown monitor lookup to fail")
	}
}
