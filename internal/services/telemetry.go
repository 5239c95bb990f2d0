package services

import (
	"time"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

// Telemetry holds one instance of every monitor. It is built once at startup
// and handed to whatever needs a monitor.
type Telemetry struct {
	Logs          *LogService
	Errors        *ErrorService
	Analytics     *AnalyticsService
	Performance   *PerformanceService
	Notifications *NotificationService
	CMS           *CMSService
	SEO           *SEOService

	monitors []MonitorProvider
	byName   map[string]MonitorProvider
}

// NewTelemetry builds every monitor with the same aggregation options and
// connects the SEO audit to content changes.
func NewTelemetry(notificationDismiss time.Duration, opts ...telemetry.Option) *Telemetry {
	t := &Telemetry{
		Logs:          NewLogService(opts...),
		Errors:        NewErrorService(opts...),
		Analytics:     NewAnalyticsService(opts...),
		Performance:   NewPerformanceService(opts...),
		Notifications: NewNotificationService(notificationDismiss, opts...),
		CMS:           NewCMSService(opts...),
		SEO:           NewSEOService(opts...),
	}
	t.monitors = []MonitorProvider{t.Logs, t.Errors, t.Analytics, t.Performance, t.Notifications, t.CMS, t.SEO}
	t.byName = make(map[string]MonitorProvider, len(t.monitors))
	for _, m := range t.monitors {
		t.byName[m.Name()] = m
	}
	t.SEO.WatchContent(t.CMS)
	return t
}

// Monitors returns every monitor in a stable order.
func (t *Telemetry) Monitors() []MonitorProvider {
	out := make([]MonitorProvider, len(t.monitors))
	copy(out, t.monitors)
	return out
}

// Monitor looks a monitor up by name.
func (t *Telemetry) Monitor(name string) (MonitorProvider, bool) {
	m, ok := t.byName[name]
	return m, ok
}

// Close stops timers and internal subscriptions.
func (t *Telemetry) Close() {
	t.Notifications.Close()
	t.SEO.Close()
}
