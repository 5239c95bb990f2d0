// Package metrics exposes monitor snapshots to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

// SnapshotSource is a monitor that can be scraped.
type SnapshotSource interface {
	Name() string
	Snapshot() telemetry.Snapshot
}

// Collector reads every monitor's snapshot at scrape time.
type Collector struct {
	sources []SnapshotSource

	events  *prometheus.Desc
	groups  *prometheus.Desc
	byLevel *prometheus.Desc
	rate    *prometheus.Desc

	rejected *prometheus.CounterVec
}

// NewCollector creates a collector for the given monitors.
func NewCollector(sources []SnapshotSource) *Collector {
	return &Collector{
		sources: sources,
		events: prometheus.NewDesc("sitepulse_events",
			"Events currently counted by each monitor.", []string{"monitor"}, nil),
		groups: prometheus.NewDesc("sitepulse_groups",
			"Distinct event groups held by each monitor.", []string{"monitor"}, nil),
		byLevel: prometheus.NewDesc("sitepulse_events_by_level",
			"Events per level or severity.", []string{"monitor", "level"}, nil),
		rate: prometheus.NewDesc("sitepulse_event_rate_per_minute",
			"Events per minute over the monitor's rate window.", []string{"monitor"}, nil),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitepulse_ingest_rejected_total",
			Help: "Widget payloads rejected because they could not be decoded.",
		}, []string{"monitor"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.events
	ch <- c.groups
	ch <- c.byLevel
	ch <- c.rate
	c.rejected.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.sources {
		snap := src.Snapshot()
		name := src.Name()
		ch <- prometheus.MustNewConstMetric(c.events, prometheus.GaugeValue, float64(snap.Total), name)
		ch <- prometheus.MustNewConstMetric(c.groups, prometheus.GaugeValue, float64(snap.GroupCount), name)
		ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, snap.RatePerMinute, name)
		for level, n := range snap.ByLevel {
			ch <- prometheus.MustNewConstMetric(c.byLevel, prometheus.GaugeValue, float64(n), name, level)
		}
	}
	c.rejected.Collect(ch)
}

// IngestRejected counts a payload a monitor could not decode.
func (c *Collector) IngestRejected(monitor string) {
	c.rejected.WithLabelValues(monitor).Inc()
}

// NewRegistry registers the collector together with the Go runtime and process collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
