package models

// WebVital is a single performance measurement, e.g. LCP in milliseconds or CLS unitless.
type WebVital struct {
	Name  string  `json:"name"` // e.g., "LCP", "INP", "CLS", "host_cpu_percent"
	Value float64 `json:"value"`
}

// MetricSummary aggregates the kept measurements of one metric.
type MetricSummary struct {
	Count   int            `json:"count"`
	Average float64        `json:"average"`
	P75     float64        `json:"p75"`
	Latest  float64        `json:"latest"`
	Rating  string         `json:"rating"` // rating of the p75 value
	Ratings map[string]int `json:"ratings"`
}

// PerformanceMetrics is the derived view of the performance monitor.
type PerformanceMetrics struct {
	Metrics      map[string]MetricSummary `json:"metrics"`
	Ratings      map[string]int           `json:"ratings"`
	Measurements int                      `json:"measurements"`
}
