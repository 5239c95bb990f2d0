package models

import "time"

// ErrorReport is an exception caught in the browser.
type ErrorReport struct {
	Name     string `json:"name"` // e.g., "TypeError", "ChunkLoadError"
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
	Severity string `json:"severity,omitempty"` // Optional override: low, medium, high, critical
	Handled  bool   `json:"handled"`
}

// ErrorSummary is one row of the most frequent errors.
type ErrorSummary struct {
	Name     string    `json:"name"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// ErrorMetrics is the derived view of the error monitor.
type ErrorMetrics struct {
	TotalErrors     int            `json:"totalErrors"`
	BySeverity      map[string]int `json:"bySeverity"`
	ByName          map[string]int `json:"byName"`
	TopErrors       []ErrorSummary `json:"topErrors"`
	ErrorsPerMinute float64        `json:"errorsPerMinute"`
	AffectedPaths   int            `json:"affectedPaths"`
}
