package models

// LogEntry is a console log line captured by the logging monitor.
type LogEntry struct {
	Level   string         `json:"level"` // e.g., "debug", "info", "warn", "error"
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// MessageCount is one row of the most frequent log messages.
type MessageCount struct {
	Message string `json:"message"`
	Level   string `json:"level"`
	Count   int    `json:"count"`
}

// LogMetrics is the derived view of the logging monitor.
type LogMetrics struct {
	TotalLogs     int            `json:"totalLogs"`
	LogsByLevel   map[string]int `json:"logsByLevel"`
	TopMessages   []MessageCount `json:"topMessages"`
	ErrorRate     float64        `json:"errorRate"` // percentage of logs at error level
	LogsPerMinute float64        `json:"logsPerMinute"`
}
