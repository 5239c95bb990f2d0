package models

import "time"

// Notification is a toast shown to the visitor.
type Notification struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"` // e.g., "info", "success", "warning", "error"
	Title         string    `json:"title"`
	Message       string    `json:"message,omitempty"`
	AutoDismissMs int       `json:"autoDismissMs,omitempty"` // 0 uses the monitor default, negative keeps it open
	CreatedAt     time.Time `json:"createdAt"`
}

// NotificationMetrics is the derived view of the notification monitor.
type NotificationMetrics struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"byType"`
	Active      []Notification `json:"active"`
	ActiveCount int            `json:"activeCount"`
	Dismissed   int            `json:"dismissed"`
}
