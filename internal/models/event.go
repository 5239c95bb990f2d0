package models

import (
	"encoding/json"
	"time"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

// StoredEvent is a monitor event as kept in the best-effort SQLite mirror.
type StoredEvent struct {
	ID        string          `json:"id"`
	Monitor   string          `json:"monitor"`
	Category  string          `json:"category"`
	GroupKey  string          `json:"groupKey"`
	Level     string          `json:"level,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Context   json.RawMessage `json:"context"`
	CreatedAt time.Time       `json:"createdAt"`
}

// RecordRequest is the body a monitor widget sends to record an event.
type RecordRequest struct {
	Category string            `json:"category,omitempty"` // Optional, e.g. "pageview" for the analytics monitor
	Payload  json.RawMessage   `json:"payload"`
	Context  telemetry.Context `json:"context"`
}
