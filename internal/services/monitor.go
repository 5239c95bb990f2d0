package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// MonitorProvider defines the interface shared by every telemetry monitor.
type MonitorProvider interface {
	Name() string
	Ingest(req models.RecordRequest) (telemetry.Event, error)
	Snapshot() telemetry.Snapshot
	View() any
	Groups() []telemetry.Group
	Group(key telemetry.GroupKey) (telemetry.Group, bool)
	Recent(limit int) []telemetry.Event
	State() telemetry.State
	Sweep() int
	Clear()
	Subscribe(fn telemetry.Subscriber) func()
}

var errEmptyPayload = errors.New("payload is required")

// decodePayload decodes a widget payload into its typed form. Unknown fields
// are ignored; missing fields fall through to the monitor's fallback key.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, errEmptyPayload
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, err
	}
	return v, nil
}

// normalizePath reduces a URL or route to its path: no query, no fragment,
// leading slash, no trailing slash except for the root.
func normalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	} else if err == nil && u.Host != "" {
		raw = "/"
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	if len(raw) > 1 {
		raw = strings.TrimRight(raw, "/")
		if raw == "" {
			raw = "/"
		}
	}
	return raw
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
