// Package telemetry aggregates monitor events into deduplicated groups and
// derives point-in-time snapshots from them.
package telemetry

import "time"

// Category identifies the kind of event a monitor records.
type Category string

const (
	CategoryLog          Category = "log"
	CategoryError        Category = "error"
	CategoryMetric       Category = "metric"
	CategoryPageView     Category = "pageview"
	CategoryAnalytics    Category = "analytics"
	CategoryNotification Category = "notification"
	CategoryContent      Category = "content"
	CategorySEO          Category = "seo"
)

// Context carries optional display tags captured where the event happened.
type Context struct {
	Path      string            `json:"path,omitempty"`
	Component string            `json:"component,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

func (c Context) clone() Context {
	if c.Tags == nil {
		return c
	}
	tags := make(map[string]string, len(c.Tags))
	for k, v := range c.Tags {
		tags[k] = v
	}
	c.Tags = tags
	return c
}

// Event is a single recorded occurrence. It is never mutated after Record returns it.
type Event struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Key       GroupKey  `json:"groupKey"`
	Level     string    `json:"level,omitempty"`
	Payload   any       `json:"payload"`
	Context   Context   `json:"context"`
	Timestamp time.Time `json:"timestamp"`
}
