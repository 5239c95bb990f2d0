package models

// PageView is recorded every time a page of the site is rendered.
type PageView struct {
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// AnalyticsEvent is a user interaction such as a form submit or a phone click.
type AnalyticsEvent struct {
	Name   string  `json:"name"` // e.g., "inspection_request"
	Action string  `json:"action,omitempty"`
	Label  string  `json:"label,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// PageCount is one row of the most visited pages.
type PageCount struct {
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
	Views int    `json:"views"`
}

// AnalyticsMetrics is the derived view of the analytics monitor.
type AnalyticsMetrics struct {
	PageViews      int            `json:"pageViews"`
	Events         int            `json:"events"`
	UniqueSessions int            `json:"uniqueSessions"`
	TopPages       []PageCount    `json:"topPages"`
	EventsByName   map[string]int `json:"eventsByName"`
	Conversions    int            `json:"conversions"`
	ConversionRate float64        `json:"conversionRate"` // conversions per 100 sessions
}
