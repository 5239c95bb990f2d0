package models

import "time"

// ContentChange is emitted by the CMS whenever a page or content block changes.
type ContentChange struct {
	ContentType string `json:"contentType"` // e.g., "page", "block", "post"
	ContentID   string `json:"contentId"`
	Action      string `json:"action"` // create, update, publish, delete
	Path        string `json:"path,omitempty"`
	Title       string `json:"title,omitempty"`
}

// PageEntry tracks a CMS page. Deleted pages are kept with Active=false.
type PageEntry struct {
	Path      string    `json:"path"`
	ContentID string    `json:"contentId"`
	Title     string    `json:"title,omitempty"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CMSMetrics is the derived view of the CMS monitor.
type CMSMetrics struct {
	TotalChanges  int            `json:"totalChanges"`
	ByAction      map[string]int `json:"byAction"`
	ByType        map[string]int `json:"byType"`
	Pages         []PageEntry    `json:"pages"`
	ActivePages   int            `json:"activePages"`
	InactivePages int            `json:"inactivePages"`
}
