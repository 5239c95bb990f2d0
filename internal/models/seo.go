package models

// SEOIssue is a finding of the in-page SEO and accessibility audit.
type SEOIssue struct {
	Rule      string `json:"rule"`                // e.g., "image-alt", "meta-description"
	Guideline string `json:"guideline,omitempty"` // WCAG success criterion, e.g. "1.1.1"
	Severity  string `json:"severity,omitempty"`  // critical, serious, moderate, minor
	Path      string `json:"path"`
	Message   string `json:"message,omitempty"`
	Selector  string `json:"selector,omitempty"`
}

// PageScore is the audit score of one page.
type PageScore struct {
	Path   string `json:"path"`
	Score  int    `json:"score"`
	Issues int    `json:"issues"`
	Stale  bool   `json:"stale"` // content changed since the last audit
}

// SEOMetrics is the derived view of the SEO monitor.
type SEOMetrics struct {
	TotalIssues       int            `json:"totalIssues"`
	DistinctIssues    int            `json:"distinctIssues"`
	IssuesByGuideline map[string]int `json:"issuesByGuideline"`
	IssuesBySeverity  map[string]int `json:"issuesBySeverity"`
	Pages             []PageScore    `json:"pages"`
	AverageScore      float64        `json:"averageScore"`
}
