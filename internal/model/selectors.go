package model

import "time"

// ResolutionSource identifies which tier of the pipeline produced a selector set.
type ResolutionSource string

const (
	SourceCache   ResolutionSource = "cache"
	SourceDynamic ResolutionSource = "dynamic"
	SourceStatic  ResolutionSource = "static"
)

// PlatformSelectors describes how to find posts on one domain. Selector
// expressions may be comma-joined unions of alternatives. TextContent is
// evaluated relative to a matched post container.
type PlatformSelectors struct {
	PostContainer string `json:"post_container"`
	TextContent   string `json:"text_content"`
	Author        string `json:"author,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// Usable reports whether the selector set can be used for extraction.
// An empty PostContainer is the terminal "no selectors available" marker,
// never a valid candidate.
func (s PlatformSelectors) Usable() bool {
	return s.PostContainer != "" && s.TextContent != ""
}

// ValidationMetrics is the most recent observed extraction quality for a
// cached selector set.
type ValidationMetrics struct {
	PostsFound         int     `json:"posts_found"`
	TextExtractionRate float64 `json:"text_extraction_rate"`
}

// CacheEntry is the persisted record for one domain.
//
// Validated distinguishes entries carrying real observed metrics from
// entries persisted right after discovery with placeholder metrics. A
// freshly discovered entry is stored with Validated=false and zero metrics;
// the flag flips when the first validation report arrives.
type CacheEntry struct {
	Domain          string            `json:"domain"`
	Selectors       PlatformSelectors `json:"selectors"`
	Confidence      int               `json:"confidence"` // 0-100
	DiscoveredAt    time.Time         `json:"discovered_at"`
	LastValidatedAt time.Time         `json:"last_validated_at"`
	Metrics         ValidationMetrics `json:"validation_metrics"`
	Validated       bool              `json:"validated"`
}

// ValidationResult is produced by evaluating a selector set against a live
// document. It is never persisted directly; its summary fields are folded
// into a cache entry's metrics or trigger eviction.
type ValidationResult struct {
	Valid              bool     `json:"valid"`
	PostsFound         int      `json:"posts_found"`
	TextExtractionRate float64  `json:"text_extraction_rate"`
	Errors             []string `json:"errors,omitempty"`
}

// Resolution is the answer to "what selectors should I use for domain D".
type Resolution struct {
	Domain     string            `json:"domain"`
	Selectors  PlatformSelectors `json:"selectors"`
	Confidence int               `json:"confidence"`
	Cached     bool              `json:"cached"`
	Source     ResolutionSource  `json:"source"`
	Reasoning  string            `json:"reasoning,omitempty"`
}

// Usable reports whether the resolution carries usable selectors, as opposed
// to the sentinel returned when every tier failed.
func (r Resolution) Usable() bool {
	return r.Selectors.Usable()
}

// ValidationReport is the feedback sent by the runtime observer after it has
// exercised a resolved selector set against the live page.
type ValidationReport struct {
	Domain             string  `json:"domain"`
	Valid              bool    `json:"valid"`
	PostsFound         int     `json:"posts_found"`
	TextExtractionRate float64 `json:"text_extraction_rate"`
}

// CacheStats is an aggregate read over the selector cache.
type CacheStats struct {
	TotalDomains      int       `json:"total_domains"`
	AverageConfidence float64   `json:"average_confidence"`
	OldestEntry       time.Time `json:"oldest_entry,omitzero"`
	NewestEntry       time.Time `json:"newest_entry,omitzero"`
}

// Post is one extracted social-media post, the unit handed to the claim
// detection pipeline.
type Post struct {
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
