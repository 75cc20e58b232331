// Package cache persists discovered selector sets per domain, with TTL
// expiry enforced on read and a revalidation-due policy for stale entries.
package cache

import (
	"context"
	"time"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

const (
	// TTL is the absolute lifetime of a cache entry measured from discovery.
	// Entries older than this are evicted on the next read.
	TTL = 30 * 24 * time.Hour

	// RevalidationInterval is how long a successful validation stays fresh.
	// Past it the entry is still servable but due for a live recheck.
	RevalidationInterval = 7 * 24 * time.Hour
)

// Store is the durable mapping from normalized domain to cache entry.
//
// All implementations share the same failure semantics: read failures are
// caught at the store boundary, logged, and reported as a miss (nil, nil) so
// the resolution pipeline degrades to the next tier instead of failing;
// write failures propagate to the caller.
type Store interface {
	// Get returns the non-expired entry for a domain, or nil if absent.
	// Expired entries are evicted during the read, not lazily ignored.
	Get(ctx context.Context, domain string) (*model.CacheEntry, error)

	// Set creates or overwrites the entry for a domain, stamping both
	// DiscoveredAt and LastValidatedAt to the current time. Metrics with
	// PostsFound == 0 mark the entry as not yet validated.
	Set(ctx context.Context, domain string, selectors model.PlatformSelectors, confidence int, metrics model.ValidationMetrics) error

	// UpdateValidation refreshes LastValidatedAt and the stored metrics for
	// an existing entry. If the entry is absent this is a logged no-op; it
	// never creates an entry as a side effect.
	UpdateValidation(ctx context.Context, domain string, metrics model.ValidationMetrics) error

	// Remove deletes the entry unconditionally.
	Remove(ctx context.Context, domain string) error

	// Stats aggregates over non-expired entries.
	Stats(ctx context.Context) (*model.CacheStats, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	Close() error
}

// NeedsRevalidation reports whether an entry's last successful validation is
// older than the revalidation interval at the given instant. Advisory only:
// callers may serve a stale-but-not-expired entry while scheduling a
// background recheck.
func NeedsRevalidation(e *model.CacheEntry, now time.Time) bool {
	if e == nil {
		return true
	}
	return now.Sub(e.LastValidatedAt) > RevalidationInterval
}

// Expired reports whether an entry's age exceeds the TTL at the given instant.
func Expired(e *model.CacheEntry, now time.Time) bool {
	return now.Sub(e.DiscoveredAt) > TTL
}
