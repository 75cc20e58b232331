// Package resolver implements the three-tier selector resolution policy:
// cache first, AI-assisted discovery second, the static registry last. It
// also takes in validation reports, which either refresh a cached entry's
// health or evict it.
package resolver

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/cache"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/discovery"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/domain"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/registry"
)

// Discoverer is the slice of the discovery service the pipeline needs.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) (*discovery.Proposal, error)
}

// Pipeline answers "what selectors should I use for this domain right now".
type Pipeline struct {
	store    cache.Store
	disc     Discoverer
	registry *registry.Registry
	now      func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline over the given tiers. disc may be nil, in which
// case dynamic discovery is skipped entirely (cache and static tiers still
// serve).
func New(store cache.Store, disc Discoverer, reg *registry.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		disc:     disc,
		registry: reg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve walks the tiers in order and returns the first usable selector
// set. Tier failures never propagate: each one falls through to the next,
// and total exhaustion yields the sentinel resolution (empty selectors,
// confidence 0), which callers must treat as "stay inactive on this page".
func (p *Pipeline) Resolve(ctx context.Context, rawDomain, htmlSample string, forceStatic bool) (*model.Resolution, error) {
	host := domain.Normalize(rawDomain)
	if host == "" {
		return nil, eris.Errorf("resolver: unusable domain %q", rawDomain)
	}

	if forceStatic {
		if res := p.lookupStatic(host); res != nil {
			return res, nil
		}
		return sentinel(host), nil
	}

	if res := p.lookupCache(ctx, host); res != nil {
		return res, nil
	}

	if res := p.discover(ctx, host, htmlSample); res != nil {
		return res, nil
	}

	if res := p.lookupStatic(host); res != nil {
		return res, nil
	}

	zap.L().Info("no selectors resolved, staying inactive", zap.String("domain", host))
	return sentinel(host), nil
}

func (p *Pipeline) lookupCache(ctx context.Context, host string) *model.Resolution {
	entry, err := p.store.Get(ctx, host)
	if err != nil {
		// Stores degrade read failures to a miss themselves; an error here
		// is unexpected, but resolution still falls through.
		zap.L().Error("resolver: cache read", zap.String("domain", host), zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}

	if cache.NeedsRevalidation(entry, p.now()) {
		zap.L().Debug("cached selectors due for revalidation",
			zap.String("domain", host),
			zap.Time("last_validated_at", entry.LastValidatedAt),
		)
	}

	return &model.Resolution{
		Domain:     host,
		Selectors:  entry.Selectors,
		Confidence: entry.Confidence,
		Cached:     true,
		Source:     model.SourceCache,
	}
}

func (p *Pipeline) discover(ctx context.Context, host, htmlSample string) *model.Resolution {
	if p.disc == nil || htmlSample == "" {
		return nil
	}

	proposal, err := p.disc.Discover(ctx, discovery.Request{Domain: host, HTMLSample: htmlSample})
	if err != nil {
		if discovery.IsCredential(err) {
			zap.L().Error("discovery credentials rejected, falling back to static selectors",
				zap.String("domain", host), zap.Error(err))
		} else {
			zap.L().Warn("dynamic discovery failed, falling back to static selectors",
				zap.String("domain", host), zap.Error(err))
		}
		return nil
	}

	// Persist immediately with placeholder metrics; real numbers arrive via
	// the validation-report path. A failed write means "resolved but not
	// cached", never a failed resolution.
	if err := p.store.Set(ctx, host, proposal.Selectors, proposal.Confidence, model.ValidationMetrics{}); err != nil {
		zap.L().Warn("selectors resolved but not cached",
			zap.String("domain", host), zap.Error(err))
	}

	return &model.Resolution{
		Domain:     host,
		Selectors:  proposal.Selectors,
		Confidence: proposal.Confidence,
		Source:     model.SourceDynamic,
		Reasoning:  proposal.Reasoning,
	}
}

func (p *Pipeline) lookupStatic(host string) *model.Resolution {
	selectors, ok := p.registry.Lookup(host)
	if !ok {
		return nil
	}
	return &model.Resolution{
		Domain:     host,
		Selectors:  selectors,
		Confidence: registry.StaticConfidence,
		Source:     model.SourceStatic,
	}
}

func sentinel(host string) *model.Resolution {
	return &model.Resolution{
		Domain: host,
		Source: model.SourceStatic,
	}
}

// ReportValidation folds a live validation outcome back into the cache. A
// passing report refreshes the entry's metrics; a failing one evicts the
// entry so the next resolution is forced through discovery or static tiers
// instead of serving known-bad selectors again.
func (p *Pipeline) ReportValidation(ctx context.Context, report model.ValidationReport) error {
	host := domain.Normalize(report.Domain)
	if host == "" {
		return eris.Errorf("resolver: unusable domain %q", report.Domain)
	}

	if report.Valid {
		return p.store.UpdateValidation(ctx, host, model.ValidationMetrics{
			PostsFound:         report.PostsFound,
			TextExtractionRate: report.TextExtractionRate,
		})
	}

	zap.L().Info("evicting selectors after failed validation",
		zap.String("domain", host),
		zap.Int("posts_found", report.PostsFound),
		zap.Float64("text_extraction_rate", report.TextExtractionRate),
	)
	return p.store.Remove(ctx, host)
}

// CacheStats aggregates over the live cache.
func (p *Pipeline) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	return p.store.Stats(ctx)
}

// ClearCache drops every cached selector set.
func (p *Pipeline) ClearCache(ctx context.Context) error {
	return p.store.Clear(ctx)
}
