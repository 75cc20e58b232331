package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/cache"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/discovery"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/registry"
)

var discoveredSelectors = model.PlatformSelectors{
	PostContainer: "div.feed-item",
	TextContent:   "p.body",
}

// fakeDiscoverer returns a canned proposal or error and counts calls.
type fakeDiscoverer struct {
	proposal *discovery.Proposal
	err      error
	calls    int
	lastReq  discovery.Request
}

func (f *fakeDiscoverer) Discover(_ context.Context, req discovery.Request) (*discovery.Proposal, error) {
	f.calls++
	f.lastReq = req
	return f.proposal, f.err
}

func workingDiscoverer() *fakeDiscoverer {
	return &fakeDiscoverer{
		proposal: &discovery.Proposal{
			Selectors:  discoveredSelectors,
			Confidence: 75,
			Reasoning:  "repeated feed-item divs",
		},
	}
}

func newStore(t *testing.T) cache.Store {
	t.Helper()
	store, err := cache.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

const sample = "<main><div class='feed-item'><p class='body'>hello</p></div></main>"

func TestResolve_ForceStaticKnownPlatform(t *testing.T) {
	disc := workingDiscoverer()
	p := New(newStore(t), disc, registry.New())

	res, err := p.Resolve(context.Background(), "twitter.com", sample, true)

	require.NoError(t, err)
	assert.True(t, res.Usable())
	assert.Equal(t, model.SourceStatic, res.Source)
	assert.Equal(t, registry.StaticConfidence, res.Confidence)
	assert.False(t, res.Cached)
	assert.Equal(t, 0, disc.calls, "forceStatic must not reach discovery")
}

func TestResolve_ForceStaticUnknownDomainIsSentinel(t *testing.T) {
	store := newStore(t)
	disc := workingDiscoverer()
	p := New(store, disc, registry.New())

	// Seed a cache entry to prove forceStatic skips the cache tier too.
	require.NoError(t, store.Set(context.Background(), "randomblog.example", discoveredSelectors, 90, model.ValidationMetrics{}))

	res, err := p.Resolve(context.Background(), "randomblog.example", sample, true)

	require.NoError(t, err)
	assert.False(t, res.Usable())
	assert.Equal(t, model.SourceStatic, res.Source)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, 0, disc.calls)
}

func TestResolve_CacheHit(t *testing.T) {
	store := newStore(t)
	disc := workingDiscoverer()
	p := New(store, disc, registry.New())
	require.NoError(t, store.Set(context.Background(), "randomblog.example", discoveredSelectors, 90, model.ValidationMetrics{}))

	res, err := p.Resolve(context.Background(), "randomblog.example", sample, false)

	require.NoError(t, err)
	assert.Equal(t, model.SourceCache, res.Source)
	assert.True(t, res.Cached)
	assert.Equal(t, 90, res.Confidence)
	assert.Equal(t, discoveredSelectors, res.Selectors)
	assert.Equal(t, 0, disc.calls, "cache hit short-circuits discovery")
}

func TestResolve_DomainNormalizationRoundTrip(t *testing.T) {
	store := newStore(t)
	p := New(store, workingDiscoverer(), registry.New())
	require.NoError(t, store.Set(context.Background(), "example.com", discoveredSelectors, 80, model.ValidationMetrics{}))

	res, err := p.Resolve(context.Background(), "WWW.Example.COM", sample, false)

	require.NoError(t, err)
	assert.Equal(t, model.SourceCache, res.Source)
	assert.Equal(t, "example.com", res.Domain)
}

func TestResolve_DynamicDiscoveryAndPersist(t *testing.T) {
	store := newStore(t)
	disc := workingDiscoverer()
	p := New(store, disc, registry.New())

	res, err := p.Resolve(context.Background(), "randomblog.example", sample, false)

	require.NoError(t, err)
	assert.Equal(t, model.SourceDynamic, res.Source)
	assert.False(t, res.Cached)
	assert.Equal(t, 75, res.Confidence)
	assert.Equal(t, "repeated feed-item divs", res.Reasoning)
	assert.Equal(t, 1, disc.calls)
	assert.Equal(t, "randomblog.example", disc.lastReq.Domain)
	assert.Equal(t, sample, disc.lastReq.HTMLSample)

	// The discovery result is persisted with placeholder metrics.
	entry, err := store.Get(context.Background(), "randomblog.example")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, discoveredSelectors, entry.Selectors)
	assert.False(t, entry.Validated)
	assert.Zero(t, entry.Metrics.PostsFound)
}

func TestResolve_SecondRequestServedFromCache(t *testing.T) {
	store := newStore(t)
	disc := workingDiscoverer()
	p := New(store, disc, registry.New())

	first, err := p.Resolve(context.Background(), "randomblog.example", sample, false)
	require.NoError(t, err)
	assert.Equal(t, model.SourceDynamic, first.Source)

	second, err := p.Resolve(context.Background(), "randomblog.example", sample, false)
	require.NoError(t, err)
	assert.Equal(t, model.SourceCache, second.Source)
	assert.Equal(t, 1, disc.calls)
}

func TestResolve_DiscoveryFailureFallsThroughToStatic(t *testing.T) {
	disc := &fakeDiscoverer{err: &discovery.ExhaustedError{Domain: "twitter.com", Attempts: 3, LastErr: errors.New("nope")}}
	p := New(newStore(t), disc, registry.New())

	res, err := p.Resolve(context.Background(), "twitter.com", sample, false)

	require.NoError(t, err)
	assert.Equal(t, model.SourceStatic, res.Source)
	assert.True(t, res.Usable())
	assert.Equal(t, 1, disc.calls)
}

func TestResolve_CredentialFailureFallsThroughWithoutError(t *testing.T) {
	disc := &fakeDiscoverer{err: &discovery.CredentialError{Provider: "anthropic", Err: errors.New("401")}}
	p := New(newStore(t), disc, registry.New())

	res, err := p.Resolve(context.Background(), "randomblog.example", sample, false)

	require.NoError(t, err, "tier failures never escape the pipeline")
	assert.False(t, res.Usable())
}

func TestResolve_NoSampleSkipsDiscovery(t *testing.T) {
	disc := workingDiscoverer()
	p := New(newStore(t), disc, registry.New())

	res, err := p.Resolve(context.Background(), "twitter.com", "", false)

	require.NoError(t, err)
	assert.Equal(t, model.SourceStatic, res.Source)
	assert.Equal(t, 0, disc.calls)
}

func TestResolve_NilDiscovererStillServesStatic(t *testing.T) {
	p := New(newStore(t), nil, registry.New())

	res, err := p.Resolve(context.Background(), "linkedin.com", sample, false)

	require.NoError(t, err)
	assert.Equal(t, model.SourceStatic, res.Source)
	assert.True(t, res.Usable())
}

func TestResolve_TotalFailureSentinel(t *testing.T) {
	disc := &fakeDiscoverer{err: &discovery.ExhaustedError{Domain: "obscure.example", Attempts: 3, LastErr: errors.New("nope")}}
	p := New(newStore(t), disc, registry.New())

	res, err := p.Resolve(context.Background(), "obscure.example", sample, false)

	require.NoError(t, err)
	assert.False(t, res.Usable())
	assert.Empty(t, res.Selectors.PostContainer)
	assert.Empty(t, res.Selectors.TextContent)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, model.SourceStatic, res.Source)
	assert.False(t, res.Cached)
}

func TestResolve_EmptyDomainRejected(t *testing.T) {
	p := New(newStore(t), nil, registry.New())

	_, err := p.Resolve(context.Background(), "   ", sample, false)

	require.Error(t, err)
}

func TestReportValidation_ValidRefreshesMetrics(t *testing.T) {
	store := newStore(t)
	p := New(store, nil, registry.New())
	require.NoError(t, store.Set(context.Background(), "x.com", discoveredSelectors, 90, model.ValidationMetrics{}))

	err := p.ReportValidation(context.Background(), model.ValidationReport{
		Domain:             "x.com",
		Valid:              true,
		PostsFound:         12,
		TextExtractionRate: 0.92,
	})
	require.NoError(t, err)

	entry, err := store.Get(context.Background(), "x.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 12, entry.Metrics.PostsFound)
	assert.InDelta(t, 0.92, entry.Metrics.TextExtractionRate, 1e-9)
	assert.True(t, entry.Validated)
}

func TestReportValidation_SelfHealingEviction(t *testing.T) {
	store := newStore(t)
	disc := workingDiscoverer()
	p := New(store, disc, registry.New())
	require.NoError(t, store.Set(context.Background(), "x.com", discoveredSelectors, 90, model.ValidationMetrics{PostsFound: 5, TextExtractionRate: 0.9}))

	err := p.ReportValidation(context.Background(), model.ValidationReport{Domain: "x.com", Valid: false})
	require.NoError(t, err)

	entry, err := store.Get(context.Background(), "x.com")
	require.NoError(t, err)
	assert.Nil(t, entry, "failed validation evicts the entry")

	// The next resolution runs a fresh discovery instead of reusing evicted data.
	res, err := p.Resolve(context.Background(), "x.com", sample, false)
	require.NoError(t, err)
	assert.Equal(t, model.SourceDynamic, res.Source)
	assert.Equal(t, 1, disc.calls)
}

func TestCacheStatsAndClear(t *testing.T) {
	store := newStore(t)
	p := New(store, nil, registry.New())
	require.NoError(t, store.Set(context.Background(), "a.example", discoveredSelectors, 80, model.ValidationMetrics{}))
	require.NoError(t, store.Set(context.Background(), "b.example", discoveredSelectors, 60, model.ValidationMetrics{}))

	stats, err := p.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDomains)
	assert.InDelta(t, 70.0, stats.AverageConfidence, 1e-9)

	require.NoError(t, p.ClearCache(context.Background()))

	stats, err = p.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDomains)
}
