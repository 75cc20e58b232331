package observer

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/sampler"
)

var (
	goodSelectors = model.PlatformSelectors{
		PostContainer: "article.post",
		TextContent:   "div.text",
		Author:        "span.author",
		Timestamp:     "time",
	}
	badSelectors = model.PlatformSelectors{
		PostContainer: "section.missing",
		TextContent:   "div.nope",
	}
)

// scriptedResolver serves canned resolutions in order and records calls.
type scriptedResolver struct {
	resolutions []*model.Resolution
	resolves    []bool // forceStatic flag per call
	reports     []model.ValidationReport
}

func (r *scriptedResolver) Resolve(_ context.Context, domain, _ string, forceStatic bool) (*model.Resolution, error) {
	r.resolves = append(r.resolves, forceStatic)
	res := r.resolutions[len(r.resolves)-1]
	res.Domain = domain
	return res, nil
}

func (r *scriptedResolver) ReportValidation(_ context.Context, report model.ValidationReport) error {
	r.reports = append(r.reports, report)
	return nil
}

func feedDoc(t *testing.T, posts int) *goquery.Document {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 0; i < posts; i++ {
		b.WriteString(`<article class="post">`)
		b.WriteString(`<span class="author">ada</span>`)
		b.WriteString(`<time datetime="2026-08-30T10:00:00Z">just now</time>`)
		b.WriteString(`<div class="text">` + strings.Repeat("claims about the economy ", 4) + `</div>`)
		b.WriteString(`</article>`)
	}
	b.WriteString("</main></body></html>")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)
	return doc
}

func newObserver(r Resolver) *Observer {
	return New(r, sampler.New(sampler.Config{}))
}

func TestObserve_AcceptsValidSelectors(t *testing.T) {
	resolver := &scriptedResolver{resolutions: []*model.Resolution{
		{Selectors: goodSelectors, Confidence: 90, Source: model.SourceCache, Cached: true},
	}}
	obs := newObserver(resolver)

	outcome, err := obs.Observe(context.Background(), "feed.example", feedDoc(t, 4))

	require.NoError(t, err)
	assert.True(t, outcome.Active)
	assert.Len(t, outcome.Posts, 4)
	assert.Equal(t, "ada", outcome.Posts[0].Author)
	assert.Equal(t, "2026-08-30T10:00:00Z", outcome.Posts[0].Timestamp)
	assert.Equal(t, []bool{false}, resolver.resolves, "no retry after acceptance")

	require.Len(t, resolver.reports, 1)
	assert.True(t, resolver.reports[0].Valid)
	assert.Equal(t, 4, resolver.reports[0].PostsFound)
	assert.Equal(t, 1.0, resolver.reports[0].TextExtractionRate)
}

func TestObserve_OneShotStaticRetry(t *testing.T) {
	resolver := &scriptedResolver{resolutions: []*model.Resolution{
		{Selectors: badSelectors, Confidence: 70, Source: model.SourceDynamic},
		{Selectors: goodSelectors, Confidence: 85, Source: model.SourceStatic},
	}}
	obs := newObserver(resolver)

	outcome, err := obs.Observe(context.Background(), "feed.example", feedDoc(t, 3))

	require.NoError(t, err)
	assert.True(t, outcome.Active)
	assert.Equal(t, model.SourceStatic, outcome.Resolution.Source)
	assert.Equal(t, []bool{false, true}, resolver.resolves, "retry goes through forceStatic")

	require.Len(t, resolver.reports, 2)
	assert.False(t, resolver.reports[0].Valid)
	assert.True(t, resolver.reports[1].Valid)
}

func TestObserve_StopsAfterSecondFailure(t *testing.T) {
	resolver := &scriptedResolver{resolutions: []*model.Resolution{
		{Selectors: badSelectors, Source: model.SourceDynamic},
		{Selectors: badSelectors, Source: model.SourceStatic},
	}}
	obs := newObserver(resolver)

	outcome, err := obs.Observe(context.Background(), "feed.example", feedDoc(t, 3))

	require.NoError(t, err)
	assert.False(t, outcome.Active)
	assert.Empty(t, outcome.Posts)
	assert.Len(t, resolver.resolves, 2, "exactly one retry, never a loop")
}

func TestObserve_SentinelMeansInactiveWithoutRetry(t *testing.T) {
	resolver := &scriptedResolver{resolutions: []*model.Resolution{
		{Source: model.SourceStatic}, // sentinel: no selectors
	}}
	obs := newObserver(resolver)

	outcome, err := obs.Observe(context.Background(), "obscure.example", feedDoc(t, 3))

	require.NoError(t, err)
	assert.False(t, outcome.Active)
	assert.Len(t, resolver.resolves, 1, "sentinel is terminal, not retried")
	assert.Empty(t, resolver.reports, "nothing to validate, nothing to report")
}

func TestObserve_UnsampleablePageStillResolves(t *testing.T) {
	resolver := &scriptedResolver{resolutions: []*model.Resolution{
		{Source: model.SourceStatic},
	}}
	obs := newObserver(resolver)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>tiny</p></body></html>"))
	require.NoError(t, err)

	outcome, err := obs.Observe(context.Background(), "empty.example", doc)

	require.NoError(t, err)
	assert.False(t, outcome.Active)
	assert.Len(t, resolver.resolves, 1, "resolution proceeds with an empty sample")
}

func TestExtractPosts_SkipsTextlessContainers(t *testing.T) {
	html := `<html><body>
		<article class="post"><div class="text">first post body</div></article>
		<article class="post"><div class="text">   </div></article>
		<article class="post"><div class="text">third post body</div></article>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	posts := ExtractPosts(doc, model.PlatformSelectors{PostContainer: "article.post", TextContent: "div.text"})

	require.Len(t, posts, 2)
	assert.Equal(t, "first post body", posts[0].Text)
	assert.Equal(t, "third post body", posts[1].Text)
}

func TestExtractPosts_TimestampFallsBackToText(t *testing.T) {
	html := `<html><body>
		<article class="post"><time>3 hours ago</time><div class="text">body text here</div></article>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	posts := ExtractPosts(doc, model.PlatformSelectors{
		PostContainer: "article.post",
		TextContent:   "div.text",
		Timestamp:     "time",
	})

	require.Len(t, posts, 1)
	assert.Equal(t, "3 hours ago", posts[0].Timestamp)
}
