// Package observer drives the page-side feedback loop: resolve selectors,
// validate them against the live document, report the outcome, and retry
// once with static selectors before going inactive.
package observer

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/sampler"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/validator"
)

// Resolver is the slice of the resolution pipeline the observer consumes.
type Resolver interface {
	Resolve(ctx context.Context, domain, htmlSample string, forceStatic bool) (*model.Resolution, error)
	ReportValidation(ctx context.Context, report model.ValidationReport) error
}

// Outcome is the result of one observation pass over a page.
type Outcome struct {
	// Active is false when no selector set survived validation; the
	// extension renders nothing on this page.
	Active bool

	// Resolution is the selector set that was accepted, or the last one
	// attempted before going inactive.
	Resolution *model.Resolution

	// Validation is the live-DOM verdict for Resolution's selectors.
	Validation model.ValidationResult

	// Posts are the extracted posts when Active.
	Posts []model.Post
}

// Observer runs observation passes for one page load.
type Observer struct {
	resolver Resolver
	sampler  *sampler.Sampler
}

// New returns an observer over the given pipeline.
func New(res Resolver, s *sampler.Sampler) *Observer {
	return &Observer{resolver: res, sampler: s}
}

// Observe resolves selectors for the page, validates them in situ, and
// reports the verdict back to the pipeline. If the first selector set fails
// validation it retries exactly once with forceStatic, then stops; it never
// loops. On acceptance it extracts the page's posts.
func (o *Observer) Observe(ctx context.Context, domain string, doc *goquery.Document) (*Outcome, error) {
	sample, err := o.sampler.Sample(doc)
	if err != nil {
		if !eris.Is(err, sampler.ErrNoCandidates) {
			return nil, eris.Wrap(err, "observer: sample page")
		}
		// No post-like structure to show the discovery backend; cache and
		// static tiers can still answer.
		zap.L().Debug("no sample candidates on page", zap.String("domain", domain))
		sample = ""
	}

	outcome, err := o.attempt(ctx, domain, sample, doc, false)
	if err != nil {
		return nil, err
	}
	if outcome.Active || !outcome.Resolution.Usable() {
		return outcome, nil
	}

	zap.L().Info("selectors failed live validation, retrying with static fallback",
		zap.String("domain", domain),
		zap.Strings("errors", outcome.Validation.Errors),
	)

	retry, err := o.attempt(ctx, domain, "", doc, true)
	if err != nil {
		return nil, err
	}
	if !retry.Active {
		zap.L().Info("static fallback also failed, going inactive", zap.String("domain", domain))
	}
	return retry, nil
}

// attempt runs one resolve-validate-report cycle.
func (o *Observer) attempt(ctx context.Context, domain, sample string, doc *goquery.Document, forceStatic bool) (*Outcome, error) {
	res, err := o.resolver.Resolve(ctx, domain, sample, forceStatic)
	if err != nil {
		return nil, eris.Wrap(err, "observer: resolve selectors")
	}

	outcome := &Outcome{Resolution: res}
	if !res.Usable() {
		return outcome, nil
	}

	outcome.Validation = validator.Validate(doc, res.Selectors)

	report := model.ValidationReport{
		Domain:             res.Domain,
		Valid:              outcome.Validation.Valid,
		PostsFound:         outcome.Validation.PostsFound,
		TextExtractionRate: outcome.Validation.TextExtractionRate,
	}
	if err := o.resolver.ReportValidation(ctx, report); err != nil {
		// Feedback is best effort: a failed report must not take down a
		// pass that produced working selectors.
		zap.L().Warn("validation report failed", zap.String("domain", domain), zap.Error(err))
	}

	if outcome.Validation.Valid {
		outcome.Active = true
		outcome.Posts = ExtractPosts(doc, res.Selectors)
	}
	return outcome, nil
}

// ExtractPosts pulls every post the selector set can see from the document.
// Containers whose text selector yields nothing are skipped rather than
// emitted empty.
func ExtractPosts(doc *goquery.Document, selectors model.PlatformSelectors) []model.Post {
	var posts []model.Post
	doc.Find(selectors.PostContainer).Each(func(_ int, container *goquery.Selection) {
		text := strings.TrimSpace(container.Find(selectors.TextContent).First().Text())
		if text == "" {
			return
		}
		post := model.Post{Text: text}
		if selectors.Author != "" {
			post.Author = strings.TrimSpace(container.Find(selectors.Author).First().Text())
		}
		if selectors.Timestamp != "" {
			if ts, ok := container.Find(selectors.Timestamp).First().Attr("datetime"); ok {
				post.Timestamp = ts
			} else {
				post.Timestamp = strings.TrimSpace(container.Find(selectors.Timestamp).First().Text())
			}
		}
		posts = append(posts, post)
	})
	return posts
}
