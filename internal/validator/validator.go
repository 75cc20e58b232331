// Package validator decides whether a selector set actually works against a
// live document. Its verdict drives cache health updates and eviction.
package validator

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

// Pass/fail policy constants. Fixed, not configurable per call: a single
// matched post could be a false-positive generic match, and below-65% text
// yield means the text selector is wrong for a meaningful share of posts
// even if the container selector is right.
const (
	MinPosts              = 2
	MinTextExtractionRate = 0.65

	// MinTextLength is the trimmed length a post's text must reach to
	// count as extracted.
	MinTextLength = 50
)

// Validate executes the selector set against the document and scores
// extraction quality. Malformed selectors and per-container failures are
// recorded as error strings rather than aborting; a truly unexpected panic
// yields a failed result with an explanatory error.
func Validate(doc *goquery.Document, selectors model.PlatformSelectors) (result model.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("validator: unexpected failure", zap.Any("panic", r))
			result = model.ValidationResult{
				Errors: []string{fmt.Sprintf("validation aborted: %v", r)},
			}
		}
	}()

	if !selectors.Usable() {
		return model.ValidationResult{
			Errors: []string{"selector set is empty"},
		}
	}

	containerSel, err := cascadia.Compile(selectors.PostContainer)
	if err != nil {
		return model.ValidationResult{
			Errors: []string{fmt.Sprintf("invalid post container selector %q: %v", selectors.PostContainer, err)},
		}
	}

	containers := doc.FindMatcher(containerSel)
	postsFound := containers.Length()
	if postsFound == 0 {
		return model.ValidationResult{
			Errors: []string{fmt.Sprintf("no posts matched %q", selectors.PostContainer)},
		}
	}

	textSel, err := cascadia.Compile(selectors.TextContent)
	if err != nil {
		return model.ValidationResult{
			PostsFound: postsFound,
			Errors:     []string{fmt.Sprintf("invalid text selector %q: %v", selectors.TextContent, err)},
		}
	}

	var postsWithText int
	var errs []string
	containers.Each(func(i int, container *goquery.Selection) {
		ok, containerErr := containerHasText(container, textSel)
		if containerErr != "" {
			errs = append(errs, containerErr)
			return
		}
		if ok {
			postsWithText++
		}
	})

	rate := float64(postsWithText) / float64(postsFound)
	return model.ValidationResult{
		Valid:              postsFound >= MinPosts && rate >= MinTextExtractionRate,
		PostsFound:         postsFound,
		TextExtractionRate: rate,
		Errors:             errs,
	}
}

// containerHasText reports whether a single container yields enough trimmed
// text. Failures are contained per container.
func containerHasText(container *goquery.Selection, textSel cascadia.Selector) (ok bool, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			errMsg = fmt.Sprintf("container query failed: %v", r)
		}
	}()

	text := container.FindMatcher(textSel).First().Text()
	return len(strings.TrimSpace(text)) >= MinTextLength, ""
}

// QuickValidate is the cheap periodic recheck: container matching only, no
// text-rate scoring.
func QuickValidate(doc *goquery.Document, postContainer string) (postsFound int, valid bool) {
	if postContainer == "" {
		return 0, false
	}
	sel, err := cascadia.Compile(postContainer)
	if err != nil {
		return 0, false
	}
	postsFound = doc.FindMatcher(sel).Length()
	return postsFound, postsFound >= MinPosts
}
