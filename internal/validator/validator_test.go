package validator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func postText(n int) string {
	return strings.Repeat(fmt.Sprintf("post %d text ", n), 5)
}

func feedHTML(posts, withText int) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 0; i < posts; i++ {
		b.WriteString(`<article class="post">`)
		if i < withText {
			b.WriteString(`<div class="text">` + postText(i) + `</div>`)
		} else {
			b.WriteString(`<div class="text">n/a</div>`)
		}
		b.WriteString(`</article>`)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

var feedSelectors = model.PlatformSelectors{
	PostContainer: "article.post",
	TextContent:   "div.text",
}

func TestValidate_Passes(t *testing.T) {
	doc := parseDoc(t, feedHTML(5, 5))

	result := Validate(doc, feedSelectors)

	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.PostsFound)
	assert.Equal(t, 1.0, result.TextExtractionRate)
	assert.Empty(t, result.Errors)
}

func TestValidate_SinglePostFails(t *testing.T) {
	doc := parseDoc(t, feedHTML(1, 1))

	result := Validate(doc, feedSelectors)

	assert.False(t, result.Valid, "one matched post is not enough evidence")
	assert.Equal(t, 1, result.PostsFound)
	assert.Equal(t, 1.0, result.TextExtractionRate)
}

func TestValidate_ExtractionRateBoundary(t *testing.T) {
	tests := []struct {
		name     string
		posts    int
		withText int
		want     bool
	}{
		{"exactly at threshold", 20, 13, true},
		{"just below threshold", 20, 12, false},
		{"two thirds", 3, 2, true},
		{"half", 4, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, feedHTML(tt.posts, tt.withText))

			result := Validate(doc, feedSelectors)

			assert.Equal(t, tt.want, result.Valid)
			assert.Equal(t, tt.posts, result.PostsFound)
			assert.InDelta(t, float64(tt.withText)/float64(tt.posts), result.TextExtractionRate, 1e-9)
		})
	}
}

func TestValidate_TextLengthBoundary(t *testing.T) {
	build := func(textLen int) string {
		text := strings.Repeat("a", textLen)
		return `<html><body>` +
			`<article class="post"><div class="text">` + text + `</div></article>` +
			`<article class="post"><div class="text">` + text + `</div></article>` +
			`</body></html>`
	}

	short := Validate(parseDoc(t, build(MinTextLength-1)), feedSelectors)
	assert.False(t, short.Valid)
	assert.Equal(t, 0.0, short.TextExtractionRate)

	long := Validate(parseDoc(t, build(MinTextLength)), feedSelectors)
	assert.True(t, long.Valid)
	assert.Equal(t, 1.0, long.TextExtractionRate)
}

func TestValidate_TextIsTrimmedBeforeMeasuring(t *testing.T) {
	padded := "   \n\t" + strings.Repeat("a", MinTextLength-1) + "\n   "
	html := `<html><body>` +
		`<article class="post"><div class="text">` + padded + `</div></article>` +
		`<article class="post"><div class="text">` + padded + `</div></article>` +
		`</body></html>`

	result := Validate(parseDoc(t, html), feedSelectors)

	assert.False(t, result.Valid, "surrounding whitespace must not count toward length")
}

func TestValidate_NoContainersMatched(t *testing.T) {
	doc := parseDoc(t, `<html><body><div>nothing here</div></body></html>`)

	result := Validate(doc, feedSelectors)

	assert.False(t, result.Valid)
	assert.Equal(t, 0, result.PostsFound)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no posts matched")
}

func TestValidate_EmptySelectors(t *testing.T) {
	doc := parseDoc(t, feedHTML(3, 3))

	result := Validate(doc, model.PlatformSelectors{})

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "empty")
}

func TestValidate_MalformedContainerSelector(t *testing.T) {
	doc := parseDoc(t, feedHTML(3, 3))

	result := Validate(doc, model.PlatformSelectors{
		PostContainer: "article[data-testid=",
		TextContent:   "div.text",
	})

	assert.False(t, result.Valid)
	assert.Equal(t, 0, result.PostsFound)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid post container selector")
}

func TestValidate_MalformedTextSelector(t *testing.T) {
	doc := parseDoc(t, feedHTML(3, 3))

	result := Validate(doc, model.PlatformSelectors{
		PostContainer: "article.post",
		TextContent:   "div..",
	})

	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.PostsFound, "container count survives a bad text selector")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid text selector")
}

func TestValidate_TextSelectorMatchesNothing(t *testing.T) {
	doc := parseDoc(t, feedHTML(4, 4))

	result := Validate(doc, model.PlatformSelectors{
		PostContainer: "article.post",
		TextContent:   "span.missing",
	})

	assert.False(t, result.Valid)
	assert.Equal(t, 4, result.PostsFound)
	assert.Equal(t, 0.0, result.TextExtractionRate)
}

func TestQuickValidate(t *testing.T) {
	doc := parseDoc(t, feedHTML(3, 0))

	found, valid := QuickValidate(doc, "article.post")
	assert.Equal(t, 3, found)
	assert.True(t, valid, "quick validation ignores text quality")

	found, valid = QuickValidate(parseDoc(t, feedHTML(1, 1)), "article.post")
	assert.Equal(t, 1, found)
	assert.False(t, valid)

	found, valid = QuickValidate(doc, "article[")
	assert.Equal(t, 0, found)
	assert.False(t, valid)

	found, valid = QuickValidate(doc, "")
	assert.Equal(t, 0, found)
	assert.False(t, valid)
}
