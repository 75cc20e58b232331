// Package fetcher downloads live pages for selector revalidation, with
// per-host rate limiting and retry. Social platforms rate-limit and block
// aggressively, so limits adapt to what the host tolerates.
package fetcher

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher downloads a page and parses it into a document.
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}
