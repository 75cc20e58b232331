// Package sampler extracts a bounded, cleaned HTML snippet of post-like
// elements from a page, used as input to selector discovery.
package sampler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrNoCandidates signals a page with no detectable post-like structure.
// Terminal for the resolution attempt: discovery must not run without input.
var ErrNoCandidates = eris.New("sampler: no post-like elements found")

// Heuristic thresholds. Empirically chosen; tunable, not load-bearing for
// correctness.
const (
	DefaultMinTextLength = 50
	DefaultMaxElements   = 15
	DefaultMaxSampleSize = 8000

	// repeatThreshold is how many same-tag direct children of <main> it
	// takes to treat them as a feed-item pattern.
	repeatThreshold = 3

	// maxSimpleChildDivs bounds "structurally simple" generic divs so the
	// fallback tier does not grab whole-page containers.
	maxSimpleChildDivs = 5

	// maxGenericTextLength caps the text of generic div candidates.
	maxGenericTextLength = 2000

	// TruncationMarker is appended when the sample is hard-truncated.
	TruncationMarker = "\n<!-- sample truncated -->"
)

// attrAllowList names the attributes kept on cleaned elements. Any other
// data-* attribute is also kept.
var attrAllowList = map[string]bool{
	"class":           true,
	"id":              true,
	"role":            true,
	"data-testid":     true,
	"data-test":       true,
	"data-component":  true,
	"aria-label":      true,
	"aria-labelledby": true,
	"itemprop":        true,
	"itemtype":        true,
}

// classFragmentSelector matches elements whose naming suggests a feed item.
const classFragmentSelector = `[class*='post'], [class*='feed-item'], [class*='entry'], ` +
	`[class*='card'], [class*='item'], [data-testid*='post'], [data-testid*='tweet'], [data-testid*='item']`

var whitespaceRun = regexp.MustCompile(`\s+`)

// Config holds sampler tuning parameters.
type Config struct {
	MinTextLength int `yaml:"min_text_length" mapstructure:"min_text_length"`
	MaxElements   int `yaml:"max_elements" mapstructure:"max_elements"`
	MaxSampleSize int `yaml:"max_sample_size" mapstructure:"max_sample_size"`
}

func (c *Config) defaults() {
	if c.MinTextLength <= 0 {
		c.MinTextLength = DefaultMinTextLength
	}
	if c.MaxElements <= 0 {
		c.MaxElements = DefaultMaxElements
	}
	if c.MaxSampleSize <= 0 {
		c.MaxSampleSize = DefaultMaxSampleSize
	}
}

// Sampler produces discovery input from parsed pages.
type Sampler struct {
	cfg Config
}

// New creates a Sampler, filling zero config fields with defaults.
func New(cfg Config) *Sampler {
	cfg.defaults()
	return &Sampler{cfg: cfg}
}

// Sample finds up to MaxElements post-like candidates, cleans each on a
// detached copy, and assembles them into one bounded snippet. Returns
// ErrNoCandidates when the page has no detectable post structure.
func (s *Sampler) Sample(doc *goquery.Document) (string, error) {
	candidates := s.findCandidates(doc)
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}

	take := s.cfg.MaxElements
	if take > len(candidates) {
		take = len(candidates)
	}

	sample := s.assemble(candidates[:take])
	if len(sample) > s.cfg.MaxSampleSize {
		// Over budget: retry with half as many elements.
		half := take / 2
		if half < 1 {
			half = 1
		}
		sample = s.assemble(candidates[:half])
	}
	if len(sample) > s.cfg.MaxSampleSize {
		sample = sample[:s.cfg.MaxSampleSize] + TruncationMarker
	}

	zap.L().Debug("sampler: sample assembled",
		zap.Int("candidates", len(candidates)),
		zap.Int("bytes", len(sample)))
	return sample, nil
}

// findCandidates runs the heuristic search tiers in priority order,
// de-duplicating by element identity as encountered.
func (s *Sampler) findCandidates(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	seen := make(map[*html.Node]bool)

	add := func(sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		node := sel.Nodes[0]
		if seen[node] {
			return
		}
		seen[node] = true
		out = append(out, sel)
	}

	// Tier 1: explicit article roles.
	doc.Find(`[role='article']`).Each(func(_ int, el *goquery.Selection) {
		add(el)
	})

	// Tier 2: semantic article elements.
	doc.Find("article").Each(func(_ int, el *goquery.Selection) {
		add(el)
	})

	// Tier 3: repeated direct children of main content, a structural
	// signal of a feed-item pattern.
	doc.Find(`main, [role='main']`).Each(func(_ int, main *goquery.Selection) {
		children := main.Children()
		tagCounts := make(map[string]int)
		children.Each(func(_ int, child *goquery.Selection) {
			tagCounts[goquery.NodeName(child)]++
		})
		children.Each(func(_ int, child *goquery.Selection) {
			if tagCounts[goquery.NodeName(child)] < repeatThreshold {
				return
			}
			if s.textLength(child) >= s.cfg.MinTextLength {
				add(child)
			}
		})
	})

	// Tier 4: class/attribute naming fragments.
	doc.Find(classFragmentSelector).Each(func(_ int, el *goquery.Selection) {
		if s.textLength(el) >= s.cfg.MinTextLength {
			add(el)
		}
	})

	// Tier 5: structurally simple generic divs.
	doc.Find("div").Each(func(_ int, el *goquery.Selection) {
		n := s.textLength(el)
		if n < s.cfg.MinTextLength || n > maxGenericTextLength {
			return
		}
		if el.ChildrenFiltered("div").Length() > maxSimpleChildDivs {
			return
		}
		add(el)
	})

	return out
}

func (s *Sampler) textLength(el *goquery.Selection) int {
	return len(strings.TrimSpace(el.Text()))
}

func (s *Sampler) assemble(candidates []*goquery.Selection) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		cleaned, err := cleanElement(c)
		if err != nil {
			zap.L().Debug("sampler: candidate serialization failed, skipped", zap.Error(err))
			continue
		}
		if cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "\n\n")
}

// cleanElement serializes a candidate after stripping noise, working on a
// detached clone so the source document is untouched.
func cleanElement(el *goquery.Selection) (string, error) {
	clone := el.Clone()

	clone.Find("script, style, svg, noscript").Remove()
	for _, node := range clone.Nodes {
		stripNode(node)
	}

	markup, err := goquery.OuterHtml(clone)
	if err != nil {
		return "", eris.Wrap(err, "sampler: serialize candidate")
	}

	markup = whitespaceRun.ReplaceAllString(markup, " ")
	return strings.TrimSpace(markup), nil
}

// stripNode removes comment nodes and disallowed attributes, recursively.
func stripNode(n *html.Node) {
	if n.Type == html.ElementNode {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if attrAllowList[a.Key] || strings.HasPrefix(a.Key, "data-") {
				kept = append(kept, a)
			}
		}
		n.Attr = kept
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripNode(c)
		}
		c = next
	}
}
