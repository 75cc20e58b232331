// Package registry holds the compile-time fallback selectors for known
// platforms, plus an optional YAML overlay for extra domains.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/domain"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

// StaticConfidence is assigned to every registry match. It is deliberately
// below a maximally confident discovery: static selectors drift silently as
// platforms redesign their markup.
const StaticConfidence = 85

// builtin maps normalized domains to known-good selectors for the platforms
// the project ships support for.
var builtin = map[string]model.PlatformSelectors{
	"twitter.com": {
		PostContainer: `article[data-testid="tweet"]`,
		TextContent:   `div[data-testid="tweetText"]`,
		Author:        `div[data-testid="User-Name"]`,
		Timestamp:     `time`,
	},
	"x.com": {
		PostContainer: `article[data-testid="tweet"]`,
		TextContent:   `div[data-testid="tweetText"]`,
		Author:        `div[data-testid="User-Name"]`,
		Timestamp:     `time`,
	},
	"linkedin.com": {
		PostContainer: `div.feed-shared-update-v2, div[data-urn]`,
		TextContent:   `div.update-components-text, span.break-words`,
		Author:        `span.update-components-actor__title`,
		Timestamp:     `span.update-components-actor__sub-description`,
	},
	"facebook.com": {
		PostContainer: `div[role="article"]`,
		TextContent:   `div[data-ad-preview="message"], div[dir="auto"]`,
		Author:        `h3 a, h4 a, strong a`,
		Timestamp:     `abbr, a[aria-label] span`,
	},
}

// Registry resolves domains to static selector sets.
type Registry struct {
	entries map[string]model.PlatformSelectors
}

// New creates a Registry with the built-in platform table.
func New() *Registry {
	entries := make(map[string]model.PlatformSelectors, len(builtin))
	for d, sel := range builtin {
		entries[d] = sel
	}
	return &Registry{entries: entries}
}

// overlayFile is the YAML shape for extra registry domains.
type overlayFile struct {
	Platforms map[string]struct {
		PostContainer string `yaml:"post_container"`
		TextContent   string `yaml:"text_content"`
		Author        string `yaml:"author"`
		Timestamp     string `yaml:"timestamp"`
	} `yaml:"platforms"`
}

// LoadOverlay merges domain entries from a YAML file into the registry.
// Entries with empty post_container or text_content are rejected.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "registry: read overlay %s", path)
	}

	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrapf(err, "registry: parse overlay %s", path)
	}

	for d, p := range f.Platforms {
		if p.PostContainer == "" || p.TextContent == "" {
			zap.L().Warn("registry: overlay entry missing required selectors, skipped",
				zap.String("domain", d))
			continue
		}
		key := domain.Normalize(d)
		r.entries[key] = model.PlatformSelectors{
			PostContainer: p.PostContainer,
			TextContent:   p.TextContent,
			Author:        p.Author,
			Timestamp:     p.Timestamp,
		}
		zap.L().Debug("registry: overlay entry loaded", zap.String("domain", key))
	}
	return nil
}

// Lookup resolves a domain to its static selectors. The second return
// distinguishes "no static fallback exists" from an empty selector set.
//
// Match order: normalized domain, then a synthesized www. prefix, then the
// registrable base domain (so mobile.twitter.com finds twitter.com).
func (r *Registry) Lookup(d string) (model.PlatformSelectors, bool) {
	key := domain.Normalize(d)

	if sel, ok := r.entries[key]; ok {
		return sel, true
	}
	if sel, ok := r.entries["www."+key]; ok {
		return sel, true
	}
	if base := domain.Base(key); base != key {
		if sel, ok := r.entries[base]; ok {
			return sel, true
		}
	}
	return model.PlatformSelectors{}, false
}

// Domains returns the registered domain keys, for diagnostics.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.entries))
	for d := range r.entries {
		out = append(out, d)
	}
	return out
}
