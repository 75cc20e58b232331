package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

// systemPrompt is identical for every domain, which lets the Anthropic
// backend serve it from the prompt cache.
const systemPrompt = `You are a CSS selector analyst for a social media content extractor.

You are given a reduced HTML sample from a feed page. Identify CSS selectors that locate user-generated posts and their parts. Reply with a single JSON object and nothing else:

{
  "postContainer": "<selector matching each individual post's root element>",
  "textContent": "<selector, relative to a post container, for the post's main text>",
  "author": "<selector for the author name, or empty string if not identifiable>",
  "timestamp": "<selector for the post timestamp, or empty string if not identifiable>",
  "confidence": <integer 0-100, how confident you are these selectors generalize to the full page>,
  "reasoning": "<one or two sentences on what structure you keyed off>"
}

Rules:
- postContainer must match several sibling elements, one per post, not a single wrapper around the whole feed.
- Prefer stable attributes (data-testid, role, semantic tags) over generated class names.
- textContent and author are evaluated inside each matched container.
- If the sample clearly contains no repeated post structure, return confidence 0.`

func userPrompt(req Request) string {
	return fmt.Sprintf("Domain: %s\n\nHTML sample:\n%s", req.Domain, req.HTMLSample)
}

type proposalJSON struct {
	PostContainer string `json:"postContainer"`
	TextContent   string `json:"textContent"`
	Author        string `json:"author"`
	Timestamp     string `json:"timestamp"`
	Confidence    int    `json:"confidence"`
	Reasoning     string `json:"reasoning"`
}

// parseProposal extracts the JSON object from a model reply. Models
// sometimes wrap the object in a code fence or a sentence of prose, so it
// parses the outermost brace-delimited span rather than the raw string.
func parseProposal(raw string) (*Proposal, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, eris.Errorf("discovery: no JSON object in reply: %.120s", raw)
	}

	var parsed proposalJSON
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "discovery: unmarshal proposal")
	}

	return &Proposal{
		Selectors: model.PlatformSelectors{
			PostContainer: strings.TrimSpace(parsed.PostContainer),
			TextContent:   strings.TrimSpace(parsed.TextContent),
			Author:        strings.TrimSpace(parsed.Author),
			Timestamp:     strings.TrimSpace(parsed.Timestamp),
		},
		Confidence: parsed.Confidence,
		Reasoning:  strings.TrimSpace(parsed.Reasoning),
	}, nil
}
