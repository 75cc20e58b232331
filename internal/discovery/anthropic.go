package discovery

import (
	"context"
	"errors"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/crossroads-ai-hack-2025/fact-it/pkg/anthropic"
)

const proposalMaxTokens = 1024

// AnthropicProposer asks Claude for selector proposals.
type AnthropicProposer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProposer returns a proposer backed by client. An empty model
// falls back to the package default.
func NewAnthropicProposer(client anthropic.Client, model string) *AnthropicProposer {
	if model == "" {
		model = anthropic.DefaultModel
	}
	return &AnthropicProposer{client: client, model: model}
}

func (p *AnthropicProposer) Name() string { return "anthropic" }

func (p *AnthropicProposer) ProposeSelectors(ctx context.Context, req Request) (*Proposal, error) {
	temp := 0.0
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   proposalMaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(req)}},
		Temperature: &temp,
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
			return nil, &CredentialError{Provider: p.Name(), Err: err}
		}
		return nil, err
	}

	resp.Usage.LogCost(p.model, "selector-discovery")
	return parseProposal(resp.Text())
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
