package discovery

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/pkg/openai"
)

// OpenAIProposer asks an OpenAI chat model for selector proposals. It is
// the fallback backend when no Anthropic key is configured.
type OpenAIProposer struct {
	client openai.Client
	model  string
}

// NewOpenAIProposer returns a proposer backed by client. An empty model
// uses the client's default.
func NewOpenAIProposer(client openai.Client, model string) *OpenAIProposer {
	return &OpenAIProposer{client: client, model: model}
}

func (p *OpenAIProposer) Name() string { return "openai" }

func (p *OpenAIProposer) ProposeSelectors(ctx context.Context, req Request) (*Proposal, error) {
	temp := 0.0
	maxTokens := proposalMaxTokens
	resp, err := p.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		var statusErr *openai.StatusError
		if errors.As(err, &statusErr) && isAuthStatus(statusErr.StatusCode) {
			return nil, &CredentialError{Provider: p.Name(), Err: err}
		}
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, eris.New("discovery: empty completion")
	}

	zap.L().Info("cost attribution",
		zap.String("model", resp.Model),
		zap.String("phase", "selector-discovery"),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return parseProposal(resp.Choices[0].Message.Content)
}
