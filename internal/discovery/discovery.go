// Package discovery drives AI-assisted selector discovery: it sends a
// reduced HTML sample to a proposal backend and turns the reply into a
// selector set, retrying transient failures with exponential backoff.
package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/resilience"
)

const (
	// DefaultMaxAttempts is the total number of proposal calls per
	// discovery, including the first.
	DefaultMaxAttempts = 3

	// baseBackoff doubles after each failed attempt (2s, then 4s).
	baseBackoff = 2 * time.Second
)

// Request carries everything a backend needs to propose selectors.
type Request struct {
	Domain     string
	HTMLSample string
}

// Proposal is a backend's answer: a selector set plus its own confidence
// estimate and a short rationale.
type Proposal struct {
	Selectors  model.PlatformSelectors
	Confidence int
	Reasoning  string
}

// ProposalClient is implemented by AI provider adapters.
type ProposalClient interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// ProposeSelectors returns a selector proposal for the sampled page.
	// Authentication failures must surface as *CredentialError.
	ProposeSelectors(ctx context.Context, req Request) (*Proposal, error)
}

// Service wraps a ProposalClient with retry, rate limiting, and proposal
// sanity checks.
type Service struct {
	client  ProposalClient
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// Option customizes a Service.
type Option func(*Service)

// WithRateLimit caps outbound proposal calls. Useful when many tabs share
// one API key.
func WithRateLimit(l *rate.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.retry.MaxAttempts = n }
}

// WithSleep overrides the backoff sleep. Tests inject this to observe
// delays without waiting them out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.retry.Sleep = sleep }
}

// NewService returns a discovery service backed by client.
func NewService(client ProposalClient, opts ...Option) *Service {
	s := &Service{
		client: client,
		retry: resilience.RetryConfig{
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: baseBackoff,
			Multiplier:     2.0,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover asks the backend for selectors, retrying every failure except
// credential rejections. On exhaustion it returns an *ExhaustedError
// wrapping the last attempt's error.
func (s *Service) Discover(ctx context.Context, req Request) (*Proposal, error) {
	if req.HTMLSample == "" {
		return nil, eris.New("discovery: empty HTML sample")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "discovery: rate limit wait")
		}
	}

	cfg := s.retry
	cfg.ShouldRetry = func(err error) bool { return !IsCredential(err) }
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("selector proposal failed, retrying",
			zap.String("provider", s.client.Name()),
			zap.String("domain", req.Domain),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	proposal, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Proposal, error) {
		p, err := s.client.ProposeSelectors(ctx, req)
		if err != nil {
			return nil, err
		}
		return p, checkProposal(p)
	})
	if err != nil {
		if IsCredential(err) {
			return nil, err
		}
		return nil, &ExhaustedError{
			Domain:   req.Domain,
			Attempts: cfg.MaxAttempts,
			LastErr:  err,
		}
	}

	zap.L().Info("selectors discovered",
		zap.String("provider", s.client.Name()),
		zap.String("domain", req.Domain),
		zap.String("post_container", proposal.Selectors.PostContainer),
		zap.Int("confidence", proposal.Confidence),
	)
	return proposal, nil
}

// checkProposal rejects replies the pipeline cannot use. A malformed
// proposal is retryable: the model often does better on a second pass.
func checkProposal(p *Proposal) error {
	if p == nil {
		return eris.New("discovery: nil proposal")
	}
	if !p.Selectors.Usable() {
		return eris.New("discovery: proposal missing post container or text selector")
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return eris.Errorf("discovery: confidence %d out of range", p.Confidence)
	}
	return nil
}
