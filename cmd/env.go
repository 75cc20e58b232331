package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/cache"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/config"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/discovery"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/registry"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/resolver"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/sampler"
	"github.com/crossroads-ai-hack-2025/fact-it/pkg/anthropic"
	"github.com/crossroads-ai-hack-2025/fact-it/pkg/openai"
)

// environment bundles the long-lived dependencies a command needs.
type environment struct {
	Store    cache.Store
	Pipeline *resolver.Pipeline
	Sampler  *sampler.Sampler
}

// Close releases the environment's resources.
func (e *environment) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("closing cache store", zap.Error(err))
	}
}

// initPipeline builds the resolution pipeline from the loaded config.
func initPipeline(ctx context.Context) (*environment, error) {
	store, err := newStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if cfg.Registry.OverlayPath != "" {
		if err := reg.LoadOverlay(cfg.Registry.OverlayPath); err != nil {
			_ = store.Close()
			return nil, eris.Wrap(err, "load registry overlay")
		}
	}

	// A nil *Service must stay a nil interface for the pipeline's
	// discovery-disabled check.
	var disc resolver.Discoverer
	if svc := newDiscovery(); svc != nil {
		disc = svc
	}

	return &environment{
		Store:    store,
		Pipeline: resolver.New(store, disc, reg),
		Sampler: sampler.New(sampler.Config{
			MinTextLength: cfg.Sampler.MinTextLength,
			MaxElements:   cfg.Sampler.MaxElements,
			MaxSampleSize: cfg.Sampler.MaxSampleSize,
		}),
	}, nil
}

func newStore(ctx context.Context, c config.CacheConfig) (cache.Store, error) {
	switch c.Driver {
	case "sqlite", "":
		return cache.NewSQLite(c.DSN)
	case "postgres":
		return cache.NewPostgres(ctx, c.DatabaseURL)
	case "redis":
		return cache.NewRedis(ctx, c.RedisAddr)
	default:
		return nil, eris.Errorf("unknown cache driver %q", c.Driver)
	}
}

// newDiscovery picks a proposal backend by configured credentials, Anthropic
// first. With no key configured discovery is disabled and resolution runs on
// cache and static tiers alone.
func newDiscovery() *discovery.Service {
	var client discovery.ProposalClient
	switch {
	case cfg.Anthropic.Key != "":
		client = discovery.NewAnthropicProposer(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	case cfg.OpenAI.Key != "":
		client = discovery.NewOpenAIProposer(
			openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL), openai.WithModel(cfg.OpenAI.Model)),
			cfg.OpenAI.Model,
		)
	default:
		zap.L().Warn("no AI credentials configured, dynamic selector discovery disabled")
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Discovery.RatePerSecond), cfg.Discovery.RateBurst)
	return discovery.NewService(client,
		discovery.WithRateLimit(limiter),
		discovery.WithMaxAttempts(cfg.Discovery.MaxAttempts),
	)
}
