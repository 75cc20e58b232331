package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/domain"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

const redisKeyPrefix = "factit:selectors:"

// RedisStore implements Store on Redis. Expiry rides on Redis' native key
// TTL, so expired entries simply vanish instead of being evicted on read.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis creates a RedisStore and verifies connectivity.
func NewRedis(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrapf(err, "cache: redis ping %s", addr)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

// WithNow sets a fixed clock for testing.
func (s *RedisStore) WithNow(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(d string) string {
	return redisKeyPrefix + d
}

func (s *RedisStore) Get(ctx context.Context, d string) (*model.CacheEntry, error) {
	key := domain.Normalize(d)

	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		zap.L().Warn("cache: redis read failed, treating as miss",
			zap.String("domain", key), zap.Error(err))
		return nil, nil
	}

	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		zap.L().Warn("cache: redis entry corrupt, evicting",
			zap.String("domain", key), zap.Error(err))
		s.client.Del(ctx, redisKey(key))
		return nil, nil
	}

	// TTL normally handles expiry; the age check covers entries written
	// with a different clock.
	if Expired(&e, s.now()) {
		s.client.Del(ctx, redisKey(key))
		return nil, nil
	}
	return &e, nil
}

func (s *RedisStore) Set(ctx context.Context, d string, selectors model.PlatformSelectors, confidence int, metrics model.ValidationMetrics) error {
	key := domain.Normalize(d)
	now := s.now().UTC()

	e := model.CacheEntry{
		Domain:          key,
		Selectors:       selectors,
		Confidence:      confidence,
		DiscoveredAt:    now,
		LastValidatedAt: now,
		Metrics:         metrics,
		Validated:       metrics.PostsFound > 0,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return eris.Wrapf(err, "cache: redis marshal %s", key)
	}

	if err := s.client.Set(ctx, redisKey(key), raw, TTL).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

func (s *RedisStore) UpdateValidation(ctx context.Context, d string, metrics model.ValidationMetrics) error {
	key := domain.Normalize(d)

	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		zap.L().Info("cache: validation update for absent entry, skipped",
			zap.String("domain", key))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "cache: redis update validation %s", key)
	}

	var e model.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return eris.Wrapf(err, "cache: redis unmarshal %s", key)
	}

	e.LastValidatedAt = s.now().UTC()
	e.Metrics = metrics
	e.Validated = true

	updated, err := json.Marshal(e)
	if err != nil {
		return eris.Wrapf(err, "cache: redis marshal %s", key)
	}
	// Keep the original TTL: revalidation refreshes health, not lifetime.
	if err := s.client.Set(ctx, redisKey(key), updated, redis.KeepTTL).Err(); err != nil {
		return eris.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, d string) error {
	key := domain.Normalize(d)
	return eris.Wrapf(s.client.Del(ctx, redisKey(key)).Err(), "cache: redis remove %s", key)
}

func (s *RedisStore) Stats(ctx context.Context) (*model.CacheStats, error) {
	var stats model.CacheStats
	var confidenceSum int

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, eris.Wrap(err, "cache: redis stats get")
		}
		var e model.CacheEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}

		stats.TotalDomains++
		confidenceSum += e.Confidence
		if stats.OldestEntry.IsZero() || e.DiscoveredAt.Before(stats.OldestEntry) {
			stats.OldestEntry = e.DiscoveredAt
		}
		if e.DiscoveredAt.After(stats.NewestEntry) {
			stats.NewestEntry = e.DiscoveredAt
		}
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: redis stats scan")
	}

	if stats.TotalDomains > 0 {
		stats.AverageConfidence = float64(confidenceSum) / float64(stats.TotalDomains)
	}
	return &stats, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return eris.Wrap(err, "cache: redis clear")
		}
	}
	return eris.Wrap(iter.Err(), "cache: redis clear scan")
}
