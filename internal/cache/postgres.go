package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/domain"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. pgxmock's
// PgxPoolIface satisfies it, which keeps the store unit-testable without a
// live database.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool, for deployments where the
// selector cache is shared by several resolver instances.
type PostgresStore struct {
	pool Pool
	now  func() time.Time
}

// NewPostgres creates a PostgresStore with a connection pool and applies the
// schema.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres connect")
	}

	s := &PostgresStore{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool without running migrations.
// Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (s *PostgresStore) WithNow(now func() time.Time) *PostgresStore {
	s.now = now
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS selector_cache (
	id                UUID PRIMARY KEY,
	domain            TEXT NOT NULL UNIQUE,
	post_container    TEXT NOT NULL,
	text_content      TEXT NOT NULL,
	author            TEXT NOT NULL DEFAULT '',
	timestamp_sel     TEXT NOT NULL DEFAULT '',
	confidence        INTEGER NOT NULL,
	discovered_at     TIMESTAMPTZ NOT NULL,
	last_validated_at TIMESTAMPTZ NOT NULL,
	posts_found       INTEGER NOT NULL DEFAULT 0,
	text_rate         DOUBLE PRECISION NOT NULL DEFAULT 0,
	validated         BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_selector_cache_discovered_at ON selector_cache(discovered_at);
`

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cache: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresEntryColumns = `domain, post_container, text_content, author, timestamp_sel,
	confidence, discovered_at, last_validated_at, posts_found, text_rate, validated`

func (s *PostgresStore) Get(ctx context.Context, d string) (*model.CacheEntry, error) {
	key := domain.Normalize(d)

	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresEntryColumns+` FROM selector_cache WHERE domain = $1`, key)

	var e model.CacheEntry
	err := row.Scan(
		&e.Domain, &e.Selectors.PostContainer, &e.Selectors.TextContent,
		&e.Selectors.Author, &e.Selectors.Timestamp, &e.Confidence,
		&e.DiscoveredAt, &e.LastValidatedAt, &e.Metrics.PostsFound,
		&e.Metrics.TextExtractionRate, &e.Validated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		zap.L().Warn("cache: postgres read failed, treating as miss",
			zap.String("domain", key), zap.Error(err))
		return nil, nil
	}

	if Expired(&e, s.now()) {
		if _, err := s.pool.Exec(ctx, `DELETE FROM selector_cache WHERE domain = $1`, key); err != nil {
			zap.L().Warn("cache: postgres evict expired failed",
				zap.String("domain", key), zap.Error(err))
		}
		return nil, nil
	}

	return &e, nil
}

func (s *PostgresStore) Set(ctx context.Context, d string, selectors model.PlatformSelectors, confidence int, metrics model.ValidationMetrics) error {
	key := domain.Normalize(d)
	now := s.now().UTC()
	validated := metrics.PostsFound > 0

	_, err := s.pool.Exec(ctx, `
		INSERT INTO selector_cache
			(id, domain, post_container, text_content, author, timestamp_sel,
			 confidence, discovered_at, last_validated_at, posts_found, text_rate, validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (domain) DO UPDATE SET
			post_container = EXCLUDED.post_container,
			text_content = EXCLUDED.text_content,
			author = EXCLUDED.author,
			timestamp_sel = EXCLUDED.timestamp_sel,
			confidence = EXCLUDED.confidence,
			discovered_at = EXCLUDED.discovered_at,
			last_validated_at = EXCLUDED.last_validated_at,
			posts_found = EXCLUDED.posts_found,
			text_rate = EXCLUDED.text_rate,
			validated = EXCLUDED.validated`,
		uuid.New().String(), key, selectors.PostContainer, selectors.TextContent,
		selectors.Author, selectors.Timestamp, confidence, now, now,
		metrics.PostsFound, metrics.TextExtractionRate, validated,
	)
	return eris.Wrapf(err, "cache: postgres set %s", key)
}

func (s *PostgresStore) UpdateValidation(ctx context.Context, d string, metrics model.ValidationMetrics) error {
	key := domain.Normalize(d)

	tag, err := s.pool.Exec(ctx, `
		UPDATE selector_cache SET
			last_validated_at = $1, posts_found = $2, text_rate = $3, validated = TRUE
		WHERE domain = $4`,
		s.now().UTC(), metrics.PostsFound, metrics.TextExtractionRate, key,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: postgres update validation %s", key)
	}
	if tag.RowsAffected() == 0 {
		zap.L().Info("cache: validation update for absent entry, skipped",
			zap.String("domain", key))
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, d string) error {
	key := domain.Normalize(d)
	_, err := s.pool.Exec(ctx, `DELETE FROM selector_cache WHERE domain = $1`, key)
	return eris.Wrapf(err, "cache: postgres remove %s", key)
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.CacheStats, error) {
	cutoff := s.now().UTC().Add(-TTL)

	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence), 0),
		       MIN(discovered_at), MAX(discovered_at)
		FROM selector_cache WHERE discovered_at > $1`, cutoff)

	var stats model.CacheStats
	var oldest, newest *time.Time
	if err := row.Scan(&stats.TotalDomains, &stats.AverageConfidence, &oldest, &newest); err != nil {
		return nil, eris.Wrap(err, "cache: postgres stats")
	}
	if oldest != nil {
		stats.OldestEntry = oldest.UTC()
	}
	if newest != nil {
		stats.NewestEntry = newest.UTC()
	}
	return &stats, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM selector_cache`)
	return eris.Wrap(err, "cache: postgres clear")
}
