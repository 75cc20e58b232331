package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/domain"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. This is the default
// backend for single-process deployments.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Use ":memory:" for tests.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	if dsn == ":memory:" {
		// Each connection to :memory: gets its own database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithNow sets a fixed clock for testing expiry and revalidation boundaries.
func (s *SQLiteStore) WithNow(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS selector_cache (
	id                TEXT PRIMARY KEY,
	domain            TEXT NOT NULL UNIQUE,
	post_container    TEXT NOT NULL,
	text_content      TEXT NOT NULL,
	author            TEXT NOT NULL DEFAULT '',
	timestamp_sel     TEXT NOT NULL DEFAULT '',
	confidence        INTEGER NOT NULL,
	discovered_at     INTEGER NOT NULL,
	last_validated_at INTEGER NOT NULL,
	posts_found       INTEGER NOT NULL DEFAULT 0,
	text_rate         REAL NOT NULL DEFAULT 0,
	validated         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_selector_cache_discovered_at ON selector_cache(discovered_at);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return eris.Wrap(err, "cache: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteEntryColumns = `domain, post_container, text_content, author, timestamp_sel,
	confidence, discovered_at, last_validated_at, posts_found, text_rate, validated`

func (s *SQLiteStore) Get(ctx context.Context, d string) (*model.CacheEntry, error) {
	key := domain.Normalize(d)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteEntryColumns+` FROM selector_cache WHERE domain = ?`, key)

	entry, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		// Read failures degrade to a miss so resolution falls through.
		zap.L().Warn("cache: sqlite read failed, treating as miss",
			zap.String("domain", key), zap.Error(err))
		return nil, nil
	}

	if Expired(entry, s.now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM selector_cache WHERE domain = ?`, key); err != nil {
			zap.L().Warn("cache: sqlite evict expired failed",
				zap.String("domain", key), zap.Error(err))
		}
		zap.L().Debug("cache: entry expired, evicted on read",
			zap.String("domain", key), zap.Time("discovered_at", entry.DiscoveredAt))
		return nil, nil
	}

	return entry, nil
}

func (s *SQLiteStore) Set(ctx context.Context, d string, selectors model.PlatformSelectors, confidence int, metrics model.ValidationMetrics) error {
	key := domain.Normalize(d)
	now := s.now().UTC()
	validated := metrics.PostsFound > 0

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selector_cache
			(id, domain, post_container, text_content, author, timestamp_sel,
			 confidence, discovered_at, last_validated_at, posts_found, text_rate, validated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			post_container = excluded.post_container,
			text_content = excluded.text_content,
			author = excluded.author,
			timestamp_sel = excluded.timestamp_sel,
			confidence = excluded.confidence,
			discovered_at = excluded.discovered_at,
			last_validated_at = excluded.last_validated_at,
			posts_found = excluded.posts_found,
			text_rate = excluded.text_rate,
			validated = excluded.validated`,
		uuid.New().String(), key, selectors.PostContainer, selectors.TextContent,
		selectors.Author, selectors.Timestamp, confidence,
		now.UnixMilli(), now.UnixMilli(),
		metrics.PostsFound, metrics.TextExtractionRate, boolToInt(validated),
	)
	return eris.Wrapf(err, "cache: sqlite set %s", key)
}

func (s *SQLiteStore) UpdateValidation(ctx context.Context, d string, metrics model.ValidationMetrics) error {
	key := domain.Normalize(d)
	now := s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE selector_cache SET
			last_validated_at = ?, posts_found = ?, text_rate = ?, validated = 1
		WHERE domain = ?`,
		now.UnixMilli(), metrics.PostsFound, metrics.TextExtractionRate, key,
	)
	if err != nil {
		return eris.Wrapf(err, "cache: sqlite update validation %s", key)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		zap.L().Info("cache: validation update for absent entry, skipped",
			zap.String("domain", key))
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, d string) error {
	key := domain.Normalize(d)
	_, err := s.db.ExecContext(ctx, `DELETE FROM selector_cache WHERE domain = ?`, key)
	return eris.Wrapf(err, "cache: sqlite remove %s", key)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.CacheStats, error) {
	cutoff := s.now().Add(-TTL).UnixMilli()

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence), 0),
		       COALESCE(MIN(discovered_at), 0), COALESCE(MAX(discovered_at), 0)
		FROM selector_cache WHERE discovered_at > ?`, cutoff)

	var stats model.CacheStats
	var oldest, newest int64
	if err := row.Scan(&stats.TotalDomains, &stats.AverageConfidence, &oldest, &newest); err != nil {
		return nil, eris.Wrap(err, "cache: sqlite stats")
	}
	if stats.TotalDomains > 0 {
		stats.OldestEntry = time.UnixMilli(oldest).UTC()
		stats.NewestEntry = time.UnixMilli(newest).UTC()
	}
	return &stats, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM selector_cache`)
	return eris.Wrap(err, "cache: sqlite clear")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row scannable) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var discovered, validatedAt int64
	var validated int

	err := row.Scan(
		&e.Domain, &e.Selectors.PostContainer, &e.Selectors.TextContent,
		&e.Selectors.Author, &e.Selectors.Timestamp, &e.Confidence,
		&discovered, &validatedAt, &e.Metrics.PostsFound,
		&e.Metrics.TextExtractionRate, &validated,
	)
	if err != nil {
		return nil, err
	}
	e.DiscoveredAt = time.UnixMilli(discovered).UTC()
	e.LastValidatedAt = time.UnixMilli(validatedAt).UTC()
	e.Validated = validated != 0
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
