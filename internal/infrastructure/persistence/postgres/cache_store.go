package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

const cacheBackend = "postgres"

// CacheStore implements outbound.CacheStore on PostgreSQL. It is the
// durable backend; entries survive restarts and are shared by replicas.
type CacheStore struct {
	db      *pgxpool.Pool
	cfg     config.CacheConfig
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewCacheStore creates a PostgreSQL-backed cache store.
func NewCacheStore(db *pgxpool.Pool, cfg config.CacheConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) *CacheStore {
	return &CacheStore{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Lookup returns the entry for fingerprint, bounded by the configured lookup
// timeout. A slow or absent entry is a miss; only hard store failures are
// returned as errors. TTL is enforced on read; expired rows stay until the
// next write overwrites them.
func (s *CacheStore) Lookup(ctx context.Context, fingerprint string) (*outbound.CachedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	query := `SELECT fingerprint, source_url, COALESCE(recipe_yaml, ''), valid, created_at, last_updated_at, version
		FROM extraction_cache WHERE fingerprint = $1`

	var entry outbound.CachedEntry
	err := s.db.QueryRow(ctx, query, fingerprint).Scan(
		&entry.Fingerprint,
		&entry.SourceURL,
		&entry.RecipeYAML,
		&entry.Valid,
		&entry.CreatedAt,
		&entry.LastUpdatedAt,
		&entry.Version,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		s.metrics.CacheOperation("lookup", cacheBackend, "miss")
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.metrics.CacheOperation("lookup", cacheBackend, "timeout")
		s.logger.Warn("cache lookup timed out, treating as miss",
			zap.String("fingerprint", fingerprint),
			zap.Duration("timeout", s.cfg.LookupTimeout))
		return nil, nil
	case err != nil:
		s.metrics.CacheOperation("lookup", cacheBackend, "error")
		s.logger.Error("cache lookup failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	if s.cfg.TTL > 0 && time.Since(entry.LastUpdatedAt) > s.cfg.TTL {
		s.metrics.CacheOperation("lookup", cacheBackend, "miss")
		return nil, nil
	}

	s.metrics.CacheOperation("lookup", cacheBackend, "hit")
	return &entry, nil
}

// StoreValid persists the serialized recipes extracted from sourceURL.
func (s *CacheStore) StoreValid(ctx context.Context, fingerprint, sourceURL string, recipes []*recipe.Recipe) error {
	recipeYAML, err := recipe.SerializeAll(recipes)
	if err != nil {
		return fmt.Errorf("serialize recipes for cache: %w", err)
	}
	return s.write(ctx, fingerprint, sourceURL, recipeYAML, true)
}

// StoreInvalid memoizes a not-a-recipe verdict.
func (s *CacheStore) StoreInvalid(ctx context.Context, fingerprint, sourceURL string) error {
	return s.write(ctx, fingerprint, sourceURL, "", false)
}

// write upserts the entry. The conflict branch bumps version and preserves
// created_at, so concurrent writers sequence correctly without a
// read-modify-write round trip.
func (s *CacheStore) write(ctx context.Context, fingerprint, sourceURL, recipeYAML string, valid bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	defer cancel()

	query := `INSERT INTO extraction_cache (fingerprint, source_url, recipe_yaml, valid, created_at, last_updated_at, version)
		VALUES ($1, $2, NULLIF($3, ''), $4, now(), now(), 1)
		ON CONFLICT (fingerprint) DO UPDATE SET
			source_url      = EXCLUDED.source_url,
			recipe_yaml     = EXCLUDED.recipe_yaml,
			valid           = EXCLUDED.valid,
			last_updated_at = now(),
			version         = extraction_cache.version + 1`

	if _, err := s.db.Exec(ctx, query, fingerprint, sourceURL, recipeYAML, valid); err != nil {
		s.metrics.CacheOperation("store", cacheBackend, "error")
		s.logger.Error("cache store failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return fmt.Errorf("cache store: %w", err)
	}

	s.metrics.CacheOperation("store", cacheBackend, "ok")
	return nil
}

// Exists reports whether an entry is present without fetching it.
func (s *CacheStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM extraction_cache WHERE fingerprint = $1)`
	if err := s.db.QueryRow(ctx, query, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return exists, nil
}

// Delete removes the entry for fingerprint.
func (s *CacheStore) Delete(ctx context.Context, fingerprint string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM extraction_cache WHERE fingerprint = $1`, fingerprint); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *CacheStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM extraction_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return count, nil
}

// Purge removes every entry and returns the number removed.
func (s *CacheStore) Purge(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM extraction_cache`)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	s.metrics.CacheOperation("purge", cacheBackend, "ok")
	return tag.RowsAffected(), nil
}
