package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// RedisStore implements outbound.CacheStore on Redis. Entries are JSON
// values stored under cfg.KeyPrefix + fingerprint.
type RedisStore struct {
	client  redis.UniversalClient
	cfg     config.CacheConfig
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewRedisClient builds the underlying client from config and verifies the
// connection before returning it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (redis.UniversalClient, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{addr},
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", addr),
		zap.Int("database", cfg.Database))
	return client, nil
}

// NewRedisStore creates a Redis-backed cache store.
func NewRedisStore(client redis.UniversalClient, cfg config.CacheConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) *RedisStore {
	return &RedisStore{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *RedisStore) key(fingerprint string) string {
	return s.cfg.KeyPrefix + fingerprint
}

// Lookup returns the entry for fingerprint, bounded by the configured lookup
// timeout. A slow or absent entry is a miss; only hard store failures are
// returned as errors.
func (s *RedisStore) Lookup(ctx context.Context, fingerprint string) (*outbound.CachedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		s.metrics.CacheOperation("lookup", backendRedis, "miss")
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.metrics.CacheOperation("lookup", backendRedis, "timeout")
		s.logger.Warn("cache lookup timed out, treating as miss",
			zap.String("fingerprint", fingerprint),
			zap.Duration("timeout", s.cfg.LookupTimeout))
		return nil, nil
	case err != nil:
		s.metrics.CacheOperation("lookup", backendRedis, "error")
		s.logger.Error("cache lookup failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		s.metrics.CacheOperation("lookup", backendRedis, "error")
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	s.metrics.CacheOperation("lookup", backendRedis, "hit")
	return entry, nil
}

// StoreValid persists the serialized recipes extracted from sourceURL.
func (s *RedisStore) StoreValid(ctx context.Context, fingerprint, sourceURL string, recipes []*recipe.Recipe) error {
	recipeYAML, err := recipe.SerializeAll(recipes)
	if err != nil {
		return fmt.Errorf("serialize recipes for cache: %w", err)
	}
	return s.write(ctx, fingerprint, sourceURL, recipeYAML, true)
}

// StoreInvalid memoizes a not-a-recipe verdict.
func (s *RedisStore) StoreInvalid(ctx context.Context, fingerprint, sourceURL string) error {
	return s.write(ctx, fingerprint, sourceURL, "", false)
}

func (s *RedisStore) write(ctx context.Context, fingerprint, sourceURL, recipeYAML string, valid bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SaveTimeout)
	defer cancel()

	// Read-modify-write. Concurrent writers may interleave; last write wins
	// and callers must not assume version sequencing across writers.
	var prev *outbound.CachedEntry
	if data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes(); err == nil {
		prev, _ = decodeEntry(data)
	}

	data, err := encodeEntry(nextEntry(prev, fingerprint, sourceURL, recipeYAML, valid))
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(fingerprint), data, s.cfg.TTL).Err(); err != nil {
		s.metrics.CacheOperation("store", backendRedis, "error")
		s.logger.Error("cache store failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return fmt.Errorf("cache store: %w", err)
	}

	s.metrics.CacheOperation("store", backendRedis, "ok")
	return nil
}

// Exists reports whether an entry is present without fetching it.
func (s *RedisStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists: %w", err)
	}
	return n > 0, nil
}

// Delete removes the entry for fingerprint.
func (s *RedisStore) Delete(ctx context.Context, fingerprint string) error {
	if err := s.client.Del(ctx, s.key(fingerprint)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Count returns the number of entries under the configured key prefix.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	var count int64
	iter := s.client.Scan(ctx, 0, s.cfg.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return count, nil
}

// Purge removes every entry under the configured key prefix and returns
// the number removed.
func (s *RedisStore) Purge(ctx context.Context) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, s.cfg.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("cache purge: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache purge: %w", err)
	}
	s.metrics.CacheOperation("purge", backendRedis, "ok")
	return removed, nil
}
