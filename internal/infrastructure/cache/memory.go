package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// MemoryStore implements outbound.CacheStore in process memory. It serves
// single-node deployments and tests; entries do not survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	metrics *monitoring.MetricsCollector
}

type memoryEntry struct {
	value     outbound.CachedEntry
	expiresAt time.Time // zero means no expiration
}

// NewMemoryStore creates an in-memory cache store.
func NewMemoryStore(cfg config.CacheConfig, metrics *monitoring.MetricsCollector) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     cfg.TTL,
		metrics: metrics,
	}
}

// Lookup returns the entry for fingerprint or nil when absent or expired.
func (s *MemoryStore) Lookup(ctx context.Context, fingerprint string) (*outbound.CachedEntry, error) {
	s.mu.RLock()
	stored, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok || stored.expired(time.Now()) {
		s.metrics.CacheOperation("lookup", backendMemory, "miss")
		return nil, nil
	}

	s.metrics.CacheOperation("lookup", backendMemory, "hit")
	entry := stored.value
	return &entry, nil
}

// StoreValid persists the serialized recipes extracted from sourceURL.
func (s *MemoryStore) StoreValid(ctx context.Context, fingerprint, sourceURL string, recipes []*recipe.Recipe) error {
	recipeYAML, err := recipe.SerializeAll(recipes)
	if err != nil {
		return err
	}
	s.write(fingerprint, sourceURL, recipeYAML, true)
	return nil
}

// StoreInvalid memoizes a not-a-recipe verdict.
func (s *MemoryStore) StoreInvalid(ctx context.Context, fingerprint, sourceURL string) error {
	s.write(fingerprint, sourceURL, "", false)
	return nil
}

func (s *MemoryStore) write(fingerprint, sourceURL, recipeYAML string, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *outbound.CachedEntry
	if stored, ok := s.entries[fingerprint]; ok && !stored.expired(time.Now()) {
		prev = &stored.value
	}

	stored := memoryEntry{value: *nextEntry(prev, fingerprint, sourceURL, recipeYAML, valid)}
	if s.ttl > 0 {
		stored.expiresAt = time.Now().Add(s.ttl)
	}
	s.entries[fingerprint] = stored

	s.metrics.CacheOperation("store", backendMemory, "ok")
}

// Exists reports whether a live entry is present.
func (s *MemoryStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entries[fingerprint]
	return ok && !stored.expired(time.Now()), nil
}

// Delete removes the entry for fingerprint.
func (s *MemoryStore) Delete(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, fingerprint)
	return nil
}

// Count returns the number of live entries.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var count int64
	for _, stored := range s.entries {
		if !stored.expired(now) {
			count++
		}
	}
	return count, nil
}

// Purge removes every entry and returns the number removed.
func (s *MemoryStore) Purge(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.entries))
	s.entries = make(map[string]memoryEntry)
	s.metrics.CacheOperation("purge", backendMemory, "ok")
	return removed, nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
