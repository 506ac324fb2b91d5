// Package cache implements the fingerprint-keyed extraction cache and the
// single-flight guard that collapses concurrent builds of the same source.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// Backend names reported in metrics labels.
const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

func encodeEntry(entry *outbound.CachedEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*outbound.CachedEntry, error) {
	var entry outbound.CachedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

// nextEntry builds the value for a write. The first write for a fingerprint
// starts at version 1; later writes preserve created_at and advance version.
func nextEntry(prev *outbound.CachedEntry, fingerprint, sourceURL, recipeYAML string, valid bool) *outbound.CachedEntry {
	now := time.Now().UTC()
	entry := &outbound.CachedEntry{
		Fingerprint:   fingerprint,
		SourceURL:     sourceURL,
		RecipeYAML:    recipeYAML,
		Valid:         valid,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Version:       1,
	}
	if prev != nil {
		entry.CreatedAt = prev.CreatedAt
		entry.Version = prev.Version + 1
	}
	return entry
}
