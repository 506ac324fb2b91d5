// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"

	"github.com/cookbookhq/backend/internal/domain/recipe"
)

// CachedEntry is the versioned cache value for one source fingerprint.
// RecipeYAML is present iff Valid. Version increases on every write while
// CreatedAt is preserved from the first write.
type CachedEntry struct {
	Fingerprint   string    `json:"fingerprint"`
	SourceURL     string    `json:"source_url"`
	RecipeYAML    string    `json:"recipe_yaml,omitempty"`
	Valid         bool      `json:"valid"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Version       int64     `json:"version"`
}

// CacheStore defines the interface for fingerprint-keyed extraction results
type CacheStore interface {
	// Lookup returns the entry for fingerprint or nil when absent. Lookups
	// are bounded by the store's configured timeout; a timeout is reported
	// as a miss, not an error.
	Lookup(ctx context.Context, fingerprint string) (*CachedEntry, error)

	// StoreValid persists the serialized recipes extracted from sourceURL.
	// Writes are last-writer-wins and increment the entry version.
	StoreValid(ctx context.Context, fingerprint, sourceURL string, recipes []*recipe.Recipe) error

	// StoreInvalid memoizes a not-a-recipe verdict so repeat requests for
	// the same fingerprint short-circuit without a model call.
	StoreInvalid(ctx context.Context, fingerprint, sourceURL string) error

	// Exists reports whether an entry is present without fetching it.
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// Delete removes the entry for fingerprint.
	Delete(ctx context.Context, fingerprint string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	// Purge removes every entry and returns the number removed.
	Purge(ctx context.Context) (int64, error)
}

// StorageCredential is a user's cloud-storage credential. The OAuth token
// is held encrypted at rest and never logged.
type StorageCredential struct {
	UserID      string
	Provider    string
	TokenCipher []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CredentialStore defines the interface for storage-credential persistence
type CredentialStore interface {
	Upsert(ctx context.Context, cred *StorageCredential) error
	FindByUser(ctx context.Context, userID, provider string) (*StorageCredential, error)
	Delete(ctx context.Context, userID, provider string) error
}
