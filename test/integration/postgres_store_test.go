// Package integration provides integration tests against real PostgreSQL storage
//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/cookbookhq/backend/internal/infrastructure/cache"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/infrastructure/persistence/postgres"
	"github.com/cookbookhq/backend/internal/infrastructure/security"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
	"github.com/cookbookhq/backend/test/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// PostgresStoreTestSuite exercises the cache and credential stores against a
// containerized PostgreSQL instance with the real migrations applied.
type PostgresStoreTestSuite struct {
	suite.Suite
	ctx     context.Context
	testDB  *testutils.TestDatabase
	cache   *postgres.CacheStore
	creds   *postgres.CredentialStore
	cipher  *security.TokenCipher
	factory *testutils.RecipeFactory
	idents  *testutils.IdentityFactory
	recipes *testutils.RecipeAssertions
}

// SetupSuite starts the database container once for the whole suite.
func (s *PostgresStoreTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.testDB = testutils.SetupTestDatabase(s.T())

	logger := zap.NewNop()
	metrics := monitoring.NewMetricsCollector(logger)

	s.cache = postgres.NewCacheStore(s.testDB.Pool, config.CacheConfig{
		Enabled:       true,
		Backend:       "postgres",
		KeyPrefix:     "cookbook:recipe:",
		LookupTimeout: 2 * time.Second,
		SaveTimeout:   2 * time.Second,
	}, logger, metrics)
	s.creds = postgres.NewCredentialStore(s.testDB.Pool, logger)

	cipher, err := security.NewTokenCipher("integration-vault-secret")
	require.NoError(s.T(), err)
	s.cipher = cipher

	s.factory = testutils.NewRecipeFactory(time.Now().UnixNano())
	s.idents = testutils.NewIdentityFactory(time.Now().UnixNano())
}

// SetupTest starts every test from empty tables.
func (s *PostgresStoreTestSuite) SetupTest() {
	require.NoError(s.T(), s.testDB.TruncateAllTables())
	s.recipes = testutils.NewRecipeAssertions(s.T())
}

// TestCacheStoreLifecycle covers write, lookup, rewrite, and maintenance of
// extraction verdicts.
func (s *PostgresStoreTestSuite) TestCacheStoreLifecycle() {
	s.Run("StoreAndLookup_ShouldRoundTripYAML", func() {
		// Arrange
		sourceURL := "https://example.com/recipes/two-courses"
		fingerprint := cache.Fingerprint(sourceURL)
		docs := s.factory.CreateRecipes(2)

		// Act
		err := s.cache.StoreValid(s.ctx, fingerprint, sourceURL, docs)
		entry, lookupErr := s.cache.Lookup(s.ctx, fingerprint)

		// Assert
		require.NoError(s.T(), err)
		require.NoError(s.T(), lookupErr)
		require.NotNil(s.T(), entry)
		assert.Equal(s.T(), fingerprint, entry.Fingerprint)
		assert.Equal(s.T(), sourceURL, entry.SourceURL)
		assert.True(s.T(), entry.Valid)
		assert.EqualValues(s.T(), 1, entry.Version)

		parsed := s.recipes.CachedEntryParses(entry)
		require.Len(s.T(), parsed, 2)
		assert.Equal(s.T(), docs[0].Metadata.Title, parsed[0].Metadata.Title)
		assert.Equal(s.T(), docs[1].Metadata.Title, parsed[1].Metadata.Title)
	})

	s.Run("Rewrite_ShouldBumpVersionAndKeepCreatedAt", func() {
		// Arrange
		sourceURL := "https://example.com/recipes/rewritten"
		fingerprint := cache.Fingerprint(sourceURL)
		require.NoError(s.T(), s.cache.StoreValid(s.ctx, fingerprint, sourceURL, s.factory.CreateRecipes(1)))
		first, err := s.cache.Lookup(s.ctx, fingerprint)
		require.NoError(s.T(), err)
		require.NotNil(s.T(), first)

		// Act
		time.Sleep(25 * time.Millisecond)
		require.NoError(s.T(), s.cache.StoreValid(s.ctx, fingerprint, sourceURL, s.factory.CreateRecipes(1)))
		second, err := s.cache.Lookup(s.ctx, fingerprint)

		// Assert
		require.NoError(s.T(), err)
		require.NotNil(s.T(), second)
		assert.EqualValues(s.T(), 2, second.Version)
		assert.WithinDuration(s.T(), first.CreatedAt, second.CreatedAt, time.Millisecond,
			"rewrites must preserve the original created_at")
		assert.True(s.T(), second.LastUpdatedAt.After(first.LastUpdatedAt))
	})

	s.Run("InvalidVerdict_ShouldMemoizeWithoutYAML", func() {
		// Arrange
		sourceURL := "https://example.com/articles/no-recipe-here"
		fingerprint := cache.Fingerprint(sourceURL)

		// Act
		err := s.cache.StoreInvalid(s.ctx, fingerprint, sourceURL)
		entry, lookupErr := s.cache.Lookup(s.ctx, fingerprint)

		// Assert
		require.NoError(s.T(), err)
		require.NoError(s.T(), lookupErr)
		require.NotNil(s.T(), entry)
		assert.False(s.T(), entry.Valid)
		assert.Empty(s.T(), entry.RecipeYAML)
	})

	s.Run("Maintenance_ShouldCountDeleteAndPurge", func() {
		// Arrange
		urls := []string{
			"https://example.com/recipes/one",
			"https://example.com/recipes/two",
			"https://example.com/recipes/three",
		}
		for _, u := range urls {
			require.NoError(s.T(), s.cache.StoreValid(s.ctx, cache.Fingerprint(u), u, s.factory.CreateRecipes(1)))
		}

		// Act & Assert
		exists, err := s.cache.Exists(s.ctx, cache.Fingerprint(urls[0]))
		require.NoError(s.T(), err)
		assert.True(s.T(), exists)

		count, err := s.cache.Count(s.ctx)
		require.NoError(s.T(), err)
		assert.EqualValues(s.T(), 3, count)

		require.NoError(s.T(), s.cache.Delete(s.ctx, cache.Fingerprint(urls[0])))
		exists, err = s.cache.Exists(s.ctx, cache.Fingerprint(urls[0]))
		require.NoError(s.T(), err)
		assert.False(s.T(), exists)

		purged, err := s.cache.Purge(s.ctx)
		require.NoError(s.T(), err)
		assert.EqualValues(s.T(), 2, purged)

		count, err = s.cache.Count(s.ctx)
		require.NoError(s.T(), err)
		assert.EqualValues(s.T(), 0, count)
	})

	s.Run("UpsertedRow_ShouldMatchDirectQuery", func() {
		// Arrange
		sourceURL := "https://example.com/recipes/audited"
		fingerprint := cache.Fingerprint(sourceURL)
		require.NoError(s.T(), s.cache.StoreValid(s.ctx, fingerprint, sourceURL, s.factory.CreateRecipes(1)))
		require.NoError(s.T(), s.cache.StoreValid(s.ctx, fingerprint, sourceURL, s.factory.CreateRecipes(1)))

		// Act
		var version int64
		var valid bool
		err := s.testDB.Pool.QueryRow(s.ctx,
			"SELECT version, valid FROM extraction_cache WHERE fingerprint = $1", fingerprint).
			Scan(&version, &valid)

		// Assert
		require.NoError(s.T(), err)
		assert.EqualValues(s.T(), 2, version)
		assert.True(s.T(), valid)
	})
}

// TestCacheTTL covers expiry, which the store enforces on read.
func (s *PostgresStoreTestSuite) TestCacheTTL() {
	s.Run("ExpiredEntry_ShouldReadAsMiss", func() {
		// Arrange
		expiring := postgres.NewCacheStore(s.testDB.Pool, config.CacheConfig{
			Enabled:       true,
			Backend:       "postgres",
			KeyPrefix:     "cookbook:recipe:",
			LookupTimeout: 2 * time.Second,
			SaveTimeout:   2 * time.Second,
			TTL:           75 * time.Millisecond,
		}, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		sourceURL := "https://example.com/recipes/short-lived"
		fingerprint := cache.Fingerprint(sourceURL)
		require.NoError(s.T(), expiring.StoreValid(s.ctx, fingerprint, sourceURL, s.factory.CreateRecipes(1)))

		// Act
		fresh, freshErr := expiring.Lookup(s.ctx, fingerprint)
		time.Sleep(150 * time.Millisecond)
		expired, expiredErr := expiring.Lookup(s.ctx, fingerprint)

		// Assert
		require.NoError(s.T(), freshErr)
		require.NotNil(s.T(), fresh, "entry should be served before the TTL elapses")
		require.NoError(s.T(), expiredErr)
		assert.Nil(s.T(), expired, "an expired entry reads as a miss")
	})
}

// TestCredentialVault covers sealed OAuth token persistence.
func (s *PostgresStoreTestSuite) TestCredentialVault() {
	s.Run("SealStoreAndOpen_ShouldRoundTrip", func() {
		// Arrange
		identity := s.idents.CreateIdentity()
		token := s.idents.CreateOAuthToken()
		sealed, err := s.cipher.Seal(token)
		require.NoError(s.T(), err)

		// Act
		err = s.creds.Upsert(s.ctx, &outbound.StorageCredential{
			UserID:      identity.UserID,
			Provider:    "gdrive",
			TokenCipher: sealed,
		})
		require.NoError(s.T(), err)
		found, err := s.creds.FindByUser(s.ctx, identity.UserID, "gdrive")

		// Assert
		require.NoError(s.T(), err)
		require.NotNil(s.T(), found)
		assert.Equal(s.T(), identity.UserID, found.UserID)
		assert.NotContains(s.T(), string(found.TokenCipher), token,
			"the stored blob must not leak the plaintext token")

		opened, err := s.cipher.Open(found.TokenCipher)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), token, opened)
	})

	s.Run("Upsert_ShouldReplaceExistingRow", func() {
		// Arrange
		identity := s.idents.CreateIdentity()
		cred, err := s.idents.CreateCredential(s.cipher, identity.UserID, "gdrive")
		require.NoError(s.T(), err)
		require.NoError(s.T(), s.creds.Upsert(s.ctx, cred))

		rotated := s.idents.CreateOAuthToken()
		sealed, err := s.cipher.Seal(rotated)
		require.NoError(s.T(), err)

		// Act
		err = s.creds.Upsert(s.ctx, &outbound.StorageCredential{
			UserID:      identity.UserID,
			Provider:    "gdrive",
			TokenCipher: sealed,
		})

		// Assert
		require.NoError(s.T(), err)
		rows, err := s.testDB.CountRecords("storage_credentials")
		require.NoError(s.T(), err)
		assert.Equal(s.T(), 1, rows, "upsert must replace, not duplicate")

		found, err := s.creds.FindByUser(s.ctx, identity.UserID, "gdrive")
		require.NoError(s.T(), err)
		opened, err := s.cipher.Open(found.TokenCipher)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), rotated, opened)
		assert.False(s.T(), found.UpdatedAt.Before(found.CreatedAt))
	})

	s.Run("FindUnknown_ShouldReturnNotFound", func() {
		// Act
		_, err := s.creds.FindByUser(s.ctx, "user_2missing0000000", "gdrive")

		// Assert
		require.Error(s.T(), err)
		assert.Equal(s.T(), errors.CodeNotFound, errors.GetCode(err))
	})

	s.Run("Delete_ShouldBeIdempotent", func() {
		// Arrange
		identity := s.idents.CreateIdentity()
		cred, err := s.idents.CreateCredential(s.cipher, identity.UserID, "dropbox")
		require.NoError(s.T(), err)
		require.NoError(s.T(), s.creds.Upsert(s.ctx, cred))

		// Act
		err = s.creds.Delete(s.ctx, identity.UserID, "dropbox")
		require.NoError(s.T(), err)
		_, findErr := s.creds.FindByUser(s.ctx, identity.UserID, "dropbox")
		repeatErr := s.creds.Delete(s.ctx, identity.UserID, "dropbox")

		// Assert
		assert.Equal(s.T(), errors.CodeNotFound, errors.GetCode(findErr))
		assert.NoError(s.T(), repeatErr, "deleting an absent credential is not an error")
	})
}

// TestPostgresStoreTestSuite runs the storage integration suite
func TestPostgresStoreTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	suite.Run(t, new(PostgresStoreTestSuite))
}
