package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
)

// CacheTestSuite provides a test suite for the extraction cache
type CacheTestSuite struct {
	suite.Suite
	logger *zap.Logger
}

func (suite *CacheTestSuite) SetupSuite() {
	suite.logger = zap.NewNop()
}

func (suite *CacheTestSuite) newRedisStore(ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(suite.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.CacheConfig{
		Enabled:       true,
		Backend:       "redis",
		KeyPrefix:     "cookbook:recipe:",
		LookupTimeout: 250 * time.Millisecond,
		SaveTimeout:   time.Second,
		TTL:           ttl,
	}
	return NewRedisStore(client, cfg, suite.logger, monitoring.NewMetricsCollector(suite.logger)), mr
}

func (suite *CacheTestSuite) newMemoryStore(ttl time.Duration) *MemoryStore {
	cfg := config.CacheConfig{Enabled: true, Backend: "memory", TTL: ttl}
	return NewMemoryStore(cfg, monitoring.NewMetricsCollector(suite.logger))
}

func (suite *CacheTestSuite) newFlight() *Flight {
	return NewFlight(suite.logger, monitoring.NewMetricsCollector(suite.logger))
}

// cachedRecipe builds a minimal valid recipe for store round trips.
func cachedRecipe(title string) *recipe.Recipe {
	r := &recipe.Recipe{
		IsRecipe:     true,
		Metadata:     recipe.Metadata{Title: title},
		Ingredients:  []recipe.Ingredient{{Item: "bread"}},
		Instructions: []recipe.Instruction{{Step: 1, Description: "Toast the bread."}},
	}
	r.Normalize()
	return r
}

// TestFingerprint tests cache key derivation
func (suite *CacheTestSuite) TestFingerprint() {
	suite.Run("KnownURL_ShouldMatchDigest", func() {
		// Act
		fp := Fingerprint("https://example.com/recipes/chili")

		// Assert
		assert.Equal(suite.T(), "c1903bbca2dec0023862d6b55998634cba43e8975829752ba4dedddf8a134e1c", fp)
	})

	suite.Run("FragmentAndWhitespace_ShouldNotChangeKey", func() {
		// Arrange
		base := Fingerprint("https://example.com/recipes/chili")

		// Act & Assert
		assert.Equal(suite.T(), base, Fingerprint("https://example.com/recipes/chili#reviews"))
		assert.Equal(suite.T(), base, Fingerprint("  https://example.com/recipes/chili  "))
		assert.Equal(suite.T(), base, Fingerprint("\thttps://example.com/recipes/chili#comments-3\n"))
	})

	suite.Run("DistinctURLs_ShouldProduceDistinctKeys", func() {
		// Act & Assert
		assert.NotEqual(suite.T(),
			Fingerprint("https://example.com/recipes/chili"),
			Fingerprint("https://example.com/recipes/chilli"))
	})

	suite.Run("Shape_ShouldBe64LowercaseHex", func() {
		// Act
		fp := Fingerprint("https://example.com/anything?q=1")

		// Assert
		assert.Regexp(suite.T(), "^[0-9a-f]{64}$", fp)
	})
}

// TestRedisStore tests the Redis-backed cache store
func (suite *CacheTestSuite) TestRedisStore() {
	ctx := context.Background()

	suite.Run("StoreValid_ShouldRoundTripRecipes", func() {
		// Arrange
		store, _ := suite.newRedisStore(0)
		fp := Fingerprint("https://example.com/toast")
		original := cachedRecipe("Cinnamon Toast")

		// Act
		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/toast", []*recipe.Recipe{original}))
		entry, err := store.Lookup(ctx, fp)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), entry)
		assert.True(suite.T(), entry.Valid)
		assert.Equal(suite.T(), fp, entry.Fingerprint)
		assert.Equal(suite.T(), "https://example.com/toast", entry.SourceURL)
		assert.Equal(suite.T(), int64(1), entry.Version)
		assert.False(suite.T(), entry.CreatedAt.IsZero())

		parsed, err := recipe.ParseAll(entry.RecipeYAML)
		require.NoError(suite.T(), err)
		require.Len(suite.T(), parsed, 1)
		assert.Equal(suite.T(), original, parsed[0])
	})

	suite.Run("RepeatedWrites_ShouldAdvanceVersionAndKeepCreatedAt", func() {
		// Arrange
		store, _ := suite.newRedisStore(0)
		fp := Fingerprint("https://example.com/stew")

		// Act
		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/stew", []*recipe.Recipe{cachedRecipe("Stew")}))
		first, err := store.Lookup(ctx, fp)
		require.NoError(suite.T(), err)

		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/stew", []*recipe.Recipe{cachedRecipe("Better Stew")}))
		second, err := store.Lookup(ctx, fp)
		require.NoError(suite.T(), err)

		// Assert
		assert.Equal(suite.T(), int64(1), first.Version)
		assert.Equal(suite.T(), int64(2), second.Version)
		assert.True(suite.T(), second.CreatedAt.Equal(first.CreatedAt))
		assert.False(suite.T(), second.LastUpdatedAt.Before(first.LastUpdatedAt))
		assert.Contains(suite.T(), second.RecipeYAML, "Better Stew")
	})

	suite.Run("StoreInvalid_ShouldMemoizeVerdict", func() {
		// Arrange
		store, _ := suite.newRedisStore(0)
		fp := Fingerprint("https://example.com/not-a-recipe")

		// Act
		require.NoError(suite.T(), store.StoreInvalid(ctx, fp, "https://example.com/not-a-recipe"))
		entry, err := store.Lookup(ctx, fp)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), entry)
		assert.False(suite.T(), entry.Valid)
		assert.Empty(suite.T(), entry.RecipeYAML)
	})

	suite.Run("MissingEntry_ShouldBeMissNotError", func() {
		// Arrange
		store, _ := suite.newRedisStore(0)

		// Act
		entry, err := store.Lookup(ctx, Fingerprint("https://example.com/never-stored"))

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), entry)
	})

	suite.Run("CanceledContext_ShouldDegradeToMiss", func() {
		// Arrange
		store, _ := suite.newRedisStore(0)
		fp := Fingerprint("https://example.com/slow")
		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/slow", []*recipe.Recipe{cachedRecipe("Slow")}))

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		// Act
		entry, err := store.Lookup(canceled, fp)

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), entry)
	})

	suite.Run("StoreFailure_ShouldReturnError", func() {
		// Arrange
		store, mr := suite.newRedisStore(0)
		mr.SetError("LOADING Redis is loading the dataset in memory")

		// Act
		entry, err := store.Lookup(ctx, Fingerprint("https://example.com/any"))

		// Assert
		require.Error(suite.T(), err)
		assert.Nil(suite.T(), entry)
	})

	suite.Run("ExistsDeleteCount_ShouldTrackEntries", func() {
		// Arrange
		store, mr := suite.newRedisStore(0)
		urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
		for _, u := range urls {
			require.NoError(suite.T(), store.StoreValid(ctx, Fingerprint(u), u, []*recipe.Recipe{cachedRecipe("R")}))
		}
		// A foreign key outside the prefix must not be counted.
		require.NoError(suite.T(), mr.Set("sessions:abc", "tok"))

		// Act & Assert
		count, err := store.Count(ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(3), count)

		exists, err := store.Exists(ctx, Fingerprint(urls[0]))
		require.NoError(suite.T(), err)
		assert.True(suite.T(), exists)

		require.NoError(suite.T(), store.Delete(ctx, Fingerprint(urls[0])))

		exists, err = store.Exists(ctx, Fingerprint(urls[0]))
		require.NoError(suite.T(), err)
		assert.False(suite.T(), exists)

		count, err = store.Count(ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(2), count)
	})

	suite.Run("ConfiguredTTL_ShouldExpireEntries", func() {
		// Arrange
		store, mr := suite.newRedisStore(time.Minute)
		fp := Fingerprint("https://example.com/ephemeral")
		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/ephemeral", []*recipe.Recipe{cachedRecipe("Ephemeral")}))

		// Act
		mr.FastForward(2 * time.Minute)
		entry, err := store.Lookup(ctx, fp)

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), entry)
	})

	suite.Run("ZeroTTL_ShouldKeepForever", func() {
		// Arrange
		store, mr := suite.newRedisStore(0)
		fp := Fingerprint("https://example.com/evergreen")
		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/evergreen", []*recipe.Recipe{cachedRecipe("Evergreen")}))

		// Act
		mr.FastForward(240 * time.Hour)
		entry, err := store.Lookup(ctx, fp)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), entry)
		assert.True(suite.T(), entry.Valid)
	})
}

// TestMemoryStore tests the in-memory cache store
func (suite *CacheTestSuite) TestMemoryStore() {
	ctx := context.Background()

	suite.Run("StoreLookup_ShouldRoundTrip", func() {
		// Arrange
		store := suite.newMemoryStore(0)
		fp := Fingerprint("https://example.com/soup")

		// Act
		require.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/soup", []*recipe.Recipe{cachedRecipe("Soup")}))
		entry, err := store.Lookup(ctx, fp)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), entry)
		assert.True(suite.T(), entry.Valid)
		assert.Equal(suite.T(), int64(1), entry.Version)
		assert.Contains(suite.T(), entry.RecipeYAML, "Soup")
	})

	suite.Run("ConcurrentWrites_ShouldAllSucceed", func() {
		// Arrange
		store := suite.newMemoryStore(0)
		fp := Fingerprint("https://example.com/contended")

		// Act
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(suite.T(), store.StoreValid(ctx, fp, "https://example.com/contended", []*recipe.Recipe{cachedRecipe("Contended")}))
			}()
		}
		wg.Wait()

		entry, err := store.Lookup(ctx, fp)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), entry)
		assert.Equal(suite.T(), int64(20), entry.Version)
	})

	suite.Run("TTL_ShouldExpireEntries", func() {
		// Arrange
		store := suite.newMemoryStore(10 * time.Millisecond)
		fp := Fingerprint("https://example.com/brief")
		require.NoError(suite.T(), store.StoreInvalid(ctx, fp, "https://example.com/brief"))

		// Act
		time.Sleep(25 * time.Millisecond)
		entry, err := store.Lookup(ctx, fp)
		count, countErr := store.Count(ctx)

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), entry)
		require.NoError(suite.T(), countErr)
		assert.Zero(suite.T(), count)
	})

	suite.Run("DeleteAndCount_ShouldTrackEntries", func() {
		// Arrange
		store := suite.newMemoryStore(0)
		fpA := Fingerprint("https://example.com/a")
		fpB := Fingerprint("https://example.com/b")
		require.NoError(suite.T(), store.StoreInvalid(ctx, fpA, "https://example.com/a"))
		require.NoError(suite.T(), store.StoreInvalid(ctx, fpB, "https://example.com/b"))

		// Act
		require.NoError(suite.T(), store.Delete(ctx, fpA))

		// Assert
		count, err := store.Count(ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(1), count)

		exists, err := store.Exists(ctx, fpA)
		require.NoError(suite.T(), err)
		assert.False(suite.T(), exists)
	})
}

type flightOutcome struct {
	value  interface{}
	joined bool
	err    error
}

// TestSingleFlight tests concurrent build deduplication
func (suite *CacheTestSuite) TestSingleFlight() {
	suite.Run("ConcurrentCallers_ShouldBuildOnce", func() {
		// Arrange
		flight := suite.newFlight()
		var builds atomic.Int64
		release := make(chan struct{})

		// Act
		var wg sync.WaitGroup
		outcomes := make([]flightOutcome, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, joined, err := flight.Do(context.Background(), "fp-shared", func(ctx context.Context) (interface{}, error) {
					builds.Add(1)
					<-release
					return "built", nil
				})
				outcomes[i] = flightOutcome{v, joined, err}
			}(i)
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		// Assert
		assert.Equal(suite.T(), int64(1), builds.Load())
		joinedCount := 0
		for _, out := range outcomes {
			require.NoError(suite.T(), out.err)
			assert.Equal(suite.T(), "built", out.value)
			if out.joined {
				joinedCount++
			}
		}
		assert.Equal(suite.T(), 9, joinedCount)
	})

	suite.Run("SequentialCalls_ShouldEachBuild", func() {
		// Arrange
		flight := suite.newFlight()
		var builds atomic.Int64
		build := func(ctx context.Context) (interface{}, error) {
			return builds.Add(1), nil
		}

		// Act
		first, joinedFirst, err1 := flight.Do(context.Background(), "fp-seq", build)
		second, joinedSecond, err2 := flight.Do(context.Background(), "fp-seq", build)

		// Assert
		require.NoError(suite.T(), err1)
		require.NoError(suite.T(), err2)
		assert.Equal(suite.T(), int64(1), first)
		assert.Equal(suite.T(), int64(2), second)
		assert.False(suite.T(), joinedFirst)
		assert.False(suite.T(), joinedSecond)
	})

	suite.Run("WaitingCallerCanceled_ShouldGetContextError", func() {
		// Arrange
		flight := suite.newFlight()
		release := make(chan struct{})
		leaderDone := make(chan flightOutcome, 1)
		go func() {
			v, joined, err := flight.Do(context.Background(), "fp-cancel", func(ctx context.Context) (interface{}, error) {
				<-release
				return "late", nil
			})
			leaderDone <- flightOutcome{v, joined, err}
		}()
		time.Sleep(20 * time.Millisecond)

		followerCtx, cancelFollower := context.WithCancel(context.Background())
		followerDone := make(chan flightOutcome, 1)
		go func() {
			v, joined, err := flight.Do(followerCtx, "fp-cancel", func(ctx context.Context) (interface{}, error) {
				return "second build", nil
			})
			followerDone <- flightOutcome{v, joined, err}
		}()
		time.Sleep(20 * time.Millisecond)

		// Act
		cancelFollower()
		follower := <-followerDone
		close(release)
		leader := <-leaderDone

		// Assert
		assert.ErrorIs(suite.T(), follower.err, context.Canceled)
		require.NoError(suite.T(), leader.err)
		assert.Equal(suite.T(), "late", leader.value)
	})

	suite.Run("LeaderDisconnect_ShouldNotCancelBuildForFollowers", func() {
		// Arrange
		flight := suite.newFlight()
		release := make(chan struct{})

		leaderCtx, cancelLeader := context.WithCancel(context.Background())
		leaderDone := make(chan flightOutcome, 1)
		go func() {
			v, joined, err := flight.Do(leaderCtx, "fp-detach", func(ctx context.Context) (interface{}, error) {
				<-release
				// The build context must survive the leader's disconnect.
				return ctx.Err() == nil, nil
			})
			leaderDone <- flightOutcome{v, joined, err}
		}()
		time.Sleep(20 * time.Millisecond)

		followerDone := make(chan flightOutcome, 1)
		go func() {
			v, joined, err := flight.Do(context.Background(), "fp-detach", func(ctx context.Context) (interface{}, error) {
				return "second build", nil
			})
			followerDone <- flightOutcome{v, joined, err}
		}()
		time.Sleep(20 * time.Millisecond)

		// Act
		cancelLeader()
		leader := <-leaderDone
		close(release)
		follower := <-followerDone

		// Assert
		assert.ErrorIs(suite.T(), leader.err, context.Canceled)
		require.NoError(suite.T(), follower.err)
		assert.Equal(suite.T(), true, follower.value)
		assert.True(suite.T(), follower.joined)
	})
}

// Benchmark tests for cache performance
func BenchmarkFingerprint(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Fingerprint("https://example.com/recipes/a-fairly-long-recipe-url-path#fragment")
	}
}

func BenchmarkMemoryStoreLookup(b *testing.B) {
	store := NewMemoryStore(config.CacheConfig{Backend: "memory"}, monitoring.NewMetricsCollector(zap.NewNop()))
	ctx := context.Background()
	fp := Fingerprint("https://example.com/bench")
	if err := store.StoreValid(ctx, fp, "https://example.com/bench", []*recipe.Recipe{cachedRecipe("Bench")}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Lookup(ctx, fp); err != nil {
			b.Fatal(err)
		}
	}
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
