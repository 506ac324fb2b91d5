// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/application/ai"
	"github.com/cookbookhq/backend/internal/application/extraction"
	"github.com/cookbookhq/backend/internal/infrastructure/ai/prompts"
	"github.com/cookbookhq/backend/internal/infrastructure/cache"
	"github.com/cookbookhq/backend/internal/infrastructure/cleanup"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/filestore"
	"github.com/cookbookhq/backend/internal/infrastructure/http/apiserver"
	"github.com/cookbookhq/backend/internal/infrastructure/httpclient"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/infrastructure/persistence/migrations"
	"github.com/cookbookhq/backend/internal/infrastructure/persistence/postgres"
	"github.com/cookbookhq/backend/internal/infrastructure/security"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/healthcheck"
	"github.com/cookbookhq/backend/pkg/logger"
)

// Module provides all dependency injection modules
var Module = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	DatabaseModule,
	CacheModule,
	SecurityModule,

	// Storage modules
	StorageModule,

	// Pipeline modules
	PipelineModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load("")
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
			File:        cfg.App.LogFile,
		})
	},
)

// MonitoringModule provides the Prometheus metrics collector
var MonitoringModule = fx.Provide(
	monitoring.NewMetricsCollector,
)

// DatabaseModule provides the PostgreSQL connection pool. The database
// backs the credential vault and the durable cache backend.
var DatabaseModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*pgxpool.Pool, error) {
		pool, err := postgres.NewPool(context.Background(), cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if cfg.Database.AutoMigrate {
			migrator, err := migrations.New(postgres.DSN(cfg.Database), log)
			if err != nil {
				pool.Close()
				return nil, err
			}
			upErr := migrator.Up()
			if cerr := migrator.Close(); upErr == nil {
				upErr = cerr
			}
			if upErr != nil {
				pool.Close()
				return nil, upErr
			}
		}

		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Close()
				return nil
			},
		})

		return pool, nil
	},
)

// CacheModule provides the recipe cache backend
var CacheModule = fx.Provide(
	NewRedisConnection,
	NewCacheStore,
)

// NewRedisConnection connects to Redis when the redis cache backend is
// selected. Other backends leave the client nil.
func NewRedisConnection(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (redis.UniversalClient, error) {
	if !cfg.Cache.Enabled || cfg.Cache.Backend != "redis" {
		return nil, nil
	}

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

// NewCacheStore selects the cache backend from configuration.
func NewCacheStore(
	cfg *config.Config,
	client redis.UniversalClient,
	pool *pgxpool.Pool,
	log *zap.Logger,
	metrics *monitoring.MetricsCollector,
) outbound.CacheStore {
	if !cfg.Cache.Enabled {
		log.Info("Recipe cache disabled")
		return cache.NewMemoryStore(cfg.Cache, metrics)
	}

	switch cfg.Cache.Backend {
	case "redis":
		log.Info("Using Redis recipe cache")
		return cache.NewRedisStore(client, cfg.Cache, log, metrics)
	case "postgres":
		log.Info("Using PostgreSQL recipe cache")
		return postgres.NewCacheStore(pool, cfg.Cache, log, metrics)
	default:
		log.Info("Using in-memory recipe cache")
		return cache.NewMemoryStore(cfg.Cache, metrics)
	}
}

// SecurityModule provides token verification and credential encryption
var SecurityModule = fx.Provide(
	NewTokenCipher,
	NewTokenVerifier,
)

// NewTokenCipher builds the cipher that seals stored storage credentials.
func NewTokenCipher(cfg *config.Config, log *zap.Logger) (outbound.Cipher, error) {
	key := cfg.Auth.TokenCipherKey
	if key == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("auth.token_cipher_key is required in production")
		}
		log.Warn("auth.token_cipher_key not set, using development key")
		key = "dev-only-credential-key" // Default for development
	}
	return security.NewTokenCipher(key)
}

// NewTokenVerifier selects the bearer-token verifier from configuration.
func NewTokenVerifier(cfg *config.Config, log *zap.Logger) (outbound.TokenVerifier, error) {
	switch cfg.Auth.Provider {
	case "clerk":
		return security.NewClerkVerifier(cfg.Auth, log), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Auth.Provider)
	}
}

// StorageModule provides the credential vault and the artifact file store
var StorageModule = fx.Provide(
	fx.Annotate(
		postgres.NewCredentialStore,
		fx.As(new(outbound.CredentialStore)),
	),

	func(
		cfg *config.Config,
		creds outbound.CredentialStore,
		cipher outbound.Cipher,
		log *zap.Logger,
		metrics *monitoring.MetricsCollector,
	) (outbound.FileStore, error) {
		return filestore.New(cfg.FileStore, creds, cipher, log, metrics)
	},
)

// PipelineModule provides the extraction pipeline stages and coordinator
var PipelineModule = fx.Provide(
	// Page fetcher
	fx.Annotate(
		func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *httpclient.Fetcher {
			return httpclient.NewFetcher(cfg.Fetch, log, metrics)
		},
		fx.As(new(outbound.Fetcher)),
	),

	// HTML cleanup cascade
	fx.Annotate(
		func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *cleanup.Engine {
			return cleanup.NewEngine(cfg.Cleanup, log, metrics)
		},
		fx.As(new(outbound.HTMLCleaner)),
	),

	// Prompt library
	func(cfg *config.Config, log *zap.Logger) (*prompts.Library, error) {
		return prompts.NewLibrary(cfg.LLM.PromptDir, log)
	},

	// Generative model client
	NewGenerativeModel,

	// Model orchestrator
	fx.Annotate(
		func(
			model outbound.GenerativeModel,
			library *prompts.Library,
			cfg *config.Config,
			log *zap.Logger,
			metrics *monitoring.MetricsCollector,
		) *ai.Orchestrator {
			return ai.NewOrchestrator(model, library, cfg.LLM, log, metrics)
		},
		fx.As(new(extraction.Transformer)),
	),

	// Single-flight group for concurrent extractions of the same source
	cache.NewFlight,

	// Extraction coordinator
	extraction.NewService,
)

// NewGenerativeModel builds the model client selected by llm.provider.
func NewGenerativeModel(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	metrics *monitoring.MetricsCollector,
) (outbound.GenerativeModel, error) {
	model, err := ai.NewModel(context.Background(), cfg.LLM, log, metrics)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if closer, ok := model.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	})

	return model, nil
}

// HTTPModule provides the health check and the API server
var HTTPModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
		return healthcheck.New(cfg.App.Version, log)
	},
	apiserver.New,
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterHealthCheckers,
	RegisterLifecycleHooks,
)

// RegisterHealthCheckers wires health checks for the backends in play.
func RegisterHealthCheckers(health *healthcheck.HealthCheck, pool *pgxpool.Pool, client redis.UniversalClient) {
	health.Register("database", healthcheck.NewDatabaseChecker(pool))
	if client != nil {
		health.Register("redis", healthcheck.NewRedisChecker(client))
	}
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	server *apiserver.Server,
	metrics *monitoring.MetricsCollector,
) {
	var stopUptime context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting Cookbook backend",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)

			uptimeCtx, cancel := context.WithCancel(context.Background())
			stopUptime = cancel
			go metrics.StartUptimeCounter(uptimeCtx)

			// Start HTTP server
			go func() {
				if err := server.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
					log.Fatal("Failed to start HTTP server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down Cookbook backend")

			if stopUptime != nil {
				stopUptime()
			}

			// Shutdown HTTP server
			if err := server.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			// Flush logs
			_ = log.Sync()

			return nil
		},
	})
}
