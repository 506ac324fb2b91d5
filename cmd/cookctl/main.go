// Package main provides cookctl, the operations CLI for the Cookbook
// extraction backend. It manages the shared recipe cache, inspects slug
// generation, and can run the extraction pipeline one-shot against a URL.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/cache"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/infrastructure/persistence/postgres"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cookctl",
	Short: "Operations CLI for the Cookbook extraction backend",
	Long: `cookctl manages the Cookbook extraction backend from the command line.

It connects to the same cache backend the API server uses (configured via
the same config file and COOKBOOK_* environment variables), so cache
commands operate on live server state.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(slugCmd)
	rootCmd.AddCommand(extractCmd)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds a console logger. Commands stay quiet unless --verbose.
func newLogger() (*zap.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Config{
		Level:       level,
		Format:      "console",
		Development: true,
	})
}

// openCacheStore connects to the configured cache backend. The memory
// backend lives inside the server process, so there is nothing for a
// separate CLI process to manage.
func openCacheStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (outbound.CacheStore, func(), error) {
	metrics := monitoring.NewMetricsCollector(log)

	switch cfg.Cache.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewRedisStore(client, cfg.Cache, log, metrics)
		return store, func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewCacheStore(pool, cfg.Cache, log, metrics)
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("cache backend %q keeps its state inside the server process; point cookctl at a redis or postgres backend", cfg.Cache.Backend)
	}
}
