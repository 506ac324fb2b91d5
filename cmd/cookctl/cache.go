package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cookbookhq/backend/internal/infrastructure/cache"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared extraction cache",
	Long: `Manage the fingerprint-keyed extraction cache.

Entries are addressed either by source URL (canonicalized and hashed the
same way the server does it) or by a raw fingerprint. Arguments containing
"://" are treated as URLs, anything else as a fingerprint.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and backend",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, cfg, cleanup := mustOpenStore(ctx)
		defer cleanup()

		count, err := store.Count(ctx)
		if err != nil {
			fatal(err)
		}

		fmt.Printf("Backend:    %s\n", cfg.Cache.Backend)
		fmt.Printf("Key prefix: %s\n", cfg.Cache.KeyPrefix)
		fmt.Printf("Entries:    %d\n", count)
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <url|fingerprint>",
	Short: "Show one cache entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, _, cleanup := mustOpenStore(ctx)
		defer cleanup()

		fingerprint := resolveFingerprint(args[0])
		entry, err := store.Lookup(ctx, fingerprint)
		if err != nil {
			fatal(err)
		}
		if entry == nil {
			fmt.Fprintf(os.Stderr, "No cache entry for %s\n", fingerprint)
			os.Exit(1)
		}

		fmt.Printf("Fingerprint:  %s\n", entry.Fingerprint)
		fmt.Printf("Source URL:   %s\n", entry.SourceURL)
		fmt.Printf("Valid:        %t\n", entry.Valid)
		fmt.Printf("Version:      %d\n", entry.Version)
		fmt.Printf("Created:      %s\n", entry.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Last updated: %s\n", entry.LastUpdatedAt.Format(time.RFC3339))
		if entry.Valid {
			fmt.Println("---")
			fmt.Println(entry.RecipeYAML)
		} else {
			fmt.Println("(memoized not-a-recipe verdict)")
		}
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <url|fingerprint>",
	Short: "Delete one cache entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, _, cleanup := mustOpenStore(ctx)
		defer cleanup()

		fingerprint := resolveFingerprint(args[0])
		if err := store.Delete(ctx, fingerprint); err != nil {
			fatal(err)
		}
		fmt.Printf("Deleted %s\n", fingerprint)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every cache entry",
	Long: `Remove every entry from the extraction cache.

Every subsequent request will re-run the full pipeline, including a model
call, until the cache refills. Asks for confirmation unless --yes is set.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")

		store, _, cleanup := mustOpenStore(ctx)
		defer cleanup()

		count, err := store.Count(ctx)
		if err != nil {
			fatal(err)
		}
		if count == 0 {
			fmt.Println("Cache is already empty")
			return
		}

		if !yes && !confirm(fmt.Sprintf("Purge %d entries? [y/N]: ", count)) {
			fmt.Println("Aborted")
			return
		}

		removed, err := store.Purge(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Purged %d entries\n", removed)
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cachePurgeCmd)

	cachePurgeCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}

func mustOpenStore(ctx context.Context) (outbound.CacheStore, *config.Config, func()) {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	log, err := newLogger()
	if err != nil {
		fatal(err)
	}
	store, cleanup, err := openCacheStore(ctx, cfg, log)
	if err != nil {
		fatal(err)
	}
	return store, cfg, cleanup
}

func resolveFingerprint(arg string) string {
	if strings.Contains(arg, "://") {
		return cache.Fingerprint(arg)
	}
	return arg
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
