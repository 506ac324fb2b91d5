package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cookbookhq/backend/internal/application/ai"
	"github.com/cookbookhq/backend/internal/application/extraction"
	"github.com/cookbookhq/backend/internal/infrastructure/ai/prompts"
	"github.com/cookbookhq/backend/internal/infrastructure/cache"
	"github.com/cookbookhq/backend/internal/infrastructure/cleanup"
	"github.com/cookbookhq/backend/internal/infrastructure/filestore"
	"github.com/cookbookhq/backend/internal/infrastructure/httpclient"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/inbound"
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Run the extraction pipeline once against a URL",
	Long: `Run the full extraction pipeline (fetch, cleanup, model transform,
validation) against one URL and write the resulting YAML recipes to the
local filestore, regardless of the configured provider.

The shared cache is bypassed so a one-shot run never pollutes server
state. Requires llm.api_key (COOKBOOK_LLM_API_KEY) for the model call.

Examples:
  cookctl extract https://example.com/best-cookies
  cookctl extract --out ./recipes https://example.com/best-cookies`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		outDir, _ := cmd.Flags().GetString("out")
		title, _ := cmd.Flags().GetString("title")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			fatal(err)
		}
		log, err := newLogger()
		if err != nil {
			fatal(err)
		}

		// One-shot run: local artifacts, no shared cache.
		runCfg := *cfg
		runCfg.Cache.Enabled = false
		runCfg.FileStore.Provider = "local"
		if outDir != "" {
			runCfg.FileStore.LocalPath = outDir
		}

		metrics := monitoring.NewMetricsCollector(log)

		library, err := prompts.NewLibrary(runCfg.LLM.PromptDir, log)
		if err != nil {
			fatal(err)
		}
		model, err := ai.NewModel(ctx, runCfg.LLM, log, metrics)
		if err != nil {
			fatal(err)
		}
		defer func() {
			if closer, ok := model.(io.Closer); ok {
				_ = closer.Close()
			}
		}()

		fileStore, err := filestore.NewLocalStore(runCfg.FileStore, log, metrics)
		if err != nil {
			fatal(err)
		}

		service := extraction.NewService(
			httpclient.NewFetcher(runCfg.Fetch, log, metrics),
			cleanup.NewEngine(runCfg.Cleanup, log, metrics),
			ai.NewOrchestrator(model, library, runCfg.LLM, log, metrics),
			cache.NewMemoryStore(runCfg.Cache, metrics),
			fileStore,
			cache.NewFlight(log, metrics),
			&runCfg,
			log,
			metrics,
		)

		result, err := service.ExtractRecipe(ctx, inbound.ExtractRecipeCommand{
			UserID: "local",
			URL:    args[0],
			Title:  title,
		})
		if err != nil {
			fatal(err)
		}

		if !result.IsRecipe {
			fmt.Println("Not a recipe page")
			return
		}

		fmt.Printf("Extracted %d recipe(s) from %s\n", len(result.Recipes), result.URL)
		for _, r := range result.Recipes {
			fmt.Printf("  %s\n", r.Metadata.Title)
		}
		if result.StorageRef != "" {
			fmt.Printf("Stored under %s\n", result.StorageRef)
		}
		if result.StorageWarning != "" {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", result.StorageWarning)
		}
	},
}

func init() {
	extractCmd.Flags().String("out", "", "Directory for the local filestore (default: filestore.local_path)")
	extractCmd.Flags().String("title", "", "Fallback title when the page supplies none")
}
