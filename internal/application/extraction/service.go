// Package extraction implements the recipe-extraction use case: it takes
// one request from HTML acquisition through cleanup, cache lookup, model
// transformation, caching, and artifact persistence. The miss path runs
// under single-flight so concurrent requests for the same source share one
// fetch, one cleanup, and one model call; artifact persistence always runs
// per caller, so every requester gets a copy in their own storage.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/application/ai"
	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/cache"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/filestore"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/inbound"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// Transformer drives the model stage of the pipeline. *ai.Orchestrator is
// the production implementation.
type Transformer interface {
	Transform(ctx context.Context, cleanedHTML, sourceURL string) (*ai.Response, error)
}

// Service coordinates one extraction request end to end.
type Service struct {
	fetcher     outbound.Fetcher
	cleaner     outbound.HTMLCleaner
	transformer Transformer
	cacheStore  outbound.CacheStore
	fileStore   outbound.FileStore
	flight      *cache.Flight
	cfg         *config.Config
	logger      *zap.Logger
	metrics     *monitoring.MetricsCollector
}

// NewService creates the extraction coordinator.
func NewService(
	fetcher outbound.Fetcher,
	cleaner outbound.HTMLCleaner,
	transformer Transformer,
	cacheStore outbound.CacheStore,
	fileStore outbound.FileStore,
	flight *cache.Flight,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *monitoring.MetricsCollector,
) inbound.ExtractionService {
	return &Service{
		fetcher:     fetcher,
		cleaner:     cleaner,
		transformer: transformer,
		cacheStore:  cacheStore,
		fileStore:   fileStore,
		flight:      flight,
		cfg:         cfg,
		logger:      logger.Named("extraction-service"),
		metrics:     metrics,
	}
}

// ExtractRecipe runs the full pipeline for one request.
func (s *Service) ExtractRecipe(ctx context.Context, cmd inbound.ExtractRecipeCommand) (*inbound.ExtractionResult, error) {
	start := time.Now()
	s.logger.Info("Extracting recipe",
		zap.String("url", cmd.URL),
		zap.String("user_id", cmd.UserID))

	inlineHTML, err := s.acquireInline(cmd)
	if err != nil {
		s.failed(err, time.Since(start))
		return nil, err
	}
	if inlineHTML == "" && strings.TrimSpace(cmd.URL) == "" {
		err := errors.NewBadRequestError("either url or html must be provided")
		s.failed(err, time.Since(start))
		return nil, err
	}

	fingerprint := cache.Fingerprint(cmd.URL)
	if strings.TrimSpace(cmd.URL) == "" {
		fingerprint = cache.FingerprintContent(inlineHTML)
	}

	if s.cfg.Cache.Enabled {
		recipes, verdict := s.lookupCache(ctx, fingerprint)
		switch verdict {
		case cacheInvalid:
			s.metrics.ExtractionCompleted("not_recipe", time.Since(start))
			s.logger.Info("Cached verdict: not a recipe", zap.String("url", cmd.URL))
			return s.notRecipeResult(cmd), nil
		case cacheValid:
			return s.respond(ctx, cmd, recipes, start, "cache_hit"), nil
		}
	}

	outcome, err := s.runFlight(ctx, fingerprint, cmd, inlineHTML)
	if err != nil {
		s.failed(err, time.Since(start))
		return nil, err
	}
	if !outcome.isRecipe {
		s.metrics.ExtractionCompleted("not_recipe", time.Since(start))
		s.logger.Info("Page is not a recipe", zap.String("url", cmd.URL))
		return s.notRecipeResult(cmd), nil
	}
	return s.respond(ctx, cmd, outcome.recipes, start, "success"), nil
}

// cacheVerdict classifies a cache lookup for the coordinator.
type cacheVerdict int

const (
	cacheMiss cacheVerdict = iota
	cacheValid
	cacheInvalid
)

// lookupCache resolves a fingerprint against the extraction cache. An
// unreachable backend, a corrupt entry, and an entry written under an
// incompatible schema major all degrade to a miss so the pipeline rebuilds;
// cache trouble must never fail a request.
func (s *Service) lookupCache(ctx context.Context, fingerprint string) ([]*recipe.Recipe, cacheVerdict) {
	entry, err := s.cacheStore.Lookup(ctx, fingerprint)
	if err != nil {
		s.logger.Warn("Cache lookup failed, continuing without cache", zap.Error(err))
		return nil, cacheMiss
	}
	if entry == nil {
		return nil, cacheMiss
	}
	if !entry.Valid {
		return nil, cacheInvalid
	}

	recipes, err := recipe.ParseAll(entry.RecipeYAML)
	if err != nil || len(recipes) == 0 {
		s.logger.Warn("Cached entry is unreadable, rebuilding",
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return nil, cacheMiss
	}
	if !schemaCompatible(recipes) {
		s.logger.Info("Cached entry predates current schema, rebuilding",
			zap.String("fingerprint", fingerprint),
			zap.String("cached_version", recipes[0].SchemaVersion))
		return nil, cacheMiss
	}
	return recipes, cacheValid
}

// buildOutcome is the shared result of one single-flight pipeline run.
type buildOutcome struct {
	recipes  []*recipe.Recipe
	isRecipe bool
}

func (s *Service) runFlight(ctx context.Context, fingerprint string, cmd inbound.ExtractRecipeCommand, inlineHTML string) (*buildOutcome, error) {
	result, joined, err := s.flight.Do(ctx, fingerprint, func(ctx context.Context) (interface{}, error) {
		return s.runPipeline(ctx, fingerprint, cmd, inlineHTML)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		s.logger.Debug("Joined in-flight extraction", zap.String("fingerprint", fingerprint))
	}
	return result.(*buildOutcome), nil
}

// runPipeline executes fetch, cleanup, transformation, and the cache write
// for one fingerprint. Fetch and model failures propagate to every caller
// waiting on the flight; cache write failures are absorbed.
func (s *Service) runPipeline(ctx context.Context, fingerprint string, cmd inbound.ExtractRecipeCommand, inlineHTML string) (*buildOutcome, error) {
	html := inlineHTML
	if html == "" {
		fetched, err := s.fetcher.Fetch(ctx, cmd.URL)
		if err != nil {
			return nil, err
		}
		html = fetched.HTML
	}

	if s.cfg.Cleanup.Enabled {
		html = s.cleaner.Clean(ctx, html).CleanedHTML
	}

	response, err := s.transformer.Transform(ctx, html, cmd.URL)
	if err != nil {
		return nil, err
	}

	if response.Kind == ai.KindNotRecipe {
		s.storeInvalid(ctx, fingerprint, cmd.URL)
		return &buildOutcome{}, nil
	}

	s.storeValid(ctx, fingerprint, cmd.URL, response.Recipes)
	return &buildOutcome{recipes: response.Recipes, isRecipe: true}, nil
}

// failed records one failed request under its stable error code.
func (s *Service) failed(err error, elapsed time.Duration) {
	s.metrics.ExtractionCompleted("error", elapsed)
	s.metrics.RecordError("extraction", string(errors.GetCode(err)))
}

func (s *Service) storeValid(ctx context.Context, fingerprint, sourceURL string, recipes []*recipe.Recipe) {
	if !s.cfg.Cache.Enabled {
		return
	}
	if err := s.cacheStore.StoreValid(ctx, fingerprint, sourceURL, recipes); err != nil {
		s.logger.Warn("Cache write failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

func (s *Service) storeInvalid(ctx context.Context, fingerprint, sourceURL string) {
	if !s.cfg.Cache.Enabled {
		return
	}
	if err := s.cacheStore.StoreInvalid(ctx, fingerprint, sourceURL); err != nil {
		s.logger.Warn("Cache write failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

// respond persists artifacts for the caller and assembles the result.
func (s *Service) respond(ctx context.Context, cmd inbound.ExtractRecipeCommand, recipes []*recipe.Recipe, start time.Time, outcome string) *inbound.ExtractionResult {
	ref, warning := s.persist(ctx, cmd, recipes)

	title := recipes[0].Metadata.Title
	if title == "" {
		title = cmd.Title
	}

	s.metrics.ExtractionCompleted(outcome, time.Since(start))
	s.logger.Info("Extraction completed",
		zap.String("outcome", outcome),
		zap.String("url", cmd.URL),
		zap.Int("recipes", len(recipes)),
		zap.Duration("duration", time.Since(start)))

	return &inbound.ExtractionResult{
		URL:            cmd.URL,
		Title:          title,
		IsRecipe:       true,
		StorageRef:     ref,
		StorageWarning: warning,
		Recipes:        recipes,
	}
}

// persist writes one YAML artifact per recipe to the caller's file store.
// Storage failure never fails the request: the result carries a warning
// while the cache entry stays intact, so a retry can persist without
// another model call.
func (s *Service) persist(ctx context.Context, cmd inbound.ExtractRecipeCommand, recipes []*recipe.Recipe) (ref, warning string) {
	identity := outbound.Identity{UserID: cmd.UserID, Email: cmd.UserEmail}

	folder, err := s.fileStore.GetOrCreateFolder(ctx, identity, s.cfg.FileStore.DefaultFolderName)
	if err != nil {
		s.logger.Warn("Artifact folder unavailable",
			zap.String("user_id", cmd.UserID),
			zap.Error(err))
		return "", fmt.Sprintf("recipe extracted but not stored: %v", err)
	}

	for _, r := range recipes {
		text, err := recipe.Serialize(r)
		if err != nil {
			s.logger.Error("Recipe serialization failed",
				zap.String("title", r.Metadata.Title),
				zap.Error(err))
			warning = fmt.Sprintf("recipe extracted but not stored: %v", err)
			continue
		}

		filename := filestore.Slugify(r.Metadata.Title) + ".yaml"
		fileRef, err := s.fileStore.Put(ctx, identity, folder, filename, []byte(text), "application/yaml")
		if err != nil {
			s.logger.Warn("Artifact write failed",
				zap.String("user_id", cmd.UserID),
				zap.String("filename", filename),
				zap.Error(err))
			warning = fmt.Sprintf("recipe extracted but not stored: %v", err)
			continue
		}
		if ref == "" {
			ref = string(fileRef)
		}
	}
	return ref, warning
}

func (s *Service) notRecipeResult(cmd inbound.ExtractRecipeCommand) *inbound.ExtractionResult {
	return &inbound.ExtractionResult{URL: cmd.URL, Title: cmd.Title, IsRecipe: false}
}
