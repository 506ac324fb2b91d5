// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/cookbookhq/backend/internal/domain/recipe"
)

// ExtractionService defines the recipe-extraction use case
// This is the primary port that HTTP handlers and other driving adapters use
type ExtractionService interface {
	// ExtractRecipe runs the full pipeline for one request: HTML
	// acquisition, cleanup, cache lookup, model transformation, caching,
	// and artifact persistence.
	ExtractRecipe(ctx context.Context, cmd ExtractRecipeCommand) (*ExtractionResult, error)
}

// ExtractRecipeCommand contains data for one recipe-creation request
type ExtractRecipeCommand struct {
	UserID      string
	UserEmail   string
	URL         string
	Title       string
	HTML        string
	Compression string // "" means auto-detect Base64+gzip, "none" means literal
}

// ExtractionResult is the user-facing outcome of a request
type ExtractionResult struct {
	URL            string
	Title          string
	IsRecipe       bool
	StorageRef     string
	StorageWarning string
	Recipes        []*recipe.Recipe
}
