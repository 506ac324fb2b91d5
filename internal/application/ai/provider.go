package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/ai/claude"
	"github.com/cookbookhq/backend/internal/infrastructure/ai/gemini"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// NewModel creates the generative model backend selected by llm.provider.
func NewModel(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) (outbound.GenerativeModel, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewClient(ctx, cfg, logger, metrics)
	case "anthropic":
		return claude.NewClient(cfg, logger, metrics)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
