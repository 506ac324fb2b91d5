// Package cleanup reduces raw recipe-page HTML to the smallest fragment that
// still carries the recipe content. Strategies run as an ordered cascade and
// the first non-empty result wins; a failing strategy is skipped, never fatal.
package cleanup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// Strategy names reported in cleanup results.
const (
	StrategyStructuredData = "STRUCTURED_DATA"
	StrategySectionBased   = "SECTION_BASED"
	StrategyContentFilter  = "CONTENT_FILTER"
	StrategyFallback       = "FALLBACK"
	StrategyDisabled       = "DISABLED"
)

// strategy is one pure pass over an input document. A strategy returns an
// empty string when it cannot produce a useful fragment.
type strategy interface {
	Name() string
	Clean(html string) (string, error)
}

// Engine runs the configured strategy cascade.
type Engine struct {
	cfg        config.CleanupConfig
	strategies []strategy
	logger     *zap.Logger
	metrics    *monitoring.MetricsCollector
}

// NewEngine builds the cascade in priority order from cfg.
func NewEngine(cfg config.CleanupConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Engine {
	var strategies []strategy
	if cfg.Structured.Enabled {
		strategies = append(strategies, newStructuredDataStrategy(cfg.Structured))
	}
	if cfg.Section.Enabled {
		strategies = append(strategies, newSectionStrategy(cfg.Section, cfg.ContentFilter.MinOutputSize))
	}
	strategies = append(strategies, newContentFilterStrategy(cfg.ContentFilter))

	return &Engine{
		cfg:        cfg,
		strategies: strategies,
		logger:     logger,
		metrics:    metrics,
	}
}

// Clean implements outbound.HTMLCleaner.
func (e *Engine) Clean(ctx context.Context, html string) *outbound.CleanupResult {
	originalSize := len(html)

	if !e.cfg.Enabled {
		return e.result(html, originalSize, StrategyDisabled, "cleanup disabled")
	}

	for _, s := range e.strategies {
		if ctx.Err() != nil {
			break
		}

		cleaned, err := e.run(s, html)
		if err != nil {
			e.metrics.CleanupError(s.Name())
			e.logger.Warn("cleanup strategy failed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if cleaned == "" {
			continue
		}
		if len(cleaned) > originalSize {
			// A strategy must never grow the document.
			e.logger.Warn("cleanup strategy grew the document, skipping",
				zap.String("strategy", s.Name()),
				zap.Int("original_size", originalSize),
				zap.Int("cleaned_size", len(cleaned)),
			)
			continue
		}

		return e.result(cleaned, originalSize, s.Name(), "")
	}

	return e.result(html, originalSize, StrategyFallback, e.fallbackMessage(originalSize))
}

// run executes one strategy, converting panics into errors so a broken
// document can never take down the cascade.
func (e *Engine) run(s strategy, html string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Clean(html)
}

func (e *Engine) result(cleaned string, originalSize int, strategyName, message string) *outbound.CleanupResult {
	res := &outbound.CleanupResult{
		CleanedHTML:  cleaned,
		OriginalSize: originalSize,
		CleanedSize:  len(cleaned),
		StrategyUsed: strategyName,
		Message:      message,
	}
	if originalSize > 0 {
		res.ReductionRatio = 1 - float64(res.CleanedSize)/float64(originalSize)
	}

	e.metrics.CleanupRun(strategyName, res.ReductionRatio, res.CleanedSize)
	e.logger.Debug("cleanup finished",
		zap.String("strategy", strategyName),
		zap.Int("original_size", res.OriginalSize),
		zap.Int("cleaned_size", res.CleanedSize),
		zap.Float64("reduction_ratio", res.ReductionRatio),
	)
	return res
}

func (e *Engine) fallbackMessage(originalSize int) string {
	if originalSize < e.cfg.Fallback.MinSafeSize {
		return fmt.Sprintf("input below safe minimum (%d < %d bytes), returned unchanged", originalSize, e.cfg.Fallback.MinSafeSize)
	}
	return "no strategy produced output, returned unchanged"
}
