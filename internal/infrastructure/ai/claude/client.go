// Package claude provides the Anthropic Claude backend for recipe extraction
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

const providerName = "anthropic"

// Client implements outbound.GenerativeModel against the Anthropic API.
// Claude has no constrained decoding, so the response schema travels only
// in the prompt text and responses may arrive wrapped in markdown fences.
type Client struct {
	client  anthropic.Client
	cfg     config.LLMConfig
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewClient creates an Anthropic client from configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is not configured")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger.Info("Anthropic client initialized", zap.String("model", cfg.Model))

	return &Client{
		client:  anthropic.NewClient(opts...),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Name implements outbound.GenerativeModel.
func (c *Client) Name() string {
	return c.cfg.Model
}

// Close implements the provider shutdown hook. The Anthropic client holds
// no persistent connection, so there is nothing to release.
func (c *Client) Close() error {
	return nil
}

// Generate implements outbound.GenerativeModel.
func (c *Client) Generate(ctx context.Context, req outbound.GenerateRequest) (*outbound.GenerateResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(req.MaxOutputTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
		TopP:        anthropic.Float(float64(req.TopP)),
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.metrics.AIRequest(providerName, c.cfg.Model, "error", time.Since(start))
		c.logger.Error("Anthropic request failed",
			zap.String("model", c.cfg.Model),
			zap.Error(err),
		)
		return nil, errors.NewModelError(providerName, err)
	}

	text, err := responseText(resp)
	if err != nil {
		c.metrics.AIRequest(providerName, c.cfg.Model, "rejected", time.Since(start))
		return nil, errors.NewModelError(providerName, err)
	}
	c.metrics.AIRequest(providerName, c.cfg.Model, "success", time.Since(start))

	result := &outbound.GenerateResult{
		Text:         text,
		InputTokens:  int32(resp.Usage.InputTokens),
		OutputTokens: int32(resp.Usage.OutputTokens),
	}
	c.metrics.AITokens(providerName, c.cfg.Model, result.InputTokens, result.OutputTokens)

	c.logger.Debug("Anthropic request completed",
		zap.String("model", c.cfg.Model),
		zap.Int32("input_tokens", result.InputTokens),
		zap.Int32("output_tokens", result.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// responseText flattens the message content into plain text. Truncation
// and refusals become errors so callers cannot mistake a partial response
// for model output.
func responseText(resp *anthropic.Message) (string, error) {
	switch resp.StopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, "":
	case anthropic.StopReasonMaxTokens:
		return "", fmt.Errorf("response truncated at max output tokens")
	case anthropic.StopReasonRefusal:
		return "", fmt.Errorf("model refused the request")
	default:
		return "", fmt.Errorf("generation stopped: %s", resp.StopReason)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("response carried no text blocks")
	}
	return sb.String(), nil
}
