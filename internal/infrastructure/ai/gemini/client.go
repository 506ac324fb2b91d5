// Package gemini provides the Google Gemini backend for recipe extraction
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

const providerName = "gemini"

// Client implements outbound.GenerativeModel against the Gemini API.
type Client struct {
	client  *genai.Client
	cfg     config.LLMConfig
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewClient creates a Gemini client from configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized", zap.String("model", cfg.Model))

	return &Client{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Name implements outbound.GenerativeModel.
func (c *Client) Name() string {
	return c.cfg.Model
}

// Close releases the underlying API connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate implements outbound.GenerativeModel. The response schema is
// passed to the API for constrained decoding, so well-behaved responses
// arrive as schema-conforming JSON without any fence stripping.
func (c *Client) Generate(ctx context.Context, req outbound.GenerateRequest) (*outbound.GenerateResult, error) {
	model := c.client.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	model.SetTemperature(req.Temperature)
	model.SetTopP(req.TopP)
	model.SetMaxOutputTokens(req.MaxOutputTokens)
	model.ResponseMIMEType = "application/json"

	if len(req.ResponseSchema) > 0 {
		schema, err := schemaFromJSON(req.ResponseSchema)
		if err != nil {
			return nil, errors.NewInternalError("invalid response schema: " + err.Error())
		}
		model.ResponseSchema = schema
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		c.metrics.AIRequest(providerName, c.cfg.Model, "error", time.Since(start))
		c.logger.Error("Gemini request failed",
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

	result := &outbound.GenerateResult{Text: text}
	if usage := resp.UsageMetadata; usage != nil {
		result.InputTokens = usage.PromptTokenCount
		result.OutputTokens = usage.CandidatesTokenCount
		c.metrics.AITokens(providerName, c.cfg.Model, usage.PromptTokenCount, usage.CandidatesTokenCount)
	}

	c.logger.Debug("Gemini request completed",
		zap.String("model", c.cfg.Model),
		zap.Int32("input_tokens", result.InputTokens),
		zap.Int32("output_tokens", result.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// responseText flattens the first candidate into plain text. Blocked
// prompts and non-STOP finish reasons become errors so callers cannot
// mistake a filtered or truncated response for model output.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("response contained no candidates")
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified:
	case genai.FinishReasonMaxTokens:
		return "", fmt.Errorf("response truncated at max output tokens")
	default:
		return "", fmt.Errorf("generation stopped: %s", candidate.FinishReason)
	}

	if candidate.Content == nil {
		return "", fmt.Errorf("candidate carried no content")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("candidate carried no text parts")
	}
	return sb.String(), nil
}
