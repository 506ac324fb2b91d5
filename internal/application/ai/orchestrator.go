// Package ai drives recipe extraction through a generative model: prompt
// assembly, rate limiting, response decoding, and the validation retry loop.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/ai/prompts"
	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// Kind discriminates transformation outcomes.
type Kind string

// Transformation outcome kinds.
const (
	KindRecipe    Kind = "recipe"
	KindRecipes   Kind = "recipes"
	KindNotRecipe Kind = "not_recipe"
)

// Response is the outcome of one transformation. RawText preserves the
// model's final output for debugging regardless of outcome.
type Response struct {
	Kind     Kind
	Recipes  []*recipe.Recipe
	RawText  string
	Attempts int
}

// Recipe returns the first extracted recipe, or nil for KindNotRecipe.
func (r *Response) Recipe() *recipe.Recipe {
	if len(r.Recipes) == 0 {
		return nil
	}
	return r.Recipes[0]
}

// envelope is the wrapper shape every model response must use.
type envelope struct {
	IsRecipe bool             `json:"is_recipe"`
	Recipes  []*recipe.Recipe `json:"recipes"`
}

// feedbackViolationCap bounds how many violations are echoed back to the
// model on retry so a pathological response cannot blow up the next prompt.
const feedbackViolationCap = 20

// Orchestrator turns cleaned page HTML into validated recipes. Model
// failures surface immediately; only schema validation failures consume
// the retry budget.
type Orchestrator struct {
	model   outbound.GenerativeModel
	library *prompts.Library
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewOrchestrator creates the transformation orchestrator.
func NewOrchestrator(model outbound.GenerativeModel, library *prompts.Library, cfg config.LLMConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) *Orchestrator {
	// The burst is the full per-minute allowance; the steady rate then
	// holds the average, matching how provider quotas are metered.
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
		burst = cfg.RequestsPerMin
	}

	return &Orchestrator{
		model:   model,
		library: library,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("ai-orchestrator"),
		metrics: metrics,
	}
}

// Transform runs cleaned page HTML through the model and decodes the
// outcome. Transport, safety, and truncation failures are returned as
// model errors without retrying; output that parses but fails schema
// validation is retried with feedback until the retry budget is spent.
func (o *Orchestrator) Transform(ctx context.Context, cleanedHTML, sourceURL string) (*Response, error) {
	attempts := o.cfg.RetryBudget + 1
	if attempts < 1 {
		attempts = 1
	}

	var (
		feedback       string
		lastViolations recipe.Violations
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := o.generate(ctx, o.buildPrompt(cleanedHTML, sourceURL, feedback))
		if err != nil {
			return nil, err
		}

		env, decodeErr := decodeEnvelope(result.Text)
		if decodeErr != nil {
			lastViolations = recipe.Violations{{Path: "$", Reason: decodeErr.Error()}}
		} else if !env.IsRecipe {
			return &Response{Kind: KindNotRecipe, RawText: result.Text, Attempts: attempt}, nil
		} else {
			lastViolations = prepare(env.Recipes, sourceURL)
			if len(lastViolations) == 0 {
				kind := KindRecipe
				if len(env.Recipes) > 1 {
					kind = KindRecipes
				}
				return &Response{
					Kind:     kind,
					Recipes:  env.Recipes,
					RawText:  result.Text,
					Attempts: attempt,
				}, nil
			}
		}

		o.logger.Warn("Model output failed validation",
			zap.String("model", o.model.Name()),
			zap.String("source_url", sourceURL),
			zap.Int("attempt", attempt),
			zap.Int("violations", len(lastViolations)),
			zap.String("raw_text", truncate(result.Text, 2048)),
		)

		if attempt < attempts {
			o.metrics.AIRetry()
			feedback = feedbackFromViolations(lastViolations)
		}
	}

	return nil, errors.NewTransformationFailedError(lastViolations)
}

// generate performs one rate-limited, deadline-bounded model call.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (*outbound.GenerateResult, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	return o.model.Generate(ctx, outbound.GenerateRequest{
		System:          o.library.System(),
		Prompt:          prompt,
		Temperature:     o.cfg.Temperature,
		TopP:            o.cfg.TopP,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
		ResponseSchema:  o.library.Schema(),
	})
}

// buildPrompt assembles the user message: the exemplar, the response
// schema, the page, and any validation feedback from the prior attempt.
func (o *Orchestrator) buildPrompt(cleanedHTML, sourceURL, feedback string) string {
	var sb strings.Builder

	sb.WriteString("Example response:\n")
	sb.WriteString(o.library.Exemplar())
	sb.WriteString("\n\nResponse schema:\n")
	sb.Write(o.library.Schema())
	sb.WriteString("\n\nPage URL: ")
	sb.WriteString(sourceURL)
	sb.WriteString("\nPage HTML:\n")
	sb.WriteString(cleanedHTML)

	if feedback != "" {
		sb.WriteString("\n\nYour previous response violated the schema:\n")
		sb.WriteString(feedback)
		sb.WriteString("Produce a corrected response.")
	}

	return sb.String()
}

// decodeEnvelope parses model output into the response envelope. Markdown
// fences and surrounding prose are tolerated as long as one JSON object
// is present.
func decodeEnvelope(text string) (*envelope, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %v", err)
	}
	return &env, nil
}

// extractJSON returns the outermost JSON object in text. Providers without
// constrained decoding occasionally wrap output in fences or prepend a
// sentence.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// prepare normalizes and validates every extracted recipe, returning the
// combined violation list. Entries are marked as recipes and inherit the
// source URL when the model omitted it.
func prepare(recipes []*recipe.Recipe, sourceURL string) recipe.Violations {
	if len(recipes) == 0 {
		return recipe.Violations{{Path: "recipes", Reason: "must not be empty when is_recipe is true"}}
	}

	var out recipe.Violations
	for i, rec := range recipes {
		if rec == nil {
			out = append(out, recipe.Violation{
				Path:   fmt.Sprintf("recipes[%d]", i),
				Reason: "must be an object",
			})
			continue
		}

		rec.IsRecipe = true
		if rec.Metadata.Source == nil && sourceURL != "" {
			src := sourceURL
			rec.Metadata.Source = &src
		}
		rec.Normalize()

		for _, v := range rec.Validate() {
			if len(recipes) > 1 {
				v.Path = fmt.Sprintf("recipes[%d].%s", i, v.Path)
			}
			out = append(out, v)
		}
	}
	return out
}

// feedbackFromViolations renders violations as a bullet list for the
// retry prompt.
func feedbackFromViolations(violations recipe.Violations) string {
	var sb strings.Builder
	for i, v := range violations {
		if i == feedbackViolationCap {
			fmt.Fprintf(&sb, "- and %d more\n", len(violations)-i)
			break
		}
		fmt.Fprintf(&sb, "- %s: %s\n", v.Path, v.Reason)
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
