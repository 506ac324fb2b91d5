package cleanup

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
)

// structuredDataStrategy extracts the first JSON-LD recipe entity whose
// completeness score clears the configured threshold.
type structuredDataStrategy struct {
	minCompleteness int
}

func newStructuredDataStrategy(cfg config.StructuredConfig) *structuredDataStrategy {
	return &structuredDataStrategy{minCompleteness: cfg.MinCompleteness}
}

func (s *structuredDataStrategy) Name() string { return StrategyStructuredData }

func (s *structuredDataStrategy) Clean(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var out string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, entity := range recipeEntities(sel.Text()) {
			if scoreCompleteness(entity) < s.minCompleteness {
				continue
			}
			data, err := json.Marshal(entity)
			if err != nil {
				continue
			}
			out = string(data)
			return false
		}
		return true
	})

	return out, nil
}

// recipeEntities returns every entity in a JSON-LD block whose @type names
// Recipe. Blocks may hold a single entity, an array, or an @graph envelope.
func recipeEntities(block string) []map[string]interface{} {
	var root interface{}
	if err := json.Unmarshal([]byte(block), &root); err != nil {
		return nil
	}

	var out []map[string]interface{}
	collectRecipes(root, &out)
	return out
}

func collectRecipes(node interface{}, out *[]map[string]interface{}) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			collectRecipes(item, out)
		}
	case map[string]interface{}:
		if isRecipeType(v["@type"]) {
			*out = append(*out, v)
			return
		}
		if graph, ok := v["@graph"].([]interface{}); ok {
			for _, item := range graph {
				collectRecipes(item, out)
			}
		}
	}
}

// isRecipeType handles both "@type": "Recipe" and "@type": ["Recipe", ...].
func isRecipeType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Recipe"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

// scoreCompleteness rates a JSON-LD recipe entity from 0 to 100. The core
// properties weigh 20 each, supporting ones 10 each.
func scoreCompleteness(entity map[string]interface{}) int {
	score := 0
	for _, key := range []string{"name", "recipeIngredient", "recipeInstructions"} {
		if hasValue(entity, key) {
			score += 20
		}
	}
	for _, key := range []string{"totalTime", "recipeYield", "description", "image"} {
		if hasValue(entity, key) {
			score += 10
		}
	}
	return score
}

func hasValue(entity map[string]interface{}, key string) bool {
	switch v := entity[key].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []interface{}:
		return len(v) > 0
	default:
		return true
	}
}
