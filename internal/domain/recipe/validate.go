package recipe

import (
	"fmt"
	"regexp"
	"strings"
)

// Violation records a single schema rule failure at a field path.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (v Violation) String() string { return v.Path + ": " + v.Reason }

// Violations aggregates every rule failure found in one validation pass.
// It implements error so callers can surface the full list at once.
type Violations []Violation

// Error implements error.
func (v Violations) Error() string {
	if len(v) == 0 {
		return "recipe is valid"
	}
	parts := make([]string, len(v))
	for i, viol := range v {
		parts[i] = viol.String()
	}
	return "invalid recipe: " + strings.Join(parts, "; ")
}

var (
	versionPattern       = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	durationPattern      = regexp.MustCompile(`(?i)^(\d+d\s*)?(\d+h\s*)?(\d+m)?$`)
	videoDurationPattern = regexp.MustCompile(`^\d{1,3}:[0-5]\d$`)
)

// ValidDuration reports whether s is a well-formed duration string such as
// "45m", "2h 30m" or "1d 2h". Matching is case-insensitive and at least one
// unit must be present.
func ValidDuration(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	return durationPattern.MatchString(trimmed)
}

// Validate checks r against the schema rules and returns every violation
// found, or nil when r is valid. Callers are expected to Normalize first so
// defaults are in place. Non-recipe records only carry version fields, so
// only those are checked when is_recipe is false.
func (r *Recipe) Validate() Violations {
	var out Violations

	add := func(path, reason string) {
		out = append(out, Violation{Path: path, Reason: reason})
	}

	if !versionPattern.MatchString(r.SchemaVersion) {
		add("schema_version", fmt.Sprintf("must match MAJOR.MINOR.PATCH, got %q", r.SchemaVersion))
	}
	if !versionPattern.MatchString(r.RecipeVersion) {
		add("recipe_version", fmt.Sprintf("must match MAJOR.MINOR.PATCH, got %q", r.RecipeVersion))
	}

	if !r.IsRecipe {
		return out
	}

	if strings.TrimSpace(r.Metadata.Title) == "" {
		add("metadata.title", "must not be blank")
	}
	switch r.Metadata.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		add("metadata.difficulty", fmt.Sprintf("must be one of easy, medium, hard, got %q", r.Metadata.Difficulty))
	}
	if r.Metadata.Servings != nil && *r.Metadata.Servings < 1 {
		add("metadata.servings", "must be at least 1")
	}

	checkDuration := func(path string, v *string) {
		if v != nil && !ValidDuration(*v) {
			add(path, fmt.Sprintf("invalid duration %q", *v))
		}
	}
	checkDuration("metadata.prep_time", r.Metadata.PrepTime)
	checkDuration("metadata.cook_time", r.Metadata.CookTime)
	checkDuration("metadata.total_time", r.Metadata.TotalTime)

	if r.Metadata.CoverImage != nil && strings.TrimSpace(r.Metadata.CoverImage.Path) == "" {
		add("metadata.cover_image.path", "must not be blank")
	}

	if len(r.Ingredients) == 0 {
		add("ingredients", "must not be empty when is_recipe is true")
	}
	for i := range r.Ingredients {
		ing := &r.Ingredients[i]
		path := fmt.Sprintf("ingredients[%d]", i)
		if strings.TrimSpace(ing.Item) == "" {
			add(path+".item", "must not be blank")
		}
		for j := range ing.Substitutions {
			if strings.TrimSpace(ing.Substitutions[j].Item) == "" {
				add(fmt.Sprintf("%s.substitutions[%d].item", path, j), "must not be blank")
			}
		}
	}

	if len(r.Instructions) == 0 {
		add("instructions", "must not be empty when is_recipe is true")
	}
	for i := range r.Instructions {
		ins := &r.Instructions[i]
		path := fmt.Sprintf("instructions[%d]", i)
		if ins.Step != i+1 {
			add(path+".step", fmt.Sprintf("must be %d, got %d", i+1, ins.Step))
		}
		if strings.TrimSpace(ins.Description) == "" {
			add(path+".description", "must not be blank")
		}
		checkDuration(path+".time", ins.Time)

		for j, m := range ins.Media {
			mpath := fmt.Sprintf("%s.media[%d]", path, j)
			switch v := m.(type) {
			case Image:
				if strings.TrimSpace(v.Path) == "" {
					add(mpath+".path", "must not be blank")
				}
			case Video:
				if strings.TrimSpace(v.Path) == "" {
					add(mpath+".path", "must not be blank")
				}
				if v.Duration != nil && !videoDurationPattern.MatchString(*v.Duration) {
					add(mpath+".duration", fmt.Sprintf("must be MM:SS, got %q", *v.Duration))
				}
			default:
				add(mpath, fmt.Sprintf("unknown media variant %T", m))
			}
		}
	}

	if n := r.Nutrition; n != nil {
		if n.Calories != nil && *n.Calories < 0 {
			add("nutrition.calories", "must not be negative")
		}
		checkNonNegative := func(path string, v *float64) {
			if v != nil && *v < 0 {
				add(path, "must not be negative")
			}
		}
		checkNonNegative("nutrition.protein", n.Protein)
		checkNonNegative("nutrition.carbohydrates", n.Carbohydrates)
		checkNonNegative("nutrition.fat", n.Fat)
		checkNonNegative("nutrition.fiber", n.Fiber)
		checkNonNegative("nutrition.sugar", n.Sugar)
		checkNonNegative("nutrition.sodium", n.Sodium)
	}

	return out
}
