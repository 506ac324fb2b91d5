// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// RecipeFactory provides methods to create recipe records and cache entries
type RecipeFactory struct {
	faker *gofakeit.Faker
}

// NewRecipeFactory creates a new recipe factory with a seeded faker
func NewRecipeFactory(seed int64) *RecipeFactory {
	return &RecipeFactory{
		faker: gofakeit.New(seed),
	}
}

// CreateValidRecipe creates a fully populated recipe that passes validation
func (rf *RecipeFactory) CreateValidRecipe() *recipe.Recipe {
	title := rf.faker.Dinner()
	servings := rf.faker.Number(2, 8)

	r := &recipe.Recipe{
		IsRecipe:      true,
		SchemaVersion: recipe.SchemaVersion,
		RecipeVersion: recipe.DefaultRecipeVersion,
		Metadata: recipe.Metadata{
			Title:      title,
			Source:     strPtr(rf.faker.URL()),
			Author:     strPtr(rf.faker.Name()),
			Language:   recipe.DefaultLanguage,
			Category:   []string{"dinner"},
			Tags:       []string{rf.faker.Vegetable(), rf.faker.Fruit()},
			Servings:   &servings,
			PrepTime:   strPtr("15 minutes"),
			CookTime:   strPtr("30 minutes"),
			TotalTime:  strPtr("45 minutes"),
			Difficulty: recipe.DifficultyMedium,
		},
		Description: rf.faker.Sentence(12),
		Ingredients: []recipe.Ingredient{
			{Item: rf.faker.Vegetable(), Amount: strPtr("2"), Unit: strPtr("cups")},
			{Item: rf.faker.Fruit(), Amount: strPtr("1")},
			{Item: "olive oil", Amount: strPtr("3"), Unit: strPtr("tbsp")},
		},
		Equipment: []string{"large skillet"},
		Instructions: []recipe.Instruction{
			{Step: 1, Description: "Prepare and measure every ingredient before heating the pan."},
			{Step: 2, Description: rf.faker.Sentence(10), Time: strPtr("10 minutes")},
			{Step: 3, Description: "Season to taste and serve warm."},
		},
	}
	r.Normalize()
	return r
}

// CreateMinimalRecipe creates the smallest record that still validates:
// a title, one ingredient, one instruction.
func (rf *RecipeFactory) CreateMinimalRecipe() *recipe.Recipe {
	r := &recipe.Recipe{
		IsRecipe: true,
		Metadata: recipe.Metadata{Title: rf.faker.Dinner()},
		Ingredients: []recipe.Ingredient{
			{Item: rf.faker.Vegetable(), Amount: strPtr("1")},
		},
		Instructions: []recipe.Instruction{
			{Step: 1, Description: "Combine everything and cook until done."},
		},
	}
	r.Normalize()
	return r
}

// CreateNotRecipe creates the record shape the pipeline produces for pages
// that carry no recipe.
func (rf *RecipeFactory) CreateNotRecipe() *recipe.Recipe {
	r := &recipe.Recipe{IsRecipe: false}
	r.Normalize()
	return r
}

// CreateRecipes creates n distinct valid recipes.
func (rf *RecipeFactory) CreateRecipes(n int) []*recipe.Recipe {
	recipes := make([]*recipe.Recipe, 0, n)
	for i := 0; i < n; i++ {
		r := rf.CreateValidRecipe()
		// Distinct titles keep storage filenames from colliding.
		r.Metadata.Title = fmt.Sprintf("%s %d", r.Metadata.Title, i+1)
		recipes = append(recipes, r)
	}
	return recipes
}

// CreateCachedEntry creates a valid cache entry wrapping the given recipes.
func (rf *RecipeFactory) CreateCachedEntry(fingerprint, sourceURL string, recipes ...*recipe.Recipe) (*outbound.CachedEntry, error) {
	if len(recipes) == 0 {
		recipes = []*recipe.Recipe{rf.CreateValidRecipe()}
	}
	doc, err := recipe.SerializeAll(recipes)
	if err != nil {
		return nil, fmt.Errorf("serialize cached recipes: %w", err)
	}

	now := time.Now().UTC()
	return &outbound.CachedEntry{
		Fingerprint:   fingerprint,
		SourceURL:     sourceURL,
		RecipeYAML:    doc,
		Valid:         true,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Version:       1,
	}, nil
}

// CreateInvalidCachedEntry creates a memoized not-a-recipe verdict.
func (rf *RecipeFactory) CreateInvalidCachedEntry(fingerprint, sourceURL string) *outbound.CachedEntry {
	now := time.Now().UTC()
	return &outbound.CachedEntry{
		Fingerprint:   fingerprint,
		SourceURL:     sourceURL,
		Valid:         false,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Version:       1,
	}
}

// IdentityFactory provides methods to create authenticated callers and
// their stored storage credentials
type IdentityFactory struct {
	faker *gofakeit.Faker
}

// NewIdentityFactory creates a new identity factory with a seeded faker
func NewIdentityFactory(seed int64) *IdentityFactory {
	return &IdentityFactory{
		faker: gofakeit.New(seed),
	}
}

// CreateIdentity creates an authenticated caller with a Clerk-style user ID.
func (f *IdentityFactory) CreateIdentity() outbound.Identity {
	return outbound.Identity{
		UserID: "user_" + f.faker.LetterN(14),
		Email:  f.faker.Email(),
	}
}

// CreateOAuthToken creates a plausible Google OAuth access token.
func (f *IdentityFactory) CreateOAuthToken() string {
	return "ya29." + f.faker.LetterN(48)
}

// CreateCredential creates a credential row with the token sealed the way
// the credential endpoints store it.
func (f *IdentityFactory) CreateCredential(cipher outbound.Cipher, userID, provider string) (*outbound.StorageCredential, error) {
	sealed, err := cipher.Seal(f.CreateOAuthToken())
	if err != nil {
		return nil, fmt.Errorf("seal credential token: %w", err)
	}

	now := time.Now().UTC()
	return &outbound.StorageCredential{
		UserID:      userID,
		Provider:    provider,
		TokenCipher: sealed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RecipeBuilder provides a fluent interface for building recipe records
// when a test needs precise control over the document shape.
type RecipeBuilder struct {
	rec recipe.Recipe
}

// NewRecipeBuilder creates a builder seeded with a small valid recipe.
func NewRecipeBuilder() *RecipeBuilder {
	return &RecipeBuilder{
		rec: recipe.Recipe{
			IsRecipe:      true,
			SchemaVersion: recipe.SchemaVersion,
			RecipeVersion: recipe.DefaultRecipeVersion,
			Metadata: recipe.Metadata{
				Title:      "Pan con Tomate",
				Language:   recipe.DefaultLanguage,
				Difficulty: recipe.DifficultyEasy,
			},
			Description: "Grilled bread rubbed with garlic and ripe tomato.",
			Ingredients: []recipe.Ingredient{
				{Item: "rustic bread", Amount: strPtr("4"), Unit: strPtr("slices")},
				{Item: "ripe tomatoes", Amount: strPtr("2")},
			},
			Instructions: []recipe.Instruction{
				{Step: 1, Description: "Toast the bread until golden."},
				{Step: 2, Description: "Rub each slice with garlic and halved tomato, then season."},
			},
		},
	}
}

// WithTitle sets the recipe title
func (rb *RecipeBuilder) WithTitle(title string) *RecipeBuilder {
	rb.rec.Metadata.Title = title
	return rb
}

// WithSource sets the source URL
func (rb *RecipeBuilder) WithSource(url string) *RecipeBuilder {
	rb.rec.Metadata.Source = strPtr(url)
	return rb
}

// WithAuthor sets the recipe author
func (rb *RecipeBuilder) WithAuthor(name string) *RecipeBuilder {
	rb.rec.Metadata.Author = strPtr(name)
	return rb
}

// WithDescription sets the recipe description
func (rb *RecipeBuilder) WithDescription(description string) *RecipeBuilder {
	rb.rec.Description = description
	return rb
}

// WithLanguage sets the recipe language
func (rb *RecipeBuilder) WithLanguage(language string) *RecipeBuilder {
	rb.rec.Metadata.Language = language
	return rb
}

// WithDifficulty sets the difficulty level
func (rb *RecipeBuilder) WithDifficulty(difficulty recipe.Difficulty) *RecipeBuilder {
	rb.rec.Metadata.Difficulty = difficulty
	return rb
}

// WithServings sets the number of servings
func (rb *RecipeBuilder) WithServings(servings int) *RecipeBuilder {
	rb.rec.Metadata.Servings = &servings
	return rb
}

// WithTimings sets prep, cook, and total time
func (rb *RecipeBuilder) WithTimings(prep, cook, total string) *RecipeBuilder {
	rb.rec.Metadata.PrepTime = strPtr(prep)
	rb.rec.Metadata.CookTime = strPtr(cook)
	rb.rec.Metadata.TotalTime = strPtr(total)
	return rb
}

// WithTags sets the recipe tags
func (rb *RecipeBuilder) WithTags(tags ...string) *RecipeBuilder {
	rb.rec.Metadata.Tags = tags
	return rb
}

// WithCategory sets the recipe categories
func (rb *RecipeBuilder) WithCategory(categories ...string) *RecipeBuilder {
	rb.rec.Metadata.Category = categories
	return rb
}

// WithIngredients replaces the ingredient list
func (rb *RecipeBuilder) WithIngredients(ingredients ...recipe.Ingredient) *RecipeBuilder {
	rb.rec.Ingredients = ingredients
	return rb
}

// AddIngredient appends one ingredient line. Empty amount or unit are
// recorded as absent.
func (rb *RecipeBuilder) AddIngredient(item, amount, unit string) *RecipeBuilder {
	ing := recipe.Ingredient{Item: item}
	if amount != "" {
		ing.Amount = strPtr(amount)
	}
	if unit != "" {
		ing.Unit = strPtr(unit)
	}
	rb.rec.Ingredients = append(rb.rec.Ingredients, ing)
	return rb
}

// WithInstructions replaces the instruction list with numbered steps built
// from the given descriptions.
func (rb *RecipeBuilder) WithInstructions(descriptions ...string) *RecipeBuilder {
	steps := make([]recipe.Instruction, 0, len(descriptions))
	for i, description := range descriptions {
		steps = append(steps, recipe.Instruction{Step: i + 1, Description: description})
	}
	rb.rec.Instructions = steps
	return rb
}

// WithEquipment sets the equipment list
func (rb *RecipeBuilder) WithEquipment(equipment ...string) *RecipeBuilder {
	rb.rec.Equipment = equipment
	return rb
}

// WithNutrition sets per-serving calories and protein
func (rb *RecipeBuilder) WithNutrition(calories int, protein float64) *RecipeBuilder {
	rb.rec.Nutrition = &recipe.Nutrition{
		Calories: &calories,
		Protein:  &protein,
	}
	return rb
}

// WithSchemaVersion overrides the schema version
func (rb *RecipeBuilder) WithSchemaVersion(version string) *RecipeBuilder {
	rb.rec.SchemaVersion = version
	return rb
}

// AsNotRecipe marks the record as a not-a-recipe verdict
func (rb *RecipeBuilder) AsNotRecipe() *RecipeBuilder {
	rb.rec.IsRecipe = false
	return rb
}

// Build constructs the normalized recipe
func (rb *RecipeBuilder) Build() *recipe.Recipe {
	r := rb.rec
	r.Normalize()
	return &r
}

// BuildYAML constructs the recipe and serializes it to canonical YAML.
func (rb *RecipeBuilder) BuildYAML() (string, error) {
	return recipe.Serialize(rb.Build())
}

// Model reply fixtures

// ModelReply renders the JSON envelope a well-behaved model returns for
// the given recipes.
func ModelReply(recipes ...*recipe.Recipe) string {
	if recipes == nil {
		recipes = []*recipe.Recipe{}
	}
	payload := map[string]interface{}{
		"is_recipe": len(recipes) > 0,
		"recipes":   recipes,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal model reply: %v", err))
	}
	return string(data)
}

// NotRecipeReply renders the envelope for a page that carries no recipe.
func NotRecipeReply() string {
	return `{"is_recipe": false, "recipes": []}`
}

// Page fixtures

// RecipePageHTML renders a recipe page the way publishing platforms emit
// them: schema.org JSON-LD plus visible markup, wrapped in the usual
// navigation, script, and style boilerplate.
func RecipePageHTML(title string, ingredients, steps []string) string {
	instructions := make([]map[string]string, 0, len(steps))
	for _, step := range steps {
		instructions = append(instructions, map[string]string{"@type": "HowToStep", "text": step})
	}
	ld, err := json.Marshal(map[string]interface{}{
		"@context":           "https://schema.org",
		"@type":              "Recipe",
		"name":               title,
		"recipeIngredient":   ingredients,
		"recipeInstructions": instructions,
	})
	if err != nil {
		panic(fmt.Sprintf("marshal json-ld fixture: %v", err))
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	fmt.Fprintf(&b, "<title>%s | Cook Along</title>\n", title)
	b.WriteString("<style>.hero{background:#fafafa;padding:4rem}.nav{display:flex}</style>\n")
	b.WriteString("<script>window.analytics=window.analytics||[];analytics.load('UA-000000');</script>\n")
	fmt.Fprintf(&b, "<script type=\"application/ld+json\">%s</script>\n", ld)
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<nav class=\"nav\"><a href=\"/\">Home</a><a href=\"/recipes\">Recipes</a><a href=\"/about\">About</a></nav>\n")
	b.WriteString("<aside>Subscribe to our newsletter for weekly meal plans!</aside>\n")
	fmt.Fprintf(&b, "<article>\n<h1>%s</h1>\n", title)
	b.WriteString("<h2>Ingredients</h2>\n<ul>\n")
	for _, item := range ingredients {
		fmt.Fprintf(&b, "<li>%s</li>\n", item)
	}
	b.WriteString("</ul>\n<h2>Instructions</h2>\n<ol>\n")
	for _, step := range steps {
		fmt.Fprintf(&b, "<li>%s</li>\n", step)
	}
	b.WriteString("</ol>\n</article>\n")
	b.WriteString("<footer><p>&copy; 2025 Cook Along. All rights reserved.</p></footer>\n")
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// ArticlePageHTML renders a page with no recipe markup at all.
func ArticlePageHTML(title string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", title)
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<nav><a href=\"/\">Home</a></nav>\n")
	fmt.Fprintf(&b, "<article>\n<h1>%s</h1>\n", title)
	b.WriteString("<p>Our kitchen tools buying guide covers knives, boards, and pans.</p>\n")
	b.WriteString("<p>None of the products below include preparation steps or ingredients.</p>\n")
	b.WriteString("</article>\n</body>\n</html>\n")
	return b.String()
}

func strPtr(s string) *string {
	return &s
}
