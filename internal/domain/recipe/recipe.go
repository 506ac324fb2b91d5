// Package recipe defines the canonical recipe record produced by the
// extraction pipeline, its YAML codec, and its structural validation rules.
package recipe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the schema version emitted for newly produced recipes.
const SchemaVersion = "1.0.0"

// Defaults applied when the source omits a value.
const (
	DefaultLanguage      = "en"
	DefaultComponent     = "main"
	DefaultRecipeVersion = "1.0.0"
)

// Difficulty classifies how demanding a recipe is to prepare.
type Difficulty string

// Supported difficulty levels.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Recipe is the root record. Field order defines the serialized key order.
// Optional fields are pointers and serialize as an explicit null when absent.
type Recipe struct {
	IsRecipe      bool          `yaml:"is_recipe" json:"is_recipe"`
	SchemaVersion string        `yaml:"schema_version" json:"schema_version"`
	RecipeVersion string        `yaml:"recipe_version" json:"recipe_version"`
	Metadata      Metadata      `yaml:"metadata" json:"metadata"`
	Description   string        `yaml:"description" json:"description"`
	Ingredients   []Ingredient  `yaml:"ingredients" json:"ingredients"`
	Equipment     []string      `yaml:"equipment" json:"equipment"`
	Instructions  []Instruction `yaml:"instructions" json:"instructions"`
	Nutrition     *Nutrition    `yaml:"nutrition" json:"nutrition"`
	Notes         string        `yaml:"notes" json:"notes"`
	Storage       *Storage      `yaml:"storage" json:"storage"`
}

// Metadata carries descriptive recipe attributes. Title is the only
// required field; the rest degrade to defaults or null.
type Metadata struct {
	Title       string      `yaml:"title" json:"title"`
	Source      *string     `yaml:"source" json:"source"`
	Author      *string     `yaml:"author" json:"author"`
	Language    string      `yaml:"language" json:"language"`
	DateCreated *Date       `yaml:"date_created" json:"date_created"`
	Category    []string    `yaml:"category" json:"category"`
	Tags        []string    `yaml:"tags" json:"tags"`
	Servings    *int        `yaml:"servings" json:"servings"`
	PrepTime    *string     `yaml:"prep_time" json:"prep_time"`
	CookTime    *string     `yaml:"cook_time" json:"cook_time"`
	TotalTime   *string     `yaml:"total_time" json:"total_time"`
	Difficulty  Difficulty  `yaml:"difficulty" json:"difficulty"`
	CoverImage  *CoverImage `yaml:"cover_image" json:"cover_image"`
}

// UnmarshalJSON tolerates servings arriving as a JSON string. Models
// occasionally emit "4" instead of 4 despite the response schema.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type alias Metadata
	aux := &struct {
		ServingsRaw interface{} `json:"servings"`
		*alias
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	switch v := aux.ServingsRaw.(type) {
	case float64:
		n := int(v)
		m.Servings = &n
	case string:
		if v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				m.Servings = &n
			}
		}
	}

	return nil
}

// CoverImage is the page-level hero image referenced from metadata.
type CoverImage struct {
	Path string  `yaml:"path" json:"path"`
	Alt  *string `yaml:"alt" json:"alt"`
}

// Ingredient is a single ingredient line, grouped by component.
type Ingredient struct {
	Item          string         `yaml:"item" json:"item"`
	Amount        *string        `yaml:"amount" json:"amount"`
	Unit          *string        `yaml:"unit" json:"unit"`
	Notes         *string        `yaml:"notes" json:"notes"`
	Optional      bool           `yaml:"optional" json:"optional"`
	Substitutions []Substitution `yaml:"substitutions" json:"substitutions"`
	Component     string         `yaml:"component" json:"component"`
}

// UnmarshalJSON tolerates numeric amounts; the canonical form is a free-form
// string ("1/2", "a pinch").
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	type alias Ingredient
	aux := &struct {
		AmountRaw interface{} `json:"amount"`
		*alias
	}{alias: (*alias)(i)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	switch v := aux.AmountRaw.(type) {
	case string:
		if v != "" {
			i.Amount = &v
		}
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		i.Amount = &s
	}

	return nil
}

// Substitution is an alternative for an ingredient.
type Substitution struct {
	Item   string  `yaml:"item" json:"item"`
	Amount *string `yaml:"amount" json:"amount"`
	Unit   *string `yaml:"unit" json:"unit"`
	Notes  *string `yaml:"notes" json:"notes"`
	Ratio  *string `yaml:"ratio" json:"ratio"`
}

// Instruction is one numbered step. Step numbers are 1-based and contiguous.
type Instruction struct {
	Step        int       `yaml:"step" json:"step"`
	Description string    `yaml:"description" json:"description"`
	Time        *string   `yaml:"time" json:"time"`
	Temperature *string   `yaml:"temperature" json:"temperature"`
	Media       MediaList `yaml:"media" json:"media"`
}

// Nutrition holds per-serving nutrition facts. All values optional.
type Nutrition struct {
	ServingSize   *string  `yaml:"serving_size" json:"serving_size"`
	Calories      *int     `yaml:"calories" json:"calories"`
	Protein       *float64 `yaml:"protein" json:"protein"`
	Carbohydrates *float64 `yaml:"carbohydrates" json:"carbohydrates"`
	Fat           *float64 `yaml:"fat" json:"fat"`
	Fiber         *float64 `yaml:"fiber" json:"fiber"`
	Sugar         *float64 `yaml:"sugar" json:"sugar"`
	Sodium        *float64 `yaml:"sodium" json:"sodium"`
	Notes         *string  `yaml:"notes" json:"notes"`
}

// Storage describes how long the dish keeps under each storage condition.
type Storage struct {
	Refrigerator    *string `yaml:"refrigerator" json:"refrigerator"`
	Freezer         *string `yaml:"freezer" json:"freezer"`
	RoomTemperature *string `yaml:"room_temperature" json:"room_temperature"`
}

// Date is a calendar date serialized as YYYY-MM-DD with no timezone.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string { return d.t.Format(dateLayout) }

// MarshalYAML implements yaml.Marshaler.
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Normalize fills defaults and coerces empty optional values to absent.
// It is applied after every parse and before validation so that records
// always round-trip byte-for-byte.
func (r *Recipe) Normalize() {
	if r.SchemaVersion == "" {
		r.SchemaVersion = SchemaVersion
	}
	if r.RecipeVersion == "" {
		r.RecipeVersion = DefaultRecipeVersion
	}
	if r.Metadata.Language == "" {
		r.Metadata.Language = DefaultLanguage
	}
	if r.Metadata.Difficulty == "" {
		r.Metadata.Difficulty = DifficultyMedium
	} else {
		r.Metadata.Difficulty = Difficulty(strings.ToLower(string(r.Metadata.Difficulty)))
	}

	r.Metadata.Source = emptyToNil(r.Metadata.Source)
	r.Metadata.Author = emptyToNil(r.Metadata.Author)
	r.Metadata.PrepTime = emptyToNil(r.Metadata.PrepTime)
	r.Metadata.CookTime = emptyToNil(r.Metadata.CookTime)
	r.Metadata.TotalTime = emptyToNil(r.Metadata.TotalTime)
	if r.Metadata.Servings != nil && *r.Metadata.Servings == 0 {
		r.Metadata.Servings = nil
	}
	if r.Metadata.DateCreated != nil && r.Metadata.DateCreated.IsZero() {
		r.Metadata.DateCreated = nil
	}
	if r.Metadata.CoverImage != nil {
		if strings.TrimSpace(r.Metadata.CoverImage.Path) == "" {
			r.Metadata.CoverImage = nil
		} else {
			r.Metadata.CoverImage.Alt = emptyToNil(r.Metadata.CoverImage.Alt)
		}
	}
	if r.Metadata.Category == nil {
		r.Metadata.Category = []string{}
	}
	if r.Metadata.Tags == nil {
		r.Metadata.Tags = []string{}
	}

	if r.Ingredients == nil {
		r.Ingredients = []Ingredient{}
	}
	for i := range r.Ingredients {
		ing := &r.Ingredients[i]
		if ing.Component == "" {
			ing.Component = DefaultComponent
		}
		ing.Amount = emptyToNil(ing.Amount)
		ing.Unit = emptyToNil(ing.Unit)
		ing.Notes = emptyToNil(ing.Notes)
		for j := range ing.Substitutions {
			sub := &ing.Substitutions[j]
			sub.Amount = emptyToNil(sub.Amount)
			sub.Unit = emptyToNil(sub.Unit)
			sub.Notes = emptyToNil(sub.Notes)
			sub.Ratio = emptyToNil(sub.Ratio)
		}
	}

	if r.Equipment == nil {
		r.Equipment = []string{}
	}

	if r.Instructions == nil {
		r.Instructions = []Instruction{}
	}
	for i := range r.Instructions {
		ins := &r.Instructions[i]
		ins.Time = emptyToNil(ins.Time)
		ins.Temperature = emptyToNil(ins.Temperature)
		for j := range ins.Media {
			if v, ok := ins.Media[j].(Video); ok {
				v.Thumbnail = emptyToNil(v.Thumbnail)
				v.Duration = emptyToNil(v.Duration)
				ins.Media[j] = v
			}
		}
	}

	if r.Nutrition != nil {
		r.Nutrition.ServingSize = emptyToNil(r.Nutrition.ServingSize)
		r.Nutrition.Notes = emptyToNil(r.Nutrition.Notes)
	}
	if r.Storage != nil {
		r.Storage.Refrigerator = emptyToNil(r.Storage.Refrigerator)
		r.Storage.Freezer = emptyToNil(r.Storage.Freezer)
		r.Storage.RoomTemperature = emptyToNil(r.Storage.RoomTemperature)
	}
}

// Title returns the recipe title, empty for non-recipe records.
func (r *Recipe) Title() string {
	return r.Metadata.Title
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
