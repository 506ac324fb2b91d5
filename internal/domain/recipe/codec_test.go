package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// CodecTestSuite provides a test suite for the YAML codec
type CodecTestSuite struct {
	suite.Suite
}

func strPtr(s string) *string     { return &s }
func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }

// fullRecipe builds a normalized recipe exercising every schema field.
func fullRecipe() *Recipe {
	date := NewDate(2024, time.March, 15)
	r := &Recipe{
		IsRecipe:      true,
		SchemaVersion: "1.0.0",
		RecipeVersion: "1.2.0",
		Metadata: Metadata{
			Title:       "Sourdough Pancakes",
			Source:      strPtr("https://example.com/sourdough-pancakes"),
			Author:      strPtr("Jane Dough"),
			Language:    "en",
			DateCreated: &date,
			Category:    []string{"breakfast"},
			Tags:        []string{"sourdough", "quick"},
			Servings:    intPtr(4),
			PrepTime:    strPtr("15m"),
			CookTime:    strPtr("20m"),
			TotalTime:   strPtr("35m"),
			Difficulty:  DifficultyEasy,
			CoverImage:  &CoverImage{Path: "images/cover.jpg", Alt: strPtr("Stack of pancakes")},
		},
		Description: "Light pancakes made from sourdough discard.",
		Ingredients: []Ingredient{
			{
				Item:      "sourdough starter",
				Amount:    strPtr("1"),
				Unit:      strPtr("cup"),
				Component: "batter",
				Substitutions: []Substitution{
					{Item: "buttermilk", Ratio: strPtr("1:1")},
				},
			},
			{Item: "maple syrup", Optional: true, Component: "topping"},
		},
		Equipment: []string{"skillet", "whisk"},
		Instructions: []Instruction{
			{Step: 1, Description: "Whisk all batter ingredients together.", Time: strPtr("5m")},
			{
				Step:        2,
				Description: "Cook until golden on both sides.",
				Temperature: strPtr("medium heat"),
				Media: MediaList{
					Image{Path: "images/step2.jpg", Alt: "Pancake mid-flip"},
					Video{Path: "videos/step2.mp4", Thumbnail: strPtr("images/step2-thumb.jpg"), Duration: strPtr("1:30")},
				},
			},
		},
		Nutrition: &Nutrition{
			ServingSize: strPtr("2 pancakes"),
			Calories:    intPtr(280),
			Protein:     floatPtr(8.5),
		},
		Notes:   "Rest the batter for fluffier pancakes.",
		Storage: &Storage{Refrigerator: strPtr("3 days"), Freezer: strPtr("2 months")},
	}
	r.Normalize()
	return r
}

// minimalRecipe builds the smallest valid recipe.
func minimalRecipe() *Recipe {
	r := &Recipe{
		IsRecipe: true,
		Metadata: Metadata{Title: "Toast"},
		Ingredients: []Ingredient{
			{Item: "bread"},
		},
		Instructions: []Instruction{
			{Step: 1, Description: "Toast the bread."},
		},
	}
	r.Normalize()
	return r
}

// TestSerialize tests the serialization contract
func (suite *CodecTestSuite) TestSerialize() {
	suite.Run("FullRecipe_ShouldEmitKeysInDeclarationOrder", func() {
		// Act
		out, err := Serialize(fullRecipe())

		// Assert
		require.NoError(suite.T(), err)
		keys := []string{"is_recipe:", "schema_version:", "recipe_version:", "metadata:", "description:", "ingredients:", "equipment:", "instructions:", "nutrition:", "notes:", "storage:"}
		last := -1
		for _, key := range keys {
			idx := strings.Index(out, "\n"+key)
			if key == "is_recipe:" {
				idx = strings.Index(out, key)
			}
			require.GreaterOrEqual(suite.T(), idx, 0, "missing key %s", key)
			assert.Greater(suite.T(), idx, last, "key %s out of order", key)
			last = idx
		}
	})

	suite.Run("NoDocumentStartMarker", func() {
		// Act
		out, err := Serialize(minimalRecipe())

		// Assert
		require.NoError(suite.T(), err)
		assert.False(suite.T(), strings.HasPrefix(out, "---"))
	})

	suite.Run("NoTrailingWhitespace", func() {
		// Act
		out, err := Serialize(fullRecipe())

		// Assert
		require.NoError(suite.T(), err)
		for _, line := range strings.Split(out, "\n") {
			assert.Equal(suite.T(), strings.TrimRight(line, " \t"), line)
		}
	})

	suite.Run("AbsentOptionals_ShouldEmitNullSentinel", func() {
		// Act
		out, err := Serialize(minimalRecipe())

		// Assert
		require.NoError(suite.T(), err)
		assert.Contains(suite.T(), out, "nutrition: null")
		assert.Contains(suite.T(), out, "storage: null")
		assert.Contains(suite.T(), out, "source: null")
		assert.Contains(suite.T(), out, "cover_image: null")
		assert.Contains(suite.T(), out, "media: null")
	})

	suite.Run("Defaults_ShouldStillBeEmitted", func() {
		// Act
		out, err := Serialize(minimalRecipe())

		// Assert
		require.NoError(suite.T(), err)
		assert.Contains(suite.T(), out, "language: en")
		assert.Contains(suite.T(), out, "difficulty: medium")
		assert.Contains(suite.T(), out, "component: main")
		assert.Contains(suite.T(), out, "optional: false")
	})

	suite.Run("Date_ShouldSerializeAsCalendarDate", func() {
		// Act
		out, err := Serialize(fullRecipe())

		// Assert
		require.NoError(suite.T(), err)
		assert.Contains(suite.T(), out, "date_created: \"2024-03-15\"")
	})
}

// TestParse tests the parsing contract
func (suite *CodecTestSuite) TestParse() {
	suite.Run("RoundTrip_FullRecipe_ShouldBeIdentical", func() {
		// Arrange
		original := fullRecipe()
		out, err := Serialize(original)
		require.NoError(suite.T(), err)

		// Act
		parsed, err := Parse(out)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), original, parsed)
	})

	suite.Run("RoundTrip_MinimalRecipe_ShouldBeIdentical", func() {
		// Arrange
		original := minimalRecipe()
		out, err := Serialize(original)
		require.NoError(suite.T(), err)

		// Act
		parsed, err := Parse(out)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), original, parsed)
	})

	suite.Run("UnknownProperties_ShouldBeIgnored", func() {
		// Arrange
		doc := strings.Join([]string{
			"is_recipe: true",
			"legacy_field: ignored",
			"metadata:",
			"  title: Toast",
			"  chef_rating: 5",
			"ingredients:",
			"  - item: bread",
			"instructions:",
			"  - step: 1",
			"    description: Toast the bread.",
		}, "\n")

		// Act
		parsed, err := Parse(doc)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "Toast", parsed.Metadata.Title)
	})

	suite.Run("EmptyOptionalStrings_ShouldCoerceToAbsent", func() {
		// Arrange
		doc := strings.Join([]string{
			"is_recipe: true",
			"metadata:",
			"  title: Toast",
			"  source: \"\"",
			"  author: \"  \"",
			"ingredients:",
			"  - item: bread",
			"    amount: \"\"",
			"instructions:",
			"  - step: 1",
			"    description: Toast the bread.",
		}, "\n")

		// Act
		parsed, err := Parse(doc)

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), parsed.Metadata.Source)
		assert.Nil(suite.T(), parsed.Metadata.Author)
		assert.Nil(suite.T(), parsed.Ingredients[0].Amount)
	})

	suite.Run("MalformedDocument_ShouldReportLineAndColumn", func() {
		// Arrange
		doc := "is_recipe: true\nmetadata: [unclosed"

		// Act
		_, err := Parse(doc)

		// Assert
		require.Error(suite.T(), err)
		var parseErr *ParseError
		require.ErrorAs(suite.T(), err, &parseErr)
		assert.Greater(suite.T(), parseErr.Line, 0)
		assert.GreaterOrEqual(suite.T(), parseErr.Column, 1)
		assert.NotEmpty(suite.T(), parseErr.Excerpt)
	})

	suite.Run("WrongScalarType_ShouldReturnParseError", func() {
		// Arrange
		doc := strings.Join([]string{
			"is_recipe: true",
			"metadata:",
			"  title: Toast",
			"  servings: lots",
			"ingredients:",
			"  - item: bread",
			"instructions:",
			"  - step: 1",
			"    description: Toast the bread.",
		}, "\n")

		// Act
		_, err := Parse(doc)

		// Assert
		var parseErr *ParseError
		require.ErrorAs(suite.T(), err, &parseErr)
		assert.Equal(suite.T(), 4, parseErr.Line)
	})

	suite.Run("Excerpt_ShouldBeBounded", func() {
		// Arrange
		doc := "bad: [" + strings.Repeat("x", 600)

		// Act
		_, err := Parse(doc)

		// Assert
		var parseErr *ParseError
		require.ErrorAs(suite.T(), err, &parseErr)
		assert.LessOrEqual(suite.T(), len(parseErr.Excerpt), 500)
	})

	suite.Run("MissingMediaType_ShouldBeRejected", func() {
		// Arrange
		doc := strings.Join([]string{
			"is_recipe: true",
			"metadata:",
			"  title: Toast",
			"ingredients:",
			"  - item: bread",
			"instructions:",
			"  - step: 1",
			"    description: Toast the bread.",
			"    media:",
			"      - path: images/toast.jpg",
			"        alt: Golden toast",
		}, "\n")

		// Act
		_, err := Parse(doc)

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "missing type")
	})

	suite.Run("UnknownMediaType_ShouldBeRejected", func() {
		// Arrange
		doc := strings.Join([]string{
			"is_recipe: true",
			"metadata:",
			"  title: Toast",
			"ingredients:",
			"  - item: bread",
			"instructions:",
			"  - step: 1",
			"    description: Toast the bread.",
			"    media:",
			"      - type: gif",
			"        path: images/toast.gif",
		}, "\n")

		// Act
		_, err := Parse(doc)

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "unknown media type")
	})

	suite.Run("SchemaViolation_ShouldReturnViolations", func() {
		// Arrange
		doc := strings.Join([]string{
			"is_recipe: true",
			"metadata:",
			"  title: Toast",
			"ingredients:",
			"  - item: bread",
			"instructions:",
			"  - step: 1",
			"    description: Toast the bread.",
			"  - step: 3",
			"    description: Serve.",
		}, "\n")

		// Act
		_, err := Parse(doc)

		// Assert
		require.Error(suite.T(), err)
		var viols Violations
		require.ErrorAs(suite.T(), err, &viols)
		require.Len(suite.T(), viols, 1)
		assert.Equal(suite.T(), "instructions[1].step", viols[0].Path)
	})

	suite.Run("NotRecipe_ShouldSkipContentRules", func() {
		// Arrange
		doc := "is_recipe: false"

		// Act
		parsed, err := Parse(doc)

		// Assert
		require.NoError(suite.T(), err)
		assert.False(suite.T(), parsed.IsRecipe)
		assert.Equal(suite.T(), SchemaVersion, parsed.SchemaVersion)
	})

	suite.Run("EmptyDocument_ShouldFail", func() {
		// Act
		_, err := Parse("")

		// Assert
		var parseErr *ParseError
		require.ErrorAs(suite.T(), err, &parseErr)
	})

	suite.Run("NonMappingRoot_ShouldFail", func() {
		// Act
		_, err := Parse("- just\n- a\n- list")

		// Assert
		var parseErr *ParseError
		require.ErrorAs(suite.T(), err, &parseErr)
		assert.Contains(suite.T(), parseErr.Error(), "mapping")
	})
}

// TestMediaRoundTrip tests that media variant tags survive the codec
func (suite *CodecTestSuite) TestMediaRoundTrip() {
	suite.Run("ImageAndVideo_ShouldKeepTheirTags", func() {
		// Arrange
		out, err := Serialize(fullRecipe())
		require.NoError(suite.T(), err)

		// Act
		parsed, err := Parse(out)

		// Assert
		require.NoError(suite.T(), err)
		media := parsed.Instructions[1].Media
		require.Len(suite.T(), media, 2)
		assert.Equal(suite.T(), MediaTypeImage, media[0].MediaType())
		assert.Equal(suite.T(), MediaTypeVideo, media[1].MediaType())

		img, ok := media[0].(Image)
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), "images/step2.jpg", img.Path)

		vid, ok := media[1].(Video)
		require.True(suite.T(), ok)
		require.NotNil(suite.T(), vid.Duration)
		assert.Equal(suite.T(), "1:30", *vid.Duration)
	})
}

// TestParseVariants tests the reader, file, and multi-document entry points
func (suite *CodecTestSuite) TestParseVariants() {
	suite.Run("ParseReader_ShouldMatchParse", func() {
		// Arrange
		out, err := Serialize(minimalRecipe())
		require.NoError(suite.T(), err)

		// Act
		parsed, err := ParseReader(strings.NewReader(out))

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), minimalRecipe(), parsed)
	})

	suite.Run("ParseFile_ShouldReadFromDisk", func() {
		// Arrange
		out, err := Serialize(minimalRecipe())
		require.NoError(suite.T(), err)
		path := filepath.Join(suite.T().TempDir(), "toast.yaml")
		require.NoError(suite.T(), os.WriteFile(path, []byte(out), 0o600))

		// Act
		parsed, err := ParseFile(path)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), minimalRecipe(), parsed)
	})

	suite.Run("ParseFile_MissingFile_ShouldFail", func() {
		// Act
		_, err := ParseFile(filepath.Join(suite.T().TempDir(), "missing.yaml"))

		// Assert
		require.Error(suite.T(), err)
		assert.True(suite.T(), errors.Is(err, os.ErrNotExist))
	})

	suite.Run("SerializeAll_ShouldSeparateDocuments", func() {
		// Arrange
		recipes := []*Recipe{minimalRecipe(), fullRecipe()}

		// Act
		out, err := SerializeAll(recipes)

		// Assert
		require.NoError(suite.T(), err)
		assert.False(suite.T(), strings.HasPrefix(out, "---"))
		assert.Contains(suite.T(), out, "\n---\n")
	})

	suite.Run("ParseAll_ShouldRecoverEveryDocument", func() {
		// Arrange
		recipes := []*Recipe{minimalRecipe(), fullRecipe()}
		out, err := SerializeAll(recipes)
		require.NoError(suite.T(), err)

		// Act
		parsed, err := ParseAll(out)

		// Assert
		require.NoError(suite.T(), err)
		require.Len(suite.T(), parsed, 2)
		assert.Equal(suite.T(), recipes[0], parsed[0])
		assert.Equal(suite.T(), recipes[1], parsed[1])
	})

	suite.Run("ParseAll_EmptyStream_ShouldFail", func() {
		// Act
		_, err := ParseAll("")

		// Assert
		require.Error(suite.T(), err)
	})
}

// BenchmarkSerialize benchmarks recipe serialization
func BenchmarkSerialize(b *testing.B) {
	r := fullRecipe()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Serialize(r); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParse benchmarks recipe parsing
func BenchmarkParse(b *testing.B) {
	out, err := Serialize(fullRecipe())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(out); err != nil {
			b.Fatal(err)
		}
	}
}

// TestCodecTestSuite runs the codec test suite
func TestCodecTestSuite(t *testing.T) {
	suite.Run(t, new(CodecTestSuite))
}
