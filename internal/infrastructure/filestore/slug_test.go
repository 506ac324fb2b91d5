package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// SlugTestSuite tests artifact filename derivation
type SlugTestSuite struct {
	suite.Suite
}

// TestSlugify tests title-to-filename conversion
func (suite *SlugTestSuite) TestSlugify() {
	suite.Run("PlainTitle_ShouldKebabCase", func() {
		assert.Equal(suite.T(), "classic-margherita-pizza", Slugify("Classic Margherita Pizza"))
	})

	suite.Run("AccentedTitle_ShouldTransliterate", func() {
		assert.Equal(suite.T(), "creme-brulee", Slugify("Crème Brûlée"))
		assert.Equal(suite.T(), "pate-a-choux", Slugify("Pâte à Choux"))
	})

	suite.Run("Punctuation_ShouldCollapseToSingleDash", func() {
		assert.Equal(suite.T(), "mom-s-best-cookies", Slugify("Mom's  Best Cookies!"))
		assert.Equal(suite.T(), "a-b", Slugify("a --- b"))
	})

	suite.Run("InnerDots_ShouldSurvive", func() {
		assert.Equal(suite.T(), "recipe-v1.2", Slugify("Recipe v1.2"))
	})

	suite.Run("EdgeDotsAndDashes_ShouldBeTrimmed", func() {
		assert.Equal(suite.T(), "v1.2-sourdough", Slugify("..v1.2 Sourdough.."))
		assert.Equal(suite.T(), "toast", Slugify("-toast-"))
	})

	suite.Run("UntransliterableTitle_ShouldFallBack", func() {
		assert.Equal(suite.T(), "recipe", Slugify("日本のカレー"))
		assert.Equal(suite.T(), "recipe", Slugify("   "))
		assert.Equal(suite.T(), "recipe", Slugify(""))
	})

	suite.Run("MixedScript_ShouldKeepASCIIRuns", func() {
		assert.Equal(suite.T(), "miso-soup", Slugify("味噌 Miso Soup"))
	})

	suite.Run("Slug_ShouldBeIdempotent", func() {
		once := Slugify("Grandma's Ragù alla Bolognese")
		assert.Equal(suite.T(), once, Slugify(once))
	})
}

func TestSlugTestSuite(t *testing.T) {
	suite.Run(t, new(SlugTestSuite))
}
