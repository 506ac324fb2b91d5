package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cookbookhq/backend/internal/infrastructure/ai/prompts"
	"go.uber.org/zap"
)

// SchemaTestSuite tests JSON schema conversion and response flattening
type SchemaTestSuite struct {
	suite.Suite
}

// TestSchemaConversion tests mapping JSON schema documents to the API form
func (suite *SchemaTestSuite) TestSchemaConversion() {
	suite.Run("ObjectSchema_ShouldMapAllSupportedKeys", func() {
		// Arrange
		doc := []byte(`{
			"type": "object",
			"description": "a wrapper",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "description": "display name"},
				"count": {"type": "integer", "nullable": true},
				"kind": {"type": "string", "enum": ["a", "b"]},
				"when": {"type": "string", "format": "date"},
				"items": {"type": "array", "items": {"type": "number"}}
			}
		}`)

		// Act
		schema, err := schemaFromJSON(doc)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), genai.TypeObject, schema.Type)
		assert.Equal(suite.T(), "a wrapper", schema.Description)
		assert.Equal(suite.T(), []string{"name"}, schema.Required)

		assert.Equal(suite.T(), genai.TypeString, schema.Properties["name"].Type)
		assert.Equal(suite.T(), "display name", schema.Properties["name"].Description)
		assert.True(suite.T(), schema.Properties["count"].Nullable)
		assert.Equal(suite.T(), []string{"a", "b"}, schema.Properties["kind"].Enum)
		assert.Equal(suite.T(), "date", schema.Properties["when"].Format)
		assert.Equal(suite.T(), genai.TypeArray, schema.Properties["items"].Type)
		assert.Equal(suite.T(), genai.TypeNumber, schema.Properties["items"].Items.Type)
	})

	suite.Run("UnsupportedType_ShouldFail", func() {
		// Act
		_, err := schemaFromJSON([]byte(`{"type": "tuple"}`))

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "unsupported schema type")
	})

	suite.Run("NestedFailure_ShouldNameTheProperty", func() {
		// Act
		_, err := schemaFromJSON([]byte(`{
			"type": "object",
			"properties": {"inner": {"type": "object", "properties": {"bad": {"type": "tuple"}}}}
		}`))

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), `property "inner"`)
		assert.Contains(suite.T(), err.Error(), `property "bad"`)
	})

	suite.Run("MalformedJSON_ShouldFail", func() {
		// Act
		_, err := schemaFromJSON([]byte("{not json"))

		// Assert
		assert.Error(suite.T(), err)
	})

	suite.Run("ShippedResponseSchema_ShouldConvert", func() {
		// Arrange
		library, err := prompts.NewLibrary("", zap.NewNop())
		require.NoError(suite.T(), err)
		defer library.Close()

		// Act
		schema, err := schemaFromJSON(library.Schema())

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), genai.TypeObject, schema.Type)
		require.Contains(suite.T(), schema.Properties, "recipes")
		recipes := schema.Properties["recipes"]
		assert.Equal(suite.T(), genai.TypeArray, recipes.Type)
		require.NotNil(suite.T(), recipes.Items)
		assert.Contains(suite.T(), recipes.Items.Properties, "metadata")
		assert.Equal(suite.T(),
			[]string{"easy", "medium", "hard"},
			recipes.Items.Properties["metadata"].Properties["difficulty"].Enum,
		)
	})
}

// TestResponseText tests flattening API responses into model output text
func (suite *SchemaTestSuite) TestResponseText() {
	suite.Run("TextParts_ShouldConcatenate", func() {
		// Arrange
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content: &genai.Content{
					Parts: []genai.Part{genai.Text(`{"is_recipe":`), genai.Text(" false}")},
				},
			}},
		}

		// Act
		text, err := responseText(resp)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), `{"is_recipe": false}`, text)
	})

	suite.Run("MaxTokens_ShouldFail", func() {
		// Arrange
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonMaxTokens,
				Content:      &genai.Content{Parts: []genai.Part{genai.Text("{")}},
			}},
		}

		// Act
		_, err := responseText(resp)

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "truncated")
	})

	suite.Run("SafetyStop_ShouldFail", func() {
		// Arrange
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}

		// Act
		_, err := responseText(resp)

		// Assert
		assert.Error(suite.T(), err)
	})

	suite.Run("BlockedPrompt_ShouldReportReason", func() {
		// Arrange
		resp := &genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		}

		// Act
		_, err := responseText(resp)

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "prompt blocked")
	})

	suite.Run("NoCandidates_ShouldFail", func() {
		// Act
		_, err := responseText(&genai.GenerateContentResponse{})

		// Assert
		assert.Error(suite.T(), err)
	})
}

func TestSchemaTestSuite(t *testing.T) {
	suite.Run(t, new(SchemaTestSuite))
}
