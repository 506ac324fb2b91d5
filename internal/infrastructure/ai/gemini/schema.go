package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// schemaFromJSON converts a JSON schema document into the representation
// the Gemini API accepts for constrained decoding. Only the subset Gemini
// supports is honored: type, format, description, nullable, enum,
// properties, required, and items. Unknown keys are ignored.
func schemaFromJSON(data []byte) (*genai.Schema, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse response schema: %w", err)
	}
	return convertSchema(doc)
}

func convertSchema(doc map[string]interface{}) (*genai.Schema, error) {
	out := &genai.Schema{}

	if t, ok := doc["type"].(string); ok {
		switch t {
		case "object":
			out.Type = genai.TypeObject
		case "array":
			out.Type = genai.TypeArray
		case "string":
			out.Type = genai.TypeString
		case "number":
			out.Type = genai.TypeNumber
		case "integer":
			out.Type = genai.TypeInteger
		case "boolean":
			out.Type = genai.TypeBoolean
		default:
			return nil, fmt.Errorf("unsupported schema type %q", t)
		}
	}

	if desc, ok := doc["description"].(string); ok {
		out.Description = desc
	}
	if format, ok := doc["format"].(string); ok {
		out.Format = format
	}
	if nullable, ok := doc["nullable"].(bool); ok {
		out.Nullable = nullable
	}

	if enum, ok := doc["enum"].([]interface{}); ok {
		for _, v := range enum {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("enum values must be strings, got %T", v)
			}
			out.Enum = append(out.Enum, s)
		}
	}

	if props, ok := doc["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("property %q must be an object", name)
			}
			converted, err := convertSchema(sub)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}

	if required, ok := doc["required"].([]interface{}); ok {
		for _, v := range required {
			if s, ok := v.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	if items, ok := doc["items"].(map[string]interface{}); ok {
		converted, err := convertSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = converted
	}

	return out, nil
}
