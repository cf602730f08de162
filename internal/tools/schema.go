package tools

import (
	"encoding/json"
	"sort"

	"trinity/pkg/errors"
)

// Param declares a single tool parameter.
type Param struct {
	Type        string      `json:"type"` // string|number|integer|boolean|array|object
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// Schema maps parameter names to their declarations.
type Schema map[string]Param

// Validate checks args against the schema and returns a copy with defaults
// applied for absent optional parameters. The input map is not mutated.
func (s Schema) Validate(args map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args)+len(s))
	for k, v := range args {
		out[k] = v
	}

	for name, param := range s {
		value, present := out[name]
		if !present {
			if param.Required {
				return nil, errors.NewValidationError(name, "required parameter missing", nil)
			}
			if param.Default != nil {
				out[name] = param.Default
			}
			continue
		}

		if !typeMatches(param.Type, value) {
			return nil, errors.NewValidationError(name, "expected type "+param.Type, value)
		}
	}

	return out, nil
}

func typeMatches(declared string, value interface{}) bool {
	if value == nil {
		return false
	}

	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON decoding yields float64 for all numbers
			return v == float64(int64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []interface{}, []string:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		// Unknown declared type: accept anything rather than reject valid calls
		return true
	}
}

// JSONSchema renders the schema as a JSON-Schema object suitable for
// LLM function calling definitions.
func (s Schema) JSONSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s))
	required := make([]string, 0)

	for name, param := range s {
		prop := map[string]interface{}{"type": param.Type}
		if param.Description != "" {
			prop["description"] = param.Description
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[name] = prop

		if param.Required {
			required = append(required, name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}
