package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/integra/pkg/schema"
)

const requestSchemaURL = "https://integra.dev/schemas/request.json"

// requestSchemaJSON is the JSON Schema for an integration request document.
// The allOf block requires every box axis implied by the dimension.
const requestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://integra.dev/schemas/request.json",
  "type": "object",
  "required": ["expression", "dimension", "box"],
  "properties": {
    "expression": {
      "type": "string",
      "minLength": 1,
      "maxLength": 4096
    },
    "dimension": {
      "type": "integer",
      "enum": [1, 2, 3]
    },
    "box": {
      "type": "object",
      "properties": {
        "x": { "$ref": "#/$defs/range" },
        "y": { "$ref": "#/$defs/range" },
        "z": { "$ref": "#/$defs/range" }
      },
      "additionalProperties": false
    },
    "steps": {
      "type": "integer",
      "minimum": 1
    },
    "resolution": {
      "type": "integer",
      "minimum": 1
    },
    "backend": {
      "type": "string",
      "enum": ["native", "expr"]
    },
    "query": {
      "type": "string"
    }
  },
  "additionalProperties": false,
  "allOf": [
    {
      "if": { "properties": { "dimension": { "const": 1 } } },
      "then": { "properties": { "box": { "required": ["x"] } } }
    },
    {
      "if": { "properties": { "dimension": { "const": 2 } } },
      "then": { "properties": { "box": { "required": ["x", "y"] } } }
    },
    {
      "if": { "properties": { "dimension": { "const": 3 } } },
      "then": { "properties": { "box": { "required": ["x", "y", "z"] } } }
    }
  ],
  "$defs": {
    "range": {
      "type": "array",
      "items": { "type": "number" },
      "minItems": 2,
      "maxItems": 2
    }
  }
}`

// JSONSchemaValidator validates request documents against the request
// schema. It is safe for concurrent use.
type JSONSchemaValidator struct {
	requestSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the request
// schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(requestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal request schema: %w", err)
	}
	if err := c.AddResource(requestSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add request schema resource: %w", err)
	}

	compiled, err := c.Compile(requestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &JSONSchemaValidator{requestSchema: compiled}, nil
}

// ValidateJSON validates a raw request document.
func (v *JSONSchemaValidator) ValidateJSON(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "request is not valid JSON").WithCause(err)
	}
	if err := v.requestSchema.Validate(doc); err != nil {
		return toIntegraError(err)
	}
	return nil
}

// ValidateRequest validates an already decoded request.
func (v *JSONSchemaValidator) ValidateRequest(req *schema.IntegrationRequest) error {
	if req == nil {
		return schema.NewError(schema.ErrCodeValidation, "request is nil")
	}
	doc, err := toJSONValue(req)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize request").WithCause(err)
	}
	if err := v.requestSchema.Validate(doc); err != nil {
		return toIntegraError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON so that numbers become
// json.Number, as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// toIntegraError converts a jsonschema.ValidationError into an IntegraError
// listing every leaf violation.
func toIntegraError(err error) *schema.IntegraError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// prefixed with their instance location.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		return []string{fmt.Sprintf("%s: %s", instancePath(verr.InstanceLocation), verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

func instancePath(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	return "/" + strings.Join(loc, "/")
}
