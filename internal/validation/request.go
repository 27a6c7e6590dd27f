package validation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rendis/integra/pkg/schema"
)

var axisNames = []string{"x", "y", "z"}

// RequestValidator runs the two-stage request pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (finite bounds, plus warnings for inputs that are legal but
// probably not what the caller meant)
type RequestValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewRequestValidator creates a RequestValidator.
func NewRequestValidator() (*RequestValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &RequestValidator{jsonSchema: jsv}, nil
}

// Validate checks a decoded request. Structural errors short-circuit the
// semantic stage.
func (v *RequestValidator) Validate(req *schema.IntegrationRequest) *schema.ValidationResult {
	result := structural(v.jsonSchema.ValidateRequest(req))
	if !result.Valid() {
		return result
	}
	result.Merge(validateSemantic(req))
	return result
}

// Decode validates a raw request document and decodes it. The returned
// request is nil when the result has errors.
func (v *RequestValidator) Decode(data []byte) (*schema.IntegrationRequest, *schema.ValidationResult) {
	result := structural(v.jsonSchema.ValidateJSON(data))
	if !result.Valid() {
		return nil, result
	}

	var req schema.IntegrationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return nil, result
	}

	result.Merge(validateSemantic(&req))
	if !result.Valid() {
		return nil, result
	}
	return &req, result
}

// structural converts a JSONSchemaValidator error into a ValidationResult.
func structural(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	ierr, ok := err.(*schema.IntegraError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := ierr.Details["violations"].([]string); ok {
		for _, msg := range violations {
			result.AddError("/", schema.ErrCodeValidation, msg)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, ierr.Message)
	return result
}

// validateSemantic checks what the schema cannot express.
func validateSemantic(req *schema.IntegrationRequest) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	for i, r := range req.Box.Axes(req.Dimension) {
		path := "/box/" + axisNames[i]
		switch {
		case !finite(r.Min()) || !finite(r.Max()):
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("%s bounds must be finite", axisNames[i]))
		case r.Extent() == 0:
			result.AddWarning(path, schema.WarnCodeDegenerateAxis,
				fmt.Sprintf("%s range has zero width; the integral is 0", axisNames[i]))
		case r.Extent() < 0:
			result.AddWarning(path, schema.WarnCodeInvertedRange,
				fmt.Sprintf("%s range is inverted; the integral changes sign", axisNames[i]))
		}
	}

	if req.Dimension == 1 && req.Steps > 0 && req.Steps%2 != 0 {
		result.AddWarning("/steps", schema.WarnCodeOddSteps,
			fmt.Sprintf("odd step count %d is rounded up to %d for Simpson's rule", req.Steps, req.Steps+1))
	}
	return result
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
