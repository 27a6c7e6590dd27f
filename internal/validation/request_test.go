package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/integra/pkg/schema"
)

func newTestValidator(t *testing.T) *RequestValidator {
	t.Helper()
	v, err := NewRequestValidator()
	require.NoError(t, err)
	return v
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.requestSchema)
}

func TestDecode_Valid(t *testing.T) {
	v := newTestValidator(t)

	req, result := v.Decode([]byte(`{
		"expression": "sin(x) * cos(y)",
		"dimension": 2,
		"box": {"x": [0, 3.14159], "y": [0, 3.14159]},
		"steps": 40,
		"resolution": 12,
		"backend": "expr",
		"query": "[.[] | select(.value > 0)]"
	}`))
	require.True(t, result.Valid(), "%v", result.Errors)
	require.NotNil(t, req)
	assert.Equal(t, "sin(x) * cos(y)", req.Expression)
	assert.Equal(t, 2, req.Dimension)
	assert.Equal(t, schema.Range{0, 3.14159}, req.Box.Y)
	assert.Equal(t, 40, req.Steps)
	assert.Equal(t, 12, req.Resolution)
	assert.Equal(t, "expr", req.Backend)
	assert.Empty(t, result.Warnings)
}

func TestDecode_Minimal(t *testing.T) {
	v := newTestValidator(t)

	req, result := v.Decode([]byte(`{"expression": "x", "dimension": 1, "box": {"x": [0, 1]}}`))
	require.True(t, result.Valid())
	assert.Zero(t, req.Steps)
	assert.Zero(t, req.Resolution)
}

func TestDecode_MissingAxis(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"2d without y", `{"expression": "x", "dimension": 2, "box": {"x": [0, 1]}}`},
		{"3d without z", `{"expression": "x", "dimension": 3, "box": {"x": [0, 1], "y": [0, 1]}}`},
		{"1d empty box", `{"expression": "x", "dimension": 1, "box": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, result := v.Decode([]byte(tt.doc))
			assert.Nil(t, req)
			assert.False(t, result.Valid())
			assert.True(t, schema.IsCode(result.ToError(), schema.ErrCodeValidation))
		})
	}
}

func TestDecode_StructuralErrors(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name    string
		doc     string
		wantLoc string
	}{
		{"dimension 4", `{"expression": "x", "dimension": 4, "box": {"x": [0, 1]}}`, "/dimension"},
		{"fractional dimension", `{"expression": "x", "dimension": 1.5, "box": {"x": [0, 1]}}`, "/dimension"},
		{"zero steps", `{"expression": "x", "dimension": 1, "box": {"x": [0, 1]}, "steps": 0}`, "/steps"},
		{"negative resolution", `{"expression": "x", "dimension": 1, "box": {"x": [0, 1]}, "resolution": -2}`, "/resolution"},
		{"empty expression", `{"expression": "", "dimension": 1, "box": {"x": [0, 1]}}`, "/expression"},
		{"short range", `{"expression": "x", "dimension": 1, "box": {"x": [0]}}`, "/box/x"},
		{"string bound", `{"expression": "x", "dimension": 1, "box": {"x": ["0", 1]}}`, "/box/x/0"},
		{"unknown backend", `{"expression": "x", "dimension": 1, "box": {"x": [0, 1]}, "backend": "js"}`, "/backend"},
		{"unknown field", `{"expression": "x", "dimension": 1, "box": {"x": [0, 1]}, "method": "monte-carlo"}`, "/"},
		{"missing expression", `{"dimension": 1, "box": {"x": [0, 1]}}`, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, result := v.Decode([]byte(tt.doc))
			assert.Nil(t, req)
			require.False(t, result.Valid())

			found := false
			for _, issue := range result.Errors {
				if strings.HasPrefix(issue.Message, tt.wantLoc) {
					found = true
				}
			}
			assert.True(t, found, "no violation at %s in %v", tt.wantLoc, result.Errors)
		})
	}
}

func TestDecode_NotJSON(t *testing.T) {
	v := newTestValidator(t)

	req, result := v.Decode([]byte(`{"expression": `))
	assert.Nil(t, req)
	assert.False(t, result.Valid())
}

func TestDecode_Warnings(t *testing.T) {
	v := newTestValidator(t)

	req, result := v.Decode([]byte(`{
		"expression": "x",
		"dimension": 1,
		"box": {"x": [1, 0]},
		"steps": 7
	}`))
	require.True(t, result.Valid())
	require.NotNil(t, req)

	codes := map[string]string{}
	for _, w := range result.Warnings {
		codes[w.Code] = w.Path
	}
	assert.Equal(t, "/box/x", codes[schema.WarnCodeInvertedRange])
	assert.Equal(t, "/steps", codes[schema.WarnCodeOddSteps])
}

func TestValidate_Struct(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate(&schema.IntegrationRequest{
		Expression: "x*y*z",
		Dimension:  3,
		Box:        schema.Box{X: schema.Range{-1, 1}, Y: schema.Range{2, 2}, Z: schema.Range{-1, 1}},
	})
	require.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, schema.WarnCodeDegenerateAxis, result.Warnings[0].Code)
	assert.Equal(t, "/box/y", result.Warnings[0].Path)

	result = v.Validate(&schema.IntegrationRequest{Expression: "x", Dimension: 0})
	assert.False(t, result.Valid())

	result = v.Validate(nil)
	assert.False(t, result.Valid())
}

func TestValidate_InactiveAxesIgnored(t *testing.T) {
	v := newTestValidator(t)

	// Inverted y is irrelevant to a 1D request.
	result := v.Validate(&schema.IntegrationRequest{
		Expression: "x",
		Dimension:  1,
		Box:        schema.Box{X: schema.Range{0, 1}, Y: schema.Range{1, 0}},
	})
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidateSemantic_NonFinite(t *testing.T) {
	result := validateSemantic(&schema.IntegrationRequest{
		Expression: "x",
		Dimension:  1,
		Box:        schema.Box{X: schema.Range{0, math.Inf(1)}},
	})
	require.False(t, result.Valid())
	assert.Equal(t, "/box/x", result.Errors[0].Path)
}

func TestToIntegraError_Details(t *testing.T) {
	jsv, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = jsv.ValidateJSON([]byte(`{"expression": "", "dimension": 9, "box": {}}`))
	require.Error(t, err)

	ierr, ok := err.(*schema.IntegraError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, ierr.Code)
	violations, ok := ierr.Details["violations"].([]string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(violations), 2)
}
