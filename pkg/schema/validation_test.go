package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_Valid(t *testing.T) {
	var nilResult *ValidationResult
	assert.True(t, nilResult.Valid())
	assert.NoError(t, nilResult.ToError())
	assert.True(t, (&ValidationResult{}).Valid())
}

func TestValidationResult_AddError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/box/y", ErrCodeValidation, "axis y is required for dimension 2")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "/box/y", r.Errors[0].Path)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
	assert.Equal(t, "/box/y: axis y is required for dimension 2", r.Errors[0].String())
}

func TestValidationResult_WarningsKeepResultValid(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("/box/x", WarnCodeInvertedRange, "min is greater than max")

	assert.True(t, r.Valid())
	assert.True(t, r.HasWarning(WarnCodeInvertedRange))
	assert.False(t, r.HasWarning(WarnCodeOddSteps))
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
	assert.NoError(t, r.ToError())
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.AddError("/", ErrCodeValidation, "err1")

	r2 := &ValidationResult{}
	r2.AddError("/dimension", ErrCodeValidation, "err2")
	r2.AddWarning("/box/z", WarnCodeDegenerateAxis, "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	assert.Len(t, r1.Errors, 2)
	assert.True(t, r1.HasWarning(WarnCodeDegenerateAxis))
}

func TestValidationResult_ToError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddError("/", ErrCodeValidation, "expression is required")

		ie, ok := r.ToError().(*IntegraError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeValidation, ie.Code)
		assert.Equal(t, "expression is required", ie.Message)
		assert.Equal(t, []string{"expression is required"}, ie.Details["violations"])
		assert.NotContains(t, ie.Details, "warnings")
	})

	t.Run("multiple errors", func(t *testing.T) {
		r := &ValidationResult{}
		r.AddError("/dimension", ErrCodeValidation, "must be 1, 2 or 3")
		r.AddError("/box/x", ErrCodeValidation, "bounds must be finite")
		r.AddWarning("/steps", WarnCodeOddSteps, "odd")

		ie, ok := r.ToError().(*IntegraError)
		require.True(t, ok)
		assert.Equal(t, "2 problems in request: /dimension: must be 1, 2 or 3; /box/x: bounds must be finite", ie.Message)
		assert.Len(t, ie.Details["violations"], 2)
		assert.Len(t, ie.Details["warnings"], 1)
	})
}
