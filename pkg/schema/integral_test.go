package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBox_Axes(t *testing.T) {
	b := Box{X: Range{0, 1}, Y: Range{2, 3}, Z: Range{4, 5}}

	assert.Equal(t, []Range{{0, 1}}, b.Axes(1))
	assert.Equal(t, []Range{{0, 1}, {2, 3}}, b.Axes(2))
	assert.Len(t, b.Axes(3), 3)
	assert.Nil(t, b.Axes(0))
	assert.Nil(t, b.Axes(4))
}

func TestBox_Degenerate(t *testing.T) {
	b := Box{X: Range{0, 1}, Y: Range{2, 2}}

	assert.False(t, b.Degenerate(1))
	assert.True(t, b.Degenerate(2))
	assert.True(t, b.Degenerate(3), "zero z range is degenerate too")
}

func TestRange_Extent(t *testing.T) {
	assert.Equal(t, 2.0, Range{-1, 1}.Extent())
	assert.Equal(t, -2.0, Range{1, -1}.Extent())
	assert.Equal(t, 0.0, Range{3, 3}.Extent())
}

func TestIntegrationRequest_WithDefaults(t *testing.T) {
	r := IntegrationRequest{}.WithDefaults()
	assert.Equal(t, DefaultResolution, r.Resolution)
	assert.Equal(t, DefaultResolution*StepsPerResolution, r.Steps)

	r = IntegrationRequest{Resolution: 20}.WithDefaults()
	assert.Equal(t, 100, r.Steps)

	r = IntegrationRequest{Resolution: 20, Steps: 7}.WithDefaults()
	assert.Equal(t, 7, r.Steps)
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(ErrCodeNoExpression, "no expression"))

	assert.True(t, IsCode(err, ErrCodeNoExpression))
	assert.False(t, IsCode(err, ErrCodeStore))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeStore))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(NewError(ErrCodeInvalidExpression, "bad")))
	assert.True(t, IsClientError(NewError(ErrCodeRequestRejected, "too big")))
	assert.False(t, IsClientError(NewError(ErrCodeStore, "disk")))
	assert.False(t, IsClientError(errors.New("plain")))
}

func TestIntegraError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewErrorf(ErrCodeStore, "save run %s", "abc").WithCause(cause)

	assert.Equal(t, "[STORE_ERROR] save run abc", err.Error())
	assert.ErrorIs(t, err, cause)
}
