package expressions

import (
	"math"
	"testing"

	"github.com/rendis/integra/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNativeCompiler(t *testing.T) {
	c := NewNativeCompiler()
	assert.Equal(t, BackendNative, c.Name())
}

func TestNewCompiler(t *testing.T) {
	c, err := NewCompiler("")
	require.NoError(t, err)
	assert.Equal(t, BackendNative, c.Name())

	c, err = NewCompiler(BackendExpr)
	require.NoError(t, err)
	assert.Equal(t, BackendExpr, c.Name())

	_, err = NewCompiler("javascript")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidRequest))
}

func compile(t *testing.T, text string) *Expression {
	t.Helper()
	e, err := NewNativeCompiler().Compile(text)
	require.NoError(t, err, "compile %q", text)
	return e
}

// --- Evaluation ---

func TestNative_Evaluate(t *testing.T) {
	tests := []struct {
		text    string
		x, y, z float64
		want    float64
	}{
		{"x*x + y", 2, 3, 0, 7},
		{"x + y + z", 1, 2, 3, 6},
		{"2^3^2", 0, 0, 0, 512},
		{"-2^2", 0, 0, 0, -4},
		{"2**-1", 0, 0, 0, 0.5},
		{"10 % 4", 0, 0, 0, 2},
		{"(x*x + y*y + z*z <= 1) ? 1 : 0", 0, 0, 0, 1},
		{"(x*x + y*y + z*z <= 1) ? 1 : 0", 1, 1, 1, 0},
		{"x > 0 ? y > 0 ? 1 : 2 : 3", 1, -1, 0, 2},
		{"x > 0 && y > 0", 1, 1, 0, 1},
		{"x > 0 && y > 0", 1, -1, 0, 0},
		{"x > 0 || y > 0", -1, 1, 0, 1},
		{"!x", 0, 0, 0, 1},
		{"x == 2", 2, 0, 0, 1},
		{"x != 2", 2, 0, 0, 0},
		{"round(-2.5)", 0, 0, 0, -2},
		{"round(2.5)", 0, 0, 0, 3},
		{"min(3, x, 1)", 2, 0, 0, 1},
		{"max(x)", 4, 0, 0, 4},
		{"abs(floor(-1.5)) + ceil(0.2)", 0, 0, 0, 3},
		{"pow(x, 3)", 2, 0, 0, 8},
		{"1e3", 0, 0, 0, 1000},
		{".5x", 2, 0, 0, 1},
		{"sign(-3) + sign(0) + sign(3)", 0, 0, 0, 0},
		{"hypot(3, 4)", 0, 0, 0, 5},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			e := compile(t, tc.text)
			assert.InDelta(t, tc.want, e.Eval(tc.x, tc.y, tc.z), 1e-12)
		})
	}
}

func TestNative_Constants(t *testing.T) {
	assert.InDelta(t, math.Pi, compile(t, "pi").Eval(0, 0, 0), 1e-15)
	assert.InDelta(t, math.E, compile(t, "e").Eval(0, 0, 0), 1e-15)
	assert.InDelta(t, 2*math.Pi, compile(t, "2pi").Eval(0, 0, 0), 1e-15)
	assert.InDelta(t, math.Pi, compile(t, "Math.PI").Eval(0, 0, 0), 1e-15)
	assert.InDelta(t, math.E, compile(t, "Math.E").Eval(0, 0, 0), 1e-15)
}

func TestNative_LibraryFunctions(t *testing.T) {
	e := compile(t, "Math.sin(x) * Math.cos(y)")
	assert.InDelta(t, 1.0, e.Eval(math.Pi/2, 0, 0), 1e-12)

	e = compile(t, "ln(e)")
	assert.InDelta(t, 1.0, e.Eval(0, 0, 0), 1e-12)

	e = compile(t, "Math.exp(-x*x)")
	assert.InDelta(t, math.Exp(-4), e.Eval(2, 0, 0), 1e-12)
}

// --- Fail-soft evaluation ---

func TestNative_DivisionByZeroFallsBack(t *testing.T) {
	e := compile(t, "1/x")

	assert.Equal(t, Fallback, e.Eval(0, 0, 0))
	assert.InDelta(t, 0.5, e.Eval(2, 0, 0), 1e-15)

	_, err := e.Try(0, 0, 0)
	assert.ErrorIs(t, err, errDivisionByZero)
}

func TestNative_NonFiniteFallsBack(t *testing.T) {
	for _, text := range []string{"sqrt(-1)", "log(0)", "exp(1000)", "x % 0", "0/0"} {
		t.Run(text, func(t *testing.T) {
			v := compile(t, text).Eval(1, 0, 0)
			assert.Equal(t, Fallback, v)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		})
	}
}

func TestNative_ShortCircuitSkipsFailingBranch(t *testing.T) {
	e := compile(t, "x == 0 || 1/x > 0")
	assert.Equal(t, 1.0, e.Eval(0, 0, 0))

	e = compile(t, "x == 0 ? 5 : 1/x")
	assert.Equal(t, 5.0, e.Eval(0, 0, 0))
}

// --- Rejection ---

func TestNative_InvalidExpressions(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"import os",
		"x; y",
		"x_1",
		"`rm`",
		"window.alert(1)",
		"Math.random()",
		"sin x",
		"sin",
		"x +",
		"(x",
		"x)",
		"sin(x, y)",
		"pow(x)",
		"min()",
		"x ? 1",
		"x y",
		"2 x",
		"1.2.3",
		"[x]",
		"\"x\"",
	}

	c := NewNativeCompiler()
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := c.Compile(text)
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidExpression), "got %v", err)
		})
	}
}

func TestNative_AccessorsKeepSubmittedText(t *testing.T) {
	e := compile(t, "2x^2")
	assert.Equal(t, "2x^2", e.Text())
	assert.Equal(t, "2 * x ** 2", e.Normalized())
	assert.Equal(t, BackendNative, e.Backend())
	assert.InDelta(t, 18.0, e.Func()(3, 0, 0), 1e-12)
}
