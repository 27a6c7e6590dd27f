package expressions

import (
	"math"
	"strings"

	"github.com/rendis/integra/pkg/schema"
)

// Compiler backends.
const (
	BackendNative = "native"
	BackendExpr   = "expr"
)

// Fallback is the value an Expression yields when an evaluation fails or is
// not finite.
const Fallback = 0.0

// Compiler turns expression text into an Expression.
// Two implementations: Native (recursive descent) and ExprLang (expr-lang/expr).
type Compiler interface {
	Name() string
	Compile(text string) (*Expression, error)
}

// NewCompiler returns the compiler for the named backend. An empty name
// selects the native compiler.
func NewCompiler(backend string) (Compiler, error) {
	switch backend {
	case "", BackendNative:
		return NewNativeCompiler(), nil
	case BackendExpr:
		return NewExprLangCompiler(), nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeInvalidRequest,
		"unknown expression backend %q (want %s or %s)", backend, BackendNative, BackendExpr)
}

// evaluator is a compiled program. It reports failures instead of hiding them.
type evaluator interface {
	evaluate(x, y, z float64) (float64, error)
}

// Expression is an immutable compiled expression of x, y and z.
type Expression struct {
	text       string
	normalized string
	backend    string
	program    evaluator
}

// Text returns the expression as submitted.
func (e *Expression) Text() string { return e.text }

// Normalized returns the canonical text that was compiled.
func (e *Expression) Normalized() string { return e.normalized }

// Backend returns the name of the compiler that produced the expression.
func (e *Expression) Backend() string { return e.backend }

// Eval evaluates the expression at (x, y, z). It never fails: evaluation
// errors and non-finite results yield Fallback.
func (e *Expression) Eval(x, y, z float64) float64 {
	v, err := e.program.evaluate(x, y, z)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Fallback
	}
	return v
}

// Try evaluates the expression at (x, y, z) without the fallback, for
// diagnostics. A non-finite result is returned as is.
func (e *Expression) Try(x, y, z float64) (float64, error) {
	return e.program.evaluate(x, y, z)
}

// Func returns Eval as a plain function value for tight loops.
func (e *Expression) Func() func(x, y, z float64) float64 {
	return e.Eval
}

// prepare runs the checks and rewrites shared by every backend and returns
// the normalized token stream.
func prepare(text string) ([]token, error) {
	if strings.TrimSpace(text) == "" {
		return nil, schema.NewError(schema.ErrCodeInvalidExpression, "empty expression")
	}
	if err := checkAllowList(text); err != nil {
		return nil, err
	}
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	return normalize(toks)
}
