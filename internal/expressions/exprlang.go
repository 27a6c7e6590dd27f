package expressions

import (
	"fmt"
	"math"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/integra/pkg/schema"
)

// ExprLangCompiler compiles normalized expressions with expr-lang/expr.
// Text is first parsed by the native grammar so both backends accept the
// same language; expr-lang then type-checks it, which is stricter: boolean
// operands cannot be used as numbers and % needs integers.
// Thread-safe: compiled *vm.Program objects are cached and reused across goroutines.
type ExprLangCompiler struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprLangCompiler creates a new expr-lang compiler.
func NewExprLangCompiler() *ExprLangCompiler {
	return &ExprLangCompiler{
		cache: make(map[string]*vm.Program),
	}
}

// Name returns the backend identifier.
func (c *ExprLangCompiler) Name() string {
	return BackendExpr
}

// Compile checks and normalizes text, then compiles (or retrieves from
// cache) the expr-lang program for the normalized form.
func (c *ExprLangCompiler) Compile(text string) (*Expression, error) {
	toks, err := prepare(text)
	if err != nil {
		return nil, err
	}
	if _, err := parse(toks); err != nil {
		return nil, err
	}
	normalized := render(toks)

	prg, err := c.getOrCompile(normalized)
	if err != nil {
		return nil, err
	}
	return &Expression{
		text:       text,
		normalized: normalized,
		backend:    BackendExpr,
		program:    &vmProgram{program: prg},
	}, nil
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
func (c *ExprLangCompiler) getOrCompile(normalized string) (*vm.Program, error) {
	c.mu.RLock()
	if prg, ok := c.cache[normalized]; ok {
		c.mu.RUnlock()
		return prg, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := c.cache[normalized]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(normalized, exprOptions()...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
			"expr compile error in %q: %s", normalized, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": normalized})
	}

	c.cache[normalized] = prg
	return prg, nil
}

// exprEnv is the evaluation environment: the three variables plus constants.
type exprEnv struct {
	X  float64 `expr:"x"`
	Y  float64 `expr:"y"`
	Z  float64 `expr:"z"`
	Pi float64 `expr:"pi"`
	E  float64 `expr:"e"`
}

func exprOptions() []expr.Option {
	opts := []expr.Option{
		expr.Env(exprEnv{}),
		expr.DisableAllBuiltins(),
	}
	for _, name := range FunctionNames() {
		opts = append(opts, exprFunction(name, functions[name]))
	}
	return opts
}

func exprFunction(name string, fn mathFunc) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) < fn.minArgs || (fn.maxArgs >= 0 && len(params) > fn.maxArgs) {
			return nil, fmt.Errorf("wrong number of arguments to %s: got %d", name, len(params))
		}
		args := make([]float64, len(params))
		for i, p := range params {
			v, err := toFloat(p)
			if err != nil {
				return nil, fmt.Errorf("%s argument %d: %w", name, i+1, err)
			}
			args[i] = v
		}
		return fn.call(args), nil
	})
}

// vmProgram evaluates a compiled program. VMs are pooled because a VM
// is not safe for concurrent use.
type vmProgram struct {
	program *vm.Program
	vms     sync.Pool
}

func (p *vmProgram) evaluate(x, y, z float64) (float64, error) {
	machine, _ := p.vms.Get().(*vm.VM)
	if machine == nil {
		machine = &vm.VM{}
	}
	defer p.vms.Put(machine)

	out, err := machine.Run(p.program, exprEnv{X: x, Y: y, Z: z, Pi: math.Pi, E: math.E})
	if err != nil {
		return 0, err
	}
	return toFloat(out)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case bool:
		return boolean(n), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

var _ Compiler = (*ExprLangCompiler)(nil)
