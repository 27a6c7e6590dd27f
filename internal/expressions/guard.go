package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/rendis/integra/pkg/schema"
)

// DefaultGuardPolicy bounds the per-axis step count by dimension, since
// quadrature cost grows as steps^dimension, and caps the sample resolution.
const DefaultGuardPolicy = `steps <= (dimension == 1 ? 200000 : (dimension == 2 ? 2000 : 200)) && resolution <= (dimension == 3 ? 60 : 500)`

// RequestGuard evaluates a CEL policy over the size of an integration
// request before any work is done. The environment exposes three int
// variables: dimension, steps and resolution.
// Thread-safe: the compiled program is immutable.
type RequestGuard struct {
	policy string
	prg    cel.Program
}

// NewRequestGuard compiles policy. An empty policy yields a nil guard, which
// admits every request.
func NewRequestGuard(policy string) (*RequestGuard, error) {
	if policy == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("dimension", cel.IntType),
		cel.Variable("steps", cel.IntType),
		cel.Variable("resolution", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(policy)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL compile error in guard policy %q: %s", policy, issues.Err().Error()).
			WithCause(issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"guard policy %q must evaluate to bool, got %s", policy, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"CEL program error for guard policy %q: %s", policy, err.Error()).
			WithCause(err)
	}

	return &RequestGuard{policy: policy, prg: prg}, nil
}

// Policy returns the policy source.
func (g *RequestGuard) Policy() string {
	if g == nil {
		return ""
	}
	return g.policy
}

// Check admits or rejects a request of the given size.
func (g *RequestGuard) Check(ctx context.Context, dimension, steps, resolution int) error {
	if g == nil {
		return nil
	}

	out, _, err := g.prg.ContextEval(ctx, map[string]any{
		"dimension":  int64(dimension),
		"steps":      int64(steps),
		"resolution": int64(resolution),
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeRequestRejected,
			"guard policy evaluation failed: %s", err.Error()).WithCause(err)
	}

	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return schema.NewErrorf(schema.ErrCodeRequestRejected,
			"request with dimension=%d steps=%d resolution=%d exceeds the guard policy",
			dimension, steps, resolution).
			WithDetails(map[string]any{"policy": g.policy})
	}
	return nil
}
