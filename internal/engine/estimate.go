package engine

import (
	"context"
	"math"

	"github.com/rendis/integra/pkg/schema"
)

// EstimateError returns |I(2*steps) - I(steps)|. It is an order-of-magnitude
// indicator of discretization error, not a bound.
func (q *Quadrature) EstimateError(ctx context.Context, f Integrand, dimension int, box schema.Box, steps int) (float64, error) {
	res, err := q.Solve(ctx, f, dimension, box, steps)
	if err != nil {
		return 0, err
	}
	return *res.ErrorEstimate, nil
}

// Solve integrates at steps and at 2*steps, returning the coarse value with
// the difference as its error estimate. I(steps) is computed once.
func (q *Quadrature) Solve(ctx context.Context, f Integrand, dimension int, box schema.Box, steps int) (schema.IntegrationResult, error) {
	r1, err := q.Integrate(ctx, f, dimension, box, steps)
	if err != nil {
		return schema.IntegrationResult{}, err
	}
	r2, err := q.Integrate(ctx, f, dimension, box, 2*steps)
	if err != nil {
		return schema.IntegrationResult{}, err
	}
	estimate := math.Abs(r2 - r1)
	return schema.IntegrationResult{Value: r1, ErrorEstimate: &estimate}, nil
}
