package engine

import (
	"context"
	"fmt"

	"github.com/rendis/integra/pkg/schema"
)

// Integrand is a real function of up to three variables. Unused variables
// receive 0. It must be safe for concurrent use.
type Integrand func(x, y, z float64) float64

// Quadrature applies the fixed per-dimension rules:
//
//	1D: composite Simpson, odd step counts bumped to even.
//	2D: tensor-product Simpson, sum * dx*dy / 9.
//	3D: composite midpoint over steps^3 cells.
//
// The outer loop is split into contiguous chunks summed on the pool.
type Quadrature struct {
	pool   *WorkerPool
	chunks int
}

// NewQuadrature returns a Quadrature running on pool. A nil pool, or one of
// size 1, integrates sequentially.
func NewQuadrature(pool *WorkerPool) *Quadrature {
	chunks := 1
	if pool != nil {
		chunks = pool.Size()
	}
	return &Quadrature{pool: pool, chunks: chunks}
}

// Integrate approximates the integral of f over the active axes of box.
func (q *Quadrature) Integrate(ctx context.Context, f Integrand, dimension int, box schema.Box, steps int) (float64, error) {
	if dimension < schema.MinDimension || dimension > schema.MaxDimension {
		return 0, schema.NewErrorf(schema.ErrCodeUnsupportedDimension,
			"unsupported dimension %d", dimension)
	}
	if steps < 1 {
		return 0, schema.NewErrorf(schema.ErrCodeInvalidRequest,
			"steps must be at least 1, got %d", steps)
	}
	if box.Degenerate(dimension) {
		return 0, nil
	}

	switch dimension {
	case 1:
		return q.simpson1D(ctx, f, box.X, steps)
	case 2:
		return q.simpson2D(ctx, f, box.X, box.Y, steps)
	default:
		return q.midpoint3D(ctx, f, box.X, box.Y, box.Z, steps)
	}
}

func (q *Quadrature) simpson1D(ctx context.Context, f Integrand, xr schema.Range, n int) (float64, error) {
	if n%2 != 0 {
		n++
	}
	h := xr.Extent() / float64(n)
	sum, err := q.reduce(ctx, n+1, func(i int) float64 {
		x := xr.Min() + float64(i)*h
		return simpsonWeight(i, n) * f(x, 0, 0)
	})
	if err != nil {
		return 0, err
	}
	return h / 3 * sum, nil
}

func (q *Quadrature) simpson2D(ctx context.Context, f Integrand, xr, yr schema.Range, n int) (float64, error) {
	dx := xr.Extent() / float64(n)
	dy := yr.Extent() / float64(n)
	sum, err := q.reduce(ctx, n+1, func(i int) float64 {
		x := xr.Min() + float64(i)*dx
		wx := simpsonWeight(i, n)
		var row float64
		for j := 0; j <= n; j++ {
			y := yr.Min() + float64(j)*dy
			row += wx * simpsonWeight(j, n) * f(x, y, 0)
		}
		return row
	})
	if err != nil {
		return 0, err
	}
	return sum * dx * dy / 9, nil
}

func (q *Quadrature) midpoint3D(ctx context.Context, f Integrand, xr, yr, zr schema.Range, n int) (float64, error) {
	dx := xr.Extent() / float64(n)
	dy := yr.Extent() / float64(n)
	dz := zr.Extent() / float64(n)
	sum, err := q.reduce(ctx, n, func(i int) float64 {
		x := xr.Min() + (float64(i)+0.5)*dx
		var slab float64
		for j := 0; j < n; j++ {
			y := yr.Min() + (float64(j)+0.5)*dy
			for k := 0; k < n; k++ {
				z := zr.Min() + (float64(k)+0.5)*dz
				slab += f(x, y, z)
			}
		}
		return slab
	})
	if err != nil {
		return 0, err
	}
	return sum * dx * dy * dz, nil
}

// simpsonWeight is the composite Simpson weight of node i out of n.
func simpsonWeight(i, n int) float64 {
	switch {
	case i == 0 || i == n:
		return 1
	case i%2 == 1:
		return 4
	}
	return 2
}

// reduce sums term(i) for i in [0, count). Indices are split into at most
// q.chunks contiguous ranges; each range is summed sequentially and the range
// totals are added in order.
func (q *Quadrature) reduce(ctx context.Context, count int, term func(i int) float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, cancelled(err)
	}

	chunks := q.chunks
	if chunks > count {
		chunks = count
	}
	span := func(c int) (int, int) {
		return c * count / chunks, (c + 1) * count / chunks
	}
	partial := func(c int) float64 {
		lo, hi := span(c)
		var s float64
		for i := lo; i < hi; i++ {
			s += term(i)
		}
		return s
	}

	if q.pool == nil || chunks <= 1 {
		return partial(0), nil
	}

	sum, err := q.pool.Sum(ctx, chunks, partial)
	if err != nil {
		if ctx.Err() != nil {
			return 0, cancelled(ctx.Err())
		}
		return 0, fmt.Errorf("integrate: %w", err)
	}
	return sum, nil
}

func cancelled(err error) error {
	return schema.NewError(schema.ErrCodeCancelled, "integration cancelled").WithCause(err)
}
