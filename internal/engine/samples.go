package engine

import (
	"context"
	"math"

	"github.com/rendis/integra/pkg/schema"
)

// significance is the fraction of the value range above the minimum that a
// 3D point's magnitude must exceed to be kept.
const significance = 0.1

// GenerateSamples evaluates f on a regular grid of resolution+1 points per
// active axis. 1D and 2D sets are height fields (Z carries the value). 3D
// sets keep only points with |value| > |min + (max-min)*0.1|, in grid order.
func GenerateSamples(ctx context.Context, f Integrand, dimension int, box schema.Box, resolution int) ([]schema.SamplePoint, error) {
	if dimension < schema.MinDimension || dimension > schema.MaxDimension {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedDimension,
			"unsupported dimension %d", dimension)
	}
	if resolution < 1 {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRequest,
			"resolution must be at least 1, got %d", resolution)
	}

	n := resolution
	xStep := box.X.Extent() / float64(n)
	yStep := box.Y.Extent() / float64(n)
	zStep := box.Z.Extent() / float64(n)

	switch dimension {
	case 1:
		points := make([]schema.SamplePoint, 0, n+1)
		for i := 0; i <= n; i++ {
			x := box.X.Min() + float64(i)*xStep
			v := f(x, 0, 0)
			points = append(points, schema.SamplePoint{X: x, Z: v, Value: v})
		}
		return points, nil

	case 2:
		points := make([]schema.SamplePoint, 0, (n+1)*(n+1))
		for i := 0; i <= n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, cancelled(err)
			}
			x := box.X.Min() + float64(i)*xStep
			for j := 0; j <= n; j++ {
				y := box.Y.Min() + float64(j)*yStep
				v := f(x, y, 0)
				points = append(points, schema.SamplePoint{X: x, Y: y, Z: v, Value: v})
			}
		}
		return points, nil
	}

	grid := make([]schema.SamplePoint, 0, (n+1)*(n+1)*(n+1))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		x := box.X.Min() + float64(i)*xStep
		for j := 0; j <= n; j++ {
			y := box.Y.Min() + float64(j)*yStep
			for k := 0; k <= n; k++ {
				z := box.Z.Min() + float64(k)*zStep
				v := f(x, y, z)
				grid = append(grid, schema.SamplePoint{X: x, Y: y, Z: z, Value: v})
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
	}

	threshold := math.Abs(lo + (hi-lo)*significance)
	points := grid[:0]
	for _, p := range grid {
		if math.Abs(p.Value) > threshold {
			points = append(points, p)
		}
	}
	return points, nil
}
