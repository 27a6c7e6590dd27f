// Package presets holds a catalogue of ready-made integration problems,
// most with a known analytic value to compare against.
package presets

import (
	"math"
	"sort"

	"github.com/rendis/integra/pkg/schema"
)

// Preset is a named integration request.
type Preset struct {
	Name     string                    `json:"name"`
	Title    string                    `json:"title"`
	Request  schema.IntegrationRequest `json:"request"`
	Expected *float64                  `json:"expected,omitempty"`
}

func exact(v float64) *float64 { return &v }

var (
	sym1 = schema.Range{-1, 1}
	sym2 = schema.Range{-2, 2}
	half = schema.Range{0, math.Pi}

	// gauss is the integral of exp(-t^2) over [-2, 2].
	gauss = math.Sqrt(math.Pi) * math.Erf(2)
)

var catalogue = []Preset{
	{
		Name:     "sine",
		Title:    "sin(x) from -pi to pi",
		Request:  request("Math.sin(x)", 1, schema.Box{X: schema.Range{-math.Pi, math.Pi}}),
		Expected: exact(0),
	},
	{
		Name:     "gaussian-1d",
		Title:    "Gaussian e^(-x^2)",
		Request:  request("Math.exp(-x*x)", 1, schema.Box{X: sym2}),
		Expected: exact(gauss),
	},
	{
		Name:     "parabola",
		Title:    "Parabola x^2",
		Request:  request("x*x", 1, schema.Box{X: schema.Range{0, 2}}),
		Expected: exact(8.0 / 3),
	},
	{
		Name:     "saddle",
		Title:    "x*y over the square",
		Request:  request("x*y", 2, schema.Box{X: sym1, Y: sym1}),
		Expected: exact(0),
	},
	{
		Name:     "sin-cos",
		Title:    "sin(x)*cos(y)",
		Request:  request("Math.sin(x)*Math.cos(y)", 2, schema.Box{X: half, Y: half}),
		Expected: exact(0),
	},
	{
		Name:     "gaussian-2d",
		Title:    "2D Gaussian",
		Request:  request("Math.exp(-(x*x + y*y))", 2, schema.Box{X: sym2, Y: sym2}),
		Expected: exact(gauss * gauss),
	},
	{
		Name:     "paraboloid",
		Title:    "Paraboloid x^2+y^2",
		Request:  request("x*x + y*y", 2, schema.Box{X: sym1, Y: sym1}),
		Expected: exact(8.0 / 3),
	},
	{
		Name:     "xyz-cube",
		Title:    "x*y*z over the cube",
		Request:  request("x*y*z", 3, schema.Box{X: sym1, Y: sym1, Z: sym1}),
		Expected: exact(0),
	},
	{
		Name:     "unit-ball",
		Title:    "Volume of the unit ball",
		Request:  request("(x*x + y*y + z*z <= 1) ? 1 : 0", 3, schema.Box{X: sym1, Y: sym1, Z: sym1}),
		Expected: exact(4 * math.Pi / 3),
	},
	{
		Name:     "gaussian-3d",
		Title:    "3D Gaussian",
		Request:  request("Math.exp(-(x*x + y*y + z*z))", 3, schema.Box{X: sym2, Y: sym2, Z: sym2}),
		Expected: exact(gauss * gauss * gauss),
	},
	{
		Name:     "sine-waves-3d",
		Title:    "3D sine waves",
		Request:  request("Math.sin(x)*Math.sin(y)*Math.sin(z)", 3, schema.Box{X: half, Y: half, Z: half}),
		Expected: exact(8),
	},
}

var byName = func() map[string]Preset {
	m := make(map[string]Preset, len(catalogue))
	for _, p := range catalogue {
		m[p.Name] = p
	}
	return m
}()

func request(expr string, dim int, box schema.Box) schema.IntegrationRequest {
	return schema.IntegrationRequest{Expression: expr, Dimension: dim, Box: box}
}

// All returns every preset in catalogue order.
func All() []Preset {
	out := make([]Preset, len(catalogue))
	copy(out, catalogue)
	return out
}

// Get returns the named preset or a NOT_FOUND error.
func Get(name string) (Preset, error) {
	p, ok := byName[name]
	if !ok {
		return Preset{}, schema.NewErrorf(schema.ErrCodeNotFound, "preset %q not found", name).
			WithDetails(map[string]any{"available": Names()})
	}
	return p, nil
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
