package schema

import "time"

// Supported integration dimensions.
const (
	MinDimension = 1
	MaxDimension = 3
)

// Defaults applied when a request omits resolution or steps.
const (
	DefaultResolution = 10
	// StepsPerResolution derives the quadrature step count from the
	// visualization resolution when steps are not given.
	StepsPerResolution = 5
)

// Range is a closed interval [Min, Max] on one axis. Min <= Max is not
// required; an inverted range integrates with a negative sign.
type Range [2]float64

// Min returns the lower bound.
func (r Range) Min() float64 { return r[0] }

// Max returns the upper bound.
func (r Range) Max() float64 { return r[1] }

// Extent returns Max - Min.
func (r Range) Extent() float64 { return r[1] - r[0] }

// Box holds per-axis bounds. Only the axes active for a given dimension are
// read: 1 -> X, 2 -> X and Y, 3 -> X, Y and Z.
type Box struct {
	X Range `json:"x"`
	Y Range `json:"y"`
	Z Range `json:"z"`
}

// Axes returns the active ranges for the dimension, in x, y, z order.
func (b Box) Axes(dimension int) []Range {
	all := []Range{b.X, b.Y, b.Z}
	if dimension < MinDimension || dimension > MaxDimension {
		return nil
	}
	return all[:dimension]
}

// Degenerate reports whether any active axis has zero extent.
func (b Box) Degenerate(dimension int) bool {
	for _, r := range b.Axes(dimension) {
		if r.Extent() == 0 {
			return true
		}
	}
	return false
}

// SamplePoint is one evaluated point for rendering. For 1D and 2D sets laid
// out as a height field Z duplicates Value; for 3D sets Z is the third
// coordinate and Value is authoritative.
type SamplePoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Value float64 `json:"value"`
}

// IntegrationRequest describes one integration over a box.
type IntegrationRequest struct {
	Expression string `json:"expression"`
	Dimension  int    `json:"dimension"`
	Box        Box    `json:"box"`
	Steps      int    `json:"steps,omitempty"`
	Resolution int    `json:"resolution,omitempty"`
	Backend    string `json:"backend,omitempty"`
	Query      string `json:"query,omitempty"`
}

// WithDefaults fills in resolution and steps when they are unset.
func (r IntegrationRequest) WithDefaults() IntegrationRequest {
	if r.Resolution <= 0 {
		r.Resolution = DefaultResolution
	}
	if r.Steps <= 0 {
		r.Steps = r.Resolution * StepsPerResolution
	}
	return r
}

// IntegrationResult is a computed integral. ErrorEstimate is nil when no
// estimate was requested.
type IntegrationResult struct {
	Value         float64  `json:"value"`
	ErrorEstimate *float64 `json:"error_estimate,omitempty"`
}

// Solution is the full answer to an IntegrationRequest.
type Solution struct {
	RunID      string            `json:"run_id,omitempty"`
	Expression string            `json:"expression"`
	Normalized string            `json:"normalized"`
	Backend    string            `json:"backend"`
	Dimension  int               `json:"dimension"`
	Box        Box               `json:"box"`
	Steps      int               `json:"steps"`
	Resolution int               `json:"resolution"`
	Result     IntegrationResult `json:"result"`
	Samples    []SamplePoint     `json:"samples,omitempty"`
	Filtered   []any             `json:"filtered,omitempty"`
	Warnings   []ValidationIssue `json:"warnings,omitempty"`
	Duration   time.Duration     `json:"duration_ns"`
}
