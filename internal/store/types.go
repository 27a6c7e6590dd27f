package store

import (
	"time"

	"github.com/rendis/integra/pkg/schema"
)

// Run is one persisted integration request and its outcome.
type Run struct {
	ID            string        `json:"id"`
	Expression    string        `json:"expression"`
	Normalized    string        `json:"normalized"`
	Backend       string        `json:"backend"`
	Dimension     int           `json:"dimension"`
	Box           schema.Box    `json:"box"`
	Steps         int           `json:"steps"`
	Resolution    int           `json:"resolution"`
	Value         float64       `json:"value"`
	ErrorEstimate *float64      `json:"error_estimate,omitempty"`
	SampleCount   int           `json:"sample_count"`
	Duration      time.Duration `json:"duration_ns"`
	Source        string        `json:"source,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RunFromSolution builds a Run record for a solution.
func RunFromSolution(sol *schema.Solution, source string) *Run {
	return &Run{
		ID:            sol.RunID,
		Expression:    sol.Expression,
		Normalized:    sol.Normalized,
		Backend:       sol.Backend,
		Dimension:     sol.Dimension,
		Box:           sol.Box,
		Steps:         sol.Steps,
		Resolution:    sol.Resolution,
		Value:         sol.Result.Value,
		ErrorEstimate: sol.Result.ErrorEstimate,
		SampleCount:   len(sol.Samples),
		Duration:      sol.Duration,
		Source:        source,
	}
}

// RunFilter narrows ListRuns. Zero fields do not filter.
type RunFilter struct {
	Dimension  int
	Source     string
	Backend    string
	Expression string // substring match on the submitted text
	Since      *time.Time
	Limit      int
	Offset     int
}
