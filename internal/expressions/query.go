package expressions

import (
	"context"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/rendis/integra/pkg/schema"
)

// SampleQuery applies jq filters to sample sets. The input document is the
// sample array, each point an object {x, y, z, value}; for example
// `map(select(.value > 0.5))` or `.[] | [.x, .value]`.
// Thread-safe: compiled *gojq.Code objects are cached and reused across goroutines.
type SampleQuery struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewSampleQuery creates a new sample query runner.
func NewSampleQuery() *SampleQuery {
	return &SampleQuery{
		cache: make(map[string]*gojq.Code),
	}
}

// Apply runs query over points. A query producing exactly one array returns
// that array's elements; otherwise every output is collected in order.
func (q *SampleQuery) Apply(ctx context.Context, query string, points []schema.SamplePoint) ([]any, error) {
	if query == "" {
		return nil, schema.NewError(schema.ErrCodeInvalidRequest, "empty sample query")
	}

	code, err := q.getOrCompile(query)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, samplesToJQ(points))

	results := []any{}
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidRequest,
				"jq evaluation failed for %q: %s", query, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"query": query})
		}
		results = append(results, val)
	}

	if len(results) == 1 {
		if arr, ok := results[0].([]any); ok {
			return arr, nil
		}
	}
	return results, nil
}

// getOrCompile returns a cached compiled code or compiles and caches a new one.
func (q *SampleQuery) getOrCompile(query string) (*gojq.Code, error) {
	q.mu.RLock()
	if code, ok := q.cache[query]; ok {
		q.mu.RUnlock()
		return code, nil
	}
	q.mu.RUnlock()

	q.mu.Lock()
	defer q.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := q.cache[query]; ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRequest,
			"jq parse error in %q: %s", query, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"query": query})
	}

	code, err := gojq.Compile(parsed,
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRequest,
			"jq compile error in %q: %s", query, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"query": query})
	}

	q.cache[query] = code
	return code, nil
}

// samplesToJQ converts points to the generic values gojq operates on.
func samplesToJQ(points []schema.SamplePoint) []any {
	out := make([]any, len(points))
	for i, p := range points {
		out[i] = map[string]any{
			"x":     p.X,
			"y":     p.Y,
			"z":     p.Z,
			"value": p.Value,
		}
	}
	return out
}
