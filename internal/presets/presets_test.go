package presets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/integra/internal/engine"
	"github.com/rendis/integra/internal/validation"
	"github.com/rendis/integra/pkg/schema"
)

func TestGet(t *testing.T) {
	p, err := Get("unit-ball")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Request.Dimension)
	require.NotNil(t, p.Expected)

	_, err = Get("klein-bottle")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestAll_IsACopy(t *testing.T) {
	all := All()
	require.Len(t, all, len(Names()))
	all[0].Name = "mutated"

	again := All()
	assert.NotEqual(t, "mutated", again[0].Name)
}

func TestPresets_Validate(t *testing.T) {
	v, err := validation.NewRequestValidator()
	require.NoError(t, err)

	for _, p := range All() {
		req := p.Request
		result := v.Validate(&req)
		assert.True(t, result.Valid(), "%s: %v", p.Name, result.Errors)
		assert.Empty(t, result.Warnings, p.Name)
	}
}

func TestPresets_Converge(t *testing.T) {
	eng := engine.New(engine.Deps{Workers: 4})
	defer eng.Shutdown()

	for _, p := range All() {
		t.Run(p.Name, func(t *testing.T) {
			req := p.Request
			req.Steps = 100
			tol := 1e-4
			if req.Dimension == 3 {
				req.Steps = 60
				tol = 0.05
			}

			sol, err := eng.Run(context.Background(), req, false)
			require.NoError(t, err)
			assert.InDelta(t, *p.Expected, sol.Result.Value, tol)
		})
	}
}
