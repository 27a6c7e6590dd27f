package expressions

import (
	"context"
	"testing"

	"github.com/rendis/integra/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestGuard_DefaultPolicy(t *testing.T) {
	g, err := NewRequestGuard(DefaultGuardPolicy)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, DefaultGuardPolicy, g.Policy())

	ctx := context.Background()

	tests := []struct {
		name       string
		dimension  int
		steps      int
		resolution int
		allowed    bool
	}{
		{"1d large", 1, 100000, 100, true},
		{"2d default", 2, 50, 10, true},
		{"2d too many steps", 2, 5000, 10, false},
		{"3d default", 3, 50, 10, true},
		{"3d too many steps", 3, 500, 10, false},
		{"3d resolution too high", 3, 100, 100, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Check(ctx, tc.dimension, tc.steps, tc.resolution)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeRequestRejected))
		})
	}
}

func TestRequestGuard_EmptyPolicyAdmitsAll(t *testing.T) {
	g, err := NewRequestGuard("")
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, g.Check(context.Background(), 3, 1_000_000, 1_000_000))
	assert.Equal(t, "", g.Policy())
}

func TestRequestGuard_InvalidPolicy(t *testing.T) {
	_, err := NewRequestGuard("steps <")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = NewRequestGuard("steps + 1")
	require.Error(t, err, "non-bool policy must be rejected")

	_, err = NewRequestGuard("unknown_var > 1")
	require.Error(t, err)
}
