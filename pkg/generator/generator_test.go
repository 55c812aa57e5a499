package generator

import (
	"testing"

	"github.com/camforge/camforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterFactory_FirstAttemptIsSeed(t *testing.T) {
	seed := models.Document{"wall_thickness_mm": 3.0, "label": "bracket"}
	factory := JitterFactory(seed, 0.1)

	generate, err := factory(nil, models.SearchBudget{MaxAttempts: 5})
	require.NoError(t, err)

	first, err := generate(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, seed, first)

	// The returned candidate is a copy, not the seed itself.
	first["wall_thickness_mm"] = 99.0
	assert.InDelta(t, 3.0, seed["wall_thickness_mm"].(float64), 0.001)
}

func TestJitterFactory_PerturbsNumericFieldsOnly(t *testing.T) {
	seed := models.Document{"wall_thickness_mm": 3.0, "material": "al-6061"}
	factory := JitterFactory(seed, 0.2)

	generate, err := factory(nil, models.SearchBudget{MaxAttempts: 5})
	require.NoError(t, err)

	prev, err := generate(nil, 0)
	require.NoError(t, err)

	next, err := generate(prev, 1)
	require.NoError(t, err)

	thickness := next["wall_thickness_mm"].(float64)
	assert.InDelta(t, 3.0, thickness, 3.0*0.2+0.001)
	assert.Equal(t, "al-6061", next["material"])
}

func TestJitterFactory_DeterministicRuns(t *testing.T) {
	seed := models.Document{"wall_thickness_mm": 3.0}
	budget := models.SearchBudget{MaxAttempts: 5, Deterministic: true}

	sequence := func() []float64 {
		generate, err := JitterFactory(seed, 0.2)(nil, budget)
		require.NoError(t, err)

		var out []float64

		prev := models.Document(nil)
		for i := 0; i < 4; i++ {
			next, err := generate(prev, i)
			require.NoError(t, err)

			out = append(out, next["wall_thickness_mm"].(float64))
			prev = next
		}

		return out
	}

	assert.Equal(t, sequence(), sequence())
}

func TestJitterFactory_EmptySeed(t *testing.T) {
	_, err := JitterFactory(nil, 0.1)(nil, models.SearchBudget{MaxAttempts: 5})
	require.Error(t, err)
}

func TestSeedFromLimits(t *testing.T) {
	context := models.Document{
		"min_wall_thickness_mm": 2.0,
		"max_pocket_depth_mm":   20.0,
		"min_tool_diameter_mm":  4.0,
		"material":              "al-6061",
	}

	seed := SeedFromLimits(context)
	require.NotNil(t, seed)

	assert.InDelta(t, 3.0, seed["wall_thickness_mm"].(float64), 0.001)
	assert.InDelta(t, 10.0, seed["pocket_depth_mm"].(float64), 0.001)
	assert.InDelta(t, 6.0, seed["tool_diameter_mm"].(float64), 0.001)
}

func TestSeedFromLimits_NoRecognizedLimits(t *testing.T) {
	assert.Nil(t, SeedFromLimits(models.Document{"material": "al-6061"}))
	assert.Nil(t, SeedFromLimits(nil))
}
