package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"lakeattr/domain/gev"
)

func TestQuantileSample_Sorted(t *testing.T) {
	q := QuantileSample(gev.Params{Shape: 0.1, Location: 0, Scale: 1}, 20)
	require.Len(t, q, 20)
	for i := 1; i < len(q); i++ {
		assert.Greater(t, q[i], q[i-1])
	}
}

func TestShiftScenario_DeterministicSlope(t *testing.T) {
	sc := ShiftScenario{Base: gev.Params{Shape: -0.1, Location: 0.27, Scale: 0.22}, Slope: 0.05, N: 50, StartYear: 1970}
	syn := sc.Deterministic()

	require.Len(t, syn.Years, 50)
	assert.Equal(t, 1970, syn.Years[0])
	assert.Equal(t, 2019, syn.Years[49])
	assert.Equal(t, 0.0, syn.Covariate[0])
	assert.Equal(t, 1.0, syn.Covariate[49])

	_, beta := stat.LinearRegression(syn.Covariate, syn.Response, nil, false)
	assert.InDelta(t, 0.05, beta, 1e-12)
}

func TestShiftScenario_RandomReproducible(t *testing.T) {
	sc := ShiftScenario{Base: gev.Params{Shape: 0, Location: 1, Scale: 1}, Slope: 1, N: 10, StartYear: 2000}
	assert.Equal(t, sc.Random(3).Response, sc.Random(3).Response)
	assert.NotEqual(t, sc.Random(3).Response, sc.Random(4).Response)
}

func TestTestKit_RNG(t *testing.T) {
	kit := NewTestKit()
	r, err := kit.RNGAdapter().Stream(context.Background(), "bootstrap", 0, 1)
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.NotNil(t, kit.Metrics())
	assert.NotNil(t, kit.Logger())
}
