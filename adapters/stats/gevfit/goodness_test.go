package gevfit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeattr/domain/gev"
)

func TestKolmogorovSmirnov_GoodFit(t *testing.T) {
	p := gev.Params{Shape: -0.1, Location: 0.27, Scale: 0.22}
	res, err := KolmogorovSmirnov(quantileSample(p, 100), p)
	require.NoError(t, err)

	// Hazen positions sit half a step from the ECDF jumps.
	assert.InDelta(t, 0.005, res.Statistic, 1e-9)
	assert.Greater(t, res.PValue, 0.99)
	assert.Equal(t, 100, res.N)
}

func TestKolmogorovSmirnov_PoorFit(t *testing.T) {
	truth := gev.Params{Shape: -0.1, Location: 0.27, Scale: 0.22}
	wrong := gev.Params{Shape: -0.1, Location: 1.5, Scale: 0.22}
	res, err := KolmogorovSmirnov(quantileSample(truth, 100), wrong)
	require.NoError(t, err)

	assert.Greater(t, res.Statistic, 0.9)
	assert.Less(t, res.PValue, 1e-6)
}

func TestKolmogorovSurvival_KnownValue(t *testing.T) {
	// P(K > 1.36) is the classic 5% critical value.
	assert.InDelta(t, 0.05, kolmogorovSurvival(1.358), 1e-3)
	assert.Equal(t, 1.0, kolmogorovSurvival(0))
}

func TestKolmogorovSmirnov_Empty(t *testing.T) {
	_, err := KolmogorovSmirnov(nil, gev.Params{Scale: 1})
	assert.Error(t, err)
}

func TestKolmogorovSmirnov_TiedValues(t *testing.T) {
	p := gev.Params{Shape: 0, Location: 0, Scale: 1}
	res, err := KolmogorovSmirnov([]float64{0, 0, 0}, p)
	require.NoError(t, err)

	// The empirical CDF jumps from 0 to 1 at the tie; Gumbel F(0) = 1/e.
	assert.InDelta(t, 1-math.Exp(-1), res.Statistic, 1e-12)
}
