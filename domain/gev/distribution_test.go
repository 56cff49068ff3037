package gev

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShapes = []float64{-0.4, -0.1, 0, 0.1, 0.4}

func TestCDF_KnownValues(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		x      float64
		want   float64
	}{
		{"bounded tail", Params{Shape: -0.1, Location: 0, Scale: 1}, 1, 0.7056199928873901},
		{"gumbel at location", Params{Shape: 0, Location: 0, Scale: 1}, 0, math.Exp(-1)},
		{"heavy tail", Params{Shape: 0.2, Location: 0.5, Scale: 1.5}, 2, 0.6690626526678188},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.params.CDF(tt.x), 1e-12)
		})
	}
}

func TestSciPyConversion(t *testing.T) {
	p := FromSciPy(0.1, 0.27, 0.22)
	assert.Equal(t, -0.1, p.Shape)
	assert.Equal(t, 0.1, p.SciPyShape())
}

func TestQuantile_InvertsCDF(t *testing.T) {
	probs := []float64{1e-6, 0.01, 0.1, 0.5, 0.9, 0.99, 1 - 1e-6}
	for _, xi := range testShapes {
		p := Params{Shape: xi, Location: 0.27, Scale: 0.22}
		for _, prob := range probs {
			x := p.Quantile(prob)
			assert.InDelta(t, prob, p.CDF(x), 1e-9, "shape=%v prob=%v", xi, prob)
		}
	}
}

func TestInverseSurvival_InvertsSurvival(t *testing.T) {
	for _, xi := range testShapes {
		p := Params{Shape: xi, Location: -1, Scale: 2}
		for _, q := range []float64{1e-12, 1e-4, 0.05, 0.5, 0.95} {
			x := p.InverseSurvival(q)
			got := p.Survival(x)
			assert.InDelta(t, 1, got/q, 1e-8, "shape=%v q=%v", xi, q)
		}
	}
}

func TestReturnPeriod_IsReciprocalSurvival(t *testing.T) {
	p := Params{Shape: -0.1, Location: 0.27, Scale: 0.22}
	for _, x := range []float64{0, 0.3, 0.6, 0.9} {
		assert.InDelta(t, 1/p.Survival(x), p.ReturnPeriod(x), 1e-9)
	}
	assert.InDelta(t, 100, p.ReturnPeriod(p.ReturnLevel(100)), 1e-8)
}

func TestSurvival_MonotoneNonIncreasing(t *testing.T) {
	for _, xi := range testShapes {
		p := Params{Shape: xi, Location: 0, Scale: 1}
		prev := 1.0
		for x := -10.0; x <= 10; x += 0.05 {
			s := p.Survival(x)
			if s > prev+1e-15 {
				t.Fatalf("shape=%v: survival increased at x=%v (%v > %v)", xi, x, s, prev)
			}
			prev = s
		}
	}
}

func TestSupportBoundaries(t *testing.T) {
	bounded := Params{Shape: -0.5, Location: 0, Scale: 1}
	_, upper := bounded.Support()
	assert.InDelta(t, 2, upper, 1e-12)
	assert.Equal(t, 1.0, bounded.CDF(2.5))
	assert.Equal(t, 0.0, bounded.Survival(2.5))
	assert.Equal(t, 0.0, bounded.PDF(2.5))
	assert.True(t, math.IsInf(bounded.ReturnPeriod(2.5), 1))
	assert.InDelta(t, upper, bounded.Quantile(1), 1e-12)

	heavy := Params{Shape: 0.5, Location: 0, Scale: 1}
	lower, _ := heavy.Support()
	assert.InDelta(t, -2, lower, 1e-12)
	assert.Equal(t, 0.0, heavy.CDF(-3))
	assert.Equal(t, 1.0, heavy.Survival(-3))
	assert.False(t, heavy.InSupport(-3))
}

func TestGumbelLimitIsContinuous(t *testing.T) {
	g := Params{Shape: 0, Location: 1, Scale: 2}
	near := Params{Shape: 1e-9, Location: 1, Scale: 2}
	for _, x := range []float64{-2, 0, 1, 4, 9} {
		assert.InDelta(t, g.CDF(x), near.CDF(x), 1e-7)
		assert.InDelta(t, g.PDF(x), near.PDF(x), 1e-7)
	}
}

func TestPDF_IntegratesToOne(t *testing.T) {
	p := Params{Shape: -0.2, Location: 0, Scale: 1}
	lower, upper := p.Quantile(1e-12), p.Quantile(1)
	const steps = 200000
	h := (upper - lower) / steps
	var sum float64
	for i := 0; i < steps; i++ {
		sum += p.PDF(lower+(float64(i)+0.5)*h) * h
	}
	assert.InDelta(t, 1, sum, 1e-4)
}

func TestNegLogLikelihood(t *testing.T) {
	p := Params{Shape: -0.5, Location: 0, Scale: 1}
	data := []float64{0.1, 0.5, -0.3}

	var want float64
	for _, x := range data {
		want -= math.Log(p.PDF(x))
	}
	assert.InDelta(t, want, p.NegLogLikelihood(data), 1e-12)

	assert.True(t, math.IsInf(p.NegLogLikelihood(append(data, 3)), 1), "point above upper bound")
	assert.True(t, math.IsInf(Params{Scale: -1}.NegLogLikelihood(data), 1))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Params{Shape: 0.1, Location: 0, Scale: 1}.Validate())
	assert.Error(t, Params{Scale: 0}.Validate())
	assert.Error(t, Params{Shape: math.NaN(), Scale: 1}.Validate())
}

func TestRand_FollowsDistribution(t *testing.T) {
	p := Params{Shape: -0.1, Location: 0.27, Scale: 0.22}
	rng := rand.New(rand.NewSource(7))
	const n = 20000
	median := p.Quantile(0.5)
	below := 0
	for i := 0; i < n; i++ {
		if p.Rand(rng) <= median {
			below++
		}
	}
	assert.InDelta(t, 0.5, float64(below)/n, 0.02)
}
