package testkit

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lakeattr/domain/gev"
	"lakeattr/domain/series"
)

// QuantileSample returns the Hazen plotting-position quantiles
// p.Quantile((i+0.5)/n), sorted ascending.
func QuantileSample(p gev.Params, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = p.Quantile((float64(i) + 0.5) / float64(n))
	}
	return out
}

// ShiftScenario describes block maxima whose GEV location moves linearly
// with a covariate.
type ShiftScenario struct {
	Base      gev.Params
	Slope     float64
	N         int
	StartYear int
}

// Synthetic is a generated response/covariate pair.
type Synthetic struct {
	Years     []int
	Response  []float64
	Covariate []float64
}

// ResponseSeries wraps the response as an annual series.
func (s Synthetic) ResponseSeries(name string) *series.AnnualSeries {
	out, err := series.FromSlices(name, "", s.Years, s.Response)
	if err != nil {
		panic(err)
	}
	return out
}

// CovariateSeries wraps the covariate as an annual series.
func (s Synthetic) CovariateSeries(name string) *series.AnnualSeries {
	out, err := series.FromSlices(name, "", s.Years, s.Covariate)
	if err != nil {
		panic(err)
	}
	return out
}

func (sc ShiftScenario) covariate() ([]int, []float64) {
	years := make([]int, sc.N)
	cov := make([]float64, sc.N)
	floats.Span(cov, 0, 1)
	for i := range years {
		years[i] = sc.StartYear + i
	}
	return years, cov
}

// Deterministic builds a sample with no sampling noise: the residuals are
// the Hazen quantiles of Base, placed so they carry no linear trend in the
// covariate, and the response is residual + Slope*covariate. OLS on the
// result returns Slope exactly.
func (sc ShiftScenario) Deterministic() Synthetic {
	years, cov := sc.covariate()
	q := QuantileSample(sc.Base, sc.N)

	// Adjacent quantile pairs go to mirrored positions so each pair straddles
	// the middle of the covariate range.
	resid := make([]float64, sc.N)
	half := sc.N / 2
	stride := 7
	for half > 0 && gcd(stride, half) != 1 {
		stride++
	}
	for k := 0; k < half; k++ {
		pos := (k * stride) % half
		a, b := q[2*k], q[2*k+1]
		if k%2 == 1 {
			a, b = b, a
		}
		resid[pos], resid[sc.N-1-pos] = a, b
	}
	if sc.N%2 == 1 {
		resid[half] = q[sc.N-1]
	}

	// Remove whatever linear dependence is left.
	_, beta := stat.LinearRegression(cov, resid, nil, false)
	meanCov := stat.Mean(cov, nil)
	for i := range resid {
		resid[i] -= beta * (cov[i] - meanCov)
	}

	resp := make([]float64, sc.N)
	for i := range resp {
		resp[i] = resid[i] + sc.Slope*cov[i]
	}
	return Synthetic{Years: years, Response: resp, Covariate: cov}
}

// Random draws Base variates with seed and adds the trend.
func (sc ShiftScenario) Random(seed int64) Synthetic {
	years, cov := sc.covariate()
	rng := rand.New(rand.NewSource(seed))
	resp := make([]float64, sc.N)
	for i := range resp {
		resp[i] = sc.Base.Rand(rng) + sc.Slope*cov[i]
	}
	return Synthetic{Years: years, Response: resp, Covariate: cov}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
