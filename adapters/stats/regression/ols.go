// Package regression fits the linear trend of block maxima on the covariate.
package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"lakeattr/domain/core"
)

// Line is an ordinary least squares fit y = Intercept + Slope*x.
type Line struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`

	// Slope inference under normal errors; zero when N < 3.
	SlopeStdErr float64 `json:"slope_std_err,omitempty"`
	SlopeLow    float64 `json:"slope_low,omitempty"`
	SlopeHigh   float64 `json:"slope_high,omitempty"`
	SlopePValue float64 `json:"slope_p_value,omitempty"`
}

// OLS regresses y on x.
func OLS(x, y []float64) (Line, error) {
	if len(x) != len(y) {
		return Line{}, fmt.Errorf("length mismatch: %d covariate values, %d responses", len(x), len(y))
	}
	if len(x) < 2 {
		return Line{}, core.NewInsufficientOverlapError(len(x), 2)
	}
	if floats.HasNaN(x) || floats.HasNaN(y) {
		return Line{}, fmt.Errorf("regression input contains NaN")
	}
	if v := stat.Variance(x, nil); !(v > 0) || math.IsInf(v, 0) {
		return Line{}, core.ErrDegenerateCovariate
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	line := Line{Slope: beta, Intercept: alpha, N: len(x)}
	if stat.Variance(y, nil) > 0 {
		line.RSquared = stat.RSquared(x, y, nil, alpha, beta)
	}
	line.inferSlope(x, y)
	return line, nil
}

// inferSlope fills the 95% t interval and two-sided p-value of the slope.
func (l *Line) inferSlope(x, y []float64) {
	n := len(x)
	if n < 3 {
		return
	}
	var sse float64
	for i := range x {
		r := y[i] - (l.Intercept + l.Slope*x[i])
		sse += r * r
	}
	sxx := stat.Variance(x, nil) * float64(n-1)
	se := math.Sqrt(sse / float64(n-2) / sxx)
	l.SlopeStdErr = se

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	crit := t.Quantile(0.975)
	l.SlopeLow = l.Slope - crit*se
	l.SlopeHigh = l.Slope + crit*se
	if se > 0 {
		l.SlopePValue = 2 * t.Survival(math.Abs(l.Slope)/se)
	}
}

// Detrend returns y - Slope*x. The intercept stays in the residuals so the
// fitted GEV location absorbs it.
func (l Line) Detrend(x, y []float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - l.Slope*x[i]
	}
	return out
}
