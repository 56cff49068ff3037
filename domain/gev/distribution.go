// Package gev implements the generalized extreme value distribution used for
// block maxima. All functions are pure; parameters are passed by value.
package gev

import (
	"math"
	"math/rand"
)

const gumbelTolerance = 1e-12

// Support returns the lower and upper bounds of the support.
func (p Params) Support() (lower, upper float64) {
	switch {
	case p.IsGumbel():
		return math.Inf(-1), math.Inf(1)
	case p.Shape > 0:
		return p.Location - p.Scale/p.Shape, math.Inf(1)
	default:
		return math.Inf(-1), p.Location - p.Scale/p.Shape
	}
}

// InSupport reports whether x has positive density.
func (p Params) InSupport(x float64) bool {
	_, ok := p.logT(x)
	return ok
}

// logT returns log t(x) where CDF = exp(-t). ok is false outside the support.
func (p Params) logT(x float64) (float64, bool) {
	z := (x - p.Location) / p.Scale
	if p.IsGumbel() {
		return -z, true
	}
	arg := p.Shape * z
	if arg <= -1 {
		return 0, false
	}
	return -math.Log1p(arg) / p.Shape, true
}

// CDF returns P(X <= x).
func (p Params) CDF(x float64) float64 {
	lt, ok := p.logT(x)
	if !ok {
		if p.Shape > 0 {
			return 0
		}
		return 1
	}
	return math.Exp(-math.Exp(lt))
}

// Survival returns P(X > x), computed without cancellation for small probabilities.
func (p Params) Survival(x float64) float64 {
	lt, ok := p.logT(x)
	if !ok {
		if p.Shape > 0 {
			return 1
		}
		return 0
	}
	return -math.Expm1(-math.Exp(lt))
}

// PDF returns the density at x.
func (p Params) PDF(x float64) float64 {
	lp := p.LogPDF(x)
	if math.IsInf(lp, -1) {
		return 0
	}
	return math.Exp(lp)
}

// LogPDF returns the log density at x, -Inf outside the support.
func (p Params) LogPDF(x float64) float64 {
	lt, ok := p.logT(x)
	if !ok {
		return math.Inf(-1)
	}
	return -math.Log(p.Scale) + (p.Shape+1)*lt - math.Exp(lt)
}

// Quantile returns x with CDF(x) = prob.
func (p Params) Quantile(prob float64) float64 {
	switch {
	case math.IsNaN(prob) || prob < 0 || prob > 1:
		return math.NaN()
	case prob == 0:
		lower, _ := p.Support()
		return lower
	case prob == 1:
		_, upper := p.Support()
		return upper
	}
	return p.fromY(-math.Log(prob))
}

// InverseSurvival returns x with Survival(x) = q.
func (p Params) InverseSurvival(q float64) float64 {
	switch {
	case math.IsNaN(q) || q < 0 || q > 1:
		return math.NaN()
	case q == 0:
		_, upper := p.Support()
		return upper
	case q == 1:
		lower, _ := p.Support()
		return lower
	}
	return p.fromY(-math.Log1p(-q))
}

// fromY inverts y = t(x).
func (p Params) fromY(y float64) float64 {
	if p.IsGumbel() {
		return p.Location - p.Scale*math.Log(y)
	}
	return p.Location + p.Scale*math.Expm1(-p.Shape*math.Log(y))/p.Shape
}

// ReturnLevel is the magnitude exceeded on average once every period blocks.
func (p Params) ReturnLevel(period float64) float64 {
	if period <= 1 {
		return math.NaN()
	}
	return p.InverseSurvival(1 / period)
}

// ReturnPeriod is 1/Survival(x); +Inf when the survival probability is zero.
func (p Params) ReturnPeriod(x float64) float64 {
	s := p.Survival(x)
	if s == 0 {
		return math.Inf(1)
	}
	return 1 / s
}

// NegLogLikelihood sums -LogPDF over data. It is +Inf if any point is
// outside the support or the scale is not positive.
func (p Params) NegLogLikelihood(data []float64) float64 {
	if !(p.Scale > 0) {
		return math.Inf(1)
	}
	var nll float64
	for _, x := range data {
		lp := p.LogPDF(x)
		if math.IsInf(lp, -1) || math.IsNaN(lp) {
			return math.Inf(1)
		}
		nll -= lp
	}
	return nll
}

// Rand draws one variate by inversion.
func (p Params) Rand(rng *rand.Rand) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return p.Quantile(u)
}
