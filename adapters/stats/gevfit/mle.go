// Package gevfit estimates GEV parameters from a sample by maximum likelihood.
package gevfit

import (
	"context"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/optimize"

	"lakeattr/domain/core"
	"lakeattr/domain/gev"
)

// MinSampleSize is the smallest sample the fitter accepts.
const MinSampleSize = 5

// MLEConfig tunes the Nelder-Mead search.
type MLEConfig struct {
	MaxIterations int     // major iterations before the fit is declared divergent
	Tolerance     float64 // absolute change in NLL treated as converged
	StallWindow   int     // iterations without Tolerance improvement that end the search
	MaxAbsShape   float64 // |shape| at or above this is rejected by the objective
}

// DefaultMLEConfig returns the settings used by the pipeline.
func DefaultMLEConfig() MLEConfig {
	return MLEConfig{
		MaxIterations: 5000,
		Tolerance:     1e-10,
		StallWindow:   100,
		MaxAbsShape:   1,
	}
}

// MLE fits GEV parameters by maximizing the likelihood over
// (shape, location, log scale) on standardized data.
type MLE struct {
	cfg MLEConfig
}

func NewMLE(cfg MLEConfig) *MLE {
	def := DefaultMLEConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.StallWindow <= 0 {
		cfg.StallWindow = def.StallWindow
	}
	if cfg.MaxAbsShape <= 0 {
		cfg.MaxAbsShape = def.MaxAbsShape
	}
	return &MLE{cfg: cfg}
}

// Fit returns the maximum likelihood parameters for data.
func (m *MLE) Fit(ctx context.Context, data []float64) (gev.Params, error) {
	if err := ctx.Err(); err != nil {
		return gev.Params{}, err
	}
	if len(data) < MinSampleSize {
		return gev.Params{}, core.NewInsufficientOverlapError(len(data), MinSampleSize)
	}
	for _, x := range data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return gev.Params{}, core.NewFitDivergenceError("non-finite observation")
		}
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return gev.Params{}, core.NewFitDivergenceError(err.Error())
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return gev.Params{}, core.NewFitDivergenceError(err.Error())
	}
	if !(sd > 0) {
		return gev.Params{}, core.NewFitDivergenceError("constant sample")
	}

	z := make([]float64, len(data))
	for i, x := range data {
		z[i] = (x - mean) / sd
	}

	start := m.startingPoint(z)
	objective := func(v []float64) float64 {
		if math.Abs(v[0]) >= m.cfg.MaxAbsShape {
			return math.Inf(1)
		}
		p := gev.Params{Shape: v[0], Location: v[1], Scale: math.Exp(v[2])}
		return p.NegLogLikelihood(z)
	}

	result, err := optimize.Minimize(
		optimize.Problem{Func: objective},
		[]float64{start.Shape, start.Location, math.Log(start.Scale)},
		&optimize.Settings{
			MajorIterations: m.cfg.MaxIterations,
			Converger: &optimize.FunctionConverge{
				Absolute:   m.cfg.Tolerance,
				Iterations: m.cfg.StallWindow,
			},
		},
		&optimize.NelderMead{},
	)
	if err != nil {
		return gev.Params{}, core.NewFitDivergenceError(err.Error())
	}
	if !converged(result.Status) {
		return gev.Params{}, core.NewFitDivergenceError(fmt.Sprintf("optimizer stopped with status %s", result.Status))
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return gev.Params{}, core.NewFitDivergenceError("non-finite likelihood at optimum")
	}

	fitted := gev.Params{
		Shape:    result.X[0],
		Location: mean + sd*result.X[1],
		Scale:    sd * math.Exp(result.X[2]),
	}
	if err := fitted.Validate(); err != nil {
		return gev.Params{}, core.NewFitDivergenceError(err.Error())
	}
	return fitted, nil
}

// startingPoint prefers the L-moment estimate and falls back to a Gumbel
// start when that estimate leaves a point outside the support.
func (m *MLE) startingPoint(z []float64) gev.Params {
	p, err := LMomentEstimate(z)
	if err == nil && math.Abs(p.Shape) < m.cfg.MaxAbsShape && !math.IsInf(p.NegLogLikelihood(z), 1) {
		return p
	}
	return gumbelMomentEstimate(0, 1)
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}
