package ports

import (
	"context"

	"lakeattr/domain/attribution"
	"lakeattr/domain/gev"
)

// GEVFitterPort estimates GEV parameters from a sample.
type GEVFitterPort interface {
	Fit(ctx context.Context, data []float64) (gev.Params, error)
}

// BootstrapPort resamples data with replacement and refits each resample.
type BootstrapPort interface {
	Run(ctx context.Context, data []float64) (*attribution.ReplicateSet, error)
}
