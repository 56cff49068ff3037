package battery

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lakeattr/domain/attribution"
	"lakeattr/domain/core"
	"lakeattr/domain/gev"
	"lakeattr/internal/observability"
	"lakeattr/ports"
)

const bootstrapStage = "bootstrap"

// BootstrapConfig controls the resampling run.
type BootstrapConfig struct {
	Resamples int
	Seed      int64
	Workers   int // 0 uses GOMAXPROCS
	// MinSuccessFraction is the share of resamples that must fit for the
	// interval to be reported at all.
	MinSuccessFraction float64
}

// DefaultBootstrapConfig returns 100 resamples with seed 1.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{Resamples: 100, Seed: 1, MinSuccessFraction: 0.9}
}

// Bootstrap refits the GEV to resamples drawn with replacement.
type Bootstrap struct {
	fitter  ports.GEVFitterPort
	rngPort ports.RNGPort
	cfg     BootstrapConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewBootstrap creates a bootstrap battery. metrics may be nil.
func NewBootstrap(fitter ports.GEVFitterPort, rngPort ports.RNGPort, cfg BootstrapConfig, logger *zap.Logger, metrics *observability.Metrics) *Bootstrap {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.MinSuccessFraction <= 0 || cfg.MinSuccessFraction > 1 {
		cfg.MinSuccessFraction = DefaultBootstrapConfig().MinSuccessFraction
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{fitter: fitter, rngPort: rngPort, cfg: cfg, logger: logger, metrics: metrics}
}

// Config returns the effective configuration.
func (b *Bootstrap) Config() BootstrapConfig { return b.cfg }

type resampleResult struct {
	params gev.Params
	err    error
}

// Run draws cfg.Resamples resamples of data and fits each one. Resample i
// always uses the stream for index i, so the result does not depend on
// Workers. Failed fits are skipped and counted.
func (b *Bootstrap) Run(ctx context.Context, data []float64) (*attribution.ReplicateSet, error) {
	if b.cfg.Resamples <= 0 {
		return nil, fmt.Errorf("bootstrap resamples must be positive, got %d", b.cfg.Resamples)
	}
	if len(data) == 0 {
		return nil, core.NewInsufficientOverlapError(0, 1)
	}

	results := make([]resampleResult, b.cfg.Resamples)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	for i := 0; i < b.cfg.Resamples; i++ {
		i := i
		g.Go(func() error {
			rng, err := b.rngPort.Stream(gctx, bootstrapStage, i, b.cfg.Seed)
			if err != nil {
				return err
			}
			sample := make([]float64, len(data))
			for j := range sample {
				sample[j] = data[rng.Intn(len(data))]
			}
			params, err := b.fitter.Fit(gctx, sample)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = resampleResult{params: params, err: err}
			b.metrics.ObserveResample(err)
			b.metrics.ObserveFit("bootstrap", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &attribution.ReplicateSet{Stats: attribution.ResampleStats{Seed: b.cfg.Seed, Attempted: b.cfg.Resamples}}
	for i, r := range results {
		if r.err != nil {
			set.Stats.Failed++
			b.logger.Debug("bootstrap resample skipped", zap.Int("index", i), zap.Error(r.err))
			continue
		}
		set.Stats.Succeeded++
		set.Params = append(set.Params, r.params)
	}

	if set.Stats.Failed > 0 {
		b.logger.Warn("bootstrap resamples failed to fit",
			zap.Int("failed", set.Stats.Failed),
			zap.Int("attempted", set.Stats.Attempted))
	}
	if set.Stats.SuccessFraction() < b.cfg.MinSuccessFraction {
		return set, fmt.Errorf("%w: %d of %d succeeded, need %.0f%%",
			core.ErrBootstrapCollapsed, set.Stats.Succeeded, set.Stats.Attempted, 100*b.cfg.MinSuccessFraction)
	}
	return set, nil
}
