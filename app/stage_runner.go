package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lakeattr/internal/observability"
)

// StageName identifies one step of a pipeline.
type StageName string

const (
	StageLoad          StageName = "load"
	StageAlign         StageName = "align"
	StageStationaryFit StageName = "stationary_fit"
	StageShiftFit      StageName = "shift_fit"
	StageGoodnessOfFit StageName = "goodness_of_fit"
	StageParameterize  StageName = "parameterize"
	StageBootstrap     StageName = "bootstrap"
	StageStatistics    StageName = "statistics"
	StageGrid          StageName = "grid"
	StageLakeArea      StageName = "lake_area"
	StageBasinArea     StageName = "basin_area"
	StageReport        StageName = "report"
)

// StageResult is the outcome of one executed stage.
type StageResult struct {
	Name     StageName
	Duration time.Duration
	Err      error
}

// StageRunner handles execution of pipeline stages, timing each one and
// recording it in the logs and metrics.
type StageRunner struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	results []StageResult
}

// NewStageRunner creates a new stage runner. metrics may be nil.
func NewStageRunner(logger *zap.Logger, metrics *observability.Metrics) *StageRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageRunner{logger: logger, metrics: metrics}
}

// Run executes fn as stage name. A cancelled context skips the stage.
func (r *StageRunner) Run(ctx context.Context, name StageName, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	r.results = append(r.results, StageResult{Name: name, Duration: elapsed, Err: err})
	r.metrics.ObserveStage(string(name), elapsed, err)
	if err != nil {
		r.logger.Warn("stage failed", zap.String("stage", string(name)), zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	r.logger.Debug("stage complete", zap.String("stage", string(name)), zap.Duration("elapsed", elapsed))
	return nil
}

// Results returns the executed stages in order.
func (r *StageRunner) Results() []StageResult {
	out := make([]StageResult, len(r.results))
	copy(out, r.results)
	return out
}
