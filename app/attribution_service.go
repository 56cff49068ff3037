package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lakeattr/adapters/battery"
	"lakeattr/adapters/stats/gevfit"
	"lakeattr/adapters/stats/regression"
	"lakeattr/adapters/stats/temporal"
	"lakeattr/domain/attribution"
	"lakeattr/domain/core"
	"lakeattr/domain/gev"
	"lakeattr/domain/series"
	"lakeattr/internal/config"
	"lakeattr/internal/errors"
	"lakeattr/internal/observability"
	"lakeattr/ports"
)

// MinRecommendedOverlap is the number of aligned years below which the fit
// is logged as poorly constrained.
const MinRecommendedOverlap = 20

// Fit purposes used in metrics.
const (
	fitStationary = "stationary"
	fitShift      = "shift"
)

// Inputs are the two annual series of an attribution run.
type Inputs struct {
	Response  *series.AnnualSeries
	Covariate *series.AnnualSeries
}

// AttributionDeps are the collaborators of AttributionService.
type AttributionDeps struct {
	Reader  ports.SeriesReaderPort
	Fitter  ports.GEVFitterPort
	RNG     ports.RNGPort
	Workers int
	// InstabilityThreshold defaults to attribution.DefaultInstabilityThreshold.
	InstabilityThreshold float64
	Logger               *zap.Logger
	Metrics              *observability.Metrics
}

// AttributionService runs the shift-fit attribution pipeline for a study.
type AttributionService struct {
	reader  ports.SeriesReaderPort
	fitter  ports.GEVFitterPort
	rng     ports.RNGPort
	workers int
	calc    attribution.Calculator
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAttributionService creates the service. A nil Fitter uses the default
// MLE.
func NewAttributionService(deps AttributionDeps) *AttributionService {
	if deps.Fitter == nil {
		deps.Fitter = gevfit.NewMLE(gevfit.DefaultMLEConfig())
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	threshold := deps.InstabilityThreshold
	if threshold <= 0 {
		threshold = attribution.DefaultInstabilityThreshold
	}
	return &AttributionService{
		reader:  deps.Reader,
		fitter:  deps.Fitter,
		rng:     deps.RNG,
		workers: deps.Workers,
		calc:    attribution.NewCalculator(threshold),
		logger:  deps.Logger.Named("attribution"),
		metrics: deps.Metrics,
	}
}

// Load reads the study's block maxima and covariate.
func (s *AttributionService) Load(ctx context.Context, study *config.Study) (Inputs, error) {
	if s.reader == nil {
		return Inputs{}, fmt.Errorf("attribution service has no series reader")
	}
	var in Inputs
	runner := NewStageRunner(s.logger, s.metrics)
	err := runner.Run(ctx, StageLoad, func(ctx context.Context) error {
		resp, err := s.reader.ReadSeries(ctx, study.Response)
		if err != nil {
			return errors.Wrapf(err, "failed to load block maxima")
		}
		cov, err := s.reader.ReadSeries(ctx, study.Covariate)
		if err != nil {
			return errors.Wrapf(err, "failed to load covariate")
		}
		in = Inputs{Response: resp, Covariate: cov}
		return nil
	})
	return in, err
}

// RunStudy loads the study inputs and runs the pipeline on them.
func (s *AttributionService) RunStudy(ctx context.Context, study *config.Study) (*attribution.Report, error) {
	in, err := s.Load(ctx, study)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, study, in)
}

// run carries the state of one pipeline execution between stages.
type run struct {
	study   *config.Study
	in      Inputs
	report  *attribution.Report
	aligned *temporal.AlignedSeries

	magnitude    float64
	magnitudeErr error
	warm, cold   attribution.ClimateState
	statesErr    error
	replicates   *attribution.ReplicateSet
}

// Run executes align, stationary_fit, shift_fit, goodness_of_fit,
// parameterize, bootstrap and statistics in order. Alignment and shift-fit
// failures abort the run; any later failure is recorded in the report and
// the remaining stages still run.
func (s *AttributionService) Run(ctx context.Context, study *config.Study, in Inputs) (*attribution.Report, error) {
	if study == nil {
		return nil, errors.ConfigInvalid("no study given")
	}
	if in.Response == nil || in.Covariate == nil {
		return nil, errors.InvalidInput("both block maxima and covariate series are required")
	}
	if err := study.Validate(); err != nil {
		return nil, err
	}
	if err := study.ValidateAttribution(); err != nil {
		return nil, err
	}

	r := &run{study: study, in: in, report: &attribution.Report{
		Provenance: attribution.Provenance{
			RunID:       core.NewRunID(),
			GeneratedAt: core.Now(),
			Fingerprint: core.CombineHashes(in.Response.Fingerprint(), in.Covariate.Fingerprint()),
			Study:       study.Name,
			Response:    in.Response.Name(),
			Covariate:   in.Covariate.Name(),
			Window:      study.Window,
			Seed:        study.Bootstrap.Seed,
			Resamples:   study.Bootstrap.Resamples,
		},
	}}
	if study.Bootstrap.Disabled {
		r.report.Provenance.Resamples = 0
	}

	logger := s.logger.With(zap.String("run_id", r.report.Provenance.RunID.String()), zap.String("study", study.Name))
	runner := NewStageRunner(logger, s.metrics)
	logger.Info("attribution run started",
		zap.String("response", in.Response.Name()),
		zap.String("covariate", in.Covariate.Name()),
		zap.Stringer("window", study.Window))

	if err := runner.Run(ctx, StageAlign, func(ctx context.Context) error { return s.align(r, logger) }); err != nil {
		return nil, errors.Wrapf(err, "alignment failed")
	}
	s.resolveEvent(r)
	s.resolveStates(r)

	s.record(ctx, runner, r, StageStationaryFit, func(ctx context.Context) error { return s.stationaryFit(ctx, r) })

	if err := runner.Run(ctx, StageShiftFit, func(ctx context.Context) error { return s.shiftFit(ctx, r, logger) }); err != nil {
		return nil, errors.Wrapf(err, "shift fit failed")
	}

	s.record(ctx, runner, r, StageGoodnessOfFit, func(ctx context.Context) error { return s.goodnessOfFit(r) })
	s.record(ctx, runner, r, StageParameterize, func(ctx context.Context) error { return s.parameterize(r, nil) })
	if !study.Bootstrap.Disabled {
		s.record(ctx, runner, r, StageBootstrap, func(ctx context.Context) error { return s.bootstrap(ctx, r, logger) })
	}
	s.record(ctx, runner, r, StageStatistics, func(ctx context.Context) error { return s.statistics(r) })

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, w := range r.report.Warnings {
		s.metrics.ObserveFlag(string(w.Flag))
		logger.Warn("numerical instability", zap.String("flag", string(w.Flag)), zap.String("statistic", w.Statistic),
			zap.String("state", w.State), zap.Int("year", w.Year))
	}
	logger.Info("attribution run finished",
		zap.Int("failures", len(r.report.Failures)),
		zap.Int("warnings", len(r.report.Warnings)))
	return r.report, nil
}

// record runs a stage whose failure is reported rather than fatal.
func (s *AttributionService) record(ctx context.Context, runner *StageRunner, r *run, name StageName, fn func(ctx context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if err := runner.Run(ctx, name, fn); err != nil && ctx.Err() == nil {
		r.report.AddFailure(string(name), err)
	}
}

func (s *AttributionService) align(r *run, logger *zap.Logger) error {
	aligned, err := temporal.AlignAnnual(r.in.Response, r.in.Covariate, r.study.Window)
	if err != nil {
		return err
	}
	r.aligned = aligned
	r.report.Provenance.Window = series.Window{Start: aligned.Years[0], End: aligned.Years[len(aligned.Years)-1]}

	fields := []zap.Field{zap.Int("years", aligned.Len()), zap.Int("dropped", aligned.Dropped)}
	if aligned.Len() < MinRecommendedOverlap {
		logger.Warn("short overlap, fit will be poorly constrained",
			append(fields, zap.Int("recommended", MinRecommendedOverlap))...)
		return nil
	}
	logger.Info("series aligned", fields...)
	return nil
}

// resolveEvent takes the event magnitude from the study or from the full
// block-maximum series, which may extend past the fit window.
func (s *AttributionService) resolveEvent(r *run) {
	ev := r.study.Event
	r.report.Event = attribution.Event{Year: ev.Year}
	if ev.Magnitude != nil {
		r.magnitude = *ev.Magnitude
		r.report.Event.Magnitude = r.magnitude
		return
	}
	m, err := r.in.Response.Lookup(ev.Year)
	if err != nil {
		r.magnitudeErr = err
		return
	}
	r.magnitude = m
	r.report.Event.Magnitude = m
}

// resolveStates takes each state's covariate from the study or from the
// full covariate series.
func (s *AttributionService) resolveStates(r *run) {
	resolve := func(spec config.StateSpec) (attribution.ClimateState, error) {
		st := attribution.ClimateState{Label: spec.Label, Year: spec.Year}
		if spec.Covariate != nil {
			st.Covariate = *spec.Covariate
			return st, nil
		}
		c, err := r.in.Covariate.Lookup(spec.Year)
		if err != nil {
			return st, fmt.Errorf("climate state %s: %w", spec.Label, err)
		}
		st.Covariate = c
		return st, nil
	}
	var err error
	if r.warm, err = resolve(r.study.Warm); err != nil {
		r.statesErr = err
		return
	}
	if r.cold, err = resolve(r.study.Cold); err != nil {
		r.statesErr = err
	}
}

func (s *AttributionService) stationaryFit(ctx context.Context, r *run) error {
	params, err := s.fitter.Fit(ctx, r.aligned.Response)
	s.metrics.ObserveFit(fitStationary, err)
	if err != nil {
		return err
	}
	fit := &attribution.StationaryFit{Params: params}
	if r.magnitudeErr == nil {
		fit.ReturnPeriod = attribution.Estimate{Value: params.ReturnPeriod(r.magnitude)}
	}
	r.report.Stationary = fit
	return r.magnitudeErr
}

func (s *AttributionService) shiftFit(ctx context.Context, r *run, logger *zap.Logger) error {
	line, err := regression.OLS(r.aligned.Covariate, r.aligned.Response)
	if err != nil {
		return err
	}
	detrended := line.Detrend(r.aligned.Covariate, r.aligned.Response)
	base, err := s.fitter.Fit(ctx, detrended)
	s.metrics.ObserveFit(fitShift, err)
	if err != nil {
		return err
	}

	r.report.ShiftFit = attribution.ShiftFitModel{
		Slope:       line.Slope,
		Intercept:   line.Intercept,
		RSquared:    line.RSquared,
		SlopeStdErr: line.SlopeStdErr,
		SlopePValue: line.SlopePValue,
		Base:        base,
		Window:      r.report.Provenance.Window,
		Years:       r.aligned.Years,
		Detrended:   detrended,
	}
	logger.Info("shift fit",
		zap.Float64("slope", line.Slope),
		zap.Float64("r_squared", line.RSquared),
		zap.Stringer("base", base))
	return nil
}

func (s *AttributionService) goodnessOfFit(r *run) error {
	ks, err := gevfit.KolmogorovSmirnov(r.report.ShiftFit.Detrended, r.report.ShiftFit.Base)
	if err != nil {
		return err
	}
	r.report.GoodnessOfFit = &attribution.GoodnessOfFit{Statistic: ks.Statistic, PValue: ks.PValue, N: ks.N}
	return nil
}

func (s *AttributionService) parameterize(r *run, bound *attribution.ConfidenceBound) error {
	if r.statesErr != nil {
		return r.statesErr
	}
	r.report.States = []attribution.ClimateStateEstimate{
		attribution.Parameterize(r.report.ShiftFit, r.warm, bound),
		attribution.Parameterize(r.report.ShiftFit, r.cold, bound),
	}
	return nil
}

// bootstrap refits resamples of the detrended series with the slope held
// fixed. A collapsed run keeps the best estimates and reports no bounds.
func (s *AttributionService) bootstrap(ctx context.Context, r *run, logger *zap.Logger) error {
	cfg := battery.BootstrapConfig{
		Resamples:          r.study.Bootstrap.Resamples,
		Seed:               r.study.Bootstrap.Seed,
		Workers:            s.workers,
		MinSuccessFraction: r.study.Bootstrap.MinSuccessFraction,
	}
	set, err := battery.NewBootstrap(s.fitter, s.rng, cfg, logger, s.metrics).Run(ctx, r.report.ShiftFit.Detrended)
	if err != nil {
		return err
	}
	bound, err := attribution.ParameterBound(*set, r.study.Bootstrap.ConfidenceLevel)
	if err != nil {
		return err
	}
	r.replicates = set
	r.report.BaseBound = &bound
	if r.statesErr == nil {
		return s.parameterize(r, &bound)
	}
	return nil
}

// statistics evaluates every derived statistic on the best fit and on each
// bootstrap replicate, so intervals come from jointly resampled parameters.
func (s *AttributionService) statistics(r *run) error {
	if r.statesErr != nil {
		return r.statesErr
	}
	if r.magnitudeErr != nil {
		return r.magnitudeErr
	}
	model := r.report.ShiftFit
	sc := attribution.Scenario{
		Slope:                model.Slope,
		Warm:                 r.warm,
		Cold:                 r.cold,
		Magnitude:            r.magnitude,
		ReferenceProbability: r.study.Event.ReferenceProbability,
		ReturnPeriods:        r.study.ReturnLevels.Periods(),
	}
	if sc.ReferenceProbability == 0 {
		sc.ReferenceProbability = model.ParamsAt(r.warm.Covariate).Survival(r.magnitude)
	}

	var evals []attribution.Evaluation
	if r.replicates != nil {
		evals = make([]attribution.Evaluation, len(r.replicates.Params))
		for i, p := range r.replicates.Params {
			evals[i] = s.calc.Evaluate(p, sc)
		}
	}
	derived := s.calc.Summarize(model.Base, sc, evals, r.study.Bootstrap.ConfidenceLevel)
	r.report.Derived = &derived
	r.report.Warnings = append(r.report.Warnings, derived.Warnings()...)
	return nil
}

// FitStationary fits a GEV to the windowed block maxima with no trend.
func (s *AttributionService) FitStationary(ctx context.Context, study *config.Study, in Inputs) (gev.Params, *temporal.AlignedSeries, error) {
	aligned, err := temporal.AlignAnnual(in.Response, in.Covariate, study.Window)
	if err != nil {
		return gev.Params{}, nil, errors.Wrapf(err, "alignment failed")
	}
	params, err := s.fitter.Fit(ctx, aligned.Response)
	s.metrics.ObserveFit(fitStationary, err)
	if err != nil {
		return gev.Params{}, aligned, errors.Wrapf(err, "stationary fit failed")
	}
	return params, aligned, nil
}
