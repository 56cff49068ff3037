package attribution

import (
	"lakeattr/domain/core"
	"lakeattr/domain/gev"
	"lakeattr/domain/series"
)

// Provenance identifies the run and inputs behind a report.
type Provenance struct {
	RunID       core.RunID     `json:"run_id"`
	GeneratedAt core.Timestamp `json:"generated_at"`
	Fingerprint core.Hash      `json:"input_fingerprint"`
	Study       string         `json:"study"`
	Response    string         `json:"response"`
	Covariate   string         `json:"covariate"`
	Window      series.Window  `json:"window"`
	Seed        int64          `json:"seed"`
	Resamples   int            `json:"resamples"`
}

// Event is the observed magnitude being attributed.
type Event struct {
	Year      int     `json:"year,omitempty"`
	Magnitude float64 `json:"magnitude"`
}

// StationaryFit is a GEV fitted to the raw, non-detrended block maxima.
type StationaryFit struct {
	Params       gev.Params `json:"params"`
	ReturnPeriod Estimate   `json:"event_return_period"`
}

// GoodnessOfFit is a Kolmogorov-Smirnov test of the detrended series
// against the base GEV.
type GoodnessOfFit struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	N         int     `json:"n"`
}

// StageFailure records a statistic that could not be computed.
type StageFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Report is the full result of one attribution run.
type Report struct {
	Provenance    Provenance             `json:"provenance"`
	Event         Event                  `json:"event"`
	ShiftFit      ShiftFitModel          `json:"shift_fit"`
	BaseBound     *ConfidenceBound       `json:"base_bound,omitempty"`
	States        []ClimateStateEstimate `json:"climate_states"`
	Stationary    *StationaryFit         `json:"stationary,omitempty"`
	GoodnessOfFit *GoodnessOfFit         `json:"goodness_of_fit,omitempty"`
	Derived       *Derived               `json:"derived,omitempty"`
	Warnings      []Warning              `json:"warnings,omitempty"`
	Failures      []StageFailure         `json:"failures,omitempty"`
}

// AddFailure records err against stage.
func (r *Report) AddFailure(stage string, err error) {
	r.Failures = append(r.Failures, StageFailure{Stage: stage, Error: err.Error()})
}

// Failed reports whether stage recorded a failure.
func (r *Report) Failed(stage string) bool {
	for _, f := range r.Failures {
		if f.Stage == stage {
			return true
		}
	}
	return false
}
