package attribution

import (
	"lakeattr/domain/gev"
	"lakeattr/domain/series"
)

// ClimateState is a reference year and the covariate value it implies.
type ClimateState struct {
	Label     string  `json:"label"`
	Year      int     `json:"year"`
	Covariate float64 `json:"covariate"`
}

// ShiftFitModel is the trend of block maxima on the covariate plus the GEV
// fitted to the detrended series.
type ShiftFitModel struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	// Slope inference from the regression; zero with fewer than 3 years.
	SlopeStdErr float64       `json:"slope_std_err,omitempty"`
	SlopePValue float64       `json:"slope_p_value,omitempty"`
	Base        gev.Params    `json:"base"`
	Window      series.Window `json:"window"`
	Years       []int         `json:"years"`
	Detrended   []float64     `json:"-"`
}

// N is the number of years in the fit.
func (m ShiftFitModel) N() int { return len(m.Years) }

// LocationAt returns the GEV location at covariate value cov.
func (m ShiftFitModel) LocationAt(cov float64) float64 {
	return m.Base.Location + m.Slope*cov
}

// ParamsAt returns base parameters shifted to covariate value cov.
func (m ShiftFitModel) ParamsAt(cov float64) gev.Params {
	return Shift(m.Base, m.Slope, cov)
}

// Shift moves the location of p by slope*cov.
func Shift(p gev.Params, slope, cov float64) gev.Params {
	return p.WithLocation(p.Location + slope*cov)
}

// ResampleStats accounts for the bootstrap replicates behind an interval.
type ResampleStats struct {
	Seed      int64 `json:"seed"`
	Attempted int   `json:"attempted"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
}

// SuccessFraction is Succeeded/Attempted, 0 when nothing was attempted.
func (r ResampleStats) SuccessFraction() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Attempted)
}

// ConfidenceBound holds per-parameter percentile bounds. Low and High are
// not a parameter set that occurs jointly; each field is bounded on its own.
type ConfidenceBound struct {
	Low        gev.Params    `json:"low"`
	High       gev.Params    `json:"high"`
	Level      float64       `json:"level"`
	Resampling ResampleStats `json:"resampling"`
}

// Shifted returns the bound with both location limits moved by slope*cov.
func (b ConfidenceBound) Shifted(slope, cov float64) ConfidenceBound {
	b.Low = Shift(b.Low, slope, cov)
	b.High = Shift(b.High, slope, cov)
	return b
}

// ClimateStateEstimate is the GEV for one climate state.
type ClimateStateEstimate struct {
	State ClimateState     `json:"state"`
	Best  gev.Params       `json:"best"`
	Bound *ConfidenceBound `json:"bound,omitempty"`
}

// Parameterize shifts the model to state. A zero covariate returns the base
// parameters unchanged. bound may be nil.
func Parameterize(m ShiftFitModel, state ClimateState, bound *ConfidenceBound) ClimateStateEstimate {
	est := ClimateStateEstimate{State: state, Best: m.ParamsAt(state.Covariate)}
	if bound != nil {
		shifted := bound.Shifted(m.Slope, state.Covariate)
		est.Bound = &shifted
	}
	return est
}

// ReplicateSet is the successful bootstrap fits in resample-index order.
type ReplicateSet struct {
	Params []gev.Params  `json:"-"`
	Stats  ResampleStats `json:"stats"`
}
