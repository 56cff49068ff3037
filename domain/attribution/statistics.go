package attribution

import (
	"fmt"
	"math"

	"lakeattr/domain/gev"
)

// DefaultInstabilityThreshold is the survival probability below which a
// result is flagged as numerically unstable.
const DefaultInstabilityThreshold = 1e-10

// Flag marks a statistic whose value should be read with care. Flags never
// change the value.
type Flag string

const (
	FlagSurvivalZero        Flag = "survival_zero"
	FlagSurvivalNearZero    Flag = "survival_near_zero"
	FlagOutsideSupport      Flag = "outside_support"
	FlagUnstableRatio       Flag = "unstable_ratio"
	FlagInvalidReference    Flag = "invalid_reference_probability"
	FlagPartialInterval     Flag = "partial_interval"
	FlagIntervalUnavailable Flag = "interval_unavailable"
)

// Estimate is a best value with an optional bootstrap interval.
type Estimate struct {
	Value    float64   `json:"value"`
	Interval *Interval `json:"interval,omitempty"`
	Flags    []Flag    `json:"flags,omitempty"`
}

func (e *Estimate) flag(f Flag) {
	for _, have := range e.Flags {
		if have == f {
			return
		}
	}
	e.Flags = append(e.Flags, f)
}

// HasFlag reports whether f is set.
func (e Estimate) HasFlag(f Flag) bool {
	for _, have := range e.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Scenario fixes everything but the base parameters.
type Scenario struct {
	Slope                float64
	Warm                 ClimateState
	Cold                 ClimateState
	Magnitude            float64
	ReferenceProbability float64
	ReturnPeriods        []float64
}

// Evaluation is every derived scalar computed from one base parameter draw.
type Evaluation struct {
	SurvivalWarm     float64
	SurvivalCold     float64
	ReturnPeriodWarm float64
	ReturnPeriodCold float64
	ProbabilityRatio float64
	IntensityWarm    float64
	IntensityCold    float64
	IntensityChange  float64
	ReturnLevelsWarm []float64
	ReturnLevelsCold []float64
}

// Calculator derives event statistics from GEV parameters.
type Calculator struct {
	Threshold float64
}

func NewCalculator(threshold float64) Calculator {
	if !(threshold > 0) {
		threshold = DefaultInstabilityThreshold
	}
	return Calculator{Threshold: threshold}
}

// Evaluate computes all derived scalars for base parameters under sc.
func (c Calculator) Evaluate(base gev.Params, sc Scenario) Evaluation {
	warm := Shift(base, sc.Slope, sc.Warm.Covariate)
	cold := Shift(base, sc.Slope, sc.Cold.Covariate)

	ev := Evaluation{
		SurvivalWarm: warm.Survival(sc.Magnitude),
		SurvivalCold: cold.Survival(sc.Magnitude),
	}
	ev.ReturnPeriodWarm = reciprocal(ev.SurvivalWarm)
	ev.ReturnPeriodCold = reciprocal(ev.SurvivalCold)
	ev.ProbabilityRatio = ratio(ev.SurvivalWarm, ev.SurvivalCold)

	ev.IntensityWarm = warm.InverseSurvival(sc.ReferenceProbability)
	ev.IntensityCold = cold.InverseSurvival(sc.ReferenceProbability)
	ev.IntensityChange = ev.IntensityWarm - ev.IntensityCold

	ev.ReturnLevelsWarm = make([]float64, len(sc.ReturnPeriods))
	ev.ReturnLevelsCold = make([]float64, len(sc.ReturnPeriods))
	for i, T := range sc.ReturnPeriods {
		ev.ReturnLevelsWarm[i] = warm.ReturnLevel(T)
		ev.ReturnLevelsCold[i] = cold.ReturnLevel(T)
	}
	return ev
}

func reciprocal(p float64) float64 {
	if p == 0 {
		return math.Inf(1)
	}
	return 1 / p
}

func ratio(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return math.NaN()
		}
		return math.Inf(1)
	}
	return num / den
}

// EventProbability is the exceedance probability of the event in one state.
type EventProbability struct {
	State        ClimateState `json:"state"`
	Params       gev.Params   `json:"params"`
	Magnitude    float64      `json:"magnitude"`
	Survival     Estimate     `json:"survival"`
	ReturnPeriod Estimate     `json:"return_period"`
}

// ProbabilityRatio compares the event probability of two states.
type ProbabilityRatio struct {
	Numerator   ClimateState `json:"numerator"`
	Denominator ClimateState `json:"denominator"`
	Magnitude   float64      `json:"magnitude"`
	Ratio       Estimate     `json:"ratio"`
}

// IntensityChange compares the magnitude at a fixed exceedance probability.
type IntensityChange struct {
	ReferenceProbability float64      `json:"reference_probability"`
	Warm                 ClimateState `json:"warm"`
	Cold                 ClimateState `json:"cold"`
	WarmIntensity        Estimate     `json:"warm_intensity"`
	ColdIntensity        Estimate     `json:"cold_intensity"`
	Change               Estimate     `json:"change"`
}

// ReturnLevelRow is one return period of the return-level curves.
type ReturnLevelRow struct {
	Period float64  `json:"period"`
	Warm   Estimate `json:"warm"`
	Cold   Estimate `json:"cold"`
}

// Derived groups every statistic of one scenario.
type Derived struct {
	Warm         EventProbability `json:"warm"`
	Cold         EventProbability `json:"cold"`
	Ratio        ProbabilityRatio `json:"probability_ratio"`
	Intensity    IntensityChange  `json:"intensity_change"`
	ReturnLevels []ReturnLevelRow `json:"return_levels"`
}

// Summarize attaches flags to the best evaluation and, when replicates are
// given, percentile intervals of each statistic across replicates.
func (c Calculator) Summarize(base gev.Params, sc Scenario, replicates []Evaluation, level float64) Derived {
	best := c.Evaluate(base, sc)
	warmParams := Shift(base, sc.Slope, sc.Warm.Covariate)
	coldParams := Shift(base, sc.Slope, sc.Cold.Covariate)

	d := Derived{
		Warm: c.eventProbability(sc.Warm, warmParams, sc.Magnitude, best.SurvivalWarm),
		Cold: c.eventProbability(sc.Cold, coldParams, sc.Magnitude, best.SurvivalCold),
		Ratio: ProbabilityRatio{
			Numerator:   sc.Warm,
			Denominator: sc.Cold,
			Magnitude:   sc.Magnitude,
			Ratio:       Estimate{Value: best.ProbabilityRatio},
		},
		Intensity: IntensityChange{
			ReferenceProbability: sc.ReferenceProbability,
			Warm:                 sc.Warm,
			Cold:                 sc.Cold,
			WarmIntensity:        Estimate{Value: best.IntensityWarm},
			ColdIntensity:        Estimate{Value: best.IntensityCold},
			Change:               Estimate{Value: best.IntensityChange},
		},
	}

	if best.SurvivalCold < c.Threshold || math.IsNaN(best.ProbabilityRatio) || math.IsInf(best.ProbabilityRatio, 0) {
		d.Ratio.Ratio.flag(FlagUnstableRatio)
	}
	if !(sc.ReferenceProbability > 0 && sc.ReferenceProbability < 1) {
		d.Intensity.WarmIntensity.flag(FlagInvalidReference)
		d.Intensity.ColdIntensity.flag(FlagInvalidReference)
		d.Intensity.Change.flag(FlagInvalidReference)
	}

	d.ReturnLevels = make([]ReturnLevelRow, len(sc.ReturnPeriods))
	for i, T := range sc.ReturnPeriods {
		d.ReturnLevels[i] = ReturnLevelRow{
			Period: T,
			Warm:   Estimate{Value: best.ReturnLevelsWarm[i]},
			Cold:   Estimate{Value: best.ReturnLevelsCold[i]},
		}
	}

	if len(replicates) == 0 {
		return d
	}

	attach := func(e *Estimate, pick func(Evaluation) float64) {
		vals := make([]float64, len(replicates))
		for i, r := range replicates {
			vals[i] = pick(r)
		}
		iv, err := PercentileInterval(vals, level)
		if err != nil {
			e.flag(FlagIntervalUnavailable)
			return
		}
		if iv.Used < len(vals) {
			e.flag(FlagPartialInterval)
		}
		e.Interval = &iv
	}

	attach(&d.Warm.Survival, func(r Evaluation) float64 { return r.SurvivalWarm })
	attach(&d.Warm.ReturnPeriod, func(r Evaluation) float64 { return r.ReturnPeriodWarm })
	attach(&d.Cold.Survival, func(r Evaluation) float64 { return r.SurvivalCold })
	attach(&d.Cold.ReturnPeriod, func(r Evaluation) float64 { return r.ReturnPeriodCold })
	attach(&d.Ratio.Ratio, func(r Evaluation) float64 { return r.ProbabilityRatio })
	attach(&d.Intensity.WarmIntensity, func(r Evaluation) float64 { return r.IntensityWarm })
	attach(&d.Intensity.ColdIntensity, func(r Evaluation) float64 { return r.IntensityCold })
	attach(&d.Intensity.Change, func(r Evaluation) float64 { return r.IntensityChange })
	for i := range d.ReturnLevels {
		i := i
		attach(&d.ReturnLevels[i].Warm, func(r Evaluation) float64 { return r.ReturnLevelsWarm[i] })
		attach(&d.ReturnLevels[i].Cold, func(r Evaluation) float64 { return r.ReturnLevelsCold[i] })
	}
	return d
}

func (c Calculator) eventProbability(state ClimateState, params gev.Params, magnitude, survival float64) EventProbability {
	ep := EventProbability{
		State:        state,
		Params:       params,
		Magnitude:    magnitude,
		Survival:     Estimate{Value: survival},
		ReturnPeriod: Estimate{Value: reciprocal(survival)},
	}
	if !params.InSupport(magnitude) {
		ep.Survival.flag(FlagOutsideSupport)
		ep.ReturnPeriod.flag(FlagOutsideSupport)
	}
	switch {
	case survival == 0:
		ep.Survival.flag(FlagSurvivalZero)
		ep.ReturnPeriod.flag(FlagSurvivalZero)
	case survival < c.Threshold:
		ep.Survival.flag(FlagSurvivalNearZero)
		ep.ReturnPeriod.flag(FlagSurvivalNearZero)
	}
	return ep
}

// Warnings lists every flagged statistic with its provenance.
func (d Derived) Warnings() []Warning {
	var out []Warning
	add := func(stat string, e Estimate, state ClimateState) {
		for _, f := range e.Flags {
			out = append(out, Warning{
				Flag:      f,
				Statistic: stat,
				State:     state.Label,
				Year:      state.Year,
				Message:   fmt.Sprintf("%s for %s (%d) flagged %s", stat, state.Label, state.Year, f),
			})
		}
	}
	add("survival", d.Warm.Survival, d.Warm.State)
	add("return_period", d.Warm.ReturnPeriod, d.Warm.State)
	add("survival", d.Cold.Survival, d.Cold.State)
	add("return_period", d.Cold.ReturnPeriod, d.Cold.State)
	add("probability_ratio", d.Ratio.Ratio, d.Ratio.Denominator)
	add("intensity", d.Intensity.WarmIntensity, d.Intensity.Warm)
	add("intensity", d.Intensity.ColdIntensity, d.Intensity.Cold)
	add("intensity_change", d.Intensity.Change, d.Intensity.Warm)
	for _, row := range d.ReturnLevels {
		name := fmt.Sprintf("return_level_%g", row.Period)
		add(name, row.Warm, d.Warm.State)
		add(name, row.Cold, d.Cold.State)
	}
	return out
}

// Warning is a NumericalInstability notice attached to a report.
type Warning struct {
	Flag      Flag   `json:"flag"`
	Statistic string `json:"statistic"`
	State     string `json:"state,omitempty"`
	Year      int    `json:"year,omitempty"`
	Message   string `json:"message"`
}
