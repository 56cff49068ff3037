package attribution

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeattr/domain/gev"
)

var base = gev.Params{Shape: -0.1, Location: 0.27, Scale: 0.22}

func testModel() ShiftFitModel {
	return ShiftFitModel{Slope: 0.05, Base: base, Years: []int{2000, 2001}}
}

func TestParameterize_ZeroCovariateIsBase(t *testing.T) {
	est := Parameterize(testModel(), ClimateState{Label: "pre-industrial", Year: 1850, Covariate: 0}, nil)
	if diff := cmp.Diff(base, est.Best); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, est.Bound)
}

func TestParameterize_ShiftsOnlyLocation(t *testing.T) {
	bound := &ConfidenceBound{
		Low:  gev.Params{Shape: -0.3, Location: 0.2, Scale: 0.15},
		High: gev.Params{Shape: 0.1, Location: 0.35, Scale: 0.3},
	}
	est := Parameterize(testModel(), ClimateState{Label: "2020", Year: 2020, Covariate: 1.2}, bound)

	assert.Equal(t, base.Shape, est.Best.Shape)
	assert.Equal(t, base.Scale, est.Best.Scale)
	assert.InDelta(t, 0.27+0.06, est.Best.Location, 1e-15)

	require.NotNil(t, est.Bound)
	assert.InDelta(t, 0.26, est.Bound.Low.Location, 1e-15)
	assert.InDelta(t, 0.41, est.Bound.High.Location, 1e-15)
	assert.Equal(t, 0.1, est.Bound.High.Shape)
	assert.Equal(t, 0.2, bound.Low.Location, "input bound must not be modified")
}

func scenario() Scenario {
	return Scenario{
		Slope:                0.05,
		Warm:                 ClimateState{Label: "2020 climate", Year: 2020, Covariate: 1.0},
		Cold:                 ClimateState{Label: "1900 climate", Year: 1900, Covariate: -0.2},
		Magnitude:            0.8,
		ReferenceProbability: 0.01,
		ReturnPeriods:        []float64{2, 10, 100},
	}
}

func TestEvaluate_ConsistentScalars(t *testing.T) {
	calc := NewCalculator(0)
	ev := calc.Evaluate(base, scenario())

	assert.Greater(t, ev.ProbabilityRatio, 1.0, "warmer climate makes the event more likely")
	assert.InDelta(t, ev.SurvivalWarm/ev.SurvivalCold, ev.ProbabilityRatio, 1e-12)
	assert.InDelta(t, 1/ev.SurvivalWarm, ev.ReturnPeriodWarm, 1e-9)
	assert.InDelta(t, 0.05*1.2, ev.IntensityChange, 1e-12, "location shift moves every quantile equally")
	for i := range ev.ReturnLevelsWarm {
		assert.InDelta(t, 0.06, ev.ReturnLevelsWarm[i]-ev.ReturnLevelsCold[i], 1e-12)
	}
}

func TestSummarize_FlagsZeroSurvival(t *testing.T) {
	sc := scenario()
	_, upper := Shift(base, sc.Slope, sc.Warm.Covariate).Support()
	sc.Magnitude = upper + 1

	d := NewCalculator(0).Summarize(base, sc, nil, DefaultLevel)

	assert.Equal(t, 0.0, d.Warm.Survival.Value)
	assert.True(t, math.IsInf(d.Warm.ReturnPeriod.Value, 1))
	assert.True(t, d.Warm.ReturnPeriod.HasFlag(FlagSurvivalZero))
	assert.True(t, d.Warm.Survival.HasFlag(FlagOutsideSupport))
	assert.True(t, d.Ratio.Ratio.HasFlag(FlagUnstableRatio))
	assert.True(t, math.IsNaN(d.Ratio.Ratio.Value), "0/0 is reported, not clamped")

	warnings := d.Warnings()
	require.NotEmpty(t, warnings)
	assert.Equal(t, "2020 climate", warnings[0].State)
	assert.Equal(t, 2020, warnings[0].Year)
}

func TestSummarize_NearZeroSurvival(t *testing.T) {
	sc := scenario()
	sc.Magnitude = Shift(base, sc.Slope, sc.Cold.Covariate).InverseSurvival(1e-13)

	d := NewCalculator(1e-10).Summarize(base, sc, nil, DefaultLevel)
	assert.True(t, d.Cold.Survival.HasFlag(FlagSurvivalNearZero))
	assert.True(t, d.Ratio.Ratio.HasFlag(FlagUnstableRatio))
	assert.False(t, math.IsInf(d.Cold.ReturnPeriod.Value, 0))
}

func TestSummarize_InvalidReferenceProbability(t *testing.T) {
	sc := scenario()
	sc.ReferenceProbability = 0
	d := NewCalculator(0).Summarize(base, sc, nil, DefaultLevel)
	assert.True(t, d.Intensity.Change.HasFlag(FlagInvalidReference))
}

func TestSummarize_JointIntervals(t *testing.T) {
	calc := NewCalculator(0)
	sc := scenario()

	var reps []Evaluation
	for i := 0; i < 200; i++ {
		p := base
		p.Location += 0.002 * float64(i-100)
		p.Scale *= 1 + 0.001*float64(i-100)
		reps = append(reps, calc.Evaluate(p, sc))
	}

	d := calc.Summarize(base, sc, reps, DefaultLevel)
	require.NotNil(t, d.Ratio.Ratio.Interval)
	require.NotNil(t, d.Intensity.Change.Interval)
	require.Len(t, d.ReturnLevels, 3)
	require.NotNil(t, d.ReturnLevels[2].Warm.Interval)

	iv := d.Warm.Survival.Interval
	assert.LessOrEqual(t, iv.Low, d.Warm.Survival.Value)
	assert.GreaterOrEqual(t, iv.High, d.Warm.Survival.Value)

	// The slope is fixed across replicates, so the paired difference has no spread.
	assert.InDelta(t, 0.06, d.Intensity.Change.Interval.Low, 1e-9)
	assert.InDelta(t, 0.06, d.Intensity.Change.Interval.High, 1e-9)
}

func TestPercentileInterval(t *testing.T) {
	vals := make([]float64, 101)
	for i := range vals {
		vals[i] = float64(100 - i)
	}
	iv, err := PercentileInterval(vals, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 5, iv.Low, 1)
	assert.InDelta(t, 95, iv.High, 1)
	assert.Equal(t, 101, iv.Used)

	withInf := []float64{1, 2, 3, math.Inf(1), math.Inf(1), math.NaN()}
	iv, err = PercentileInterval(withInf, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 5, iv.Used)
	assert.True(t, math.IsInf(iv.High, 1))
	assert.False(t, math.IsNaN(iv.Low))

	_, err = PercentileInterval([]float64{math.NaN()}, 0.95)
	assert.Error(t, err)
	_, err = PercentileInterval(vals, 1.5)
	assert.Error(t, err)
}

func TestParameterBound(t *testing.T) {
	set := ReplicateSet{Stats: ResampleStats{Attempted: 3, Succeeded: 3}}
	for _, loc := range []float64{0.1, 0.2, 0.3} {
		set.Params = append(set.Params, gev.Params{Shape: -loc, Location: loc, Scale: 1 + loc})
	}
	b, err := ParameterBound(set, 0.5)
	require.NoError(t, err)
	assert.Less(t, b.Low.Location, b.High.Location)
	assert.Less(t, b.Low.Shape, b.High.Shape)
	assert.Equal(t, 3, b.Resampling.Succeeded)
	assert.Equal(t, 1.0, b.Resampling.SuccessFraction())

	_, err = ParameterBound(ReplicateSet{}, 0.95)
	assert.Error(t, err)
}

func TestEstimateJSON_NonFinite(t *testing.T) {
	e := Estimate{
		Value:    math.Inf(1),
		Interval: &Interval{Low: 12.5, High: math.Inf(1), Level: 0.95, Used: 99},
		Flags:    []Flag{FlagSurvivalZero},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"+Inf","interval":{"low":12.5,"high":"+Inf","level":0.95,"used":99},"flags":["survival_zero"]}`, string(data))

	var back Estimate
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsInf(back.Value, 1))
	assert.True(t, math.IsInf(back.Interval.High, 1))
	assert.Equal(t, 12.5, back.Interval.Low)
	assert.True(t, back.HasFlag(FlagSurvivalZero))

	data, err = json.Marshal(Estimate{Value: math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"NaN"}`, string(data))
}

func TestWarnings_IncludeReturnLevelRows(t *testing.T) {
	calc := NewCalculator(0)
	sc := scenario()
	var reps []Evaluation
	for i := 0; i < 20; i++ {
		p := base
		p.Location += 0.005 * float64(i-10)
		reps = append(reps, calc.Evaluate(p, sc))
	}
	reps[3].ReturnLevelsWarm[1] = math.NaN()

	d := calc.Summarize(base, sc, reps, DefaultLevel)
	require.True(t, d.ReturnLevels[1].Warm.HasFlag(FlagPartialInterval))

	var found []Warning
	for _, w := range d.Warnings() {
		if w.Flag == FlagPartialInterval {
			found = append(found, w)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, "return_level_10", found[0].Statistic)
	assert.Equal(t, "2020 climate", found[0].State)
	assert.Equal(t, 2020, found[0].Year)
}
