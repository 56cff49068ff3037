package attribution

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"lakeattr/domain/gev"
)

// DefaultLevel is the two-sided confidence level for all intervals.
const DefaultLevel = 0.95

// Interval is a two-sided percentile interval.
type Interval struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Level float64 `json:"level"`
	// Used is the number of finite-or-infinite replicate values; NaNs are excluded.
	Used int `json:"used"`
}

// PercentileInterval returns the (1-level)/2 and (1+level)/2 percentiles of
// values. NaNs are dropped. With any infinite value the empirical quantile
// is used so the bound can be reported as infinite instead of interpolated.
func PercentileInterval(values []float64, level float64) (Interval, error) {
	if !(level > 0 && level < 1) {
		return Interval{}, fmt.Errorf("confidence level %v outside (0,1)", level)
	}
	x := make([]float64, 0, len(values))
	hasInf := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsInf(v, 0) {
			hasInf = true
		}
		x = append(x, v)
	}
	if len(x) == 0 {
		return Interval{}, fmt.Errorf("no finite replicate values")
	}
	sort.Float64s(x)

	kind := stat.LinInterp
	if hasInf {
		kind = stat.Empirical
	}
	alpha := (1 - level) / 2
	return Interval{
		Low:   stat.Quantile(alpha, kind, x, nil),
		High:  stat.Quantile(1-alpha, kind, x, nil),
		Level: level,
		Used:  len(x),
	}, nil
}

// ParameterBound computes independent percentile bounds for each parameter.
func ParameterBound(set ReplicateSet, level float64) (ConfidenceBound, error) {
	n := len(set.Params)
	if n == 0 {
		return ConfidenceBound{}, fmt.Errorf("no successful replicates")
	}
	shape := make([]float64, n)
	loc := make([]float64, n)
	scale := make([]float64, n)
	for i, p := range set.Params {
		shape[i], loc[i], scale[i] = p.Shape, p.Location, p.Scale
	}

	var ivs [3]Interval
	for i, vals := range [][]float64{shape, loc, scale} {
		iv, err := PercentileInterval(vals, level)
		if err != nil {
			return ConfidenceBound{}, err
		}
		ivs[i] = iv
	}
	return ConfidenceBound{
		Low:        gev.Params{Shape: ivs[0].Low, Location: ivs[1].Low, Scale: ivs[2].Low},
		High:       gev.Params{Shape: ivs[0].High, Location: ivs[1].High, Scale: ivs[2].High},
		Level:      level,
		Resampling: set.Stats,
	}, nil
}
