package temporal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"lakeattr/domain/core"
	"lakeattr/domain/series"
)

// ============================================================================
// ANNUAL ALIGNMENT LAYER
// ============================================================================
// Joins the response block maxima and the covariate on calendar year and
// restricts the result to the analysis window. Everything downstream works
// on the aligned arrays, never on the raw series.
// ============================================================================

// AlignedSeries is the inner join of response and covariate, in year order.
type AlignedSeries struct {
	Years     []int
	Response  []float64
	Covariate []float64
	Window    series.Window
	Dropped   int // response years without a covariate value
}

// Len returns the number of joined years.
func (a *AlignedSeries) Len() int { return len(a.Years) }

// ============================================================================
// FUNCTION 1: AlignAnnual
// ============================================================================

// AlignAnnual joins response and covariate by year within window.
func AlignAnnual(response, covariate *series.AnnualSeries, window series.Window) (*AlignedSeries, error) {
	if response == nil || covariate == nil {
		return nil, fmt.Errorf("both response and covariate series are required")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	aligned := &AlignedSeries{Window: window}
	for _, p := range response.Points() {
		if !window.Contains(p.Year) {
			continue
		}
		c, ok := covariate.Get(p.Year)
		if !ok {
			aligned.Dropped++
			continue
		}
		aligned.Years = append(aligned.Years, p.Year)
		aligned.Response = append(aligned.Response, p.Value)
		aligned.Covariate = append(aligned.Covariate, c)
	}

	if len(aligned.Years) == 0 {
		return nil, fmt.Errorf("%w: %s and %s in %s", core.ErrNoOverlap, response.Name(), covariate.Name(), window)
	}
	return aligned, nil
}

// ============================================================================
// FUNCTION 2: AggregateAnnual
// ============================================================================
// Collapses sub-annual observations (daily lake-level change, monthly
// temperature anomalies) into one value per calendar year.

// Observation is one dated value.
type Observation struct {
	Time  time.Time
	Value float64
}

// AggregationFunc defines how to aggregate the observations of one year
type AggregationFunc string

const (
	AggMax  AggregationFunc = "max"  // block maximum
	AggMin  AggregationFunc = "min"  // block minimum
	AggMean AggregationFunc = "mean" // annual mean
)

// AggregateConfig controls annual aggregation.
type AggregateConfig struct {
	Func AggregationFunc
	// MinObservations drops years with fewer valid observations (0 keeps all).
	MinObservations int
}

// AggregateAnnual groups observations by year and applies cfg.Func.
// NaN observations are skipped.
func AggregateAnnual(name, unit string, obs []Observation, cfg AggregateConfig) (*series.AnnualSeries, error) {
	if cfg.Func == "" {
		cfg.Func = AggMax
	}

	buckets := make(map[int][]float64)
	for _, o := range obs {
		if math.IsNaN(o.Value) {
			continue
		}
		y := o.Time.Year()
		buckets[y] = append(buckets[y], o.Value)
	}

	years := make([]int, 0, len(buckets))
	for y := range buckets {
		years = append(years, y)
	}
	sort.Ints(years)

	points := make([]series.Point, 0, len(years))
	for _, y := range years {
		vals := buckets[y]
		if len(vals) < cfg.MinObservations {
			continue
		}
		v, err := aggregate(vals, cfg.Func)
		if err != nil {
			return nil, err
		}
		points = append(points, series.Point{Year: y, Value: v})
	}
	return series.New(name, unit, points)
}

func aggregate(vals []float64, fn AggregationFunc) (float64, error) {
	switch fn {
	case AggMax:
		return stats.Max(vals)
	case AggMin:
		return stats.Min(vals)
	case AggMean:
		return stats.Mean(vals)
	default:
		return 0, fmt.Errorf("unknown aggregation %q", fn)
	}
}

// ParseAggregation checks an aggregation name; empty means the input is
// already annual.
func ParseAggregation(name string) (AggregationFunc, error) {
	switch fn := AggregationFunc(strings.ToLower(strings.TrimSpace(name))); fn {
	case "", AggMax, AggMin, AggMean:
		return fn, nil
	default:
		return "", fmt.Errorf("unknown aggregation %q (want max, min or mean)", name)
	}
}
