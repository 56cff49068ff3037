// Package series holds the annual time series the attribution pipeline joins
// and fits: block maxima of the response and the covariate (GMST anomaly).
package series

import (
	"fmt"
	"math"
	"sort"

	"lakeattr/domain/core"
)

// Point is one year/value pair.
type Point struct {
	Year  int
	Value float64
}

// AnnualSeries maps a year to a single value. It is immutable after construction.
type AnnualSeries struct {
	name   string
	unit   string
	values map[int]float64
	years  []int
}

// New builds a series from points. Duplicate years and non-finite values are rejected.
func New(name, unit string, points []Point) (*AnnualSeries, error) {
	values := make(map[int]float64, len(points))
	for _, p := range points {
		if _, dup := values[p.Year]; dup {
			return nil, fmt.Errorf("%w: %s year %d", core.ErrDuplicateYear, name, p.Year)
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%s: non-finite value %v for year %d", name, p.Value, p.Year)
		}
		values[p.Year] = p.Value
	}
	return fromMap(name, unit, values), nil
}

// FromSlices builds a series from parallel year and value slices.
func FromSlices(name, unit string, years []int, values []float64) (*AnnualSeries, error) {
	if len(years) != len(values) {
		return nil, fmt.Errorf("%s: %d years but %d values", name, len(years), len(values))
	}
	points := make([]Point, len(years))
	for i := range years {
		points[i] = Point{Year: years[i], Value: values[i]}
	}
	return New(name, unit, points)
}

func fromMap(name, unit string, values map[int]float64) *AnnualSeries {
	years := make([]int, 0, len(values))
	for y := range values {
		years = append(years, y)
	}
	sort.Ints(years)
	return &AnnualSeries{name: name, unit: unit, values: values, years: years}
}

func (s *AnnualSeries) Name() string { return s.name }
func (s *AnnualSeries) Unit() string { return s.unit }
func (s *AnnualSeries) Len() int     { return len(s.years) }

// Years returns the sorted years. The returned slice is a copy.
func (s *AnnualSeries) Years() []int {
	out := make([]int, len(s.years))
	copy(out, s.years)
	return out
}

// Values returns values in year order.
func (s *AnnualSeries) Values() []float64 {
	out := make([]float64, len(s.years))
	for i, y := range s.years {
		out[i] = s.values[y]
	}
	return out
}

// Points returns year/value pairs in year order.
func (s *AnnualSeries) Points() []Point {
	out := make([]Point, len(s.years))
	for i, y := range s.years {
		out[i] = Point{Year: y, Value: s.values[y]}
	}
	return out
}

// Get returns the value for year and whether it exists.
func (s *AnnualSeries) Get(year int) (float64, bool) {
	v, ok := s.values[year]
	return v, ok
}

// Lookup returns the value for year or a MissingYear error.
func (s *AnnualSeries) Lookup(year int) (float64, error) {
	v, ok := s.values[year]
	if !ok {
		return 0, core.NewMissingYearError(s.name, year)
	}
	return v, nil
}

// Span returns the first and last year. ok is false for an empty series.
func (s *AnnualSeries) Span() (first, last int, ok bool) {
	if len(s.years) == 0 {
		return 0, 0, false
	}
	return s.years[0], s.years[len(s.years)-1], true
}

// Window returns the sub-series within w.
func (s *AnnualSeries) Window(w Window) *AnnualSeries {
	values := make(map[int]float64)
	for _, y := range s.years {
		if w.Contains(y) {
			values[y] = s.values[y]
		}
	}
	return fromMap(s.name, s.unit, values)
}

// Fingerprint hashes the series content.
func (s *AnnualSeries) Fingerprint() core.Hash {
	return core.ComputeSeriesHash(s.name, s.values)
}

// Window is an inclusive year range. A zero bound is open.
type Window struct {
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
}

func (w Window) Contains(year int) bool {
	if w.Start != 0 && year < w.Start {
		return false
	}
	if w.End != 0 && year > w.End {
		return false
	}
	return true
}

// Validate rejects inverted windows.
func (w Window) Validate() error {
	if w.Start != 0 && w.End != 0 && w.Start > w.End {
		return fmt.Errorf("window start %d after end %d", w.Start, w.End)
	}
	return nil
}

func (w Window) String() string {
	start, end := "open", "open"
	if w.Start != 0 {
		start = fmt.Sprint(w.Start)
	}
	if w.End != 0 {
		end = fmt.Sprint(w.End)
	}
	return start + ".." + end
}
