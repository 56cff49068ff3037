package ports

import (
	"context"

	"lakeattr/domain/series"
)

// SeriesSource names a tabular file and the columns holding one annual series.
type SeriesSource struct {
	Path       string
	Sheet      string // xlsx only; empty selects the first sheet
	YearColumn string // empty selects the first column
	Column     string
	Name       string
	Unit       string
	Window     series.Window // rows outside are skipped before parsing

	// Aggregate collapses dated sub-annual rows into one value per year
	// ("max", "min" or "mean"); empty expects one row per year.
	Aggregate       string
	MinObservations int // years with fewer rows are dropped when aggregating
}

// SeriesReaderPort loads annual series from tabular files.
type SeriesReaderPort interface {
	ReadSeries(ctx context.Context, src SeriesSource) (*series.AnnualSeries, error)
}
