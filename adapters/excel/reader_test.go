package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"lakeattr/domain/core"
	"lakeattr/domain/series"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeriesReader_CSV(t *testing.T) {
	path := writeFile(t, "blockmax.csv", "year,daymax_180,dLdt_180\n"+
		"1897,120,0.31\n"+
		"1898,80,0.12\n"+
		",,\n"+
		"1899,99,\n"+
		"1900.0,10,0.44\n")

	reader := NewSeriesReader(nil)
	s, err := reader.ReadSeries(context.Background(), ports.SeriesSource{
		Path:   path,
		Column: "dLdt_180",
		Unit:   "m",
	})
	require.NoError(t, err)

	assert.Equal(t, "dLdt_180", s.Name())
	assert.Equal(t, "m", s.Unit())
	assert.Equal(t, []int{1897, 1898, 1900}, s.Years())
	assert.Equal(t, []float64{0.31, 0.12, 0.44}, s.Values())
}

func TestSeriesReader_WindowSkipsBeforeParsing(t *testing.T) {
	path := writeFile(t, "gmst.csv", "year,Ta\n1879,not-yet-measured\n1900,-0.2\n2020,1.02\n")

	s, err := NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{
		Path:       path,
		YearColumn: "year",
		Column:     "Ta",
		Name:       "gmst",
		Window:     series.Window{Start: 1880},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1900, 2020}, s.Years())
	assert.Equal(t, "gmst", s.Name())
}

func TestSeriesReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		column  string
		code    string
	}{
		{"missing column", "year,Ta\n2000,1\n", "dLdt_180", errors.CodeInvalidInput},
		{"non numeric value", "year,Ta\n2000,warm\n", "Ta", errors.CodeInvalidInput},
		{"non integer year", "year,Ta\n2000.5,1\n", "Ta", errors.CodeInvalidInput},
		{"header only", "year,Ta\n", "Ta", errors.CodeInvalidInput},
		{"duplicate year", "year,Ta\n2000,1\n2000,2\n", "Ta", errors.CodeInputAlignment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "in.csv", tt.content)
			_, err := NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{Path: path, Column: tt.column})
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	t.Run("duplicate year keeps sentinel", func(t *testing.T) {
		path := writeFile(t, "in.csv", "year,Ta\n2000,1\n2000,2\n")
		_, err := NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{Path: path, Column: "Ta"})
		assert.ErrorIs(t, err, core.ErrDuplicateYear)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{
			Path:   filepath.Join(t.TempDir(), "nope.csv"),
			Column: "Ta",
		})
		require.Error(t, err)
		assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
	})
}

func TestSeriesReader_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gmst.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet("gistemp")
	require.NoError(t, err)
	rows := [][]interface{}{
		{"year", "Ta"},
		{1900, -0.21},
		{1901, -0.15},
		{2020, 1.02},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow("gistemp", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	s, err := NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{
		Path:   path,
		Sheet:  "gistemp",
		Column: "Ta",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1900, 1901, 2020}, s.Years())
	assert.InDeltaSlice(t, []float64{-0.21, -0.15, 1.02}, s.Values(), 1e-12)

	// The default sheet is Sheet1, which is empty.
	_, err = NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{Path: path, Column: "Ta"})
	assert.Error(t, err)
}

func TestSeriesReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSeriesReader(nil).ReadSeries(ctx, ports.SeriesSource{Path: "x.csv", Column: "v"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseYear(t *testing.T) {
	for raw, want := range map[string]int{"1897": 1897, "1897.0": 1897, "2020": 2020} {
		got, err := parseYear(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"1897.5", "year", "1e9"} {
		_, err := parseYear(raw)
		assert.Error(t, err, raw)
	}
}

func TestSeriesReader_AggregatesDailyRows(t *testing.T) {
	path := writeFile(t, "dldt_daily.csv", "date,dLdt\n"+
		"1961-01-01,0.02\n"+
		"1961-05-20,0.31\n"+
		"1961-12-31,-0.05\n"+
		"1962-03-01,0.11\n"+
		"1962-04-01,\n"+
		"1962-04-02,0.07\n"+
		"1963-06-01,0.50\n")

	src := ports.SeriesSource{Path: path, Column: "dLdt", Aggregate: "max"}
	s, err := NewSeriesReader(nil).ReadSeries(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []int{1961, 1962, 1963}, s.Years())
	assert.Equal(t, []float64{0.31, 0.11, 0.50}, s.Values())

	src.Aggregate = "mean"
	src.MinObservations = 2
	src.Window = series.Window{End: 1962}
	s, err = NewSeriesReader(nil).ReadSeries(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []int{1961, 1962}, s.Years())
	assert.InDeltaSlice(t, []float64{0.28 / 3, 0.09}, s.Values(), 1e-12)
}

func TestSeriesReader_AggregateErrors(t *testing.T) {
	path := writeFile(t, "daily.csv", "date,v\n2000-01-01,1\nyesterday,2\n")

	_, err := NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{Path: path, Column: "v", Aggregate: "max"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = NewSeriesReader(nil).ReadSeries(context.Background(), ports.SeriesSource{Path: path, Column: "v", Aggregate: "median"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		raw   string
		year  int
		month time.Month
	}{
		{"1961-05-20", 1961, time.May},
		{"1961-05-20 12:00:00", 1961, time.May},
		{"1961-05", 1961, time.May},
		{"05-20-75", 1975, time.May},
		{"1961", 1961, time.January},
		{"1961.5", 1961, time.July},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTime(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.year, got.Year())
			assert.Equal(t, tt.month, got.Month())
		})
	}
	_, err := parseTime("spring")
	assert.Error(t, err)
}
