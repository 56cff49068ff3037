package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeattr/domain/geometry"
	"lakeattr/domain/series"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

const lakeVictoriaStudy = `
name = "lake-victoria-2020"

block_maxima {
  path        = "data/blockmax_1897_2021_dt180_obs.csv"
  column      = "dLdt_180"
  year_column = "year"
  unit        = "m"
}

covariate {
  path   = "${study_dir}/gmst.xlsx"
  sheet  = "gistemp"
  column = "Ta"
  start  = 1879
  end    = 2022
}

window {
  start = 1897
  end   = 2019
}

event {
  year = 2020
}

climate_state "warm" {
  label = "2020 climate"
  year  = 2020
}

climate_state "cold" {
  year = 1900
}

bootstrap {
  resamples = 500
  seed      = 42
}

geometry {
  lake_shapefile      = "shp/lake.shp"
  basin_shapefile     = "/data/shp/basin.shp"
  lake_area_attribute = "Lake_area"
}
`

func TestParseStudy(t *testing.T) {
	study, err := ParseStudy([]byte(lakeVictoriaStudy), "study.hcl", "/studies/lv")
	require.NoError(t, err)
	require.NoError(t, study.ValidateAttribution())
	require.NoError(t, study.ValidateGeometry())

	assert.Equal(t, "lake-victoria-2020", study.Name)
	assert.Equal(t, ports.SeriesSource{
		Path:       "/studies/lv/data/blockmax_1897_2021_dt180_obs.csv",
		YearColumn: "year",
		Column:     "dLdt_180",
		Name:       "block_maxima",
		Unit:       "m",
	}, study.Response)
	assert.Equal(t, "/studies/lv/gmst.xlsx", study.Covariate.Path)
	assert.Equal(t, "gistemp", study.Covariate.Sheet)
	assert.Equal(t, series.Window{Start: 1879, End: 2022}, study.Covariate.Window)
	assert.Equal(t, series.Window{Start: 1897, End: 2019}, study.Window)

	assert.Equal(t, 2020, study.Event.Year)
	assert.Nil(t, study.Event.Magnitude)
	assert.Zero(t, study.Event.ReferenceProbability)

	assert.Equal(t, StateSpec{Label: "2020 climate", Year: 2020}, study.Warm)
	assert.Equal(t, StateSpec{Label: "cold", Year: 1900}, study.Cold)

	assert.Equal(t, BootstrapSpec{
		Resamples:          500,
		Seed:               42,
		MinSuccessFraction: DefaultMinSuccessFraction,
		ConfidenceLevel:    DefaultConfidenceLevel,
	}, study.Bootstrap)

	want := &GeometrySpec{
		ResolutionDeg: DefaultResolutionDeg,
		Lake: geometry.Layer{
			Name:          "lake",
			Path:          "/studies/lv/shp/lake.shp",
			SourceProj:    DefaultSourceProj,
			TargetProj:    DefaultTargetProj,
			AreaAttribute: "Lake_area",
		},
		Basin: geometry.Layer{
			Name:       "basin",
			Path:       "/data/shp/basin.shp",
			SourceProj: DefaultSourceProj,
			TargetProj: DefaultTargetProj,
		},
		ReferenceLakeArea: geometry.ReferenceLakeArea,
	}
	if diff := cmp.Diff(want, study.Geometry); diff != "" {
		t.Errorf("geometry mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStudy_EnvFunction(t *testing.T) {
	t.Setenv("LAKEATTR_DATA", "/mnt/data")
	src := `
block_maxima {
  path   = "${env("LAKEATTR_DATA")}/bm.csv"
  column = "dLdt_180"
}
`
	study, err := ParseStudy([]byte(src), "study.hcl", "/studies/x")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data/bm.csv", study.Response.Path)
	assert.Equal(t, "x", study.Name)
}

func TestParseStudy_Defaults(t *testing.T) {
	study, err := ParseStudy([]byte(``), "empty.hcl", "/s")
	require.NoError(t, err)

	assert.Equal(t, DefaultResamples, study.Bootstrap.Resamples)
	assert.Equal(t, int64(DefaultSeed), study.Bootstrap.Seed)
	assert.False(t, study.Bootstrap.Disabled)
	assert.Equal(t, ReturnLevelSpec{MinPeriod: 2, MaxPeriod: 10000, Points: DefaultReturnLevelPoints}, study.ReturnLevels)
	assert.Nil(t, study.Geometry)
	assert.Equal(t, "warm", study.Warm.Label)
	assert.Equal(t, "cold", study.Cold.Label)

	err = study.ValidateAttribution()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	assert.Error(t, study.ValidateGeometry())
}

func TestParseStudy_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `window {`},
		{"unknown block", `lake { x = 1 }`},
		{"unknown state", `climate_state "hot" { year = 2020 }`},
		{"duplicate state", "climate_state \"warm\" { year = 2020 }\nclimate_state \"warm\" { year = 2019 }"},
		{"inverted window", "window {\n start = 2020\n end = 1900\n}"},
		{"no resamples", `bootstrap { resamples = 0 }`},
		{"bad confidence level", `bootstrap { confidence_level = 1.5 }`},
		{"bad reference probability", `event { reference_probability = 1 }`},
		{"bad return periods", `return_levels { min_period = 1 }`},
		{"bad resolution", "geometry {\n lake_shapefile = \"a.shp\"\n basin_shapefile = \"b.shp\"\n resolution_deg = 0\n}"},
		{"missing required attribute", `block_maxima { path = "bm.csv" }`},
		{"unknown aggregate", "covariate {\n path = \"t.csv\"\n column = \"Ta\"\n aggregate = \"median\"\n}"},
		{"negative min observations", "block_maxima {\n path = \"d.csv\"\n column = \"v\"\n aggregate = \"max\"\n min_observations = -1\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStudy([]byte(tt.src), "bad.hcl", "/s")
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestParseStudy_Aggregate(t *testing.T) {
	src := `
block_maxima {
  path             = "dldt_daily.csv"
  column           = "dLdt"
  year_column      = "date"
  aggregate        = "MAX"
  min_observations = 300
}
`
	study, err := ParseStudy([]byte(src), "study.hcl", "/s")
	require.NoError(t, err)
	assert.Equal(t, "max", study.Response.Aggregate)
	assert.Equal(t, 300, study.Response.MinObservations)
	assert.Equal(t, "date", study.Response.YearColumn)
	assert.Empty(t, study.Covariate.Aggregate)
}

func TestLoadStudy_ResolvesAgainstFileDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.hcl")
	src := "block_maxima {\n path = \"bm.csv\"\n column = \"v\"\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	study, err := LoadStudy(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bm.csv"), study.Response.Path)

	_, err = LoadStudy(filepath.Join(dir, "missing.hcl"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
}

func TestReturnLevelSpec_Periods(t *testing.T) {
	periods := ReturnLevelSpec{MinPeriod: 10, MaxPeriod: 1000, Points: 3}.Periods()
	require.Len(t, periods, 3)
	assert.InDelta(t, 10, periods[0], 1e-9)
	assert.InDelta(t, 100, periods[1], 1e-9)
	assert.InDelta(t, 1000, periods[2], 1e-9)

	assert.Nil(t, ReturnLevelSpec{MinPeriod: 2, MaxPeriod: 10, Points: 0}.Periods())
	assert.Equal(t, []float64{2}, ReturnLevelSpec{MinPeriod: 2, MaxPeriod: 10, Points: 1}.Periods())
}
