package report

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
	"lakeattr/domain/gev"
	"lakeattr/domain/series"
)

func sampleReport() *attribution.Report {
	base := gev.Params{Shape: -0.1, Location: 0.27, Scale: 0.22}
	sc := attribution.Scenario{
		Slope:                0.05,
		Warm:                 attribution.ClimateState{Label: "2020 climate", Year: 2020, Covariate: 1.0},
		Cold:                 attribution.ClimateState{Label: "1900 climate", Year: 1900, Covariate: -0.2},
		Magnitude:            5, // beyond the upper bound of both states
		ReferenceProbability: 0.01,
		ReturnPeriods:        []float64{2, 100},
	}
	derived := attribution.NewCalculator(0).Summarize(base, sc, nil, attribution.DefaultLevel)
	model := attribution.ShiftFitModel{Slope: 0.05, Base: base, Years: []int{2000, 2001}, Window: series.Window{Start: 2000, End: 2001}}
	r := &attribution.Report{
		Provenance: attribution.Provenance{Study: "lake-victoria", Window: model.Window, Seed: 7, Resamples: 10},
		Event:      attribution.Event{Year: 2020, Magnitude: sc.Magnitude},
		ShiftFit:   model,
		States: []attribution.ClimateStateEstimate{
			attribution.Parameterize(model, sc.Warm, nil),
			attribution.Parameterize(model, sc.Cold, nil),
		},
		Derived: &derived,
	}
	r.Warnings = derived.Warnings()
	r.AddFailure("bootstrap", assert.AnError)
	return r
}

func TestRenderAttribution(t *testing.T) {
	md, err := RenderAttribution(sampleReport())
	require.NoError(t, err)
	text := string(md)

	assert.Contains(t, text, "# Attribution: lake-victoria")
	assert.Contains(t, text, "| 2020 climate | 2020 |")
	assert.Contains(t, text, "Probability ratio (2020 climate / 1900 climate)")
	assert.Contains(t, text, "+Inf (outside_support, survival_zero)")
	assert.Contains(t, text, "## Return levels")
	assert.Contains(t, text, "## Warnings")
	assert.Contains(t, text, "- bootstrap: ")
	assert.NotContains(t, text, "<no value>")
}

func TestToHTML(t *testing.T) {
	page := string(ToHTML([]byte("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"), "Report"))
	assert.Contains(t, page, "<title>Report</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, `<h1 id="title">Title</h1>`)
}

func testGeometry(t *testing.T) *geometry.Geometry {
	t.Helper()
	grid, err := geometry.NewGrid(0.065)
	require.NoError(t, err)
	attr := 6.88e10
	return &geometry.Geometry{
		Grid:              grid,
		Lake:              geometry.LayerArea{Name: "lake", Polygons: 1, ProjectedArea: 6.8e10, AttributeArea: &attr, TargetProj: "+proj=utm +zone=36 +south"},
		Basin:             geometry.LayerArea{Name: "basin", Polygons: 3, ProjectedArea: 2.6e11},
		ReferenceLakeArea: geometry.ReferenceLakeArea,
	}
}

func TestRenderGeometry(t *testing.T) {
	md, err := RenderGeometry(testGeometry(t))
	require.NoError(t, err)
	text := string(md)
	assert.Contains(t, text, "| Cell length | 7236 m |")
	assert.Contains(t, text, "| Lake area (attribute) | 6.88e+10 m² |")
	assert.Contains(t, text, "| Lake fraction of basin | 26.15% |")
	assert.Contains(t, text, "`+proj=utm +zone=36 +south`")
}

func TestWriters(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	w := MultiWriter{
		NewMarkdownWriter(dir, nil),
		NewJSONWriter(dir, nil),
		NewConsoleWriter(&console),
	}

	paths, err := w.WriteAttribution(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "attribution.md"),
		filepath.Join(dir, "attribution.html"),
		filepath.Join(dir, "attribution.json"),
	}, paths)
	assert.Contains(t, console.String(), "probability ratio")

	raw, err := os.ReadFile(filepath.Join(dir, "attribution.json"))
	require.NoError(t, err)
	assert.Equal(t, "+Inf", gjson.GetBytes(raw, "derived.warm.return_period.value").String())
	assert.Equal(t, "survival_zero", gjson.GetBytes(raw, `derived.warm.return_period.flags.#(=="survival_zero")`).String())
	assert.Equal(t, "lake-victoria", gjson.GetBytes(raw, "provenance.study").String())

	var back attribution.Report
	require.NoError(t, json.Unmarshal(raw, &back))
	require.NotNil(t, back.Derived)
	assert.True(t, math.IsInf(back.Derived.Warm.ReturnPeriod.Value, 1))
	assert.Equal(t, "lake-victoria", back.Provenance.Study)

	console.Reset()
	paths, err = w.WriteGeometry(context.Background(), testGeometry(t))
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.True(t, strings.Contains(console.String(), "A_basin"))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "+Inf", num(math.Inf(1)))
	assert.Equal(t, "NaN", num(math.NaN()))
	assert.Equal(t, "0.2714", num(0.27141))
	assert.Equal(t, "1.5 [1, 2] (partial_interval)", estimate(attribution.Estimate{
		Value:    1.5,
		Interval: &attribution.Interval{Low: 1, High: 2},
		Flags:    []attribution.Flag{attribution.FlagPartialInterval},
	}))
}
