package excel

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
	"lakeattr/domain/gev"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

// WorkbookWriter writes reports as xlsx workbooks.
type WorkbookWriter struct {
	cfg    WorkbookConfig
	logger *zap.Logger
}

var _ ports.ReportWriterPort = (*WorkbookWriter)(nil)

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(cfg WorkbookConfig, logger *zap.Logger) *WorkbookWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkbookWriter{cfg: cfg, logger: logger.Named("excel")}
}

// WriteAttribution writes the Provenance, Parameters, Statistics and
// ReturnLevels sheets.
func (w *WorkbookWriter) WriteAttribution(ctx context.Context, report *attribution.Report) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	sb := newSheetBuilder(f, w.cfg.NumberFormatStyle)
	sb.writeProvenance(report)
	sb.writeParameters(report)
	sb.writeStatistics(report)
	sb.writeReturnLevels(report)
	if err := sb.err(); err != nil {
		return nil, errors.Wrap(err, "failed to build attribution workbook")
	}

	path, err := w.save(f, w.cfg.AttributionFile)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// WriteGeometry writes the Geometry sheet.
func (w *WorkbookWriter) WriteGeometry(ctx context.Context, geom *geometry.Geometry) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	sb := newSheetBuilder(f, w.cfg.NumberFormatStyle)
	sb.writeGeometry(geom)
	if err := sb.err(); err != nil {
		return nil, errors.Wrap(err, "failed to build geometry workbook")
	}

	path, err := w.save(f, w.cfg.GeometryFile)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (w *WorkbookWriter) save(f *excelize.File, name string) (string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", errors.IOError("failed to create output directory", err)
	}
	path := filepath.Join(w.cfg.Dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", errors.IOError(fmt.Sprintf("failed to save %s", path), err)
	}
	w.logger.Info("workbook written", zap.String("path", path))
	return path, nil
}

// sheetBuilder appends rows to sheets, remembering the first error.
type sheetBuilder struct {
	f          *excelize.File
	rows       map[string]int
	first      bool
	sciStyle   int
	firstError error
}

func newSheetBuilder(f *excelize.File, numFmt int) *sheetBuilder {
	sb := &sheetBuilder{f: f, rows: make(map[string]int), first: true}
	if numFmt > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
		sb.keep(err)
		sb.sciStyle = style
	}
	return sb
}

func (sb *sheetBuilder) keep(err error) {
	if err != nil && sb.firstError == nil {
		sb.firstError = err
	}
}

func (sb *sheetBuilder) err() error { return sb.firstError }

// sheet creates name, reusing the default sheet for the first one.
func (sb *sheetBuilder) sheet(name string, header ...interface{}) {
	if sb.first {
		sb.keep(sb.f.SetSheetName(sb.f.GetSheetName(0), name))
		sb.first = false
	} else {
		_, err := sb.f.NewSheet(name)
		sb.keep(err)
	}
	sb.rows[name] = 0
	sb.row(name, header...)
}

func (sb *sheetBuilder) row(sheet string, values ...interface{}) {
	sb.rows[sheet]++
	cell, err := excelize.CoordinatesToCellName(1, sb.rows[sheet])
	if err != nil {
		sb.keep(err)
		return
	}
	sb.keep(sb.f.SetSheetRow(sheet, cell, &values))
}

func (sb *sheetBuilder) sciColumns(sheet, cols string) {
	if sb.sciStyle > 0 {
		sb.keep(sb.f.SetColStyle(sheet, cols, sb.sciStyle))
	}
}

func (sb *sheetBuilder) writeProvenance(r *attribution.Report) {
	p := r.Provenance
	sb.sheet(SheetProvenance, "field", "value")
	sb.row(SheetProvenance, "run_id", p.RunID.String())
	sb.row(SheetProvenance, "generated_at", p.GeneratedAt.String())
	sb.row(SheetProvenance, "study", p.Study)
	sb.row(SheetProvenance, "response", p.Response)
	sb.row(SheetProvenance, "covariate", p.Covariate)
	sb.row(SheetProvenance, "window", p.Window.String())
	sb.row(SheetProvenance, "input_fingerprint", p.Fingerprint.String())
	sb.row(SheetProvenance, "seed", p.Seed)
	sb.row(SheetProvenance, "resamples", p.Resamples)
	sb.row(SheetProvenance, "event_year", r.Event.Year)
	sb.row(SheetProvenance, "event_magnitude", cellFloat(r.Event.Magnitude))
	sb.row(SheetProvenance, "slope", cellFloat(r.ShiftFit.Slope))
	sb.row(SheetProvenance, "intercept", cellFloat(r.ShiftFit.Intercept))
	sb.row(SheetProvenance, "r_squared", cellFloat(r.ShiftFit.RSquared))
	sb.row(SheetProvenance, "years_fitted", r.ShiftFit.N())
	if g := r.GoodnessOfFit; g != nil {
		sb.row(SheetProvenance, "ks_statistic", cellFloat(g.Statistic))
		sb.row(SheetProvenance, "ks_p_value", cellFloat(g.PValue))
	}
	for _, failure := range r.Failures {
		sb.row(SheetProvenance, "failure:"+failure.Stage, failure.Error)
	}
}

func (sb *sheetBuilder) writeParameters(r *attribution.Report) {
	sb.sheet(SheetParameters,
		"fit", "year", "covariate",
		"shape", "shape_low", "shape_high",
		"location", "location_low", "location_high",
		"scale", "scale_low", "scale_high")

	write := func(fit string, year int, cov float64, best gev.Params, bound *attribution.ConfidenceBound) {
		values := []interface{}{fit, year, cellFloat(cov)}
		lo, hi := blank(bound, func(b *attribution.ConfidenceBound) gev.Params { return b.Low }),
			blank(bound, func(b *attribution.ConfidenceBound) gev.Params { return b.High })
		values = append(values,
			cellFloat(best.Shape), lo(func(p gev.Params) float64 { return p.Shape }), hi(func(p gev.Params) float64 { return p.Shape }),
			cellFloat(best.Location), lo(func(p gev.Params) float64 { return p.Location }), hi(func(p gev.Params) float64 { return p.Location }),
			cellFloat(best.Scale), lo(func(p gev.Params) float64 { return p.Scale }), hi(func(p gev.Params) float64 { return p.Scale }),
		)
		sb.row(SheetParameters, values...)
	}

	if s := r.Stationary; s != nil {
		write("stationary", 0, 0, s.Params, nil)
	}
	write("base", 0, 0, r.ShiftFit.Base, r.BaseBound)
	for _, st := range r.States {
		write(st.State.Label, st.State.Year, st.State.Covariate, st.Best, st.Bound)
	}
}

// blank returns an accessor that yields an empty cell when bound is nil.
func blank(bound *attribution.ConfidenceBound, side func(*attribution.ConfidenceBound) gev.Params) func(func(gev.Params) float64) interface{} {
	return func(field func(gev.Params) float64) interface{} {
		if bound == nil {
			return ""
		}
		return cellFloat(field(side(bound)))
	}
}

func (sb *sheetBuilder) writeStatistics(r *attribution.Report) {
	sb.sheet(SheetStatistics, "statistic", "state", "year", "value", "low", "high", "flags")
	sb.sciColumns(SheetStatistics, "D:F")

	write := func(stat string, state attribution.ClimateState, e attribution.Estimate) {
		low, high := interface{}(""), interface{}("")
		if e.Interval != nil {
			low, high = cellFloat(e.Interval.Low), cellFloat(e.Interval.High)
		}
		flags := make([]string, len(e.Flags))
		for i, f := range e.Flags {
			flags[i] = string(f)
		}
		sb.row(SheetStatistics, stat, state.Label, state.Year, cellFloat(e.Value), low, high, strings.Join(flags, ","))
	}

	if s := r.Stationary; s != nil {
		write("stationary_return_period", attribution.ClimateState{Label: "stationary"}, s.ReturnPeriod)
	}
	d := r.Derived
	if d == nil {
		return
	}
	write("survival", d.Warm.State, d.Warm.Survival)
	write("return_period", d.Warm.State, d.Warm.ReturnPeriod)
	write("survival", d.Cold.State, d.Cold.Survival)
	write("return_period", d.Cold.State, d.Cold.ReturnPeriod)
	write("probability_ratio", d.Ratio.Numerator, d.Ratio.Ratio)
	write("intensity", d.Intensity.Warm, d.Intensity.WarmIntensity)
	write("intensity", d.Intensity.Cold, d.Intensity.ColdIntensity)
	write("intensity_change", d.Intensity.Warm, d.Intensity.Change)
}

func (sb *sheetBuilder) writeReturnLevels(r *attribution.Report) {
	if r.Derived == nil || len(r.Derived.ReturnLevels) == 0 {
		return
	}
	warm, cold := r.Derived.Warm.State.Label, r.Derived.Cold.State.Label
	sb.sheet(SheetReturnLevels, "return_period",
		warm, warm+"_low", warm+"_high",
		cold, cold+"_low", cold+"_high")

	bounds := func(e attribution.Estimate) (interface{}, interface{}) {
		if e.Interval == nil {
			return "", ""
		}
		return cellFloat(e.Interval.Low), cellFloat(e.Interval.High)
	}
	for _, rl := range r.Derived.ReturnLevels {
		wl, wh := bounds(rl.Warm)
		cl, ch := bounds(rl.Cold)
		sb.row(SheetReturnLevels, cellFloat(rl.Period), cellFloat(rl.Warm.Value), wl, wh, cellFloat(rl.Cold.Value), cl, ch)
	}
}

func (sb *sheetBuilder) writeGeometry(g *geometry.Geometry) {
	sb.sheet(SheetGeometry, "quantity", "value", "unit")
	sb.row(SheetGeometry, "resolution", cellFloat(g.Grid.ResolutionDeg), "deg")
	sb.row(SheetGeometry, "cell_length", cellFloat(g.Grid.CellLength), "m")
	sb.row(SheetGeometry, "cell_area", cellFloat(g.Grid.CellArea), "m2")
	sb.row(SheetGeometry, "lake_area", cellFloat(g.Lake.ProjectedArea), "m2")
	if g.Lake.AttributeArea != nil {
		sb.row(SheetGeometry, "lake_area_attribute", cellFloat(*g.Lake.AttributeArea), "m2")
	}
	sb.row(SheetGeometry, "lake_area_reference", cellFloat(g.ReferenceLakeArea), "m2")
	sb.row(SheetGeometry, "lake_vs_reference", cellFloat(geometry.RelativeDifference(g.Lake.ProjectedArea, g.ReferenceLakeArea)), "fraction")
	sb.row(SheetGeometry, "basin_area", cellFloat(g.Basin.ProjectedArea), "m2")
	sb.row(SheetGeometry, "lake_fraction", cellFloat(g.LakeFraction()), "fraction")
	sb.row(SheetGeometry, "lake_cells", cellFloat(g.LakeCells()), "cells")
	sb.row(SheetGeometry, "target_proj", g.Lake.TargetProj, "")
}

// cellFloat keeps non-finite values readable; xlsx has no Inf or NaN.
func cellFloat(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}
