package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
	"lakeattr/ports"
)

// ConsoleWriter prints a short summary. It writes no files.
type ConsoleWriter struct {
	out io.Writer
}

var _ ports.ReportWriterPort = (*ConsoleWriter)(nil)

func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

func (w *ConsoleWriter) WriteAttribution(ctx context.Context, r *attribution.Report) ([]string, error) {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	p := r.Provenance
	fmt.Fprintf(tw, "study\t%s\t(run %s)\n", p.Study, p.RunID)
	fmt.Fprintf(tw, "window\t%s\t%d years\n", p.Window, r.ShiftFit.N())
	fmt.Fprintf(tw, "event\t%d\t%s\n", r.Event.Year, num(r.Event.Magnitude))
	if s := r.Stationary; s != nil {
		fmt.Fprintf(tw, "stationary\t%s\treturn period %s\n", params(s.Params), estimate(s.ReturnPeriod))
	}
	fmt.Fprintf(tw, "shift fit\tslope %s\tintercept %s\n", num(r.ShiftFit.Slope), num(r.ShiftFit.Intercept))
	fmt.Fprintf(tw, "base\t%s\t\n", params(r.ShiftFit.Base))
	for _, st := range r.States {
		fmt.Fprintf(tw, "%s (%d)\t%s\tcovariate %s\n", st.State.Label, st.State.Year, params(st.Best), num(st.State.Covariate))
	}
	if g := r.GoodnessOfFit; g != nil {
		fmt.Fprintf(tw, "ks\tD=%s\tp=%s\n", num(g.Statistic), num(g.PValue))
	}
	if d := r.Derived; d != nil {
		fmt.Fprintf(tw, "return period %s\t%s\t\n", d.Warm.State.Label, estimate(d.Warm.ReturnPeriod))
		fmt.Fprintf(tw, "return period %s\t%s\t\n", d.Cold.State.Label, estimate(d.Cold.ReturnPeriod))
		fmt.Fprintf(tw, "probability ratio\t%s\t\n", estimate(d.Ratio.Ratio))
		fmt.Fprintf(tw, "intensity change\t%s\tat p=%s\n", estimate(d.Intensity.Change), num(d.Intensity.ReferenceProbability))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(tw, "FAILED %s\t%s\t\n", f.Stage, f.Error)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(tw, "warning\t%s\t\n", warn.Message)
	}
	return nil, tw.Flush()
}

func (w *ConsoleWriter) WriteGeometry(ctx context.Context, g *geometry.Geometry) ([]string, error) {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "res_m\t%s\tm\n", num(g.Grid.CellLength))
	fmt.Fprintf(tw, "A_cell\t%s\tm2\n", num(g.Grid.CellArea))
	fmt.Fprintf(tw, "A_lake\t%s\tm2\n", num(g.Lake.ProjectedArea))
	if g.Lake.AttributeArea != nil {
		fmt.Fprintf(tw, "A_lake (attribute)\t%s\tm2\n", num(*g.Lake.AttributeArea))
	}
	fmt.Fprintf(tw, "A_lake (reference)\t%s\tm2\n", num(g.ReferenceLakeArea))
	fmt.Fprintf(tw, "A_basin\t%s\tm2\n", num(g.Basin.ProjectedArea))
	fmt.Fprintf(tw, "lake/basin\t%s\t\n", percent(g.LakeFraction()))
	return nil, tw.Flush()
}
