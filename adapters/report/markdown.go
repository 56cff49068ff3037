package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"go.uber.org/zap"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

var funcs = template.FuncMap{
	"num":      num,
	"estimate": estimate,
	"params":   params,
	"bound":    bound,
	"percent":  percent,
	"reldiff":  geometry.RelativeDifference,
}

var attributionTemplate = template.Must(template.New("attribution").Funcs(funcs).Parse(`# Attribution: {{.Provenance.Study}}

| | |
|---|---|
| Run | {{.Provenance.RunID}} |
| Generated | {{.Provenance.GeneratedAt}} |
| Response | {{.Provenance.Response}} |
| Covariate | {{.Provenance.Covariate}} |
| Window | {{.Provenance.Window}} ({{.ShiftFit.N}} years) |
| Input fingerprint | {{.Provenance.Fingerprint.Short}} |
| Bootstrap | {{.Provenance.Resamples}} resamples, seed {{.Provenance.Seed}} |
| Event | {{if .Event.Year}}{{.Event.Year}}, {{end}}magnitude {{num .Event.Magnitude}} |

## Shift fit

Block maxima regressed on the covariate: slope {{num .ShiftFit.Slope}}, intercept {{num .ShiftFit.Intercept}}, R² {{num .ShiftFit.RSquared}}.

| Fit | Year | Covariate | Shape | Location | Scale |
|---|---|---|---|---|---|
{{- with .Stationary}}
| stationary | | | {{num .Params.Shape}} | {{num .Params.Location}} | {{num .Params.Scale}} |
{{- end}}
| base | | 0 | {{num .ShiftFit.Base.Shape}} {{bound .BaseBound "shape"}} | {{num .ShiftFit.Base.Location}} {{bound .BaseBound "location"}} | {{num .ShiftFit.Base.Scale}} {{bound .BaseBound "scale"}} |
{{- range .States}}
| {{.State.Label}} | {{.State.Year}} | {{num .State.Covariate}} | {{num .Best.Shape}} {{bound .Bound "shape"}} | {{num .Best.Location}} {{bound .Bound "location"}} | {{num .Best.Scale}} {{bound .Bound "scale"}} |
{{- end}}
{{with .BaseBound}}
Bounds are per-parameter {{percent .Level}} percentiles over {{.Resampling.Succeeded}} of {{.Resampling.Attempted}} resamples{{if .Resampling.Failed}} ({{.Resampling.Failed}} failed to fit and were skipped){{end}}.
{{end}}
{{- with .Stationary}}
Stationary return period of the event: {{estimate .ReturnPeriod}} years.
{{end}}
{{- with .GoodnessOfFit}}
Kolmogorov-Smirnov on detrended residuals: D = {{num .Statistic}}, p = {{num .PValue}} (n = {{.N}}).
{{end}}
{{- with .Derived}}
## Event statistics

| Statistic | {{.Warm.State.Label}} ({{.Warm.State.Year}}) | {{.Cold.State.Label}} ({{.Cold.State.Year}}) |
|---|---|---|
| Exceedance probability | {{estimate .Warm.Survival}} | {{estimate .Cold.Survival}} |
| Return period (years) | {{estimate .Warm.ReturnPeriod}} | {{estimate .Cold.ReturnPeriod}} |
| Intensity at p = {{num .Intensity.ReferenceProbability}} | {{estimate .Intensity.WarmIntensity}} | {{estimate .Intensity.ColdIntensity}} |

- Probability ratio ({{.Ratio.Numerator.Label}} / {{.Ratio.Denominator.Label}}): {{estimate .Ratio.Ratio}}
- Intensity change ({{.Intensity.Warm.Label}} - {{.Intensity.Cold.Label}}): {{estimate .Intensity.Change}}
{{- if .ReturnLevels}}

## Return levels

| Return period | {{.Warm.State.Label}} | {{.Cold.State.Label}} |
|---|---|---|
{{- range .ReturnLevels}}
| {{num .Period}} | {{estimate .Warm}} | {{estimate .Cold}} |
{{- end}}
{{- end}}
{{end}}
{{- if .Warnings}}
## Warnings
{{range .Warnings}}
- {{.Message}}
{{- end}}
{{end}}
{{- if .Failures}}
## Failed stages
{{range .Failures}}
- {{.Stage}}: {{.Error}}
{{- end}}
{{end}}`))

var geometryTemplate = template.Must(template.New("geometry").Funcs(funcs).Parse(`# Water-balance model geometry

| Quantity | Value |
|---|---|
| Grid resolution | {{num .Grid.ResolutionDeg}}° |
| Cell length | {{num .Grid.CellLength}} m |
| Cell area | {{num .Grid.CellArea}} m² |
| Lake area | {{num .Lake.ProjectedArea}} m² ({{.Lake.Polygons}} polygons) |
{{- with .Lake.AttributeArea}}
| Lake area (attribute) | {{num .}} m² |
{{- end}}
| Lake area (reference) | {{num .ReferenceLakeArea}} m² |
| Lake vs reference | {{percent (reldiff .Lake.ProjectedArea .ReferenceLakeArea)}} |
| Basin area | {{num .Basin.ProjectedArea}} m² ({{.Basin.Polygons}} polygons) |
| Lake fraction of basin | {{percent .LakeFraction}} |
| Lake cells | {{num .LakeCells}} |

Areas measured in ` + "`{{.Lake.TargetProj}}`" + `.
`))

// RenderAttribution renders the report as markdown.
func RenderAttribution(r *attribution.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := attributionTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to render attribution report: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderGeometry renders the geometry as markdown.
func RenderGeometry(g *geometry.Geometry) ([]byte, error) {
	var buf bytes.Buffer
	if err := geometryTemplate.Execute(&buf, g); err != nil {
		return nil, fmt.Errorf("failed to render geometry report: %w", err)
	}
	return buf.Bytes(), nil
}

// ToHTML converts markdown to a standalone HTML page.
func ToHTML(md []byte, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}

// MarkdownWriter writes <name>.md and <name>.html files.
type MarkdownWriter struct {
	dir    string
	logger *zap.Logger
}

var _ ports.ReportWriterPort = (*MarkdownWriter)(nil)

func NewMarkdownWriter(dir string, logger *zap.Logger) *MarkdownWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkdownWriter{dir: dir, logger: logger.Named("report")}
}

func (w *MarkdownWriter) WriteAttribution(ctx context.Context, r *attribution.Report) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, err := RenderAttribution(r)
	if err != nil {
		return nil, errors.Wrap(err, "markdown")
	}
	return w.write("attribution", md, "Attribution: "+r.Provenance.Study)
}

func (w *MarkdownWriter) WriteGeometry(ctx context.Context, g *geometry.Geometry) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, err := RenderGeometry(g)
	if err != nil {
		return nil, errors.Wrap(err, "markdown")
	}
	return w.write("geometry", md, "Water-balance model geometry")
}

func (w *MarkdownWriter) write(name string, md []byte, title string) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, errors.IOError("failed to create output directory", err)
	}
	mdPath := filepath.Join(w.dir, name+".md")
	htmlPath := filepath.Join(w.dir, name+".html")
	if err := os.WriteFile(mdPath, md, 0o644); err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to write %s", mdPath), err)
	}
	if err := os.WriteFile(htmlPath, ToHTML(md, title), 0o644); err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to write %s", htmlPath), err)
	}
	w.logger.Info("report written", zap.String("markdown", mdPath), zap.String("html", htmlPath))
	return []string{mdPath, htmlPath}, nil
}
