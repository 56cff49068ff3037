package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gonum.org/v1/gonum/floats"

	"lakeattr/domain/geometry"
	"lakeattr/domain/series"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

// Defaults applied to blocks or attributes a study file leaves out.
const (
	DefaultResamples          = 1000
	DefaultSeed               = 1
	DefaultMinSuccessFraction = 0.9
	DefaultConfidenceLevel    = 0.95
	DefaultMinReturnPeriod    = 2
	DefaultMaxReturnPeriod    = 10000
	DefaultReturnLevelPoints  = 40
	DefaultResolutionDeg      = 0.065
	DefaultSourceProj         = "+proj=longlat +datum=WGS84"
	DefaultTargetProj         = "+proj=utm +zone=36 +south +datum=WGS84 +units=m"
)

// Study is a fully resolved analysis definition.
type Study struct {
	Name         string
	Dir          string
	Response     ports.SeriesSource
	Covariate    ports.SeriesSource
	Window       series.Window
	Event        EventSpec
	Warm         StateSpec
	Cold         StateSpec
	Bootstrap    BootstrapSpec
	ReturnLevels ReturnLevelSpec
	Geometry     *GeometrySpec
}

// EventSpec selects the magnitude being attributed. When Magnitude is nil it
// is read from the block maxima at Year.
type EventSpec struct {
	Year      int
	Magnitude *float64
	// ReferenceProbability is the exceedance probability the intensity
	// change is measured at. Zero uses the warm-state probability of the
	// event itself.
	ReferenceProbability float64
}

// StateSpec is one reference year. When Covariate is nil the value is read
// from the covariate series.
type StateSpec struct {
	Label     string
	Year      int
	Covariate *float64
}

// BootstrapSpec configures resampling.
type BootstrapSpec struct {
	Resamples          int
	Seed               int64
	MinSuccessFraction float64
	ConfidenceLevel    float64
	Disabled           bool
}

// ReturnLevelSpec is the return-period grid of the return-level curves.
type ReturnLevelSpec struct {
	MinPeriod float64
	MaxPeriod float64
	Points    int
}

// Periods returns Points log-spaced return periods from MinPeriod to MaxPeriod.
func (r ReturnLevelSpec) Periods() []float64 {
	if r.Points <= 0 {
		return nil
	}
	if r.Points == 1 {
		return []float64{r.MinPeriod}
	}
	return floats.LogSpan(make([]float64, r.Points), r.MinPeriod, r.MaxPeriod)
}

// GeometrySpec configures the water-balance model geometry.
type GeometrySpec struct {
	ResolutionDeg     float64
	Lake              geometry.Layer
	Basin             geometry.Layer
	ReferenceLakeArea float64
}

type hclStudy struct {
	Name         string           `hcl:"name,optional"`
	BlockMaxima  *hclSeries       `hcl:"block_maxima,block"`
	Covariate    *hclSeries       `hcl:"covariate,block"`
	Window       *hclWindow       `hcl:"window,block"`
	Event        *hclEvent        `hcl:"event,block"`
	States       []hclState       `hcl:"climate_state,block"`
	Bootstrap    *hclBootstrap    `hcl:"bootstrap,block"`
	ReturnLevels *hclReturnLevels `hcl:"return_levels,block"`
	Geometry     *hclGeometry     `hcl:"geometry,block"`
}

type hclSeries struct {
	Path       string  `hcl:"path"`
	Column     string  `hcl:"column"`
	YearColumn *string `hcl:"year_column,optional"`
	Sheet      *string `hcl:"sheet,optional"`
	Name       *string `hcl:"name,optional"`
	Unit       *string `hcl:"unit,optional"`
	Start      *int    `hcl:"start,optional"`
	End        *int    `hcl:"end,optional"`

	Aggregate       *string `hcl:"aggregate,optional"`
	MinObservations *int    `hcl:"min_observations,optional"`
}

type hclWindow struct {
	Start *int `hcl:"start,optional"`
	End   *int `hcl:"end,optional"`
}

type hclEvent struct {
	Year                 *int     `hcl:"year,optional"`
	Magnitude            *float64 `hcl:"magnitude,optional"`
	ReferenceProbability *float64 `hcl:"reference_probability,optional"`
}

type hclState struct {
	Role      string   `hcl:"role,label"`
	Label     *string  `hcl:"label,optional"`
	Year      int      `hcl:"year"`
	Covariate *float64 `hcl:"covariate,optional"`
}

type hclBootstrap struct {
	Resamples          *int     `hcl:"resamples,optional"`
	Seed               *int64   `hcl:"seed,optional"`
	MinSuccessFraction *float64 `hcl:"min_success_fraction,optional"`
	ConfidenceLevel    *float64 `hcl:"confidence_level,optional"`
	Enabled            *bool    `hcl:"enabled,optional"`
}

type hclReturnLevels struct {
	MinPeriod *float64 `hcl:"min_period,optional"`
	MaxPeriod *float64 `hcl:"max_period,optional"`
	Points    *int     `hcl:"points,optional"`
}

type hclGeometry struct {
	ResolutionDeg     *float64 `hcl:"resolution_deg,optional"`
	LakeShapefile     string   `hcl:"lake_shapefile"`
	BasinShapefile    string   `hcl:"basin_shapefile"`
	SourceProj        *string  `hcl:"source_proj,optional"`
	TargetProj        *string  `hcl:"target_proj,optional"`
	LakeAreaAttribute *string  `hcl:"lake_area_attribute,optional"`
	ReferenceLakeArea *float64 `hcl:"reference_lake_area,optional"`
}

// LoadStudy reads and resolves a study file. Relative paths inside it are
// resolved against the file's directory.
func LoadStudy(path string) (*Study, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to read study file %s", path), err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.IOError("failed to resolve study directory", err)
	}
	return ParseStudy(src, path, dir)
}

// ParseStudy decodes HCL study source. filename is used in diagnostics.
func ParseStudy(src []byte, filename, dir string) (*Study, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.ConfigInvalid(fmt.Sprintf("failed to parse study: %s", diags.Error()))
	}

	var raw hclStudy
	diags = gohcl.DecodeBody(file.Body, studyEvalContext(dir), &raw)
	if diags.HasErrors() {
		return nil, errors.ConfigInvalid(fmt.Sprintf("failed to decode study: %s", diags.Error()))
	}

	study, err := raw.resolve(dir)
	if err != nil {
		return nil, err
	}
	if err := study.Validate(); err != nil {
		return nil, err
	}
	return study, nil
}

// studyEvalContext exposes study_dir and an env(name) function to study files.
func studyEvalContext(dir string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"study_dir": cty.StringVal(dir),
		},
		Functions: map[string]function.Function{
			"env": function.New(&function.Spec{
				Params: []function.Parameter{
					{
						Name: "name",
						Type: cty.String,
					},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					return cty.StringVal(os.Getenv(args[0].AsString())), nil
				},
			}),
		},
	}
}

func (h hclStudy) resolve(dir string) (*Study, error) {
	s := &Study{
		Name: h.Name,
		Dir:  dir,
		Warm: StateSpec{Label: "warm"},
		Cold: StateSpec{Label: "cold"},
		Bootstrap: BootstrapSpec{
			Resamples:          DefaultResamples,
			Seed:               DefaultSeed,
			MinSuccessFraction: DefaultMinSuccessFraction,
			ConfidenceLevel:    DefaultConfidenceLevel,
		},
		ReturnLevels: ReturnLevelSpec{
			MinPeriod: DefaultMinReturnPeriod,
			MaxPeriod: DefaultMaxReturnPeriod,
			Points:    DefaultReturnLevelPoints,
		},
	}
	if s.Name == "" {
		s.Name = filepath.Base(dir)
	}

	if h.BlockMaxima != nil {
		s.Response = h.BlockMaxima.source(dir, "block_maxima")
	}
	if h.Covariate != nil {
		s.Covariate = h.Covariate.source(dir, "covariate")
	}
	if h.Window != nil {
		s.Window = series.Window{Start: intOr(h.Window.Start, 0), End: intOr(h.Window.End, 0)}
	}
	if h.Event != nil {
		s.Event.Year = intOr(h.Event.Year, 0)
		s.Event.Magnitude = h.Event.Magnitude
		if h.Event.ReferenceProbability != nil {
			s.Event.ReferenceProbability = *h.Event.ReferenceProbability
		}
	}

	seen := make(map[string]bool)
	for _, st := range h.States {
		if seen[st.Role] {
			return nil, errors.ConfigInvalid(fmt.Sprintf("climate_state %q declared twice", st.Role))
		}
		seen[st.Role] = true
		spec := StateSpec{Label: st.Role, Year: st.Year, Covariate: st.Covariate}
		if st.Label != nil {
			spec.Label = *st.Label
		}
		switch st.Role {
		case "warm":
			s.Warm = spec
		case "cold":
			s.Cold = spec
		default:
			return nil, errors.ConfigInvalid(fmt.Sprintf("climate_state label must be \"warm\" or \"cold\", got %q", st.Role))
		}
	}

	if b := h.Bootstrap; b != nil {
		s.Bootstrap.Resamples = intOr(b.Resamples, s.Bootstrap.Resamples)
		if b.Seed != nil {
			s.Bootstrap.Seed = *b.Seed
		}
		s.Bootstrap.MinSuccessFraction = floatOr(b.MinSuccessFraction, s.Bootstrap.MinSuccessFraction)
		s.Bootstrap.ConfidenceLevel = floatOr(b.ConfidenceLevel, s.Bootstrap.ConfidenceLevel)
		if b.Enabled != nil {
			s.Bootstrap.Disabled = !*b.Enabled
		}
	}

	if r := h.ReturnLevels; r != nil {
		s.ReturnLevels.MinPeriod = floatOr(r.MinPeriod, s.ReturnLevels.MinPeriod)
		s.ReturnLevels.MaxPeriod = floatOr(r.MaxPeriod, s.ReturnLevels.MaxPeriod)
		s.ReturnLevels.Points = intOr(r.Points, s.ReturnLevels.Points)
	}

	if g := h.Geometry; g != nil {
		source := stringOr(g.SourceProj, DefaultSourceProj)
		target := stringOr(g.TargetProj, DefaultTargetProj)
		s.Geometry = &GeometrySpec{
			ResolutionDeg: floatOr(g.ResolutionDeg, DefaultResolutionDeg),
			Lake: geometry.Layer{
				Name:          "lake",
				Path:          resolvePath(dir, g.LakeShapefile),
				SourceProj:    source,
				TargetProj:    target,
				AreaAttribute: stringOr(g.LakeAreaAttribute, ""),
			},
			Basin: geometry.Layer{
				Name:       "basin",
				Path:       resolvePath(dir, g.BasinShapefile),
				SourceProj: source,
				TargetProj: target,
			},
			ReferenceLakeArea: floatOr(g.ReferenceLakeArea, geometry.ReferenceLakeArea),
		}
	}
	return s, nil
}

func (h *hclSeries) source(dir, defaultName string) ports.SeriesSource {
	return ports.SeriesSource{
		Path:       resolvePath(dir, h.Path),
		Sheet:      stringOr(h.Sheet, ""),
		YearColumn: stringOr(h.YearColumn, ""),
		Column:     h.Column,
		Name:       stringOr(h.Name, defaultName),
		Unit:       stringOr(h.Unit, ""),
		Window:     series.Window{Start: intOr(h.Start, 0), End: intOr(h.End, 0)},

		Aggregate:       strings.ToLower(stringOr(h.Aggregate, "")),
		MinObservations: intOr(h.MinObservations, 0),
	}
}

// Validate checks settings shared by every command.
func (s *Study) Validate() error {
	if err := s.Window.Validate(); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("window: %v", err))
	}
	for _, src := range []struct {
		block string
		ports.SeriesSource
	}{{"block_maxima", s.Response}, {"covariate", s.Covariate}} {
		switch src.Aggregate {
		case "", "max", "min", "mean":
		default:
			return errors.ConfigInvalid(fmt.Sprintf("%s aggregate must be max, min or mean, got %q", src.block, src.Aggregate))
		}
		if src.MinObservations < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("%s min_observations must not be negative", src.block))
		}
	}
	if s.Bootstrap.Resamples < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("bootstrap resamples must be at least 1, got %d", s.Bootstrap.Resamples))
	}
	if !(s.Bootstrap.MinSuccessFraction > 0 && s.Bootstrap.MinSuccessFraction <= 1) {
		return errors.ConfigInvalid(fmt.Sprintf("bootstrap min_success_fraction must be in (0, 1], got %v", s.Bootstrap.MinSuccessFraction))
	}
	if !(s.Bootstrap.ConfidenceLevel > 0 && s.Bootstrap.ConfidenceLevel < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("bootstrap confidence_level must be in (0, 1), got %v", s.Bootstrap.ConfidenceLevel))
	}
	if !(s.ReturnLevels.MinPeriod > 1 && s.ReturnLevels.MaxPeriod >= s.ReturnLevels.MinPeriod) {
		return errors.ConfigInvalid(fmt.Sprintf("return_levels periods must satisfy 1 < min <= max, got %v..%v",
			s.ReturnLevels.MinPeriod, s.ReturnLevels.MaxPeriod))
	}
	if s.ReturnLevels.Points < 0 {
		return errors.ConfigInvalid("return_levels points must not be negative")
	}
	if p := s.Event.ReferenceProbability; p != 0 && !(p > 0 && p < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("event reference_probability must be in (0, 1), got %v", p))
	}
	if s.Geometry != nil && !(s.Geometry.ResolutionDeg > 0) {
		return errors.ConfigInvalid(fmt.Sprintf("geometry resolution_deg must be positive, got %v", s.Geometry.ResolutionDeg))
	}
	return nil
}

// ValidateSources checks the block_maxima and covariate blocks.
func (s *Study) ValidateSources() error {
	if s.Response.Path == "" || s.Response.Column == "" {
		return errors.ConfigInvalid("study needs a block_maxima block with path and column")
	}
	if s.Covariate.Path == "" || s.Covariate.Column == "" {
		return errors.ConfigInvalid("study needs a covariate block with path and column")
	}
	return nil
}

// ValidateAttribution checks the blocks the attribution pipeline needs.
func (s *Study) ValidateAttribution() error {
	if err := s.ValidateSources(); err != nil {
		return err
	}
	if s.Warm.Year == 0 && s.Warm.Covariate == nil {
		return errors.ConfigInvalid("climate_state \"warm\" needs a year or covariate")
	}
	if s.Cold.Year == 0 && s.Cold.Covariate == nil {
		return errors.ConfigInvalid("climate_state \"cold\" needs a year or covariate")
	}
	if s.Event.Year == 0 && s.Event.Magnitude == nil {
		return errors.ConfigInvalid("event needs a year or magnitude")
	}
	return nil
}

// ValidateGeometry checks the geometry block.
func (s *Study) ValidateGeometry() error {
	if s.Geometry == nil {
		return errors.ConfigInvalid("study has no geometry block")
	}
	return nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
