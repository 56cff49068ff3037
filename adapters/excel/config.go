package excel

// Sheet names of the report workbooks.
const (
	SheetProvenance   = "Provenance"
	SheetParameters   = "Parameters"
	SheetStatistics   = "Statistics"
	SheetReturnLevels = "ReturnLevels"
	SheetGeometry     = "Geometry"
)

// WorkbookConfig holds where report workbooks are written
type WorkbookConfig struct {
	Dir               string `json:"dir"`
	AttributionFile   string `json:"attribution_file"`
	GeometryFile      string `json:"geometry_file"`
	NumberFormatStyle int    `json:"number_format_style"`
}

// DefaultWorkbookConfig returns file names under dir
func DefaultWorkbookConfig(dir string) WorkbookConfig {
	return WorkbookConfig{
		Dir:             dir,
		AttributionFile: "attribution.xlsx",
		GeometryFile:    "geometry.xlsx",
		// excelize built-in format 11 is "0.00E+00"
		NumberFormatStyle: 11,
	}
}
