// Package geometry holds the grid and surface-area scalars that initialize
// the lake water-balance model.
package geometry

import (
	"fmt"
	"math"
)

// EarthCircumference is the equatorial circumference in metres.
const EarthCircumference = 40075017.0

// ReferenceLakeArea is the literature lake surface area in m² used to check
// shapefile-derived values.
const ReferenceLakeArea = 68272645811.8022

// Layer names a polygon shapefile and how to measure it.
type Layer struct {
	Name string
	Path string
	// SourceProj is used when the shapefile has no .prj.
	SourceProj string
	// TargetProj is the projected CRS the area is measured in.
	TargetProj string
	// AreaAttribute, when set, is a numeric attribute holding the area in km².
	AreaAttribute string
}

// LayerArea is the measured area of one layer.
type LayerArea struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Polygons      int      `json:"polygons"`
	ProjectedArea float64  `json:"projected_area_m2"`
	AttributeArea *float64 `json:"attribute_area_m2,omitempty"`
	SourceProj    string   `json:"source_proj"`
	TargetProj    string   `json:"target_proj"`
}

// Grid is the model grid resolution.
type Grid struct {
	ResolutionDeg float64 `json:"resolution_deg"`
	CellLength    float64 `json:"cell_length_m"`
	CellArea      float64 `json:"cell_area_m2"`
}

// NewGrid derives the cell size from a resolution in degrees. The cell is
// treated as square with side resolution*circumference/360.
func NewGrid(resolutionDeg float64) (Grid, error) {
	if !(resolutionDeg > 0) || math.IsInf(resolutionDeg, 0) {
		return Grid{}, fmt.Errorf("grid resolution must be positive, got %v", resolutionDeg)
	}
	length := resolutionDeg * EarthCircumference / 360
	return Grid{ResolutionDeg: resolutionDeg, CellLength: length, CellArea: length * length}, nil
}

// Geometry is the complete model initialization.
type Geometry struct {
	Grid  Grid      `json:"grid"`
	Lake  LayerArea `json:"lake"`
	Basin LayerArea `json:"basin"`
	// ReferenceLakeArea is the literature value the lake is compared against.
	ReferenceLakeArea float64 `json:"reference_lake_area_m2"`
}

// LakeFraction is lake area over basin area.
func (g Geometry) LakeFraction() float64 {
	if g.Basin.ProjectedArea == 0 {
		return math.NaN()
	}
	return g.Lake.ProjectedArea / g.Basin.ProjectedArea
}

// LakeCells is the lake area in grid cells.
func (g Geometry) LakeCells() float64 {
	return g.Lake.ProjectedArea / g.Grid.CellArea
}

// RelativeDifference returns (a-b)/b.
func RelativeDifference(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return (a - b) / b
}
