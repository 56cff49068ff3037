package ports

import (
	"context"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
)

// ReportWriterPort renders finished results. Implementations return the
// paths they wrote.
type ReportWriterPort interface {
	WriteAttribution(ctx context.Context, report *attribution.Report) ([]string, error)
	WriteGeometry(ctx context.Context, geom *geometry.Geometry) ([]string, error)
}
