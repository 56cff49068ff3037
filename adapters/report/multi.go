package report

import (
	"context"

	"lakeattr/domain/attribution"
	"lakeattr/domain/geometry"
	"lakeattr/ports"
)

// MultiWriter fans a report out to several writers, stopping at the first
// error.
type MultiWriter []ports.ReportWriterPort

var _ ports.ReportWriterPort = MultiWriter(nil)

func (m MultiWriter) WriteAttribution(ctx context.Context, r *attribution.Report) ([]string, error) {
	var paths []string
	for _, w := range m {
		p, err := w.WriteAttribution(ctx, r)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p...)
	}
	return paths, nil
}

func (m MultiWriter) WriteGeometry(ctx context.Context, g *geometry.Geometry) ([]string, error) {
	var paths []string
	for _, w := range m {
		p, err := w.WriteGeometry(ctx, g)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p...)
	}
	return paths, nil
}
