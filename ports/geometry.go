package ports

import (
	"context"

	"lakeattr/domain/geometry"
)

// PolygonAreaPort measures the projected area of polygon layers.
type PolygonAreaPort interface {
	Area(ctx context.Context, layer geometry.Layer) (*geometry.LayerArea, error)
}
