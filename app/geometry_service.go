package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lakeattr/domain/geometry"
	"lakeattr/internal/config"
	"lakeattr/internal/errors"
	"lakeattr/internal/observability"
	"lakeattr/ports"
)

// GeometryService computes the water-balance model grid and surface areas.
type GeometryService struct {
	areas   ports.PolygonAreaPort
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewGeometryService creates the service. metrics may be nil.
func NewGeometryService(areas ports.PolygonAreaPort, logger *zap.Logger, metrics *observability.Metrics) *GeometryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeometryService{areas: areas, logger: logger.Named("geometry"), metrics: metrics}
}

// Compute derives the grid cell size and measures the lake and basin
// layers. Any failure aborts; there is no partial geometry.
func (s *GeometryService) Compute(ctx context.Context, spec *config.GeometrySpec) (*geometry.Geometry, error) {
	if spec == nil {
		return nil, errors.ConfigInvalid("study has no geometry block")
	}
	if s.areas == nil {
		return nil, fmt.Errorf("geometry service has no area reader")
	}

	out := &geometry.Geometry{ReferenceLakeArea: spec.ReferenceLakeArea}
	runner := NewStageRunner(s.logger, s.metrics)

	if err := runner.Run(ctx, StageGrid, func(ctx context.Context) error {
		grid, err := geometry.NewGrid(spec.ResolutionDeg)
		if err != nil {
			return errors.ConfigInvalid(err.Error())
		}
		out.Grid = grid
		return nil
	}); err != nil {
		return nil, err
	}

	measure := func(name StageName, layer geometry.Layer, dst *geometry.LayerArea) error {
		return runner.Run(ctx, name, func(ctx context.Context) error {
			area, err := s.areas.Area(ctx, layer)
			if err != nil {
				return errors.Wrapf(err, "failed to measure %s", layer.Name)
			}
			*dst = *area
			return nil
		})
	}
	if err := measure(StageLakeArea, spec.Lake, &out.Lake); err != nil {
		return nil, err
	}
	if err := measure(StageBasinArea, spec.Basin, &out.Basin); err != nil {
		return nil, err
	}

	s.logger.Info("geometry computed",
		zap.Float64("cell_length_m", out.Grid.CellLength),
		zap.Float64("lake_area_m2", out.Lake.ProjectedArea),
		zap.Float64("basin_area_m2", out.Basin.ProjectedArea),
		zap.Float64("lake_fraction", out.LakeFraction()),
		zap.Float64("lake_vs_reference", geometry.RelativeDifference(out.Lake.ProjectedArea, out.ReferenceLakeArea)))
	return out, nil
}
