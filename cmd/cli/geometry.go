package main

import (
	"context"

	"github.com/spf13/cobra"

	"lakeattr/adapters/shapefile"
	"lakeattr/app"
)

func newGeometryCmd(env *environment) *cobra.Command {
	var resolution float64

	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Compute the water-balance model grid and lake/basin areas",
		Long: `Derive the grid cell length and area from the resolution in degrees, and
measure the lake and basin shapefiles of the study's geometry block after
reprojection to the target CRS (UTM zone 36S by default). The lake area is
compared with the shapefile's area attribute and the literature value.

Example: lakeattr geometry --study lakevictoria.hcl --resolution 0.065`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeometry(cmd, env, resolution)
		},
	}
	cmd.Flags().Float64Var(&resolution, "resolution", 0, "Grid resolution in degrees (overrides the study)")
	return cmd
}

func runGeometry(cmd *cobra.Command, env *environment, resolution float64) error {
	ctx := cmd.Context()
	study, err := env.loadStudy()
	if err != nil {
		return err
	}
	if err := study.ValidateGeometry(); err != nil {
		return err
	}
	if cmd.Flags().Changed("resolution") {
		study.Geometry.ResolutionDeg = resolution
	}

	svc := app.NewGeometryService(shapefile.NewAreaReader(env.logger), env.logger, env.metrics)
	geom, err := svc.Compute(ctx, study.Geometry)
	if err != nil {
		return err
	}

	return env.report(ctx, func(ctx context.Context) ([]string, error) {
		return env.writers(cmd).WriteGeometry(ctx, geom)
	})
}
