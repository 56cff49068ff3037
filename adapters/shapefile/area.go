// Package shapefile measures polygon layers for the water-balance model
// geometry.
package shapefile

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"go.uber.org/zap"

	"lakeattr/domain/core"
	"lakeattr/domain/geometry"
	"lakeattr/internal/errors"
	"lakeattr/ports"
)

// km2 is square metres per square kilometre.
const km2 = 1e6

// AreaReader sums polygon areas after reprojection.
type AreaReader struct {
	logger *zap.Logger
}

var _ ports.PolygonAreaPort = (*AreaReader)(nil)

// NewAreaReader creates an area reader.
func NewAreaReader(logger *zap.Logger) *AreaReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AreaReader{logger: logger.Named("shapefile")}
}

// Area reprojects every polygon of layer to layer.TargetProj and sums the
// areas. The shapefile's .prj is used when present, else layer.SourceProj.
func (a *AreaReader) Area(ctx context.Context, layer geometry.Layer) (*geometry.LayerArea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dec, err := shp.NewDecoder(layer.Path)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to open shapefile %s", layer.Path), err)
	}
	defer dec.Close()

	src, sourceProj, err := a.sourceSR(dec, layer)
	if err != nil {
		return nil, err
	}
	dst, err := proj.Parse(layer.TargetProj)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("target projection %q: %v", layer.TargetProj, err))
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("no transform from %q to %q: %v", sourceProj, layer.TargetProj, err))
	}

	var fields []string
	if layer.AreaAttribute != "" {
		fields = append(fields, layer.AreaAttribute)
	}

	out := &geometry.LayerArea{
		Name:       layer.Name,
		Path:       layer.Path,
		SourceProj: sourceProj,
		TargetProj: layer.TargetProj,
	}
	var attrTotal float64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, row, more := dec.DecodeRowFields(fields...)
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to reproject %s feature %d", layer.Name, out.Polygons)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("%s: feature %d is %T, need polygons", layer.Path, out.Polygons, gg))
		}
		out.ProjectedArea += poly.Area()
		out.Polygons++

		if layer.AreaAttribute != "" {
			v, err := parseAttribute(row[layer.AreaAttribute])
			if err != nil {
				return nil, errors.InvalidInput(fmt.Sprintf("%s: feature %d attribute %s: %v",
					layer.Path, out.Polygons-1, layer.AreaAttribute, err))
			}
			attrTotal += v
		}
	}
	if err := dec.Error(); err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to decode %s", layer.Path), err)
	}
	if out.Polygons == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyShapefile, layer.Path)
	}
	if layer.AreaAttribute != "" {
		m2 := attrTotal * km2
		out.AttributeArea = &m2
	}

	a.logger.Info("layer measured",
		zap.String("layer", layer.Name),
		zap.Int("polygons", out.Polygons),
		zap.Float64("area_m2", out.ProjectedArea))
	return out, nil
}

func (a *AreaReader) sourceSR(dec *shp.Decoder, layer geometry.Layer) (*proj.SR, string, error) {
	if sr, err := dec.SR(); err == nil {
		return sr, strings.TrimSuffix(layer.Path, filepath.Ext(layer.Path)) + ".prj", nil
	}
	if layer.SourceProj == "" {
		return nil, "", errors.ConfigInvalid(fmt.Sprintf("%s has no .prj and no source projection is configured", layer.Path))
	}
	a.logger.Debug("no .prj, using configured source projection",
		zap.String("layer", layer.Name),
		zap.String("proj", layer.SourceProj))
	sr, err := proj.Parse(layer.SourceProj)
	if err != nil {
		return nil, "", errors.ConfigInvalid(fmt.Sprintf("source projection %q: %v", layer.SourceProj, err))
	}
	return sr, layer.SourceProj, nil
}

// parseAttribute reads a dBase numeric field, which may be space padded or
// NUL terminated.
func parseAttribute(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\x00", ""))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
