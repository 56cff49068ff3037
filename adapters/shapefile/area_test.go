package shapefile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeattr/domain/geometry"
	"lakeattr/internal/errors"
)

const (
	wgs84  = "+proj=longlat +datum=WGS84"
	utm36s = "+proj=utm +zone=36 +south +datum=WGS84 +units=m"
)

type lakeFeature struct {
	geom.Polygon
	Lake_area float64
}

// square returns a closed one-degree cell with its south-west corner at lon, lat.
func square(lon, lat float64) geom.Polygon {
	return geom.Polygon{{
		{X: lon, Y: lat},
		{X: lon + 1, Y: lat},
		{X: lon + 1, Y: lat + 1},
		{X: lon, Y: lat + 1},
		{X: lon, Y: lat},
	}}
}

func writeLake(t *testing.T, features ...lakeFeature) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lake.shp")
	enc, err := shp.NewEncoder(path, lakeFeature{})
	require.NoError(t, err)
	for _, f := range features {
		require.NoError(t, enc.Encode(f))
	}
	enc.Close()
	return path
}

func TestAreaReader_ReprojectedArea(t *testing.T) {
	path := writeLake(t, lakeFeature{Polygon: square(32, -1), Lake_area: 12000})

	area, err := NewAreaReader(nil).Area(context.Background(), geometry.Layer{
		Name:          "lake",
		Path:          path,
		SourceProj:    wgs84,
		TargetProj:    utm36s,
		AreaAttribute: "Lake_area",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, area.Polygons)
	// A one-degree cell at the equator is about 111.3 km by 110.6 km.
	assert.InEpsilon(t, 1.2309e10, area.ProjectedArea, 0.01)
	require.NotNil(t, area.AttributeArea)
	assert.InDelta(t, 1.2e10, *area.AttributeArea, 1)
	assert.Equal(t, wgs84, area.SourceProj)
	assert.Equal(t, utm36s, area.TargetProj)
}

func TestAreaReader_SumsFeatures(t *testing.T) {
	path := writeLake(t,
		lakeFeature{Polygon: square(32, -1)},
		lakeFeature{Polygon: square(33, -1)},
	)

	area, err := NewAreaReader(nil).Area(context.Background(), geometry.Layer{
		Name: "basin", Path: path, SourceProj: wgs84, TargetProj: utm36s,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, area.Polygons)
	assert.InEpsilon(t, 2*1.2309e10, area.ProjectedArea, 0.01)
	assert.Nil(t, area.AttributeArea)
}

func TestAreaReader_Errors(t *testing.T) {
	path := writeLake(t, lakeFeature{Polygon: square(32, -1)})

	t.Run("no prj and no source projection", func(t *testing.T) {
		_, err := NewAreaReader(nil).Area(context.Background(), geometry.Layer{Path: path, TargetProj: utm36s})
		require.Error(t, err)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	})

	t.Run("bad target projection", func(t *testing.T) {
		_, err := NewAreaReader(nil).Area(context.Background(), geometry.Layer{Path: path, SourceProj: wgs84, TargetProj: "+proj=nonsense"})
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewAreaReader(nil).Area(context.Background(), geometry.Layer{
			Path: filepath.Join(t.TempDir(), "none.shp"), SourceProj: wgs84, TargetProj: utm36s,
		})
		require.Error(t, err)
		assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
	})
}

func TestParseAttribute(t *testing.T) {
	v, err := parseAttribute(" 68800.0\x00\x00")
	require.NoError(t, err)
	assert.Equal(t, 68800.0, v)

	v, err = parseAttribute("   ")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = parseAttribute("n/a")
	assert.Error(t, err)
}
