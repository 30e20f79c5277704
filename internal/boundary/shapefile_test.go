package boundary

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeShapefile writes a two-county polygon shapefile and returns the .shp path.
func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tl_2024_51_county.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID", 5),
		shp.StringField("NAME", 40),
	}))

	squares := []struct {
		geoid, name string
		x0          float64
	}{
		{"51005", "Bath County", -80},
		{"51017", "Highland County", -79},
	}
	for i, sq := range squares {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
			{X: sq.x0, Y: 37}, {X: sq.x0, Y: 38}, {X: sq.x0 + 1, Y: 38}, {X: sq.x0 + 1, Y: 37}, {X: sq.x0, Y: 37},
		}}))
		w.Write(&poly)
		require.NoError(t, w.WriteAttribute(i, 0, sq.geoid))
		require.NoError(t, w.WriteAttribute(i, 1, sq.name))
	}
	w.Close()

	// go-shp v0.1.1 names the attribute table "<base>dbf".
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	return path
}

func TestLoadShapefile(t *testing.T) {
	path := writeShapefile(t, t.TempDir())

	features, err := LoadShapefile(path)
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "51005", features[0].Key())
	assert.Equal(t, "Bath County", features[0].Name())
	assert.Equal(t, 1, features[1].Index)
	assert.Equal(t, "Highland County", features[1].Name())
	assert.InDelta(t, -78.0, features[1].Geometry.Bounds().Max(0), 1e-9)
}

func TestLoadShapefile_Missing(t *testing.T) {
	_, err := LoadShapefile(filepath.Join(t.TempDir(), "none.shp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func zipDir(t *testing.T, src, zipPath string) {
	t.Helper()
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		in, err := os.Open(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		w, err := zw.Create(e.Name())
		require.NoError(t, err)
		_, err = io.Copy(w, in)
		require.NoError(t, err)
		require.NoError(t, in.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestLoadShapefile_NoAttributeTable(t *testing.T) {
	path := writeShapefile(t, t.TempDir())
	require.NoError(t, os.Remove(strings.TrimSuffix(path, ".shp")+".dbf"))

	_, err := LoadShapefile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no attribute table")
}

func TestLoadShapefileZip_LocalPath(t *testing.T) {
	shpDir := t.TempDir()
	writeShapefile(t, shpDir)
	zipPath := filepath.Join(t.TempDir(), "tl_2024_51_county.zip")
	zipDir(t, shpDir, zipPath)

	features, err := LoadShapefileZip(context.Background(), nil, zipPath, t.TempDir())
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "51005", features[0].Key())
	assert.Equal(t, "Bath County", features[0].Name())
	assert.Equal(t, "51017", features[1].Key())
	assert.Equal(t, "Highland County", features[1].Name())
}

func TestShapeToMultiPolygon_NonPolygon(t *testing.T) {
	assert.Nil(t, shapeToMultiPolygon(&shp.Point{X: 1, Y: 2}))
	assert.Nil(t, shapeToMultiPolygon(nil))
	degenerate := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}}}))
	assert.Nil(t, shapeToMultiPolygon(&degenerate))
}
