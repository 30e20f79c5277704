package boundary

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/fetcher"
)

// LoadShapefile reads a TIGER/Line style county shapefile. Every DBF attribute
// is copied into the feature properties under its upper-case field name.
func LoadShapefile(path string) ([]*Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	if len(fields) == 0 {
		return nil, eris.Errorf("boundary: shapefile %s has no attribute table", path)
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToUpper(strings.TrimRight(f.String(), "\x00"))
	}

	var (
		features []*Feature
		skipped  int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		mp := shapeToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}
		features = append(features, &Feature{Geometry: mp, Properties: props})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped non-polygon shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return reindex(features), nil
}

// LoadShapefileZip downloads (or opens, for a local path) a zipped shapefile,
// extracts it into dir and loads the contained .shp.
func LoadShapefileZip(ctx context.Context, f *fetcher.HTTPFetcher, src, dir string) ([]*Feature, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "boundary: create extract dir")
	}

	zipPath := src
	if isURL(src) {
		zipPath = filepath.Join(dir, filepath.Base(src))
		if _, err := f.DownloadToFile(ctx, src, zipPath); err != nil {
			return nil, eris.Wrap(err, "boundary: download shapefile zip")
		}
	}

	extractDir := filepath.Join(dir, strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath)))
	paths, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: extract shapefile zip")
	}
	shpPath, err := fetcher.FindByExt(paths, ".shp")
	if err != nil {
		return nil, eris.Wrap(err, "boundary: find shapefile")
	}
	return LoadShapefile(shpPath)
}

// shapeToMultiPolygon converts a shapefile polygon; each part becomes one
// polygon so holes rely on even-odd filling downstream.
func shapeToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
