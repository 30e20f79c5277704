package boundary

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/fetcher"
)

// Supported boundary formats.
const (
	FormatAuto      = "auto"
	FormatTopoJSON  = "topojson"
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
	FormatPostGIS   = "postgis"
)

// Options selects where the boundary file comes from.
type Options struct {
	URL     string
	Path    string
	Object  string
	Format  string
	TempDir string
}

// Loader fetches and parses the boundary file once per mount.
type Loader struct {
	opts    Options
	fetcher *fetcher.HTTPFetcher
	postgis *PostGISSource
}

// NewLoader creates a Loader. postgis may be nil unless Format is FormatPostGIS.
func NewLoader(opts Options, f *fetcher.HTTPFetcher, postgis *PostGISSource) *Loader {
	if opts.Format == "" {
		opts.Format = FormatAuto
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "costmap")
	}
	if f == nil {
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	return &Loader{opts: opts, fetcher: f, postgis: postgis}
}

// Load returns the boundary features. It performs no retries.
func (l *Loader) Load(ctx context.Context) ([]*Feature, error) {
	log := zap.L().With(
		zap.String("component", "boundary.loader"),
		zap.String("format", l.opts.Format),
	)

	src := l.opts.Path
	if src == "" {
		src = l.opts.URL
	}

	var (
		features []*Feature
		err      error
	)
	switch {
	case l.opts.Format == FormatPostGIS:
		if l.postgis == nil {
			return nil, eris.New("boundary: postgis format without a database")
		}
		features, err = l.postgis.Load(ctx)
	case src == "":
		return nil, eris.New("boundary: no url or path configured")
	case l.opts.Format == FormatShapefile || hasExt(src, ".shp") || hasExt(src, ".zip"):
		features, err = l.loadShapefile(ctx, src)
	default:
		var data []byte
		data, err = l.read(ctx, src)
		if err == nil {
			features, err = Decode(data, l.opts.Object)
		}
	}
	if err != nil {
		return nil, err
	}

	log.Info("boundary loaded", zap.String("source", src), zap.Int("features", len(features)))
	return features, nil
}

func (l *Loader) loadShapefile(ctx context.Context, src string) ([]*Feature, error) {
	if hasExt(src, ".zip") {
		return LoadShapefileZip(ctx, l.fetcher, src, l.opts.TempDir)
	}
	if isURL(src) {
		return nil, eris.Errorf("boundary: remote shapefiles must be zipped: %s", src)
	}
	return LoadShapefile(src)
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	if isURL(src) {
		data, err := l.fetcher.FetchBytes(ctx, src)
		if err != nil {
			return nil, eris.Wrap(err, "boundary: fetch")
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", src)
	}
	return data, nil
}

func hasExt(src, ext string) bool {
	s := src
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.EqualFold(filepath.Ext(s), ext)
}
