package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/choropleth"
	"github.com/sells-group/costmap/internal/config"
	"github.com/sells-group/costmap/internal/db"
	"github.com/sells-group/costmap/internal/fetcher"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
	"github.com/sells-group/costmap/internal/render"
)

// inputs are the dataset and boundary a command draws from.
type inputs struct {
	Dataset  *region.Dataset
	Features []*boundary.Feature
	pool     *pgxpool.Pool
}

// Close releases the database pool, if one was opened.
func (in *inputs) Close() {
	if in.pool != nil {
		in.pool.Close()
	}
}

func usesDatabase(c *config.Config) bool {
	return c.Dataset.Format == region.FormatPostgres || c.Boundary.Format == boundary.FormatPostGIS
}

// loadInputs loads the dataset and the boundary concurrently.
func loadInputs(ctx context.Context, c *config.Config) (*inputs, error) {
	in := &inputs{}
	if usesDatabase(c) {
		pool, err := db.Connect(ctx, c.Database.URL, time.Duration(c.Database.ConnectTimeout)*time.Second)
		if err != nil {
			return nil, eris.Wrap(err, "load: connect database")
		}
		in.pool = pool
	}

	var pool db.Pool
	if in.pool != nil {
		pool = in.pool
	}
	loader, err := boundaryLoader(c, pool)
	if err != nil {
		in.Close()
		return nil, eris.Wrap(err, "load: boundary source")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ds, err := loadDataset(gctx, c, in.pool)
		if err != nil {
			return err
		}
		in.Dataset = ds
		return nil
	})
	g.Go(func() error {
		features, err := loader.Load(gctx)
		if err != nil {
			return eris.Wrap(err, "load: boundary")
		}
		in.Features = features
		return nil
	})
	if err := g.Wait(); err != nil {
		in.Close()
		return nil, err
	}

	zap.L().Info("loaded map inputs",
		zap.Int("records", in.Dataset.Len()),
		zap.Int("features", len(in.Features)),
	)
	return in, nil
}

func loadDataset(ctx context.Context, c *config.Config, pool *pgxpool.Pool) (*region.Dataset, error) {
	if c.Dataset.Format == region.FormatPostgres {
		src, err := region.NewPostgresSource(pool, c.Dataset.Table)
		if err != nil {
			return nil, eris.Wrap(err, "load: dataset source")
		}
		ds, err := src.Load(ctx)
		return ds, eris.Wrap(err, "load: dataset")
	}
	ds, err := region.LoadFile(ctx, c.Dataset.Path, c.Dataset.Format, c.Dataset.Sheet)
	return ds, eris.Wrap(err, "load: dataset")
}

// boundaryLoader builds the single-attempt boundary loader. The map mounts
// it; CLI commands call it directly. pool is nil when no database is
// configured.
func boundaryLoader(c *config.Config, pool db.Pool) (*boundary.Loader, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.Boundary.UserAgent,
		Timeout:   time.Duration(c.Boundary.TimeoutSecs) * time.Second,
		Limiter:   rate.NewLimiter(rate.Limit(2), 1),
	})

	var postgis *boundary.PostGISSource
	if pool != nil && c.Boundary.Format == boundary.FormatPostGIS {
		src, err := boundary.NewPostGISSource(pool, c.Boundary.Table)
		if err != nil {
			return nil, err
		}
		postgis = src
	}

	return boundary.NewLoader(boundary.Options{
		URL:     c.Boundary.URL,
		Path:    c.Boundary.Path,
		Object:  c.Boundary.Object,
		Format:  c.Boundary.Format,
		TempDir: c.Boundary.TempDir,
	}, f, postgis), nil
}

// mapOptions maps configuration onto the map component options.
func mapOptions(c *config.Config) choropleth.Options {
	opts := choropleth.DefaultOptions()

	p := &opts.Projection
	if len(c.Projection.Parallels) == 2 {
		copy(p.Parallels[:], c.Projection.Parallels)
	}
	if len(c.Projection.Rotate) > 0 && len(c.Projection.Rotate) <= 3 {
		p.Rotate = [3]float64{}
		copy(p.Rotate[:], c.Projection.Rotate)
	}
	if len(c.Projection.Center) == 2 {
		copy(p.Center[:], c.Projection.Center)
	}
	if c.Projection.DesktopScale > 0 {
		p.DesktopScale = c.Projection.DesktopScale
	}
	if c.Projection.MobileScale > 0 {
		p.MobileScale = c.Projection.MobileScale
	}
	if c.Map.MobileBreakpoint > 0 {
		p.Breakpoint = c.Map.MobileBreakpoint
	}

	if len(c.Map.Palette) > 0 {
		opts.Palette = c.Map.Palette
	}
	if c.Map.NeutralColor != "" {
		opts.Neutral = c.Map.NeutralColor
	}
	if c.Map.DefaultRegion != "" {
		opts.DefaultRegion = c.Map.DefaultRegion
	}
	if c.Map.DefaultRegionName != "" {
		opts.DefaultRegionName = c.Map.DefaultRegionName
	}
	if c.Map.HoverDebounceMs > 0 {
		opts.HoverDebounce = time.Duration(c.Map.HoverDebounceMs) * time.Millisecond
	}
	if c.Map.HoverDimOpacity > 0 {
		opts.Render.DimOpacity = c.Map.HoverDimOpacity
	}
	for _, a := range c.Annotations {
		opts.Render.Directions = append(opts.Render.Directions, render.Direction{Text: a.Text, Lon: a.Lon, Lat: a.Lat})
	}
	return opts
}

// parseSector resolves the indicator and mode names, falling back to the
// configured defaults for empty values.
func parseSector(c *config.Config, indicator, mode string) (metric.Selection, error) {
	if indicator == "" {
		indicator = c.Map.Indicator
	}
	if mode == "" {
		mode = c.Map.Mode
	}
	sel := metric.Selection{Indicator: metric.Combined, Mode: metric.PerCapita}
	if indicator != "" {
		ind, err := metric.ParseIndicator(indicator)
		if err != nil {
			return sel, err
		}
		sel.Indicator = ind
	}
	if mode != "" {
		m, err := metric.ParseMode(mode)
		if err != nil {
			return sel, err
		}
		sel.Mode = m
	}
	return sel, nil
}

// viewport returns the configured canvas size, overridden by positive flags.
func viewport(c *config.Config, width, height float64) projection.Viewport {
	vp := projection.Viewport{Width: c.Map.Width, Height: c.Map.Height}
	if width > 0 {
		vp.Width = width
	}
	if height > 0 {
		vp.Height = height
	}
	if vp.Width <= 0 {
		vp.Width = 960
	}
	if vp.Height <= 0 {
		vp.Height = 600
	}
	return vp
}
