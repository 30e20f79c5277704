// Package choropleth ties boundary geometry, region data, classification,
// projection and interaction into the map component.
package choropleth

import (
	"sync"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/classify"
	"github.com/sells-group/costmap/internal/match"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
	"github.com/sells-group/costmap/internal/render"
)

// Options configures the map.
type Options struct {
	Projection projection.Config
	Palette    []string
	Neutral    string
	Render     render.Options

	// DefaultRegion and DefaultRegionName identify the feature mobile
	// layouts center on when nothing is selected.
	DefaultRegion     string
	DefaultRegionName string

	HoverDebounce time.Duration
}

// DefaultOptions returns the Virginia setup.
func DefaultOptions() Options {
	return Options{
		Projection:        projection.DefaultConfig(),
		Palette:           classify.DefaultPalette,
		Neutral:           classify.DefaultNeutral,
		Render:            render.DefaultOptions(),
		DefaultRegion:     "51760",
		DefaultRegionName: "Richmond city",
		HoverDebounce:     40 * time.Millisecond,
	}
}

// Frame is the per-draw input of a scene.
type Frame struct {
	Status    render.Status
	Viewport  projection.Viewport
	Selection metric.Selection
	Selected  *region.Record
	Hovered   *region.Record
	Pan       projection.Point
}

// Engine holds the loaded geometry and dataset together with everything
// derived from those two alone: the bindings and one color scale per
// indicator selection. It is safe for concurrent use.
type Engine struct {
	opts     Options
	ds       *region.Dataset
	features []*boundary.Feature
	bindings *match.Bindings
	builder  *render.Builder
	fallback *boundary.Feature

	mu     sync.Mutex
	scales map[metric.Selection]*classify.Scale
}

// NewEngine binds features to the dataset once.
func NewEngine(ds *region.Dataset, features []*boundary.Feature, opts Options) *Engine {
	if len(opts.Palette) == 0 {
		opts.Palette = classify.DefaultPalette
	}
	if opts.Neutral == "" {
		opts.Neutral = classify.DefaultNeutral
	}
	m := match.New(ds)
	return &Engine{
		opts:     opts,
		ds:       ds,
		features: features,
		bindings: m.Bind(features),
		builder:  render.NewBuilder(opts.Render),
		fallback: boundary.Find(features, opts.DefaultRegion, opts.DefaultRegionName),
		scales:   make(map[metric.Selection]*classify.Scale),
	}
}

// Dataset returns the region records.
func (e *Engine) Dataset() *region.Dataset { return e.ds }

// Features returns the boundary features.
func (e *Engine) Features() []*boundary.Feature { return e.features }

// Bindings returns the feature bindings.
func (e *Engine) Bindings() *match.Bindings { return e.bindings }


// DefaultFeature returns the mobile fallback feature, or nil when the
// geometry does not contain it.
func (e *Engine) DefaultFeature() *boundary.Feature { return e.fallback }

// Values returns the resolved value of every bound region for sel.
func (e *Engine) Values(sel metric.Selection) []float64 {
	recs := e.bindings.Records()
	values := make([]float64, len(recs))
	for i, rec := range recs {
		values[i] = metric.Value(rec, sel.Indicator, sel.Mode)
	}
	return values
}

// Scale returns the quantile scale for sel, building it on first use.
func (e *Engine) Scale(sel metric.Selection) *classify.Scale {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.scales[sel]; ok {
		return s
	}
	s := classify.New(e.Values(sel), e.opts.Palette, e.opts.Neutral)
	e.scales[sel] = s
	return s
}

// Projection computes the projection for a viewport and selection using a
// throwaway manager; the mounted Map keeps its own.
func (e *Engine) Projection(vp projection.Viewport, selected *region.Record) *projection.Conic {
	return e.project(projection.NewManager(e.opts.Projection, vp), selected)
}

func (e *Engine) project(m *projection.Manager, selected *region.Record) *projection.Conic {
	return m.Compute(e.geometryOf(selected), geometryOfFeature(e.fallback))
}

// Extent returns the screen bounds of all geometry under p.
func (e *Engine) Extent(p *projection.Conic) projection.Rect {
	r := projection.EmptyRect()
	for _, f := range e.features {
		r = r.Union(p.Bounds(f.Geometry))
	}
	return r
}

// Scene draws one frame with a freshly computed projection.
func (e *Engine) Scene(f Frame) *render.Scene {
	return e.draw(f, e.Projection(f.Viewport, f.Selected))
}

func (e *Engine) draw(f Frame, p *projection.Conic) *render.Scene {
	status := f.Status
	if status == "" {
		status = render.StatusReady
	}
	return e.builder.Build(render.Input{
		Status:     status,
		Viewport:   f.Viewport,
		Projection: p,
		Bindings:   e.bindings,
		Scale:      e.Scale(f.Selection),
		Selection:  f.Selection,
		Selected:   f.Selected,
		Hovered:    f.Hovered,
		Pan:        f.Pan,
	})
}

func (e *Engine) geometryOf(rec *region.Record) *geom.MultiPolygon {
	if rec == nil {
		return nil
	}
	if b, ok := e.bindings.ForRecord(rec.ID); ok {
		return b.Feature.Geometry
	}
	return nil
}

func geometryOfFeature(f *boundary.Feature) *geom.MultiPolygon {
	if f == nil {
		return nil
	}
	return f.Geometry
}
