package choropleth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/interaction"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/page"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
	"github.com/sells-group/costmap/internal/render"
)

func square(t *testing.T, lon0, lat0 float64) *geom.MultiPolygon {
	t.Helper()
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords([][][]geom.Coord{{{
		{lon0, lat0}, {lon0 + 0.4, lat0}, {lon0 + 0.4, lat0 + 0.4}, {lon0, lat0 + 0.4}, {lon0, lat0},
	}}})
	require.NoError(t, err)
	return mp
}

func costs(perCapita, total float64) map[string]any {
	return map[string]any{
		"allCosts":  map[string]any{"perCapita": perCapita, "total": total},
		"education": map[string]any{"perCapita": perCapita / 2, "total": total / 2},
	}
}

func testDataset() *region.Dataset {
	return region.NewDataset([]region.Record{
		{ID: "rich", Name: "Richmond city", RawID: "us-va-760", Metrics: costs(900, 2000000)},
		{ID: "bath", Name: "Bath County", RawID: "005", Metrics: costs(300, 40000)},
		{ID: "hen", Name: "Henrico County", RawID: "51087", Metrics: costs(500, 1500000)},
	})
}

func testFeatures(t *testing.T) []*boundary.Feature {
	return []*boundary.Feature{
		{Index: 0, Geometry: square(t, -77.6, 37.4), Properties: map[string]any{"GEOID": "51760", "NAME": "Richmond"}},
		{Index: 1, Geometry: square(t, -80.0, 37.9), Properties: map[string]any{"COUNTYFP": "005", "NAME": "Bath"}},
		{Index: 2, Geometry: square(t, -77.2, 37.4), Properties: map[string]any{"GEOID": "51087", "NAME": "Henrico"}},
		{Index: 3, Geometry: square(t, -76.4, 37.0), Properties: map[string]any{"GEOID": "51999", "NAME": "Nowhere"}},
	}
}

type idleClock struct{}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (idleClock) AfterFunc(time.Duration, func()) interaction.Timer { return idleTimer{} }

type recordingSurface struct {
	mu     sync.Mutex
	scenes []*render.Scene
}

func (s *recordingSurface) Draw(scene *render.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append(s.scenes, scene)
}

func (s *recordingSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes)
}

type harness struct {
	m       *Map
	sel     *page.Selection
	sector  *page.Sector
	window  *page.Window
	surface *recordingSurface
}

func newHarness(t *testing.T, loader Loader, vp projection.Viewport) *harness {
	t.Helper()
	h := &harness{
		sel:     page.NewSelection(nil),
		sector:  page.NewSector(metric.Selection{Indicator: metric.Combined, Mode: metric.PerCapita}),
		window:  page.NewWindow(vp),
		surface: &recordingSurface{},
	}
	h.m = New(DefaultOptions(), Deps{
		Dataset:   testDataset(),
		Boundary:  loader,
		Selection: h.sel,
		Sector:    h.sector,
		Window:    h.window,
		Surface:   h.surface,
		Clock:     idleClock{},
	})
	t.Cleanup(h.m.Unmount)
	return h
}

func staticLoader(features []*boundary.Feature) Loader {
	return LoaderFunc(func(context.Context) ([]*boundary.Feature, error) { return features, nil })
}

func mountReady(t *testing.T, vp projection.Viewport) *harness {
	t.Helper()
	h := newHarness(t, staticLoader(testFeatures(t)), vp)
	require.NoError(t, h.m.Mount(context.Background()))
	<-h.m.Loaded()
	require.Equal(t, render.StatusReady, h.m.Status())
	return h
}

var desktop = projection.Viewport{Width: 960, Height: 600}

func TestEngine_ScaleMemoized(t *testing.T) {
	e := NewEngine(testDataset(), testFeatures(t), DefaultOptions())
	sel := metric.Selection{Indicator: metric.Combined, Mode: metric.Total}

	assert.Same(t, e.Scale(sel), e.Scale(sel))
	assert.ElementsMatch(t, []float64{2000000, 40000, 1500000}, e.Values(sel))
	assert.NotSame(t, e.Scale(sel), e.Scale(metric.Selection{Indicator: metric.Education, Mode: metric.Total}))
}

func TestEngine_DefaultFeatureAndMobileFallback(t *testing.T) {
	features := testFeatures(t)
	e := NewEngine(testDataset(), features, DefaultOptions())
	require.Same(t, features[0], e.DefaultFeature())

	vp := projection.Viewport{Width: 375, Height: 500}
	p := e.Projection(vp, nil)
	c := p.Bounds(features[0].Geometry).Center()
	assert.InDelta(t, 187.5, c.X, 1e-6)
	assert.InDelta(t, 250, c.Y, 1e-6)

	bath, _ := e.Dataset().ByID("bath")
	p = e.Projection(vp, bath)
	c = p.Bounds(features[1].Geometry).Center()
	assert.InDelta(t, 187.5, c.X, 1e-6)
	assert.InDelta(t, 250, c.Y, 1e-6)

	// default region missing from the geometry: plain centering
	e = NewEngine(testDataset(), features[1:], DefaultOptions())
	assert.Nil(t, e.DefaultFeature())
	assert.Equal(t, [2]float64{187.5, 250}, e.Projection(vp, nil).Translate)
}

func TestEngine_Scene(t *testing.T) {
	e := NewEngine(testDataset(), testFeatures(t), DefaultOptions())
	hen, _ := e.Dataset().ByID("hen")

	s := e.Scene(Frame{Viewport: desktop, Selection: metric.Selection{Indicator: metric.Combined}, Selected: hen})
	assert.Equal(t, render.StatusReady, s.Status)
	base := s.Layer(render.LayerBase)
	require.Len(t, base.Shapes, 4)
	assert.Equal(t, "hen", base.Shapes[3].Region)
}

func TestMap_MountLoadRender(t *testing.T) {
	release := make(chan struct{})
	features := testFeatures(t)
	h := newHarness(t, LoaderFunc(func(ctx context.Context) ([]*boundary.Feature, error) {
		<-release
		return features, nil
	}), desktop)

	require.NoError(t, h.m.Mount(context.Background()))
	assert.Equal(t, render.StatusLoading, h.m.Scene().Status, "placeholder while loading")
	assert.Empty(t, h.m.Scene().Layers)

	close(release)
	<-h.m.Loaded()

	s := h.m.Scene()
	assert.Equal(t, render.StatusReady, s.Status)
	assert.Len(t, s.Layer(render.LayerBase).Shapes, 4)
	assert.Equal(t, 2, h.surface.count())

	assert.Error(t, h.m.Mount(context.Background()))
}

func TestMap_LoadFailureLeavesEmptyMap(t *testing.T) {
	h := newHarness(t, LoaderFunc(func(context.Context) ([]*boundary.Feature, error) {
		return nil, errors.New("404")
	}), desktop)

	require.NoError(t, h.m.Mount(context.Background()))
	<-h.m.Loaded()

	assert.Equal(t, render.StatusFailed, h.m.Status())
	assert.Equal(t, render.StatusFailed, h.m.Scene().Status)
	assert.Empty(t, h.m.Scene().Layers)
}

func TestMap_UnmountDuringLoad(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, LoaderFunc(func(ctx context.Context) ([]*boundary.Feature, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}), desktop)

	require.NoError(t, h.m.Mount(context.Background()))
	<-started
	drawn := h.surface.count()
	h.m.Unmount()
	<-h.m.Loaded()

	assert.Equal(t, drawn, h.surface.count(), "no draw after teardown")
	assert.Equal(t, render.StatusLoading, h.m.Status())
	assert.Equal(t, 0, h.sel.Subscribers())
	assert.Equal(t, 0, h.sector.Subscribers())
	assert.Equal(t, 0, h.window.Listeners())
}

func TestMap_ReactsToPage(t *testing.T) {
	h := mountReady(t, desktop)

	h.sector.Set(metric.Selection{Indicator: metric.Education, Mode: metric.Total})
	assert.Equal(t, "Virginia county costs: Education, total", h.m.Scene().Title)

	bath, _ := h.m.Engine().Dataset().ByID("bath")
	h.sel.Select(bath)
	s := h.m.Scene()
	assert.Contains(t, s.Description, "Selected: Bath County")
	base := s.Layer(render.LayerBase)
	assert.Equal(t, "bath", base.Shapes[len(base.Shapes)-1].Region)
}

func TestMap_PointerRouting(t *testing.T) {
	h := mountReady(t, desktop)
	e := h.m.Engine()
	p := e.Projection(desktop, nil)
	bathCenter := p.Centroid(e.Features()[1].Geometry)

	h.m.Hover(bathCenter)
	snap := h.m.Machine().Snapshot()
	require.Equal(t, interaction.Hovering, snap.State)
	assert.Equal(t, "bath", snap.HoveredRecord().ID)
	assert.Len(t, h.m.Scene().Layer(render.LayerTooltip).Labels, 1)

	h.m.Click(bathCenter)
	require.NotNil(t, h.sel.Selected())
	assert.Equal(t, "bath", h.sel.Selected().ID)
	assert.Empty(t, h.m.Scene().Layer(render.LayerTooltip).Labels, "hovered region is now the selection")

	// unmatched feature: click is swallowed, selection untouched
	h.m.Click(p.Centroid(e.Features()[3].Geometry))
	assert.Equal(t, "bath", h.sel.Selected().ID)

	h.m.Click(projection.Point{X: 2, Y: 2})
	assert.Nil(t, h.sel.Selected(), "background click resets")
}

func TestMap_MobileDragAndResize(t *testing.T) {
	h := mountReady(t, desktop)

	require.NoError(t, h.m.Drag(projection.Point{X: 30}))
	assert.Equal(t, projection.Point{}, h.m.Machine().Snapshot().Pan, "desktop does not pan")

	// The state overhangs the left edge of a narrow phone viewport by ~80px.
	h.window.Resize(projection.Viewport{Width: 200, Height: 150})
	require.NoError(t, h.m.Drag(projection.Point{X: 30}))
	assert.Equal(t, projection.Point{X: 30}, h.m.Machine().Snapshot().Pan)
	assert.Equal(t, projection.Point{X: 30}, h.m.Scene().Pan)

	require.NoError(t, h.m.Drag(projection.Point{X: 100000, Y: 100000}))
	pan := h.m.Machine().Snapshot().Pan
	assert.InDelta(t, 79.62, pan.X, 0.05, "clamped to the geometry edge")
	assert.Zero(t, pan.Y)

	h.window.Resize(projection.Viewport{Width: 1024, Height: 700})
	assert.Equal(t, projection.Point{}, h.m.Machine().Snapshot().Pan, "crossing the breakpoint drops the pan")
}

func TestMap_MobileResizeReclampsPan(t *testing.T) {
	h := mountReady(t, projection.Viewport{Width: 200, Height: 150})

	require.NoError(t, h.m.Drag(projection.Point{X: 100000}))
	require.InDelta(t, 79.62, h.m.Machine().Snapshot().Pan.X, 0.05)

	// Wider phone: the whole state fits, so no horizontal pan is left.
	h.window.Resize(projection.Viewport{Width: 500, Height: 150})
	assert.Equal(t, projection.Point{}, h.m.Machine().Snapshot().Pan)
	assert.Equal(t, projection.Point{}, h.m.Scene().Pan)
}

type flakySector struct {
	*page.Sector
	fail atomic.Bool
}

func (s *flakySector) Get() metric.Selection {
	if s.fail.Load() {
		panic("sector unavailable")
	}
	return s.Sector.Get()
}

func TestMap_RenderPanicKeepsPreviousScene(t *testing.T) {
	sector := &flakySector{Sector: page.NewSector(metric.Selection{Indicator: metric.Health})}
	m := New(DefaultOptions(), Deps{
		Dataset:   testDataset(),
		Boundary:  staticLoader(testFeatures(t)),
		Selection: page.NewSelection(nil),
		Sector:    sector,
		Window:    page.NewWindow(desktop),
		Clock:     idleClock{},
	})
	t.Cleanup(m.Unmount)
	require.NoError(t, m.Mount(context.Background()))
	<-m.Loaded()

	before := m.Scene()
	require.Equal(t, render.StatusReady, before.Status)

	sector.fail.Store(true)
	assert.NotPanics(t, func() { assert.Same(t, before, m.Render()) })
	assert.Same(t, before, m.Scene())
}

func TestMap_MountRequiresDeps(t *testing.T) {
	m := New(DefaultOptions(), Deps{})
	assert.Error(t, m.Mount(context.Background()))
}
