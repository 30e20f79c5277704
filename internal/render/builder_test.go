package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/classify"
	"github.com/sells-group/costmap/internal/match"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
)

type fixture struct {
	ds       *region.Dataset
	bindings *match.Bindings
	proj     *projection.Conic
	scale    *classify.Scale
	sel      metric.Selection
}

func square(t *testing.T, lon0, lat0 float64) *geom.MultiPolygon {
	t.Helper()
	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords([][][]geom.Coord{{{
		{lon0, lat0}, {lon0 + 0.5, lat0}, {lon0 + 0.5, lat0 + 0.5}, {lon0, lat0 + 0.5}, {lon0, lat0},
	}}})
	require.NoError(t, err)
	return mp
}

func costs(perCapita, total float64) map[string]any {
	return map[string]any{"allCosts": map[string]any{"perCapita": perCapita, "total": total}}
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ds := region.NewDataset([]region.Record{
		{ID: "a", Name: "Albemarle County", RawID: "51003", Metrics: costs(100, 1234567)},
		{ID: "b", Name: "Bath County", RawID: "51005", Metrics: costs(300, 45000)},
		{ID: "c", Name: "Campbell County", RawID: "51031", Metrics: costs(200, 98000)},
	})
	features := []*boundary.Feature{
		{Index: 0, Geometry: square(t, -79.0, 37.5), Properties: map[string]any{"GEOID": "51003"}},
		{Index: 1, Geometry: square(t, -80.0, 38.0), Properties: map[string]any{"GEOID": "51005"}},
		{Index: 2, Geometry: square(t, -79.5, 37.0), Properties: map[string]any{"GEOID": "51031"}},
		{Index: 3, Geometry: square(t, -78.0, 37.0), Properties: map[string]any{"GEOID": "51999", "NAME": "Nowhere"}},
	}
	bindings := match.New(ds).Bind(features)
	sel := metric.Selection{Indicator: metric.Combined, Mode: metric.PerCapita}
	var values []float64
	for _, rec := range bindings.Records() {
		values = append(values, metric.Value(rec, sel.Indicator, sel.Mode))
	}
	cfg := projection.DefaultConfig()
	return fixture{
		ds:       ds,
		bindings: bindings,
		proj:     projection.NewConic(cfg.Parallels, cfg.Rotate, cfg.Center, cfg.DesktopScale).WithTranslate(480, 300),
		scale:    classify.New(values, classify.DefaultPalette, classify.DefaultNeutral),
		sel:      sel,
	}
}

func (f fixture) input(selected, hovered string) Input {
	in := Input{
		Status:     StatusReady,
		Viewport:   projection.Viewport{Width: 960, Height: 600},
		Projection: f.proj,
		Bindings:   f.bindings,
		Scale:      f.scale,
		Selection:  f.sel,
	}
	if selected != "" {
		in.Selected, _ = f.ds.ByID(selected)
	}
	if hovered != "" {
		in.Hovered, _ = f.ds.ByID(hovered)
	}
	return in
}

func layerNames(s *Scene) []string {
	var names []string
	for _, l := range s.Layers {
		names = append(names, l.Name)
	}
	return names
}

func TestBuild_LayerOrder(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("a", "b"))

	assert.Equal(t, []string{LayerBase, LayerDirections, LayerSelected, LayerAnnotation, LayerHovered, LayerTooltip}, layerNames(s))
	require.NotNil(t, s.Legend)
}

func TestBuild_SelectedDrawnLast(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(DefaultOptions())

	for _, id := range []string{"a", "b", "c"} {
		base := b.Build(f.input(id, "")).Layer(LayerBase)
		require.Len(t, base.Shapes, 4)
		assert.Equal(t, id, base.Shapes[3].Region)
	}
}

func TestBuild_NoHoverFullOpacity(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("a", ""))

	for _, sh := range s.Layer(LayerBase).Shapes {
		assert.Equal(t, 1.0, sh.FillOpacity, sh.Name)
	}
	sel := s.Layer(LayerSelected)
	require.Len(t, sel.Shapes, 1)
	assert.Equal(t, "none", sel.Shapes[0].Fill)
	assert.Equal(t, "#222222", sel.Shapes[0].Stroke)

	ann := s.Layer(LayerAnnotation)
	require.Len(t, ann.Labels, 1)
	assert.Equal(t, "Albemarle County", ann.Labels[0].Lines[0])
	assert.Contains(t, ann.Labels[0].Lines[1], "per capita")
	assert.Contains(t, ann.Labels[0].Lines[2], "1,234,567")

	assert.Empty(t, s.Layer(LayerHovered).Shapes)
	assert.Empty(t, s.Layer(LayerTooltip).Labels)
}

func TestBuild_HoverDimsOthers(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("a", "b"))

	for _, sh := range s.Layer(LayerBase).Shapes {
		assert.Equal(t, 0.5, sh.FillOpacity)
	}
	hov := s.Layer(LayerHovered)
	require.Len(t, hov.Shapes, 1)
	assert.Equal(t, "b", hov.Shapes[0].Region)
	assert.Equal(t, 1.0, hov.Shapes[0].FillOpacity)
	assert.Equal(t, "#000000", hov.Shapes[0].Stroke)

	assert.Len(t, s.Layer(LayerSelected).Shapes, 1, "selection outline stays when another region is hovered")
	assert.Empty(t, s.Layer(LayerAnnotation).Labels, "annotation hidden while hovering")

	tip := s.Layer(LayerTooltip)
	require.Len(t, tip.Labels, 1)
	assert.Equal(t, []string{"Bath County", "$300.00 per capita"}, tip.Labels[0].Lines)
	c := f.proj.Centroid(f.bindings.At(1).Feature.Geometry)
	assert.Equal(t, c, tip.Labels[0].Anchor)
}

func TestBuild_HoveringSelected(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("b", "b"))

	assert.Empty(t, s.Layer(LayerSelected).Shapes, "outline suppressed while hovered")
	assert.Empty(t, s.Layer(LayerTooltip).Labels, "no duplicate overlay")
	assert.Len(t, s.Layer(LayerHovered).Shapes, 1)
}

func TestBuild_FillsAndLegend(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("", ""))

	byRegion := map[string]Shape{}
	for _, sh := range s.Layer(LayerBase).Shapes {
		byRegion[sh.Region] = sh
	}
	assert.Equal(t, classify.DefaultNeutral, byRegion[""].Fill, "unbound feature renders as no data")
	assert.Equal(t, "Nowhere", byRegion[""].Name)
	assert.Equal(t, f.scale.Color(100), byRegion["a"].Fill)
	assert.Equal(t, f.scale.Color(300), byRegion["b"].Fill)

	lg := s.Legend
	require.Len(t, lg.Entries, len(classify.DefaultPalette)+1)
	assert.Equal(t, "No data", lg.Entries[len(lg.Entries)-1].Label)
	assert.Equal(t, "All Sectors, per capita", lg.Title)
	assert.Contains(t, lg.Entries[0].Label, "$100.00 to ")
}

func TestBuild_AccessibleText(t *testing.T) {
	f := newFixture(t)
	b := NewBuilder(DefaultOptions())

	s := b.Build(f.input("", ""))
	assert.Equal(t, "Virginia county costs: All Sectors, per capita", s.Title)
	assert.Contains(t, s.Description, "state-wide totals")

	in := f.input("a", "")
	in.Selection = metric.Selection{Indicator: metric.Combined, Mode: metric.Total}
	s = b.Build(in)
	assert.Equal(t, "Virginia county costs: All Sectors, total", s.Title)
	assert.Contains(t, s.Description, "Selected: Albemarle County")
	assert.Contains(t, s.Description, "$1,234,567 total")
}

func TestBuild_LoadingAndFailed(t *testing.T) {
	b := NewBuilder(DefaultOptions())

	s := b.Build(Input{Status: StatusLoading, Viewport: projection.Viewport{Width: 300, Height: 200}})
	assert.Equal(t, StatusLoading, s.Status)
	assert.Empty(t, s.Layers)
	assert.Nil(t, s.Legend)
	assert.Equal(t, "The map is loading.", s.Description)

	s = b.Build(Input{Status: StatusFailed})
	assert.Empty(t, s.Layers)
	assert.Equal(t, "The map could not be loaded.", s.Description)
}

func TestBuild_Directions(t *testing.T) {
	f := newFixture(t)
	opts := DefaultOptions()
	opts.Directions = []Direction{{Text: "To D.C.", Lon: -77.1, Lat: 38.9}}
	s := NewBuilder(opts).Build(f.input("", ""))

	dir := s.Layer(LayerDirections)
	require.Len(t, dir.Labels, 1)
	assert.Equal(t, []string{"To D.C."}, dir.Labels[0].Lines)
	assert.Equal(t, f.proj.Project(-77.1, 38.9), dir.Labels[0].Anchor)
}

func TestScene_HitTest(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("", ""))

	c := f.proj.Centroid(f.bindings.At(1).Feature.Geometry)
	sh, ok := s.HitTest(c)
	require.True(t, ok)
	assert.Equal(t, "b", sh.Region)

	_, ok = s.HitTest(projection.Point{X: -500, Y: -500})
	assert.False(t, ok)

	s.Pan = projection.Point{X: 40, Y: -10}
	sh, ok = s.HitTest(projection.Point{X: c.X + 40, Y: c.Y - 10})
	require.True(t, ok)
	assert.Equal(t, "b", sh.Region)
}

func TestWriteSVG(t *testing.T) {
	f := newFixture(t)
	s := NewBuilder(DefaultOptions()).Build(f.input("a", "b"))

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, s))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<svg "))
	assert.Contains(t, out, `<title id="costmap-title">Virginia county costs: All Sectors, per capita</title>`)
	assert.Contains(t, out, `<desc id="costmap-desc">`)
	assert.Contains(t, out, `fill-rule="evenodd"`)
	assert.Contains(t, out, `data-region="b"`)
	assert.Contains(t, out, "<tspan")

	mapEnd := strings.LastIndex(out, "  </g>\n  <g class=\"legend\"")
	assert.Positive(t, mapEnd, "legend is outside the panned map group")

	buf.Reset()
	require.NoError(t, WriteSVG(&buf, NewBuilder(DefaultOptions()).Build(Input{Status: StatusLoading})))
	assert.Contains(t, buf.String(), "Loading map")

	assert.Error(t, WriteSVG(&buf, nil))
}

func TestPathDataAndFormat(t *testing.T) {
	rings := [][]projection.Point{
		{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10.004}, {X: 0, Y: 0}},
		{{X: 1, Y: 1}, {X: 2, Y: 2}},
	}
	assert.Equal(t, "M0,0L10,0L10,10Z", pathData(rings))
	assert.Equal(t, "-1.25", formatFloat(-1.2501))
	assert.Equal(t, "0", formatFloat(-0.001))
}

func TestMoneyFormat(t *testing.T) {
	m := newMoney(DefaultOptions().Language)
	assert.Equal(t, "$1,234.50", m.format(1234.5, metric.PerCapita))
	assert.Equal(t, "$1,234,568", m.format(1234567.8, metric.Total))
}
