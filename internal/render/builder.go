package render

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/sells-group/costmap/internal/classify"
	"github.com/sells-group/costmap/internal/match"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
)

// Direction is a fixed text label tied to a map location, e.g. "To D.C.".
type Direction struct {
	Text string  `mapstructure:"text" json:"text"`
	Lon  float64 `mapstructure:"lon" json:"lon"`
	Lat  float64 `mapstructure:"lat" json:"lat"`
}

// Options styles the scene.
type Options struct {
	// DimOpacity is applied to every non-hovered region while hovering.
	DimOpacity float64

	BorderColor    string
	BorderWidth    float64
	SelectedStroke string
	SelectedWidth  float64
	HoverStroke    string
	HoverWidth     float64

	// StateName prefixes the accessible title.
	StateName  string
	Directions []Direction
	Language   language.Tag
}

// DefaultOptions returns the house style.
func DefaultOptions() Options {
	return Options{
		DimOpacity:     0.5,
		BorderColor:    "#ffffff",
		BorderWidth:    0.5,
		SelectedStroke: "#222222",
		SelectedWidth:  2,
		HoverStroke:    "#000000",
		HoverWidth:     1.5,
		StateName:      "Virginia",
		Language:       language.AmericanEnglish,
	}
}

// Input is everything one draw pass depends on.
type Input struct {
	Status     Status
	Viewport   projection.Viewport
	Projection *projection.Conic
	Bindings   *match.Bindings
	Scale      *classify.Scale
	Selection  metric.Selection
	// Selected is the page selection; nil shows the state-wide aggregate.
	Selected *region.Record
	// Hovered is the hovered region; nil when idle.
	Hovered *region.Record
	Pan     projection.Point
}

// Builder assembles scenes. It holds no per-frame state.
type Builder struct {
	opts  Options
	money money
}

// NewBuilder creates a Builder, filling unset options from DefaultOptions.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.DimOpacity <= 0 || opts.DimOpacity > 1 {
		opts.DimOpacity = def.DimOpacity
	}
	if opts.BorderColor == "" {
		opts.BorderColor, opts.BorderWidth = def.BorderColor, def.BorderWidth
	}
	if opts.SelectedStroke == "" {
		opts.SelectedStroke, opts.SelectedWidth = def.SelectedStroke, def.SelectedWidth
	}
	if opts.HoverStroke == "" {
		opts.HoverStroke, opts.HoverWidth = def.HoverStroke, def.HoverWidth
	}
	if opts.StateName == "" {
		opts.StateName = def.StateName
	}
	if opts.Language == language.Und {
		opts.Language = def.Language
	}
	return &Builder{opts: opts, money: newMoney(opts.Language)}
}

// Build draws one frame. Paint order inside the map body:
//
//  1. every region, filled by the scale (dimmed while another is hovered)
//  2. direction labels
//  3. the selection outline, unless the selected region is hovered
//  4. the selection annotation, hidden while anything is hovered
//  5. the hovered region, redrawn at full opacity with its own outline
//  6. the hover tooltip, unless the hovered region is the selected one
//
// The selected features come last within layer 1 so neighbours never paint
// over them. The legend sits in the unpanned overlay.
func (b *Builder) Build(in Input) *Scene {
	sc := &Scene{
		Width:       in.Viewport.Width,
		Height:      in.Viewport.Height,
		Status:      in.Status,
		Title:       b.title(in.Selection),
		Description: b.description(in),
		Pan:         in.Pan,
	}
	if sc.Status == "" {
		sc.Status = StatusReady
	}
	if sc.Status != StatusReady || in.Projection == nil || in.Bindings.Len() == 0 {
		return sc
	}

	scale := in.Scale
	if scale == nil {
		scale = classify.New(nil, nil, classify.DefaultNeutral)
	}

	hovering := in.Hovered != nil
	hoverIsSelected := hovering && sameRegion(in.Hovered, in.Selected)
	baseOpacity := 1.0
	if hovering {
		baseOpacity = b.opts.DimOpacity
	}

	order := in.Bindings.DrawOrder(in.Selected)
	rings := make(map[int][][]projection.Point, len(order))
	base := Layer{Name: LayerBase, Shapes: make([]Shape, 0, len(order))}
	var selected, hovered []int

	for _, idx := range order {
		bnd := in.Bindings.At(idx)
		r := in.Projection.Rings(bnd.Feature.Geometry)
		rings[idx] = r
		base.Shapes = append(base.Shapes, b.shape(idx, bnd, r, fill(bnd, scale, in.Selection), baseOpacity, b.opts.BorderColor, b.opts.BorderWidth))

		if bnd.Record == nil {
			continue
		}
		if sameRegion(bnd.Record, in.Selected) {
			selected = append(selected, idx)
		}
		if sameRegion(bnd.Record, in.Hovered) {
			hovered = append(hovered, idx)
		}
	}
	sc.Layers = append(sc.Layers, base, b.directions(in.Projection))

	sel := Layer{Name: LayerSelected}
	if !hoverIsSelected {
		for _, idx := range selected {
			sel.Shapes = append(sel.Shapes, b.shape(idx, in.Bindings.At(idx), rings[idx], "none", 1, b.opts.SelectedStroke, b.opts.SelectedWidth))
		}
	}
	sc.Layers = append(sc.Layers, sel)

	ann := Layer{Name: LayerAnnotation}
	if !hovering && len(selected) > 0 {
		ann.Labels = append(ann.Labels, Label{
			Kind:   LayerAnnotation,
			Region: in.Selected.ID,
			Anchor: b.centroid(in, selected),
			Lines:  b.annotationLines(in.Bindings.At(selected[0]).Record, in.Selection.Indicator),
		})
	}
	sc.Layers = append(sc.Layers, ann)

	hov := Layer{Name: LayerHovered}
	for _, idx := range hovered {
		bnd := in.Bindings.At(idx)
		hov.Shapes = append(hov.Shapes, b.shape(idx, bnd, rings[idx], fill(bnd, scale, in.Selection), 1, b.opts.HoverStroke, b.opts.HoverWidth))
	}
	sc.Layers = append(sc.Layers, hov)

	tip := Layer{Name: LayerTooltip}
	if len(hovered) > 0 && !hoverIsSelected {
		rec := in.Bindings.At(hovered[0]).Record
		tip.Labels = append(tip.Labels, Label{
			Kind:   LayerTooltip,
			Region: rec.ID,
			Anchor: b.centroid(in, hovered),
			Lines: []string{
				rec.Name,
				b.money.format(metric.Value(rec, in.Selection.Indicator, in.Selection.Mode), in.Selection.Mode) + " " + in.Selection.Mode.Label(),
			},
		})
	}
	sc.Layers = append(sc.Layers, tip)

	sc.Legend = b.legend(scale, in)
	return sc
}

func (b *Builder) shape(idx int, bnd match.Binding, rings [][]projection.Point, fillColor string, opacity float64, stroke string, width float64) Shape {
	s := Shape{
		Feature:     idx,
		Name:        bnd.Feature.Name(),
		Path:        pathData(rings),
		Fill:        fillColor,
		FillOpacity: opacity,
		Stroke:      stroke,
		StrokeWidth: width,
		rings:       rings,
	}
	if bnd.Record != nil {
		s.Region = bnd.Record.ID
		s.Name = bnd.Record.Name
	}
	return s
}

// fill colors a binding; unbound features are "no data".
func fill(bnd match.Binding, scale *classify.Scale, sel metric.Selection) string {
	if bnd.Record == nil {
		return scale.Neutral()
	}
	return scale.Color(metric.Value(bnd.Record, sel.Indicator, sel.Mode))
}

// centroid anchors a label at the centroid of the largest of the features.
func (b *Builder) centroid(in Input, idxs []int) projection.Point {
	best, bestArea := idxs[0], -1.0
	for _, idx := range idxs {
		box := in.Projection.Bounds(in.Bindings.At(idx).Feature.Geometry)
		if a := (box.MaxX - box.MinX) * (box.MaxY - box.MinY); a > bestArea {
			best, bestArea = idx, a
		}
	}
	return in.Projection.Centroid(in.Bindings.At(best).Feature.Geometry)
}

func (b *Builder) annotationLines(rec *region.Record, ind metric.Indicator) []string {
	lines := []string{rec.Name}
	for _, mode := range []metric.Mode{metric.PerCapita, metric.Total} {
		lines = append(lines, b.money.format(metric.Value(rec, ind, mode), mode)+" "+mode.Label())
	}
	return lines
}

func (b *Builder) directions(p *projection.Conic) Layer {
	l := Layer{Name: LayerDirections}
	for _, d := range b.opts.Directions {
		l.Labels = append(l.Labels, Label{
			Kind:   LayerDirections,
			Anchor: p.Project(d.Lon, d.Lat),
			Lines:  []string{d.Text},
		})
	}
	return l
}

func (b *Builder) legend(scale *classify.Scale, in Input) *Legend {
	lg := &Legend{X: 16, Y: 16, Title: fmt.Sprintf("%s, %s", in.Selection.Indicator, in.Selection.Mode.Label())}
	for _, bucket := range scale.Legend() {
		lg.Entries = append(lg.Entries, LegendEntry{
			Color: bucket.Color,
			Label: b.money.format(bucket.Min, in.Selection.Mode) + " to " + b.money.format(bucket.Max, in.Selection.Mode),
			Min:   bucket.Min,
			Max:   bucket.Max,
		})
	}
	noData := scale.Empty()
	for i := 0; i < in.Bindings.Len() && !noData; i++ {
		noData = !in.Bindings.At(i).Bound()
	}
	if noData {
		lg.Entries = append(lg.Entries, LegendEntry{Color: scale.Neutral(), Label: "No data"})
	}
	return lg
}

func (b *Builder) title(sel metric.Selection) string {
	return fmt.Sprintf("%s county costs: %s, %s", b.opts.StateName, sel.Indicator, sel.Mode.Label())
}

// description is the screen-reader text; it tracks the indicator, the mode
// and the selection.
func (b *Builder) description(in Input) string {
	switch in.Status {
	case StatusLoading:
		return "The map is loading."
	case StatusFailed:
		return "The map could not be loaded."
	}

	what := fmt.Sprintf("Map of %s spending %s by county and independent city.", in.Selection.Indicator, in.Selection.Mode.Label())
	if in.Selected == nil {
		return what + " Showing state-wide totals; select a region for details."
	}
	return what + fmt.Sprintf(" Selected: %s, %s %s and %s %s.",
		in.Selected.Name,
		b.money.format(metric.Value(in.Selected, in.Selection.Indicator, metric.PerCapita), metric.PerCapita), metric.PerCapita.Label(),
		b.money.format(metric.Value(in.Selected, in.Selection.Indicator, metric.Total), metric.Total), metric.Total.Label(),
	)
}

func sameRegion(a, b *region.Record) bool {
	return a != nil && b != nil && a.ID == b.ID
}
