// Package render turns bindings, a color scale and a projection into a
// layered display list and writes it as SVG.
package render

import (
	"github.com/sells-group/costmap/internal/projection"
)

// Status is the load state the scene was built in.
type Status string

// Scene statuses.
const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Layer names of the map body, in paint order.
const (
	LayerBase       = "regions"
	LayerDirections = "directions"
	LayerSelected   = "selected"
	LayerAnnotation = "annotation"
	LayerHovered    = "hovered"
	LayerTooltip    = "tooltip"
)

// Scene is one frame of the map. Map layers move with Pan; the overlay
// (legend) never does.
type Scene struct {
	Width       float64          `json:"width"`
	Height      float64          `json:"height"`
	Status      Status           `json:"status"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Pan         projection.Point `json:"pan"`
	Layers      []Layer          `json:"layers"`
	Legend      *Legend          `json:"legend,omitempty"`
}

// Layer is a named group of shapes and labels.
type Layer struct {
	Name   string  `json:"name"`
	Shapes []Shape `json:"shapes,omitempty"`
	Labels []Label `json:"labels,omitempty"`
}

// Shape is one filled or outlined feature outline.
type Shape struct {
	Feature     int     `json:"feature"`
	Region      string  `json:"region,omitempty"`
	Name        string  `json:"name,omitempty"`
	Path        string  `json:"d"`
	Fill        string  `json:"fill"`
	FillOpacity float64 `json:"fill_opacity"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`

	rings [][]projection.Point
}

// Label is a text block anchored at a screen point.
type Label struct {
	Kind   string           `json:"kind"`
	Region string           `json:"region,omitempty"`
	Anchor projection.Point `json:"anchor"`
	Lines  []string         `json:"lines"`
}

// Legend is the color key drawn in the fixed overlay.
type Legend struct {
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Title   string        `json:"title"`
	Entries []LegendEntry `json:"entries"`
}

// LegendEntry is one swatch of the legend.
type LegendEntry struct {
	Color string  `json:"color"`
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Layer returns the named layer, or nil.
func (s *Scene) Layer(name string) *Layer {
	for i := range s.Layers {
		if s.Layers[i].Name == name {
			return &s.Layers[i]
		}
	}
	return nil
}

// HitTest returns the top-most base shape under a viewport point, taking the
// pan offset into account.
func (s *Scene) HitTest(pt projection.Point) (*Shape, bool) {
	base := s.Layer(LayerBase)
	if base == nil {
		return nil, false
	}
	local := projection.Point{X: pt.X - s.Pan.X, Y: pt.Y - s.Pan.Y}
	for i := len(base.Shapes) - 1; i >= 0; i-- {
		if contains(base.Shapes[i].rings, local) {
			return &base.Shapes[i], true
		}
	}
	return nil, false
}

// contains is an even-odd point-in-polygon test over all rings.
func contains(rings [][]projection.Point, pt projection.Point) bool {
	in := false
	for _, ring := range rings {
		for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
			a, b := ring[i], ring[j]
			if (a.Y > pt.Y) != (b.Y > pt.Y) &&
				pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
				in = !in
			}
		}
	}
	return in
}
