package projection

import "math"

// ClampPan constrains a pan offset so that the viewport stays inside extent,
// where extent is the geometry's screen bounds (at zero offset) grown to
// cover the viewport. An axis on which the extent is narrower than the
// viewport is centered. Only translation is constrained; scale never changes.
func ClampPan(offset Point, vp Viewport, geometry Rect) Point {
	extent := geometry.Union(Rect{MaxX: vp.Width, MaxY: vp.Height})
	return Point{
		X: offset.X + constrain(-offset.X-extent.MinX, vp.Width-offset.X-extent.MaxX),
		Y: offset.Y + constrain(-offset.Y-extent.MinY, vp.Height-offset.Y-extent.MaxY),
	}
}

func constrain(d0, d1 float64) float64 {
	if d1 > d0 {
		return (d0 + d1) / 2
	}
	if v := math.Min(0, d0); v != 0 {
		return v
	}
	return math.Max(0, d1)
}
