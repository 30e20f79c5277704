// Package projection implements the conic equal-area projection used to draw
// the state and the manager that picks its translation for the current
// viewport and selection.
package projection

import (
	"math"

	"github.com/twpayne/go-geom"
)

const (
	radians = math.Pi / 180
	epsilon = 1e-6
)

// Point is a screen-space position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Conic is a conic equal-area (Albers) projection with a spherical rotation,
// a projection center, a pixel scale and a translation. Angles are in
// degrees. The zero Translate places the center at the origin.
type Conic struct {
	Parallels [2]float64 `json:"parallels"`
	Rotate    [3]float64 `json:"rotate"`
	Center    [2]float64 `json:"center"`
	Scale     float64    `json:"scale"`
	Translate [2]float64 `json:"translate"`

	n, c, r0     float64
	cx, cy       float64
	dLambda      float64
	cosDp, sinDp float64
	cosDg, sinDg float64
	rotates      bool
}

// NewConic builds a projection and precomputes its constants. A Conic must
// be created through NewConic.
func NewConic(parallels [2]float64, rotate [3]float64, center [2]float64, scale float64) *Conic {
	p := &Conic{Parallels: parallels, Rotate: rotate, Center: center, Scale: scale}
	p.init()
	return p
}

// WithTranslate returns a copy of p with a different translation.
func (p *Conic) WithTranslate(tx, ty float64) *Conic {
	q := *p
	q.Translate = [2]float64{tx, ty}
	return &q
}

func (p *Conic) init() {
	y0, y1 := p.Parallels[0]*radians, p.Parallels[1]*radians
	sy0 := math.Sin(y0)
	p.n = (sy0 + math.Sin(y1)) / 2
	if math.Abs(p.n) < epsilon {
		// Degenerate parallels; fall back to a tiny cone so the formulas stay finite.
		p.n = epsilon
	}
	p.c = 1 + sy0*(2*p.n-sy0)
	p.r0 = math.Sqrt(p.c) / p.n

	p.dLambda = math.Mod(p.Rotate[0]*radians, 2*math.Pi)
	dp, dg := p.Rotate[1]*radians, p.Rotate[2]*radians
	p.cosDp, p.sinDp = math.Cos(dp), math.Sin(dp)
	p.cosDg, p.sinDg = math.Cos(dg), math.Sin(dg)
	p.rotates = dp != 0 || dg != 0

	p.cx, p.cy = p.raw(p.Center[0]*radians, p.Center[1]*radians)
}

// raw is the unscaled conic equal-area forward projection in radians.
func (p *Conic) raw(lambda, phi float64) (float64, float64) {
	v := p.c - 2*p.n*math.Sin(phi)
	if v < 0 {
		v = 0
	}
	r := math.Sqrt(v) / p.n
	lambda *= p.n
	return r * math.Sin(lambda), p.r0 - r*math.Cos(lambda)
}

func (p *Conic) rotate(lambda, phi float64) (float64, float64) {
	lambda += p.dLambda
	if lambda > math.Pi {
		lambda -= 2 * math.Pi
	} else if lambda < -math.Pi {
		lambda += 2 * math.Pi
	}
	if !p.rotates {
		return lambda, phi
	}
	cosPhi := math.Cos(phi)
	x := math.Cos(lambda) * cosPhi
	y := math.Sin(lambda) * cosPhi
	z := math.Sin(phi)
	k := z*p.cosDp + x*p.sinDp
	return math.Atan2(y*p.cosDg-k*p.sinDg, x*p.cosDp-z*p.sinDp), math.Asin(clamp(k*p.cosDg+y*p.sinDg, -1, 1))
}

// Project maps a longitude/latitude in degrees to screen pixels, y down.
func (p *Conic) Project(lon, lat float64) Point {
	lambda, phi := p.rotate(lon*radians, lat*radians)
	x, y := p.raw(lambda, phi)
	return Point{
		X: p.Translate[0] + p.Scale*(x-p.cx),
		Y: p.Translate[1] - p.Scale*(y-p.cy),
	}
}

// Rings projects every ring of every polygon in mp.
func (p *Conic) Rings(mp *geom.MultiPolygon) [][]Point {
	if mp == nil {
		return nil
	}
	var rings [][]Point
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			coords := poly.LinearRing(j).Coords()
			ring := make([]Point, len(coords))
			for k, c := range coords {
				ring[k] = p.Project(c.X(), c.Y())
			}
			rings = append(rings, ring)
		}
	}
	return rings
}

// Bounds returns the screen-space bounding box of mp.
func (p *Conic) Bounds(mp *geom.MultiPolygon) Rect {
	r := EmptyRect()
	for _, ring := range p.Rings(mp) {
		for _, pt := range ring {
			r = r.Extend(pt)
		}
	}
	return r
}

// Centroid returns the area-weighted planar centroid of mp in screen space.
// Degenerate shapes fall back to the center of their bounds.
func (p *Conic) Centroid(mp *geom.MultiPolygon) Point {
	rings := p.Rings(mp)
	var area, sx, sy float64
	for _, ring := range rings {
		for i := 0; i+1 < len(ring); i++ {
			a, b := ring[i], ring[i+1]
			cross := a.X*b.Y - b.X*a.Y
			area += cross
			sx += (a.X + b.X) * cross
			sy += (a.Y + b.Y) * cross
		}
	}
	if math.Abs(area) < epsilon {
		r := EmptyRect()
		for _, ring := range rings {
			for _, pt := range ring {
				r = r.Extend(pt)
			}
		}
		return r.Center()
	}
	return Point{X: sx / (3 * area), Y: sy / (3 * area)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
