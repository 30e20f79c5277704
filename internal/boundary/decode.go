package boundary

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

var (
	// ErrNoObject is returned when the topology has no usable named object.
	ErrNoObject = eris.New("boundary: topology object not found")
	// ErrUnsupportedFormat is returned for documents that are neither a
	// Topology nor a FeatureCollection.
	ErrUnsupportedFormat = eris.New("boundary: unsupported document type")
)

// Decode parses a TopoJSON topology (using the named object) or a GeoJSON
// FeatureCollection into polygon features. Non-polygonal features are dropped.
func Decode(data []byte, object string) ([]*Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "boundary: decode document")
	}

	switch head.Type {
	case "Topology":
		return decodeTopology(data, object)
	case "FeatureCollection":
		return decodeFeatureCollection(data)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "boundary: type %q", head.Type)
	}
}

func decodeFeatureCollection(data []byte) ([]*Feature, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode feature collection")
	}

	features := make([]*Feature, 0, len(fc.Features))
	var dropped int
	for _, gf := range fc.Features {
		mp := toMultiPolygon(gf.Geometry)
		if mp == nil {
			dropped++
			continue
		}
		props := gf.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, &Feature{ID: gf.ID, Geometry: mp, Properties: props})
	}
	if dropped > 0 {
		zap.L().Debug("boundary: dropped non-polygon features", zap.Int("dropped", dropped))
	}
	return reindex(features), nil
}

type topology struct {
	Type      string                     `json:"type"`
	Transform *topoTransform             `json:"transform"`
	Objects   map[string]json.RawMessage `json:"objects"`
	Arcs      [][][]float64              `json:"arcs"`
}

type topoTransform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type       string          `json:"type"`
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Arcs       json.RawMessage `json:"arcs"`
	Geometries []topoGeometry  `json:"geometries"`
}

func decodeTopology(data []byte, object string) ([]*Feature, error) {
	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, eris.Wrap(err, "boundary: decode topology")
	}

	raw, err := pickObject(topo.Objects, object)
	if err != nil {
		return nil, err
	}
	var root topoGeometry
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, eris.Wrap(err, "boundary: decode topology object")
	}

	arcs := decodeArcs(topo.Arcs, topo.Transform)

	geoms := []topoGeometry{root}
	if root.Type == "GeometryCollection" {
		geoms = root.Geometries
	}

	features := make([]*Feature, 0, len(geoms))
	var dropped int
	for _, g := range geoms {
		mp, err := topoMultiPolygon(g, arcs)
		if err != nil {
			return nil, err
		}
		if mp == nil {
			dropped++
			continue
		}
		props := g.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, &Feature{ID: stringify(g.ID), Geometry: mp, Properties: props})
	}
	if dropped > 0 {
		zap.L().Debug("boundary: dropped non-polygon geometries", zap.Int("dropped", dropped))
	}
	return reindex(features), nil
}

// pickObject returns the named object, or the only object when name is empty.
func pickObject(objects map[string]json.RawMessage, name string) (json.RawMessage, error) {
	if name != "" {
		raw, ok := objects[name]
		if !ok {
			return nil, eris.Wrapf(ErrNoObject, "boundary: object %q (have %v)", name, objectNames(objects))
		}
		return raw, nil
	}
	if len(objects) != 1 {
		return nil, eris.Wrapf(ErrNoObject, "boundary: object name required (have %v)", objectNames(objects))
	}
	for _, raw := range objects {
		return raw, nil
	}
	return nil, ErrNoObject
}

func objectNames(objects map[string]json.RawMessage) []string {
	names := make([]string, 0, len(objects))
	for n := range objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// decodeArcs applies the quantization transform, undoing delta encoding.
func decodeArcs(arcs [][][]float64, t *topoTransform) [][]geom.Coord {
	out := make([][]geom.Coord, len(arcs))
	for i, arc := range arcs {
		coords := make([]geom.Coord, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t == nil {
				coords = append(coords, geom.Coord{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			coords = append(coords, geom.Coord{
				x*t.Scale[0] + t.Translate[0],
				y*t.Scale[1] + t.Translate[1],
			})
		}
		out[i] = coords
	}
	return out
}

func topoMultiPolygon(g topoGeometry, arcs [][]geom.Coord) (*geom.MultiPolygon, error) {
	var polys [][][]int
	switch g.Type {
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, eris.Wrap(err, "boundary: decode polygon arcs")
		}
		polys = [][][]int{rings}
	case "MultiPolygon":
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, eris.Wrap(err, "boundary: decode multipolygon arcs")
		}
	default:
		return nil, nil
	}

	coords := make([][][]geom.Coord, 0, len(polys))
	for _, rings := range polys {
		poly := make([][]geom.Coord, 0, len(rings))
		for _, ring := range rings {
			c, err := stitchRing(ring, arcs)
			if err != nil {
				return nil, err
			}
			if len(c) < 4 {
				continue
			}
			poly = append(poly, c)
		}
		if len(poly) > 0 {
			coords = append(coords, poly)
		}
	}
	if len(coords) == 0 {
		return nil, nil
	}

	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: build multipolygon")
	}
	return mp, nil
}

// stitchRing concatenates arcs; a negative index ^i means arc i reversed.
// Consecutive arcs share an endpoint which is emitted once.
func stitchRing(indices []int, arcs [][]geom.Coord) ([]geom.Coord, error) {
	var ring []geom.Coord
	for _, idx := range indices {
		reversed := idx < 0
		if reversed {
			idx = ^idx
		}
		if idx >= len(arcs) {
			return nil, eris.Errorf("boundary: arc index %d out of range (%d arcs)", idx, len(arcs))
		}
		arc := arcs[idx]
		if len(ring) > 0 {
			ring = ring[:len(ring)-1]
		}
		if reversed {
			for i := len(arc) - 1; i >= 0; i-- {
				ring = append(ring, arc[i])
			}
		} else {
			ring = append(ring, arc...)
		}
	}
	return ring, nil
}
