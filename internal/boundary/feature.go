// Package boundary loads the county boundary file and converts it to polygon
// features whose identifier and name properties may use vendor-specific keys.
package boundary

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/costmap/internal/geoid"
)

// IDKeys are the identifier property names observed across boundary vendors,
// probed in order.
var IDKeys = []string{"GEOID", "GEO_ID", "FIPS", "COUNTYFP", "fips"}

// NameKeys are the display-name property names, probed in order.
var NameKeys = []string{"NAME", "name"}

// Feature is one boundary polygon with its properties bag.
type Feature struct {
	Index      int
	ID         string
	Geometry   *geom.MultiPolygon
	Properties map[string]any
}

// RawID returns the first non-empty identifier among IDKeys, falling back
// to the feature id.
func (f *Feature) RawID() string {
	if v := probe(f.Properties, IDKeys); v != "" {
		return v
	}
	return f.ID
}

// Name returns the first non-empty display name among NameKeys.
func (f *Feature) Name() string {
	return probe(f.Properties, NameKeys)
}

// Key returns the canonical join key of the feature.
func (f *Feature) Key() string {
	return geoid.Normalize(f.RawID())
}

// Find returns the first feature whose key equals key or, failing that, whose
// name equals name. Either argument may be empty.
func Find(features []*Feature, key, name string) *Feature {
	if key != "" {
		if k := geoid.Normalize(key); k != "" {
			for _, f := range features {
				if f.Key() == k {
					return f
				}
			}
		}
	}
	if name != "" {
		for _, f := range features {
			if f.Name() == name {
				return f
			}
		}
	}
	return nil
}

func probe(props map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// toMultiPolygon normalizes polygonal geometry; anything else yields nil.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil
		}
		return t
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		mp := geom.NewMultiPolygon(t.Layout())
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

func reindex(features []*Feature) []*Feature {
	for i, f := range features {
		f.Index = i
	}
	return features
}
