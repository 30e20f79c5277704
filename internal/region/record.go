// Package region holds the per-county cost records the map colors by, and
// the sources they are loaded from.
package region

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/costmap/internal/geoid"
)

// Record is one county or independent city with its cost indicators.
// Metrics holds the indicator sub-objects keyed by field stem, e.g.
// {"education": {"perCapita": 412.5, "total": 1900000}}.
type Record struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	RawID   string         `json:"fips"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// Key returns the canonical join key derived from RawID.
func (r *Record) Key() string {
	return geoid.Normalize(r.RawID)
}

// identity fields pulled out of a flat JSON object; everything else is a metric.
var identityFields = map[string]bool{"id": true, "name": true, "fips": true}

// UnmarshalJSON accepts a flat object where indicator sub-objects sit next to
// the identity fields, or the nested "metrics" form Record encodes to.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "region: decode record")
	}

	r.ID = scalarString(raw["id"])
	r.Name = scalarString(raw["name"])
	r.RawID = scalarString(raw["fips"])
	r.Metrics = make(map[string]any)

	if nested, ok := raw["metrics"].(map[string]any); ok {
		for k, v := range nested {
			r.Metrics[k] = v
		}
	}
	for k, v := range raw {
		if identityFields[k] || k == "metrics" {
			continue
		}
		r.Metrics[k] = v
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
