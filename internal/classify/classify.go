// Package classify builds the quantile color scale and legend for the active
// indicator's value distribution.
package classify

import (
	"math"
	"sort"
)

// DefaultPalette is the ordered fill ramp, lowest bucket first.
var DefaultPalette = []string{"#eff3ff", "#bdd7e7", "#6baed6", "#3182bd", "#08519c"}

// DefaultNeutral fills regions without data and every region of an empty scale.
const DefaultNeutral = "#d9d9d9"

// LegendBucket is one legend entry with its inclusive value range.
type LegendBucket struct {
	Color string  `json:"color"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Scale maps values to palette colors by equal-population buckets.
type Scale struct {
	palette    []string
	neutral    string
	thresholds []float64
	min, max   float64
	empty      bool
}

// New builds a quantile scale over values. NaN values are ignored; an empty
// input or an empty palette yields a constant neutral scale.
func New(values []float64, palette []string, neutral string) *Scale {
	if neutral == "" {
		neutral = DefaultNeutral
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	s := &Scale{palette: append([]string(nil), palette...), neutral: neutral}
	if len(sorted) == 0 || len(palette) == 0 {
		s.empty = true
		return s
	}
	sort.Float64s(sorted)

	k := len(palette)
	s.thresholds = make([]float64, k-1)
	for i := 1; i < k; i++ {
		s.thresholds[i-1] = quantile(sorted, float64(i)/float64(k))
	}
	s.min, s.max = sorted[0], sorted[len(sorted)-1]
	return s
}

// Empty reports whether the scale is the constant neutral classification.
func (s *Scale) Empty() bool { return s.empty }

// Neutral returns the no-data color.
func (s *Scale) Neutral() string { return s.neutral }

// Thresholds returns the bucket boundaries (len(palette)-1 of them).
func (s *Scale) Thresholds() []float64 {
	return append([]float64(nil), s.thresholds...)
}

// Bucket returns the palette index for v, or -1 on an empty scale or NaN.
// A value equal to a threshold falls in the upper bucket.
func (s *Scale) Bucket(v float64) int {
	if s.empty || math.IsNaN(v) {
		return -1
	}
	return sort.Search(len(s.thresholds), func(i int) bool { return s.thresholds[i] > v })
}

// Color returns the fill for v.
func (s *Scale) Color(v float64) string {
	b := s.Bucket(v)
	if b < 0 {
		return s.neutral
	}
	return s.palette[b]
}

// Legend returns one entry per palette color. Ranges of adjacent buckets share
// their boundary and may coincide when values are tied.
func (s *Scale) Legend() []LegendBucket {
	if s.empty {
		return nil
	}
	out := make([]LegendBucket, len(s.palette))
	for i, c := range s.palette {
		lo, hi := s.min, s.max
		if i > 0 {
			lo = s.thresholds[i-1]
		}
		if i < len(s.thresholds) {
			hi = s.thresholds[i]
		}
		out[i] = LegendBucket{Color: c, Min: lo, Max: hi}
	}
	return out
}

// quantile interpolates the p-quantile of sorted values (R-7).
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if p <= 0 || n < 2 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	i := float64(n-1) * p
	i0 := int(math.Floor(i))
	v0, v1 := sorted[i0], sorted[i0+1]
	return v0 + (v1-v0)*(i-float64(i0))
}
