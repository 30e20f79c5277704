package classify

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Thresholds(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	s := New(values, DefaultPalette, "")
	require.False(t, s.Empty())
	assert.Equal(t, []float64{3, 5, 7, 9}, s.Thresholds())

	assert.Equal(t, 0, s.Bucket(1))
	assert.Equal(t, 0, s.Bucket(2.99))
	assert.Equal(t, 1, s.Bucket(3), "threshold value goes to the upper bucket")
	assert.Equal(t, 4, s.Bucket(11))
	assert.Equal(t, 4, s.Bucket(1e9))
	assert.Equal(t, 0, s.Bucket(-1e9))
	assert.Equal(t, DefaultPalette[2], s.Color(6))
}

func TestNew_EmptyIsNeutral(t *testing.T) {
	s := New(nil, DefaultPalette, "")
	assert.True(t, s.Empty())
	assert.Equal(t, -1, s.Bucket(10))
	assert.Equal(t, DefaultNeutral, s.Color(10))
	assert.Nil(t, s.Legend())

	s = New([]float64{math.NaN()}, DefaultPalette, "#000")
	assert.True(t, s.Empty())
	assert.Equal(t, "#000", s.Color(1))

	s = New([]float64{1, 2}, nil, "")
	assert.True(t, s.Empty())
}

func TestNew_TiedAndZeroValues(t *testing.T) {
	for name, values := range map[string][]float64{
		"all zero":  {0, 0, 0, 0},
		"all equal": {7, 7, 7},
		"single":    {42},
	} {
		t.Run(name, func(t *testing.T) {
			s := New(values, DefaultPalette, "")
			require.False(t, s.Empty())
			legend := s.Legend()
			require.Len(t, legend, len(DefaultPalette))
			for _, b := range legend {
				assert.Equal(t, values[0], b.Min)
				assert.Equal(t, values[0], b.Max)
			}
			// Every region with the tied value renders identically.
			assert.Equal(t, s.Color(values[0]), s.Color(values[len(values)-1]))
		})
	}
}

func TestBucket_Monotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	values := make([]float64, 200)
	for i := range values {
		values[i] = math.Round(r.ExpFloat64()*1000) / 10
	}
	s := New(values, DefaultPalette, "")

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, s.Bucket(sorted[i-1]), s.Bucket(sorted[i]))
	}
}

func TestBucket_SameBucketSameColor(t *testing.T) {
	s := New([]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, DefaultPalette, "")
	for _, pair := range [][2]float64{{10, 11}, {95, 100}} {
		if s.Bucket(pair[0]) == s.Bucket(pair[1]) {
			assert.Equal(t, s.Color(pair[0]), s.Color(pair[1]))
		}
	}
}

func TestLegend_Ranges(t *testing.T) {
	s := New([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, DefaultPalette, "")
	legend := s.Legend()
	require.Len(t, legend, 5)
	assert.Equal(t, LegendBucket{Color: DefaultPalette[0], Min: 1, Max: 3}, legend[0])
	assert.Equal(t, LegendBucket{Color: DefaultPalette[2], Min: 5, Max: 7}, legend[2])
	assert.Equal(t, LegendBucket{Color: DefaultPalette[4], Min: 9, Max: 11}, legend[4])
}

func TestQuantile(t *testing.T) {
	assert.Equal(t, 1.0, quantile([]float64{1}, 0.5))
	assert.Equal(t, 1.5, quantile([]float64{1, 2}, 0.5))
	assert.Equal(t, 1.0, quantile([]float64{1, 2}, 0))
	assert.Equal(t, 2.0, quantile([]float64{1, 2}, 1))
}
