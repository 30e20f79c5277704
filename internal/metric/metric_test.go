package metric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/costmap/internal/region"
)

func TestFieldPath(t *testing.T) {
	tests := []struct {
		ind  Indicator
		mode Mode
		want string
	}{
		{Education, PerCapita, "education.perCapita"},
		{Health, Total, "health.total"},
		{PublicSafety, PerCapita, "publicSafety.perCapita"},
		{Transportation, Total, "transportation.total"},
		{Combined, PerCapita, "allCosts.perCapita"},
		{Combined, Total, "allCosts.total"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldPath(tt.ind, tt.mode))
		})
	}
}

func TestStemExceptions(t *testing.T) {
	assert.Equal(t, "allSectors", lowerCamel(Combined.String()), "derived stem differs from schema")
	assert.Equal(t, "allCosts", Stem(Combined))
	assert.Equal(t, lowerCamel(PublicSafety.String()), Stem(PublicSafety))
	assert.Len(t, stemExceptions, 2)
}

func TestValue_CombinedTotalUsesExceptionField(t *testing.T) {
	rec := &region.Record{Metrics: map[string]any{
		"allSectors": map[string]any{"total": 1.0},
		"allCosts":   map[string]any{"total": 4100000.0},
	}}
	assert.Equal(t, 4100000.0, Value(rec, Combined, Total))
}

func TestValue_Defaults(t *testing.T) {
	rec := &region.Record{Metrics: map[string]any{
		"education":      map[string]any{"perCapita": 412.5, "total": nil},
		"health":         map[string]any{"perCapita": "lots", "total": -5.0},
		"publicSafety":   map[string]any{"perCapita": math.NaN(), "total": json.Number("77")},
		"transportation": 12.0,
	}}

	assert.Equal(t, 412.5, Value(rec, Education, PerCapita))
	assert.Zero(t, Value(rec, Education, Total), "null")
	assert.Zero(t, Value(rec, Health, PerCapita), "non-numeric")
	assert.Zero(t, Value(rec, Health, Total), "negative")
	assert.Zero(t, Value(rec, PublicSafety, PerCapita), "NaN")
	assert.Equal(t, 77.0, Value(rec, PublicSafety, Total))
	assert.Zero(t, Value(rec, Transportation, Total), "stem is not an object")
	assert.Zero(t, Value(rec, Combined, Total), "absent")
	assert.Zero(t, Value(nil, Combined, Total))
	assert.Zero(t, Value(&region.Record{}, Education, PerCapita))
}

func TestParseIndicator(t *testing.T) {
	tests := map[string]Indicator{
		"Education":      Education,
		"health":         Health,
		"Public Safety":  PublicSafety,
		"publicSafety":   PublicSafety,
		"public-safety":  PublicSafety,
		"transportation": Transportation,
		"All Sectors":    Combined,
		"allCosts":       Combined,
		"combined":       Combined,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseIndicator(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseIndicator("parks")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownIndicator))
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"perCapita", "per-capita", "per capita", "PER_CAPITA"} {
		m, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, PerCapita, m)
	}
	m, err := ParseMode("Total")
	require.NoError(t, err)
	assert.Equal(t, Total, m)

	_, err = ParseMode("median")
	assert.True(t, eris.Is(err, ErrUnknownMode))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "All Sectors", Combined.String())
	assert.Equal(t, "Unknown", Indicator(42).String())
	assert.Equal(t, "perCapita", PerCapita.String())
	assert.Equal(t, "unknown", Mode(9).String())
	assert.Equal(t, "per capita", PerCapita.Label())
	assert.Equal(t, "total", Total.Label())
	assert.Len(t, All(), 5)
}
