// Package metric resolves the active cost indicator of a region record to a
// number.
package metric

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/costmap/internal/region"
)

// Indicator is one of the five fixed cost categories.
type Indicator int

// Indicators, in sector-selector order.
const (
	Education Indicator = iota
	Health
	PublicSafety
	Transportation
	Combined
)

// Mode selects per-capita or total presentation of an indicator.
type Mode int

// Display modes.
const (
	PerCapita Mode = iota
	Total
)

var (
	// ErrUnknownIndicator is returned by ParseIndicator.
	ErrUnknownIndicator = eris.New("metric: unknown indicator")
	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = eris.New("metric: unknown display mode")
)

var indicatorNames = [...]string{
	Education:      "Education",
	Health:         "Health",
	PublicSafety:   "Public Safety",
	Transportation: "Transportation",
	Combined:       "All Sectors",
}

// stemExceptions lists the categories whose field stem is not the
// lower-camel-cased display name. The upstream schema is irregular:
// "All Sectors" lives under allCosts, and publicSafety is listed here even
// though it derives unchanged, to keep the two-word stem pinned.
var stemExceptions = map[Indicator]string{
	Combined:     "allCosts",
	PublicSafety: "publicSafety",
}

var modeKeys = [...]string{
	PerCapita: "perCapita",
	Total:     "total",
}

// All returns every indicator in display order.
func All() []Indicator {
	return []Indicator{Education, Health, PublicSafety, Transportation, Combined}
}

// String returns the display name.
func (i Indicator) String() string {
	if i < 0 || int(i) >= len(indicatorNames) {
		return "Unknown"
	}
	return indicatorNames[i]
}

// String returns the schema key of the mode.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeKeys) {
		return "unknown"
	}
	return modeKeys[m]
}

// Label returns the human-readable mode name.
func (m Mode) Label() string {
	if m == Total {
		return "total"
	}
	return "per capita"
}

// Stem returns the schema field stem for the indicator.
func Stem(i Indicator) string {
	if s, ok := stemExceptions[i]; ok {
		return s
	}
	return lowerCamel(i.String())
}

// FieldPath returns the dotted path of the value for (indicator, mode),
// e.g. "education.perCapita".
func FieldPath(i Indicator, m Mode) string {
	return Stem(i) + "." + m.String()
}

// Value extracts the indicator value from a record. Absent, null,
// non-numeric, negative and non-finite values resolve to 0.
func Value(rec *region.Record, i Indicator, m Mode) float64 {
	if rec == nil {
		return 0
	}
	var cur any = rec.Metrics
	for _, part := range strings.Split(FieldPath(i, m), ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return 0
		}
		cur = obj[part]
	}
	return toNumber(cur)
}

func toNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// ParseIndicator accepts a display name, a field stem, or a short alias.
func ParseIndicator(s string) (Indicator, error) {
	key := normalizeToken(s)
	for _, i := range All() {
		if key == normalizeToken(i.String()) || key == normalizeToken(Stem(i)) {
			return i, nil
		}
	}
	switch key {
	case "combined", "all", "total":
		return Combined, nil
	case "safety":
		return PublicSafety, nil
	}
	return 0, eris.Wrapf(ErrUnknownIndicator, "metric: %q", s)
}

// ParseMode accepts "perCapita", "per-capita", "per capita" or "total".
func ParseMode(s string) (Mode, error) {
	switch normalizeToken(s) {
	case "percapita", "capita":
		return PerCapita, nil
	case "total":
		return Total, nil
	}
	return 0, eris.Wrapf(ErrUnknownMode, "metric: %q", s)
}

// Selection is the (indicator, display mode) pair chosen by the sector selector.
type Selection struct {
	Indicator Indicator
	Mode      Mode
}

func lowerCamel(name string) string {
	words := strings.Fields(name)
	var b strings.Builder
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if i > 0 && len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
