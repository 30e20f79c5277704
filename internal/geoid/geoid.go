// Package geoid normalizes the county identifiers found in region datasets and
// boundary files into one canonical join key.
//
// A canonical key is the 5-digit state+county FIPS code, e.g. "51005" for Bath
// County, Virginia. The empty string is the unmatchable key.
package geoid

import "strings"

// StateFIPS is the state prefix of every canonical key.
const StateFIPS = "51"

const (
	countyWidth = 3
	keyWidth    = len(StateFIPS) + countyWidth
)

// jurisdictionPrefixes are stripped case-insensitively, longest first.
var jurisdictionPrefixes = []string{
	"0500000us", // Census GEO_ID summary level
	"us-va-",
	"us-",
	"va-",
}

// Normalize converts a raw identifier into its canonical key. Malformed input
// yields "" rather than an error. Normalize is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, p := range jurisdictionPrefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	return fromDigits(digitsOnly(s))
}

// Valid reports whether key is a well-formed canonical key.
func Valid(key string) bool {
	return len(key) == keyWidth && strings.HasPrefix(key, StateFIPS) && digitsOnly(key) == key
}

// County returns the 3-digit county part of a canonical key, or "" when the
// key is not valid.
func County(key string) string {
	if !Valid(key) {
		return ""
	}
	return key[len(StateFIPS):]
}

func fromDigits(d string) string {
	switch {
	case d == "":
		return ""
	case len(d) <= countyWidth:
		return StateFIPS + strings.Repeat("0", countyWidth-len(d)) + d
	case len(d) == keyWidth && strings.HasPrefix(d, StateFIPS):
		return d
	case d[0] == '0':
		// Variable-width county codes such as "0005".
		return fromDigits(strings.TrimLeft(d, "0"))
	default:
		return ""
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
