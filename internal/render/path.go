package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/costmap/internal/projection"
)

// pathData encodes rings as SVG path data, one closed subpath per ring.
func pathData(rings [][]projection.Point) string {
	var b strings.Builder
	for _, ring := range rings {
		n := len(ring)
		if n > 1 && ring[0] == ring[n-1] {
			n--
		}
		if n < 3 {
			continue
		}
		for i := 0; i < n; i++ {
			if i == 0 {
				b.WriteByte('M')
			} else {
				b.WriteByte('L')
			}
			b.WriteString(formatFloat(ring[i].X))
			b.WriteByte(',')
			b.WriteString(formatFloat(ring[i].Y))
		}
		b.WriteByte('Z')
	}
	return b.String()
}

// formatFloat rounds to hundredths of a pixel.
func formatFloat(v float64) string {
	v = math.Round(v*100) / 100
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
