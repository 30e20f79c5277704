package render

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"github.com/rotisserie/eris"
)

const (
	swatchSize = 14
	lineHeight = 16
)

// WriteSVG writes the scene as a standalone SVG document. The title and
// description are referenced from aria-labelledby for screen readers.
func WriteSVG(w io.Writer, s *Scene) error {
	if s == nil {
		return eris.New("render: nil scene")
	}
	sw := &svgWriter{w: bufio.NewWriter(w)}

	sw.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" role="img" aria-labelledby="costmap-title costmap-desc" data-status="%s">`+"\n",
		formatFloat(s.Width), formatFloat(s.Height), formatFloat(s.Width), formatFloat(s.Height), s.Status)
	sw.printf("  <title id=\"costmap-title\">%s</title>\n", esc(s.Title))
	sw.printf("  <desc id=\"costmap-desc\">%s</desc>\n", esc(s.Description))

	if s.Status == StatusLoading {
		sw.printf(`  <text class="placeholder" x="%s" y="%s" text-anchor="middle">Loading map</text>`+"\n",
			formatFloat(s.Width/2), formatFloat(s.Height/2))
	}

	if len(s.Layers) > 0 {
		sw.printf(`  <g class="map" transform="translate(%s,%s)">`+"\n", formatFloat(s.Pan.X), formatFloat(s.Pan.Y))
		for _, l := range s.Layers {
			sw.layer(l)
		}
		sw.printf("  </g>\n")
	}
	if s.Legend != nil {
		sw.legend(s.Legend)
	}
	sw.printf("</svg>\n")

	if sw.err != nil {
		return eris.Wrap(sw.err, "render: write svg")
	}
	return eris.Wrap(sw.w.Flush(), "render: flush svg")
}

type svgWriter struct {
	w   *bufio.Writer
	err error
}

func (sw *svgWriter) printf(format string, args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}

func (sw *svgWriter) layer(l Layer) {
	if len(l.Shapes) == 0 && len(l.Labels) == 0 {
		return
	}
	sw.printf("    <g class=\"%s\">\n", esc(l.Name))
	for _, s := range l.Shapes {
		sw.printf(`      <path d="%s" fill="%s" fill-opacity="%s" fill-rule="evenodd"`,
			s.Path, esc(s.Fill), formatFloat(s.FillOpacity))
		if s.Stroke != "" {
			sw.printf(` stroke="%s" stroke-width="%s"`, esc(s.Stroke), formatFloat(s.StrokeWidth))
		}
		if s.Region != "" {
			sw.printf(` data-region="%s"`, esc(s.Region))
		}
		if s.Name != "" {
			sw.printf("><title>%s</title></path>\n", esc(s.Name))
		} else {
			sw.printf("/>\n")
		}
	}
	for _, lb := range l.Labels {
		sw.label(lb)
	}
	sw.printf("    </g>\n")
}

func (sw *svgWriter) label(lb Label) {
	x := formatFloat(lb.Anchor.X)
	sw.printf(`      <text class="%s" x="%s" y="%s" text-anchor="middle">`, esc(lb.Kind), x, formatFloat(lb.Anchor.Y))
	for i, line := range lb.Lines {
		dy := "0"
		if i > 0 {
			dy = "1.2em"
		}
		sw.printf(`<tspan x="%s" dy="%s">%s</tspan>`, x, dy, esc(line))
	}
	sw.printf("</text>\n")
}

func (sw *svgWriter) legend(lg *Legend) {
	sw.printf(`  <g class="legend" transform="translate(%s,%s)">`+"\n", formatFloat(lg.X), formatFloat(lg.Y))
	sw.printf("    <text x=\"0\" y=\"0\">%s</text>\n", esc(lg.Title))
	for i, e := range lg.Entries {
		y := float64((i + 1) * lineHeight)
		sw.printf(`    <rect x="0" y="%s" width="%d" height="%d" fill="%s"/>`+"\n",
			formatFloat(y-swatchSize+3), swatchSize, swatchSize, esc(e.Color))
		sw.printf(`    <text x="%d" y="%s">%s</text>`+"\n", swatchSize+6, formatFloat(y), esc(e.Label))
	}
	sw.printf("  </g>\n")
}

func esc(s string) string { return html.EscapeString(s) }
