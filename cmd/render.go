package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/choropleth"
	"github.com/sells-group/costmap/internal/geoid"
	"github.com/sells-group/costmap/internal/region"
	"github.com/sells-group/costmap/internal/render"
)

// mobileWidth is the phone viewport used by --mobile when no width is given.
const mobileWidth, mobileHeight = 375, 600

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one frame of the map as SVG",
	Long: `Draws the map for an indicator and optional selected and hovered regions
and writes it as SVG (or the scene display list as JSON).

Regions are named by record id, display name or FIPS code.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		indicator, _ := cmd.Flags().GetString("indicator")
		mode, _ := cmd.Flags().GetString("mode")
		sel, err := parseSector(cfg, indicator, mode)
		if err != nil {
			return err
		}
		if err := cfg.Validate("map"); err != nil {
			return err
		}

		in, err := loadInputs(ctx, cfg)
		if err != nil {
			return err
		}
		defer in.Close()

		width, _ := cmd.Flags().GetFloat64("width")
		height, _ := cmd.Flags().GetFloat64("height")
		if mobile, _ := cmd.Flags().GetBool("mobile"); mobile {
			if width <= 0 {
				width = mobileWidth
			}
			if height <= 0 {
				height = mobileHeight
			}
		}

		frame := choropleth.Frame{Viewport: viewport(cfg, width, height), Selection: sel}
		selected, _ := cmd.Flags().GetString("selected")
		if frame.Selected, err = findRecord(in.Dataset, selected); err != nil {
			return err
		}
		hovered, _ := cmd.Flags().GetString("hover")
		if frame.Hovered, err = findRecord(in.Dataset, hovered); err != nil {
			return err
		}

		scene := choropleth.NewEngine(in.Dataset, in.Features, mapOptions(cfg)).Scene(frame)

		var w io.Writer = os.Stdout
		out, _ := cmd.Flags().GetString("out")
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "render: create %s", out)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return eris.Wrap(json.NewEncoder(w).Encode(scene), "render: encode scene")
		}
		if err := render.WriteSVG(w, scene); err != nil {
			return eris.Wrap(err, "render: write svg")
		}
		if out != "" {
			zap.L().Info("wrote map", zap.String("path", out), zap.String("title", scene.Title))
		}
		return nil
	},
}

// findRecord resolves a region by record id, display name (case-insensitive)
// or FIPS code. An empty name resolves to nil.
func findRecord(ds *region.Dataset, name string) (*region.Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if rec, ok := ds.ByID(name); ok {
		return rec, nil
	}
	key := geoid.Normalize(name)
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		if strings.EqualFold(rec.Name, name) || (key != "" && rec.Key() == key) {
			return rec, nil
		}
	}
	return nil, eris.Errorf("render: no region %q in the dataset", name)
}

func init() {
	renderCmd.Flags().String("indicator", "", "indicator (default: map.indicator)")
	renderCmd.Flags().String("mode", "", "perCapita or total (default: map.mode)")
	renderCmd.Flags().String("selected", "", "selected region")
	renderCmd.Flags().String("hover", "", "hovered region")
	renderCmd.Flags().Bool("mobile", false, "use the phone layout")
	renderCmd.Flags().Float64("width", 0, "viewport width in pixels (default: map.width)")
	renderCmd.Flags().Float64("height", 0, "viewport height in pixels (default: map.height)")
	renderCmd.Flags().String("out", "", "output file (default: stdout)")
	renderCmd.Flags().Bool("json", false, "write the scene as JSON instead of SVG")
	rootCmd.AddCommand(renderCmd)
}
