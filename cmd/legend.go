package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/costmap/internal/choropleth"
)

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Print the color legend of an indicator",
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

		e := choropleth.NewEngine(in.Dataset, in.Features, mapOptions(cfg))
		scene := e.Scene(choropleth.Frame{Viewport: viewport(cfg, 0, 0), Selection: sel})
		if scene.Legend == nil {
			fmt.Println("no legend")
			return nil
		}
		fmt.Println(scene.Legend.Title)
		for _, entry := range scene.Legend.Entries {
			fmt.Printf("  %s  %s\n", entry.Color, entry.Label)
		}
		return nil
	},
}

func init() {
	legendCmd.Flags().String("indicator", "", "indicator (default: map.indicator)")
	legendCmd.Flags().String("mode", "", "perCapita or total (default: map.mode)")
	rootCmd.AddCommand(legendCmd)
}
