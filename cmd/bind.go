package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/costmap/internal/match"
)

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Report how the boundary features bind to the dataset",
	Long:  "Loads the dataset and the boundary, binds every feature by canonical key and then by name, and prints the counts and every unmatched feature and record.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("map"); err != nil {
			return err
		}
		in, err := loadInputs(ctx, cfg)
		if err != nil {
			return err
		}
		defer in.Close()

		report := match.New(in.Dataset).Bind(in.Features).Report()

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(report)
		return nil
	},
}

func printReport(r match.Report) {
	fmt.Printf("features: %d  records: %d\n", r.Features, r.Records)
	fmt.Printf("bound by key: %d  by name: %d\n", r.ByKey, r.ByName)
	if len(r.UnmatchedFeatures) > 0 {
		fmt.Printf("\nunmatched features (%d):\n", len(r.UnmatchedFeatures))
		for _, f := range r.UnmatchedFeatures {
			fmt.Printf("  %s\n", f)
		}
	}
	if len(r.UnmatchedRecords) > 0 {
		fmt.Printf("\nrecords without geometry (%d):\n", len(r.UnmatchedRecords))
		for _, rec := range r.UnmatchedRecords {
			fmt.Printf("  %s\n", rec)
		}
	}
}

func init() {
	bindCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(bindCmd)
}
