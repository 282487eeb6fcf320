package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/notesorter/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var resultsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a saved run report",
		Long: `Loads a report written by "organize --report" and prints it.

YAML and JSON reports carry the run configuration and upload manifest;
Parquet reports carry the per-image results only.`,
		Example: `  notesorter report --results run.yaml
  notesorter report --results run.parquet --format csv > run.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.Load(resultsPath)
			if err != nil {
				return fmt.Errorf("failed to load results: %w", err)
			}
			return report.Write(cmd.OutOrStdout(), r, format)
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Path to a run report")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, csv")
	_ = cmd.MarkFlagRequired("results")

	return cmd
}
