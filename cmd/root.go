package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "notesorter",
		Short: "Sort handwritten note images into subject folders on Google Drive",
		Long: `Notesorter reads handwritten notes from images with Tesseract OCR,
assigns each one a subject with zero-shot classification, and uploads it to
Google Drive under OrganizedNotes/<subject>/.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newOrganizeCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newSubjectsCmd())
	cmd.AddCommand(newReportCmd())

	return cmd
}
