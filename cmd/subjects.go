package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/notesorter/internal/config"
	"github.com/spf13/cobra"
)

func newSubjectsCmd() *cobra.Command {
	var taxonomyFile string

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List the subjects notes are classified into",
		Example: `  notesorter subjects
  notesorter subjects --taxonomy extra-subjects.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Load().TaxonomyFile
			if cmd.Flags().Changed("taxonomy") {
				path = taxonomyFile
			}
			subjects, err := loadTaxonomy(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, s := range subjects.Subjects() {
				fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&taxonomyFile, "taxonomy", "", "YAML file with additional subjects")

	return cmd
}
