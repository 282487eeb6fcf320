package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/notesorter/internal/config"
	"github.com/lehigh-university-libraries/notesorter/internal/drive"
	"github.com/lehigh-university-libraries/notesorter/internal/resilience"
	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	var credentials string
	var tokenFile string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Drive and test the connection",
		Long: `Runs the OAuth consent flow for the Google Drive API and stores the resulting
token so later runs do not need a browser.

Create an OAuth 2.0 Client ID of type "Desktop app" in the Google Cloud Console,
enable the Google Drive API, and save the downloaded JSON as credentials.json.`,
		Example: `  notesorter auth
  notesorter auth --credentials ~/secrets/notes-client.json --token ~/.config/notesorter/token.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("credentials") {
				cfg.CredentialsFile = credentials
			}
			if cmd.Flags().Changed("token") {
				cfg.TokenFile = tokenFile
			}
			out := cmd.OutOrStdout()

			if _, err := drive.LoadConfig(cfg.CredentialsFile); err != nil {
				return err
			}
			fmt.Fprintf(out, "Found %s\n", cfg.CredentialsFile)

			client, err := newDriveClient(cmd.Context(), cfg, resilience.NewGuard(cfg.Breaker()))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Authentication successful, token stored in %s\n", cfg.TokenFile)

			fmt.Fprintln(out, "Testing connection...")
			files, err := client.ListFolder(cmd.Context(), drive.RootFolder)
			if err != nil {
				fmt.Fprintf(out, "Connection test failed: %v\n", err)
				fmt.Fprintln(out, "This can be normal if the account cannot list files in My Drive.")
				return nil
			}
			fmt.Fprintf(out, "Connection test successful, found %d items in your Drive root.\n", len(files))
			return nil
		},
	}

	cmd.Flags().StringVar(&credentials, "credentials", "credentials.json", "Google OAuth client credentials file")
	cmd.Flags().StringVar(&tokenFile, "token", drive.DefaultTokenFile, "Where to store the access token")

	return cmd
}
