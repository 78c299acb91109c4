package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campex/campex"
)

func init() {
	rootCmd.AddCommand(newWhoamiCommand())
}

func newWhoamiCommand() *cobra.Command {
	var apiURL, bearerToken string

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resolve a token's role and permissions against the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = lookupEnv("CAMPEX_API_URL")
			}
			if apiURL == "" {
				return fmt.Errorf("missing API URL: set --api-url or CAMPEX_API_URL")
			}
			if bearerToken == "" {
				bearerToken = lookupEnv("CAMPEX_TOKEN")
			}
			if bearerToken == "" {
				return fmt.Errorf("missing token: set --token or CAMPEX_TOKEN")
			}

			client, err := campex.NewDefault(campex.Config{
				Runtime: campex.RuntimeConfig{
					API: campex.APIConfig{BaseURL: apiURL},
				},
			})
			if err != nil {
				return err
			}
			defer client.Close()

			principal, err := client.Resolve(cmd.Context(), bearerToken)
			if err != nil {
				return err
			}

			cmd.Printf("role:        %s\n", principal.Role)
			cmd.Printf("source:      %s\n", principal.Source)
			cmd.Printf("permissions: %s\n", strings.Join(principal.Permissions, ", "))
			if principal.Subject != "" {
				cmd.Printf("subject:     %s\n", principal.Subject)
			}
			return nil
		},
	}

	whoamiCmd.Flags().StringVar(&apiURL, "api-url", "", "Base URL of the exchange backend. Can also be set via CAMPEX_API_URL.")
	whoamiCmd.Flags().StringVar(&bearerToken, "token", "", "Bearer token to resolve. Can also be set via CAMPEX_TOKEN.")

	return whoamiCmd
}
