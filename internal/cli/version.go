package cli

import (
	"fmt"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app, version string) *cobra.Command {
	if version == "" {
		version = "dev"
	}
	var remote bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print slimctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !remote {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				resp, err := api.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "client: %s\nserver: %s\n", version, resp.Version)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Also print the version reported by the server")
	return cmd
}
