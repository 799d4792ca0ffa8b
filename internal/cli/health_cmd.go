package cli

import (
	"fmt"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				resp, err := api.Health(cmd.Context())
				if err != nil {
					return err
				}
				if resp.Status != "ok" {
					return exitCodeError(exitUnhealthy, fmt.Errorf("server %s reported status %q", rt.Target.Server, resp.Status))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ok (%s)\n", rt.Target.Server, resp.Timestamp)
				return nil
			})
		},
	}
}
