package cli

import (
	"fmt"
	"strings"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/spf13/cobra"
)

var clearRanges = []string{"today", "7days", "30days", "all"}

func newClearCmd(a *app) *cobra.Command {
	var rangeName string
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear [site-id]",
		Short: "Delete collected events and sessions for a site",
		Long: `Delete collected events and sessions for a site.

--range selects today, 7days, 30days or all. The site itself is kept.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rangeName = strings.TrimSpace(rangeName)
			if !validClearRange(rangeName) {
				return fmt.Errorf("invalid --range %q (want one of %s)", rangeName, strings.Join(clearRanges, ", "))
			}
			if rangeName == "all" && !yes {
				return fmt.Errorf("clearing all data requires --yes")
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				site, err := siteArg(rt, args)
				if err != nil {
					return err
				}
				resp, err := api.ClearData(cmd.Context(), site, rangeName)
				if err != nil {
					return err
				}
				msg := resp.Message
				if msg == "" {
					msg = fmt.Sprintf("Deleted %d events", resp.Deleted)
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rangeName, "range", "all", "Range to clear (today|7days|30days|all)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing all data")
	return cmd
}

func validClearRange(v string) bool {
	for _, r := range clearRanges {
		if v == r {
			return true
		}
	}
	return false
}
