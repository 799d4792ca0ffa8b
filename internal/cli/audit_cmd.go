package cli

import (
	"fmt"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/benedict2310/slimlytics/internal/output"
	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	var query client.AuditQuery
	var outputMode string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the server's audit log of administrative operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			if query.Limit < 0 || query.Offset < 0 {
				return fmt.Errorf("--limit and --offset must not be negative")
			}
			return a.withAPI(cmd.Context(), func(_ *commandRuntime, api *client.APIClient) error {
				resp, err := api.GetAuditLog(cmd.Context(), query)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, resp)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, e := range resp.Entries {
					rows = append(rows, []string{e.Timestamp, e.Actor, e.Operation, output.OrNone(e.SiteID), output.Truncate(e.Summary, 60)})
				}
				if err := output.WriteTable(cmd.OutOrStdout(), []string{"TIMESTAMP", "ACTOR", "OPERATION", "SITE", "SUMMARY"}, rows); err != nil {
					return err
				}
				if shown := resp.Offset + len(resp.Entries); shown < resp.Total {
					fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d-%d of %d (use --offset %d for more)\n", resp.Offset+1, shown, resp.Total, shown)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query.Site, "site", "", "Only entries for this site id")
	cmd.Flags().StringVar(&query.Operation, "operation", "", "Only entries with this operation (e.g. site.create, data.clear)")
	cmd.Flags().IntVar(&query.Limit, "limit", 50, "Maximum number of entries")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "Entries to skip")
	addOutputFlag(cmd, &outputMode)
	return cmd
}
