package cli

import (
	"fmt"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/benedict2310/slimlytics/internal/output"
	"github.com/spf13/cobra"
)

func addOutputFlag(cmd *cobra.Command, mode *string) {
	cmd.Flags().StringVarP(mode, "output", "o", "table", "Output format (table|json|yaml)")
}

func newSitesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sites",
		Aliases: []string{"site"},
		Short:   "Manage tracked sites",
	}
	cmd.AddCommand(newSitesListCmd(a))
	cmd.AddCommand(newSitesGetCmd(a))
	cmd.AddCommand(newSitesAddCmd(a))
	cmd.AddCommand(newSitesUpdateCmd(a))
	cmd.AddCommand(newSitesRemoveCmd(a))
	return cmd
}

func newSitesListCmd(a *app) *cobra.Command {
	var outputMode string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sites",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(_ *commandRuntime, api *client.APIClient) error {
				resp, err := api.ListSites(cmd.Context())
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, resp)
				}
				if len(resp.Sites) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sites found.")
					return nil
				}
				return writeSites(cmd, resp.Sites...)
			})
		},
	}
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newSitesGetCmd(a *app) *cobra.Command {
	var outputMode string
	cmd := &cobra.Command{
		Use:   "get <site-id>",
		Short: "Show one site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(_ *commandRuntime, api *client.APIClient) error {
				site, err := api.GetSite(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, site)
				}
				return writeSites(cmd, site)
			})
		},
	}
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newSitesAddCmd(a *app) *cobra.Command {
	var outputMode string
	cmd := &cobra.Command{
		Use:   "add <name> <domain>",
		Short: "Register a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(_ *commandRuntime, api *client.APIClient) error {
				site, err := api.CreateSite(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, site)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created site %s (%s)\n", site.ID, site.Domain)
				return nil
			})
		},
	}
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newSitesUpdateCmd(a *app) *cobra.Command {
	var name, domain, outputMode string
	cmd := &cobra.Command{
		Use:   "update <site-id>",
		Short: "Rename a site or change its domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			var req client.SiteRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("domain") {
				req.Domain = &domain
			}
			if req.Name == nil && req.Domain == nil {
				return fmt.Errorf("at least one of --name or --domain must be set")
			}
			return a.withAPI(cmd.Context(), func(_ *commandRuntime, api *client.APIClient) error {
				site, err := api.UpdateSite(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, site)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated site %s\n", site.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&domain, "domain", "", "New domain")
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newSitesRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <site-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a site and all of its data",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAPI(cmd.Context(), func(_ *commandRuntime, api *client.APIClient) error {
				if err := api.DeleteSite(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted site %s\n", args[0])
				return nil
			})
		},
	}
}

func writeSites(cmd *cobra.Command, sites ...client.Site) error {
	rows := make([][]string, 0, len(sites))
	for _, s := range sites {
		rows = append(rows, []string{s.ID, s.Name, s.Domain, s.CreatedAt})
	}
	return output.WriteTable(cmd.OutOrStdout(), []string{"ID", "NAME", "DOMAIN", "CREATED_AT"}, rows)
}
