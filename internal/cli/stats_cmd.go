package cli

import (
	"fmt"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/benedict2310/slimlytics/internal/output"
	"github.com/spf13/cobra"
)

func addWindowFlags(cmd *cobra.Command, w *client.Window) {
	cmd.Flags().StringVar(&w.Start, "start", "", "Window start, RFC3339 or YYYY-MM-DD (default 30 days ago)")
	cmd.Flags().StringVar(&w.End, "end", "", "Window end, RFC3339 or YYYY-MM-DD (default now)")
}

func newStatsCmd(a *app) *cobra.Command {
	var window client.Window
	var outputMode string
	cmd := &cobra.Command{
		Use:   "stats [site-id]",
		Short: "Show the dashboard snapshot for a site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				site, err := siteArg(rt, args)
				if err != nil {
					return err
				}
				snap, err := api.GetStats(cmd.Context(), site, window)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, snap)
				}
				return writeSnapshot(cmd, snap)
			})
		},
	}
	addWindowFlags(cmd, &window)
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func writeSnapshot(cmd *cobra.Command, snap client.Snapshot) error {
	w := cmd.OutOrStdout()
	if err := output.WriteKeyValues(w, [][2]string{
		{"visitors", output.Int(snap.Visitors) + " (" + output.Trend(snap.VisitorsTrend) + ")"},
		{"page_views", output.Int(snap.PageViews) + " (" + output.Trend(snap.PageViewsTrend) + ")"},
		{"bounce_rate", output.Percent(snap.BounceRate)},
		{"avg_session", output.Seconds(snap.AvgSessionDuration)},
		{"realtime", output.Int(snap.RealtimeVisitors)},
	}); err != nil {
		return err
	}

	if len(snap.TopPages) > 0 {
		rows := make([][]string, 0, len(snap.TopPages))
		for _, p := range snap.TopPages {
			rows = append(rows, []string{output.Truncate(p.URL, 60), output.Int(p.Views)})
		}
		fmt.Fprintln(w)
		if err := output.WriteTable(w, []string{"PAGE", "VIEWS"}, rows); err != nil {
			return err
		}
	}
	if len(snap.TrafficSources) > 0 {
		rows := make([][]string, 0, len(snap.TrafficSources))
		for _, s := range snap.TrafficSources {
			rows = append(rows, []string{s.Source, output.Int(s.Count), output.Percent(s.Percentage)})
		}
		fmt.Fprintln(w)
		if err := output.WriteTable(w, []string{"SOURCE", "SESSIONS", "SHARE"}, rows); err != nil {
			return err
		}
	}
	if len(snap.TopCountries) > 0 {
		rows := make([][]string, 0, len(snap.TopCountries))
		for _, c := range snap.TopCountries {
			rows = append(rows, []string{c.Country, c.CountryCode, output.Int(c.Count)})
		}
		fmt.Fprintln(w)
		if err := output.WriteTable(w, []string{"COUNTRY", "CODE", "SESSIONS"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func newTimeSeriesCmd(a *app) *cobra.Command {
	var window client.Window
	var days int
	var outputMode string
	cmd := &cobra.Command{
		Use:   "timeseries [site-id]",
		Short: "Show daily visitors and page views",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				site, err := siteArg(rt, args)
				if err != nil {
					return err
				}
				series, err := api.GetTimeSeries(cmd.Context(), site, window, days)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, series)
				}
				rows := make([][]string, 0, len(series.Dates))
				for i, date := range series.Dates {
					rows = append(rows, []string{date, output.Int(series.Visitors[i]), output.Int(series.PageViews[i])})
				}
				return output.WriteTable(cmd.OutOrStdout(), []string{"DATE", "VISITORS", "PAGE_VIEWS"}, rows)
			})
		},
	}
	addWindowFlags(cmd, &window)
	cmd.Flags().IntVar(&days, "days", 0, "Last N days ending today (ignored when --start is set)")
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newRealtimeCmd(a *app) *cobra.Command {
	var outputMode string
	cmd := &cobra.Command{
		Use:   "realtime [site-id]",
		Short: "Count visitors active in the last five minutes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				site, err := siteArg(rt, args)
				if err != nil {
					return err
				}
				resp, err := api.GetRealtime(cmd.Context(), site)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Visitors)
				return nil
			})
		},
	}
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newVisitorsCmd(a *app) *cobra.Command {
	var window client.Window
	var limit int
	var outputMode string
	cmd := &cobra.Command{
		Use:   "visitors [site-id]",
		Short: "List the most recent visits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				site, err := siteArg(rt, args)
				if err != nil {
					return err
				}
				resp, err := api.GetRecentVisitors(cmd.Context(), site, window, limit)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, resp)
				}
				if len(resp.Visitors) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recent visitors.")
					return nil
				}
				rows := make([][]string, 0, len(resp.Visitors))
				for _, v := range resp.Visitors {
					rows = append(rows, []string{
						v.Timestamp,
						output.Truncate(v.PageURL, 48),
						output.OrNone(v.Country),
						output.OrNone(v.City),
						v.EventType,
					})
				}
				return output.WriteTable(cmd.OutOrStdout(), []string{"TIMESTAMP", "PAGE", "COUNTRY", "CITY", "EVENT"}, rows)
			})
		},
	}
	addWindowFlags(cmd, &window)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of visits (server caps at 100)")
	addOutputFlag(cmd, &outputMode)
	return cmd
}

func newSearchQueriesCmd(a *app) *cobra.Command {
	var window client.Window
	var limit int
	var outputMode string
	cmd := &cobra.Command{
		Use:   "search-queries [site-id]",
		Short: "List search terms recovered from referrers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputMode)
			if err != nil {
				return err
			}
			return a.withAPI(cmd.Context(), func(rt *commandRuntime, api *client.APIClient) error {
				site, err := siteArg(rt, args)
				if err != nil {
					return err
				}
				resp, err := api.GetSearchQueries(cmd.Context(), site, window, limit)
				if err != nil {
					return err
				}
				if format != output.FormatTable {
					return output.WriteStructured(cmd.OutOrStdout(), format, resp)
				}
				if len(resp.Queries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No search queries found.")
					return nil
				}
				rows := make([][]string, 0, len(resp.Queries))
				for _, q := range resp.Queries {
					rows = append(rows, []string{q.Query, output.Int(q.Count)})
				}
				return output.WriteTable(cmd.OutOrStdout(), []string{"QUERY", "COUNT"}, rows)
			})
		},
	}
	addWindowFlags(cmd, &window)
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of queries")
	addOutputFlag(cmd, &outputMode)
	return cmd
}
