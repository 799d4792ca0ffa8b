package cli

import (
	"time"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath     string
	contextName    string
	server         string
	token          string
	actor          string
	timeout        time.Duration
	sshKeyPath     string
	knownHostsPath string
}

// NewRootCmd builds the slimctl command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "slimctl",
		Short:         "Operate a slimlytics analytics server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Path to slimctl config (default ~/.slimlytics/slimctl.yaml, env SLIMCTL_CONFIG)")
	pf.StringVar(&a.flags.contextName, "context", "", "Context to use instead of current-context")
	pf.StringVar(&a.flags.server, "server", "", "Server URL, http(s)://host:port or ssh://user@host (env SLIMLYTICS_SERVER)")
	pf.StringVar(&a.flags.token, "token", "", "API bearer token (env SLIMLYTICS_TOKEN)")
	pf.StringVar(&a.flags.actor, "actor", "", "Actor recorded in the audit log (default $USER)")
	pf.DurationVar(&a.flags.timeout, "timeout", 30*time.Second, "Request timeout")
	pf.StringVar(&a.flags.sshKeyPath, "ssh-key", "", "Private key for ssh:// servers (env SLIMCTL_SSH_KEY_PATH)")
	pf.StringVar(&a.flags.knownHostsPath, "known-hosts", "", "known_hosts file for ssh:// servers (env SLIMCTL_SSH_KNOWN_HOSTS)")

	cmd.AddCommand(newSitesCmd(a))
	cmd.AddCommand(newStatsCmd(a))
	cmd.AddCommand(newTimeSeriesCmd(a))
	cmd.AddCommand(newRealtimeCmd(a))
	cmd.AddCommand(newVisitorsCmd(a))
	cmd.AddCommand(newSearchQueriesCmd(a))
	cmd.AddCommand(newClearCmd(a))
	cmd.AddCommand(newAuditCmd(a))
	cmd.AddCommand(newHealthCmd(a))
	cmd.AddCommand(newContextCmd(a))
	cmd.AddCommand(newVersionCmd(a, version))

	return cmd
}
