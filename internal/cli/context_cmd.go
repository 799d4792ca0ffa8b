package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/benedict2310/slimlytics/internal/config"
	"github.com/benedict2310/slimlytics/internal/output"
	"github.com/spf13/cobra"
)

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage saved server contexts",
	}

	cmd.AddCommand(newContextSetCmd(a))
	cmd.AddCommand(newContextUseCmd(a))
	cmd.AddCommand(newContextListCmd(a))
	cmd.AddCommand(newContextCurrentCmd(a))
	cmd.AddCommand(newContextTokenCmd())
	return cmd
}

func newContextSetCmd(a *app) *cobra.Command {
	var server string
	var token string
	var site string
	var remotePort int

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.Load(a.flags.configPath)
			if err != nil {
				return err
			}

			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("context name is required")
			}
			ctx, exists := cfg.Find(name)
			ctx.Name = name

			changed := false
			if cmd.Flags().Changed("server") {
				ctx.Server = strings.TrimSpace(server)
				changed = true
			}
			if cmd.Flags().Changed("token") {
				ctx.Token = strings.TrimSpace(token)
				changed = true
			}
			if cmd.Flags().Changed("site") {
				ctx.Site = strings.TrimSpace(site)
				changed = true
			}
			if cmd.Flags().Changed("remote-port") {
				ctx.RemotePort = remotePort
				changed = true
			}
			if !changed {
				return fmt.Errorf("at least one context field must be set")
			}
			if !exists && ctx.Server == "" {
				return fmt.Errorf("new context %q requires --server", name)
			}

			cfg.Upsert(ctx)
			if cfg.CurrentContext == "" {
				cfg.CurrentContext = name
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated context %q\n", name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Created context %q\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Server URL (http(s)://host:port or ssh://user@host)")
	cmd.Flags().StringVar(&token, "token", "", "API bearer token, or ${VAR} to read it from the environment at use time")
	cmd.Flags().StringVar(&site, "site", "", "Default site id for stats commands")
	cmd.Flags().IntVar(&remotePort, "remote-port", 0, "slimlyticsd port on the ssh host (0 uses 3000)")
	return cmd
}

func newContextUseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.Load(a.flags.configPath)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if _, ok := cfg.Find(name); !ok {
				return fmt.Errorf("context %q not found", name)
			}
			cfg.CurrentContext = name
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", name)
			return nil
		},
	}
}

func newContextListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List contexts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(a.flags.configPath)
			if err != nil {
				return err
			}
			if len(cfg.Contexts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No contexts configured.")
				return nil
			}
			rows := make([][]string, 0, len(cfg.Contexts))
			for _, c := range cfg.Contexts {
				current := ""
				if c.Name == cfg.CurrentContext {
					current = "*"
				}
				port := "-"
				if c.RemotePort > 0 {
					port = strconv.Itoa(c.RemotePort)
				}
				site := c.Site
				if site == "" {
					site = "-"
				}
				rows = append(rows, []string{current, c.Name, c.Server, site, port})
			}
			return output.WriteTable(cmd.OutOrStdout(), []string{"CURRENT", "NAME", "SERVER", "SITE", "REMOTE_PORT"}, rows)
		},
	}
}

func newContextCurrentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the resolved target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			name := rt.Target.Context
			if name == "" {
				name = "(none)"
			}
			site := rt.Target.Site
			if site == "" {
				site = "(none)"
			}
			token := "(none)"
			if rt.Target.Token != "" {
				token = "(set)"
			}
			return output.WriteKeyValues(cmd.OutOrStdout(), [][2]string{
				{"context", name},
				{"server", rt.Target.Server},
				{"site", site},
				{"token", token},
				{"config", rt.ConfigPath},
			})
		},
	}
}

func newContextTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Context token utilities",
	}
	cmd.AddCommand(newContextTokenGenerateCmd())
	return cmd
}

func newContextTokenGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a random API token (set it as SLIMLYTICS_API_TOKEN on the server and with: slimctl context set <name> --token <value>)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := generateTokenHex(32)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func generateTokenHex(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be greater than zero")
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
