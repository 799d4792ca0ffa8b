package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/benedict2310/slimlytics/internal/client"
	"github.com/benedict2310/slimlytics/internal/config"
	"github.com/benedict2310/slimlytics/internal/transport"
)

// openTransport is swapped in tests.
var openTransport = func(ctx context.Context, server string, opts transport.Options) (transport.Transport, error) {
	return transport.Open(ctx, server, opts)
}

type commandRuntime struct {
	Config     config.Config
	ConfigPath string
	Target     config.Target
}

// app carries the global flags and the lazily built runtime for one
// invocation of the command tree.
type app struct {
	flags globalFlags
	rt    *commandRuntime
}

// runtime reads the config file and resolves the target without opening a
// transport.
func (a *app) runtime() (*commandRuntime, error) {
	if a.rt != nil {
		return a.rt, nil
	}
	cfg, path, err := config.Load(a.flags.configPath)
	if err != nil {
		return nil, err
	}
	target, err := config.Resolve(cfg, config.Overrides{
		Context: a.flags.contextName,
		Server:  a.flags.server,
		Token:   a.flags.token,
	})
	if err != nil {
		return nil, err
	}
	a.rt = &commandRuntime{Config: cfg, ConfigPath: path, Target: target}
	return a.rt, nil
}

// withAPI opens the transport for the resolved target, runs fn, and closes
// the transport whatever fn returns.
func (a *app) withAPI(ctx context.Context, fn func(rt *commandRuntime, api *client.APIClient) error) (err error) {
	rt, err := a.runtime()
	if err != nil {
		return err
	}
	tr, err := openTransport(ctx, rt.Target.Server, transport.Options{
		Timeout:        a.flags.timeout,
		RemotePort:     rt.Target.RemotePort,
		KnownHostsPath: a.flags.knownHostsPath,
		PrivateKeyPath: a.flags.sshKeyPath,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := tr.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(rt, client.NewWithAuth(tr, a.flags.actor, rt.Target.Token))
}

// siteArg takes the site id from args or, failing that, the context's site.
func siteArg(rt *commandRuntime, args []string) (string, error) {
	if len(args) > 0 {
		if id := strings.TrimSpace(args[0]); id != "" {
			return id, nil
		}
	}
	if rt.Target.Site != "" {
		return rt.Target.Site, nil
	}
	return "", fmt.Errorf("site id is required (pass it as an argument or run: slimctl context set <name> --site <id>)")
}
