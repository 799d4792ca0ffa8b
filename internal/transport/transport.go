package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Transport executes slimctl API requests against a slimlyticsd instance.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Close() error
}

// Options tunes Open. The SSH fields are ignored for http(s) servers.
type Options struct {
	Timeout time.Duration

	RemotePort      int
	KnownHostsPath  string
	PrivateKeyPath  string
	HostKeyCallback ssh.HostKeyCallback
	AuthMethods     []ssh.AuthMethod
}

// Open picks a transport from the server URL scheme. http and https talk to
// the daemon directly; ssh://user@host tunnels to the daemon's loopback
// listener on that host.
func Open(ctx context.Context, server string, opts Options) (Transport, error) {
	raw := strings.TrimSpace(server)
	if raw == "" {
		return nil, fmt.Errorf("server URL is required (pass --server or set SLIMLYTICS_SERVER)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse server URL %q: %w", raw, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPTransport(raw, opts.Timeout)
	case "ssh":
		cfg := SSHConfig{
			ServerURL:       raw,
			Timeout:         opts.Timeout,
			KnownHostsPath:  opts.KnownHostsPath,
			PrivateKeyPath:  opts.PrivateKeyPath,
			HostKeyCallback: opts.HostKeyCallback,
			AuthMethods:     opts.AuthMethods,
		}
		if opts.RemotePort != 0 {
			cfg.RemoteAddr = fmt.Sprintf("127.0.0.1:%d", opts.RemotePort)
		}
		return NewSSHTransport(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported server URL scheme %q (expected http, https, or ssh)", u.Scheme)
	}
}
