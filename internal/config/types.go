package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	EnvConfigPath = "SLIMCTL_CONFIG"
	EnvServer     = "SLIMLYTICS_SERVER"
	EnvToken      = "SLIMLYTICS_TOKEN"
)

// Config is the slimctl configuration file.
type Config struct {
	CurrentContext string    `yaml:"current-context"`
	Contexts       []Context `yaml:"contexts"`
}

// Context is one named slimlyticsd target.
type Context struct {
	Name   string `yaml:"name"`
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
	// Site is used by stats commands when no site argument is given.
	Site string `yaml:"site,omitempty"`
	// RemotePort is the daemon port on the far side of an ssh:// server.
	RemotePort int `yaml:"remotePort,omitempty"`
}

// Target is what a command connects to after flags, environment, and the
// selected context have been merged.
type Target struct {
	Context    string
	Server     string
	Token      string
	Site       string
	RemotePort int
}

func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Contexts))
	for i, ctx := range c.Contexts {
		name := strings.TrimSpace(ctx.Name)
		if name == "" {
			return fmt.Errorf("contexts[%d].name is required", i)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("duplicate context name %q", name)
		}
		seen[name] = struct{}{}

		if err := validateServer(ctx.Server); err != nil {
			return fmt.Errorf("context %q: %w", name, err)
		}
		if ctx.RemotePort < 0 || ctx.RemotePort > 65535 {
			return fmt.Errorf("context %q: remotePort must be in range 1..65535 (or 0 to use default)", name)
		}
	}
	return nil
}

func validateServer(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("server is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse server %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ssh":
	default:
		return fmt.Errorf("server %q must use http, https, or ssh", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("server %q must include host", raw)
	}
	return nil
}

// Upsert replaces the context with the same name or appends ctx.
func (c *Config) Upsert(ctx Context) {
	ctx.Name = strings.TrimSpace(ctx.Name)
	for i := range c.Contexts {
		if strings.TrimSpace(c.Contexts[i].Name) == ctx.Name {
			c.Contexts[i] = ctx
			return
		}
	}
	c.Contexts = append(c.Contexts, ctx)
}

// Find returns the context named name.
func (c Config) Find(name string) (Context, bool) {
	name = strings.TrimSpace(name)
	for _, ctx := range c.Contexts {
		if strings.TrimSpace(ctx.Name) == name {
			return ctx, true
		}
	}
	return Context{}, false
}
