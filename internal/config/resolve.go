package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

const DefaultServer = "http://127.0.0.1:3000"

// Overrides are values given on the command line. Empty fields fall through.
type Overrides struct {
	Context string
	Server  string
	Token   string
}

// Resolve merges flags, then SLIMLYTICS_SERVER / SLIMLYTICS_TOKEN, then the
// selected context, then DefaultServer. An explicitly named context must
// exist; current-context is only used when the file names one.
func Resolve(cfg Config, o Overrides) (Target, error) {
	var target Target

	name := strings.TrimSpace(o.Context)
	if name == "" {
		name = strings.TrimSpace(cfg.CurrentContext)
	}
	if name != "" {
		ctx, ok := cfg.Find(name)
		if !ok {
			if strings.TrimSpace(o.Context) != "" || len(cfg.Contexts) > 0 {
				return Target{}, contextNotFound(cfg, name)
			}
		} else {
			target = Target{
				Context:    strings.TrimSpace(ctx.Name),
				Server:     strings.TrimSpace(ctx.Server),
				Token:      strings.TrimSpace(ctx.Token),
				Site:       strings.TrimSpace(ctx.Site),
				RemotePort: ctx.RemotePort,
			}
		}
	}

	if v := firstNonEmpty(o.Server, os.Getenv(EnvServer)); v != "" {
		target.Server = v
	}
	if v := firstNonEmpty(o.Token, os.Getenv(EnvToken)); v != "" {
		target.Token = v
	} else {
		token, err := expandToken(target.Token)
		if err != nil {
			return Target{}, fmt.Errorf("context %q: %w", target.Context, err)
		}
		target.Token = token
	}
	if target.Server == "" {
		target.Server = DefaultServer
	}
	if err := validateServer(target.Server); err != nil {
		return Target{}, err
	}
	return target, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func contextNotFound(cfg Config, name string) error {
	names := make([]string, 0, len(cfg.Contexts))
	for _, ctx := range cfg.Contexts {
		if n := strings.TrimSpace(ctx.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("context %q not found: config has no contexts", name)
	}
	sort.Strings(names)
	return fmt.Errorf("context %q not found; available contexts: %s", name, strings.Join(names, ", "))
}

// expandToken resolves a token written as $VAR or ${VAR} from the
// environment so the file itself need not hold the secret. Literal tokens
// pass through.
func expandToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "$") {
		return raw, nil
	}
	name := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(raw, "$"), "{"), "}")
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("token references unset environment variable %s", name)
	}
	return strings.TrimSpace(value), nil
}
