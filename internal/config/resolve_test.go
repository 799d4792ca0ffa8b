package config

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		CurrentContext: "local",
		Contexts: []Context{
			{Name: "local", Server: "http://127.0.0.1:3000", Site: "demo"},
			{Name: "prod", Server: "ssh://deploy@stats.example.com", Token: "ctx-token", RemotePort: 3100},
		},
	}
}

func TestResolveUsesCurrentContext(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")

	target, err := Resolve(testConfig(), Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Context != "local" || target.Server != "http://127.0.0.1:3000" || target.Site != "demo" {
		t.Fatalf("unexpected target: %#v", target)
	}
}

func TestResolveExplicitContext(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")

	target, err := Resolve(testConfig(), Overrides{Context: "prod"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Token != "ctx-token" || target.RemotePort != 3100 {
		t.Fatalf("unexpected target: %#v", target)
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(EnvServer, "http://env.example.com")
	t.Setenv(EnvToken, "env-token")

	target, err := Resolve(testConfig(), Overrides{Context: "prod"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Server != "http://env.example.com" || target.Token != "env-token" {
		t.Fatalf("expected env to override context, got %#v", target)
	}

	target, err = Resolve(testConfig(), Overrides{Context: "prod", Server: "https://flag.example.com", Token: "flag-token"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Server != "https://flag.example.com" || target.Token != "flag-token" {
		t.Fatalf("expected flags to override env, got %#v", target)
	}
}

func TestResolveDefaultsWithoutConfig(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")

	target, err := Resolve(Config{}, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Server != DefaultServer || target.Context != "" {
		t.Fatalf("unexpected target: %#v", target)
	}
}

func TestResolveUnknownContext(t *testing.T) {
	_, err := Resolve(testConfig(), Overrides{Context: "staging"})
	if err == nil || !strings.Contains(err.Error(), "available contexts: local, prod") {
		t.Fatalf("expected available contexts in error, got %v", err)
	}

	_, err = Resolve(Config{}, Overrides{Context: "staging"})
	if err == nil || !strings.Contains(err.Error(), "config has no contexts") {
		t.Fatalf("expected empty-config hint, got %v", err)
	}
}

func TestResolveRejectsInvalidServerOverride(t *testing.T) {
	t.Setenv(EnvServer, "")
	if _, err := Resolve(Config{}, Overrides{Server: "localhost:3000"}); err == nil {
		t.Fatalf("expected invalid server error")
	}
}

func TestResolveExpandsTokenReference(t *testing.T) {
	t.Setenv(EnvServer, "")
	t.Setenv(EnvToken, "")
	t.Setenv("PROD_STATS_TOKEN", "from-env")

	cfg := testConfig()
	cfg.Contexts[1].Token = "${PROD_STATS_TOKEN}"
	target, err := Resolve(cfg, Overrides{Context: "prod"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if target.Token != "from-env" {
		t.Fatalf("Token = %q, want from-env", target.Token)
	}

	cfg.Contexts[1].Token = "$MISSING_STATS_TOKEN"
	if _, err := Resolve(cfg, Overrides{Context: "prod"}); err == nil || !strings.Contains(err.Error(), "MISSING_STATS_TOKEN") {
		t.Fatalf("expected unset variable error, got %v", err)
	}
	if _, err := Resolve(cfg, Overrides{Context: "prod", Token: "flag"}); err != nil {
		t.Fatalf("flag token should bypass the reference, got %v", err)
	}
}
