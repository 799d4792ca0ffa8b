package cli

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benedict2310/slimlytics/internal/config"
)

func TestContextSetCreatesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slimctl.yaml")
	out, _, err := runCommandWithConfig(t, path, []string{"context", "set", "local", "--server", "http://127.0.0.1:3000", "--site", "abc"}, &scriptedTransport{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out) != `Created context "local"` {
		t.Fatalf("unexpected output %q", out)
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.CurrentContext != "local" {
		t.Fatalf("current-context = %q, want local", cfg.CurrentContext)
	}
	ctx, ok := cfg.Find("local")
	if !ok || ctx.Site != "abc" || ctx.Server != "http://127.0.0.1:3000" {
		t.Fatalf("unexpected context %#v", ctx)
	}
}

func TestContextSetUpdatesExisting(t *testing.T) {
	path := writeTestConfigFile(t, testConfigYAML)
	out, _, err := runCommandWithConfig(t, path, []string{"context", "set", "tunnel", "--remote-port", "4000"}, &scriptedTransport{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out) != `Updated context "tunnel"` {
		t.Fatalf("unexpected output %q", out)
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	ctx, _ := cfg.Find("tunnel")
	if ctx.RemotePort != 4000 || ctx.Token != "tunnel-token" {
		t.Fatalf("unexpected context %#v", ctx)
	}
	if cfg.CurrentContext != "prod" {
		t.Fatalf("current-context changed to %q", cfg.CurrentContext)
	}
}

func TestContextSetValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no fields", args: []string{"context", "set", "prod"}, want: "at least one context field"},
		{name: "new without server", args: []string{"context", "set", "fresh", "--site", "x"}, want: "requires --server"},
		{name: "bad scheme", args: []string{"context", "set", "prod", "--server", "ftp://host"}, want: "must use http, https, or ssh"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCommand(t, tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestContextUseAndCurrent(t *testing.T) {
	path := writeTestConfigFile(t, testConfigYAML)
	if _, _, err := runCommandWithConfig(t, path, []string{"context", "use", "tunnel"}, &scriptedTransport{}); err != nil {
		t.Fatalf("use error = %v", err)
	}
	out, _, err := runCommandWithConfig(t, path, []string{"context", "current"}, &scriptedTransport{})
	if err != nil {
		t.Fatalf("current error = %v", err)
	}
	if !strings.Contains(out, "tunnel") || !strings.Contains(out, "ssh://root@vps.example.com") {
		t.Fatalf("unexpected current output %q", out)
	}
	if strings.Contains(out, "tunnel-token") {
		t.Fatalf("current output leaked token: %q", out)
	}
}

func TestContextUseUnknown(t *testing.T) {
	_, _, err := runCommand(t, []string{"context", "use", "nope"})
	if err == nil || !strings.Contains(err.Error(), `context "nope" not found`) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestContextListMarksCurrent(t *testing.T) {
	out, _, err := runCommand(t, []string{"context", "list"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var prodLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "prod") {
			prodLine = line
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(prodLine), "*") {
		t.Fatalf("expected prod to be marked current, got %q", out)
	}
	if !strings.Contains(out, "3300") {
		t.Fatalf("expected remote port in output %q", out)
	}
}

func TestSSHContextPassesRemotePort(t *testing.T) {
	tr := &scriptedTransport{}
	_, _, err := runCommandWithTransport(t, []string{"--context", "tunnel", "realtime", "s1"}, tr)
	if err == nil {
		t.Fatalf("expected error from unscripted transport")
	}
	if tr.server != "ssh://root@vps.example.com" || tr.opts.RemotePort != 3300 {
		t.Fatalf("transport opened with server=%q opts=%+v", tr.server, tr.opts)
	}
}

func TestContextTokenGenerate(t *testing.T) {
	out, _, err := runCommand(t, []string{"context", "token", "generate"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	token := strings.TrimSpace(out)
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}
}

func TestServerFlagOverridesContext(t *testing.T) {
	tr := &scriptedTransport{}
	_, _, _ = runCommandWithTransport(t, []string{"--server", "http://10.0.0.5:3000", "--token", "flag", "health"}, tr)
	if tr.server != "http://10.0.0.5:3000" {
		t.Fatalf("server = %q, want flag value", tr.server)
	}
	if len(tr.requests) != 1 || tr.requests[0].Headers.Get("Authorization") != "Bearer flag" {
		t.Fatalf("unexpected requests %#v", tr.requests)
	}
}
