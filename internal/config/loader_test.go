package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slimctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadFromPathValidConfig(t *testing.T) {
	path := writeConfigFile(t, `current-context: local
contexts:
  - name: local
    server: http://127.0.0.1:3000
    site: demo
  - name: prod
    server: ssh://deploy@stats.example.com
    token: s3cret
    remotePort: 3100
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.CurrentContext != "local" || len(cfg.Contexts) != 2 {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	prod, ok := cfg.Find("prod")
	if !ok || prod.Token != "s3cret" || prod.RemotePort != 3100 {
		t.Fatalf("unexpected prod context: %#v", prod)
	}
}

func TestLoadMissingFileYieldsEmptyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cfg, gotPath, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if gotPath != path || len(cfg.Contexts) != 0 {
		t.Fatalf("expected empty config at %s, got %#v at %s", path, cfg, gotPath)
	}

	if _, err := LoadFromPath(path); err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected LoadFromPath to report missing file, got %v", err)
	}
}

func TestLoadUsesEnvPath(t *testing.T) {
	path := writeConfigFile(t, "current-context: \"\"\ncontexts: []\n")
	t.Setenv(EnvConfigPath, path)
	_, gotPath, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if gotPath != path {
		t.Fatalf("expected env path %s, got %s", path, gotPath)
	}
}

func TestLoadFromPathMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "current-context: [")
	if _, err := LoadFromPath(path); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidateRejectsBadContexts(t *testing.T) {
	tests := map[string]Config{
		"missing name":   {Contexts: []Context{{Server: "http://localhost:3000"}}},
		"duplicate":      {Contexts: []Context{{Name: "a", Server: "http://x"}, {Name: "a", Server: "http://y"}}},
		"missing server": {Contexts: []Context{{Name: "a"}}},
		"bad scheme":     {Contexts: []Context{{Name: "a", Server: "ftp://x"}}},
		"bad port":       {Contexts: []Context{{Name: "a", Server: "ssh://u@x", RemotePort: 70000}}},
	}
	for name, cfg := range tests {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestSaveRoundTripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slimctl.yaml")
	cfg := Config{CurrentContext: "local"}
	cfg.Upsert(Context{Name: "local", Server: "http://127.0.0.1:3000"})
	cfg.Upsert(Context{Name: "local", Server: "http://127.0.0.1:4000", Token: "t"})

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if len(loaded.Contexts) != 1 || loaded.Contexts[0].Server != "http://127.0.0.1:4000" || loaded.Contexts[0].Token != "t" {
		t.Fatalf("expected upserted context, got %#v", loaded.Contexts)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slimctl.yaml")
	err := Save(path, Config{Contexts: []Context{{Name: "broken"}}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected no file to be written, stat err = %v", statErr)
	}
}
