package transport

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAgentSignersMissingSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	if _, _, err := agentSigners(); !errors.Is(err, ErrSSHAgentUnavailable) {
		t.Fatalf("expected ErrSSHAgentUnavailable, got %v", err)
	}
}

func TestAgentSignersRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-socket")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("SSH_AUTH_SOCK", path)
	_, _, err := agentSigners()
	if !errors.Is(err, ErrSSHAgentUnavailable) || !strings.Contains(err.Error(), "not a unix socket") {
		t.Fatalf("expected socket type error, got %v", err)
	}
}

func TestResolvePrivateKeyPathPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envSSHKeyPath, "")

	if got := resolvePrivateKeyPath(""); got != "" {
		t.Fatalf("expected no key, got %q", got)
	}

	if err := os.MkdirAll(filepath.Join(home, ".ssh"), 0o700); err != nil {
		t.Fatalf("mkdir .ssh: %v", err)
	}
	defaultKey := filepath.Join(home, ".ssh", "id_ed25519")
	if err := os.WriteFile(defaultKey, []byte("key"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if got := resolvePrivateKeyPath(""); got != defaultKey {
		t.Fatalf("expected default key %q, got %q", defaultKey, got)
	}

	t.Setenv(envSSHKeyPath, "/keys/env_key")
	if got := resolvePrivateKeyPath(""); got != "/keys/env_key" {
		t.Fatalf("expected env key, got %q", got)
	}
	if got := resolvePrivateKeyPath("/keys/nested/../explicit"); got != "/keys/explicit" {
		t.Fatalf("expected explicit key, got %q", got)
	}
}

func TestSignerFromPrivateKeyErrorsOmitDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "id_broken")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	_, err := signerFromPrivateKey(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if strings.Contains(err.Error(), dir) || !strings.Contains(err.Error(), "id_broken") {
		t.Fatalf("expected error naming only the file, got %v", err)
	}

	_, err = signerFromPrivateKey(filepath.Join(dir, "missing"))
	if err == nil || strings.Contains(err.Error(), dir) {
		t.Fatalf("expected not-found error without directory, got %v", err)
	}
}

func TestKnownHostsCallbackMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-known-hosts")
	_, err := knownHostsCallback(path)
	if !errors.Is(err, ErrSSHHostKey) {
		t.Fatalf("expected ErrSSHHostKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "ssh-keyscan") || strings.Contains(err.Error(), path) {
		t.Fatalf("expected setup hint without path, got %v", err)
	}
}

func TestResolveAuthMethodsWithoutAgentOrKey(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envSSHKeyPath, "")
	if _, _, err := resolveAuthMethods(SSHConfig{}); !errors.Is(err, ErrSSHAgentUnavailable) {
		t.Fatalf("expected ErrSSHAgentUnavailable, got %v", err)
	}
}
