package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	envSSHKeyPath     = "SLIMCTL_SSH_KEY_PATH"
	envKnownHostsPath = "SLIMCTL_SSH_KNOWN_HOSTS"
)

type signerSource func() ([]ssh.Signer, error)

// resolveAuthMethods prefers explicit methods. Otherwise agent keys and the
// private key file are offered together as one publickey method, so a key
// file still gets tried when the agent only holds keys the host rejects.
func resolveAuthMethods(cfg SSHConfig) ([]ssh.AuthMethod, []io.Closer, error) {
	if len(cfg.AuthMethods) > 0 {
		return cfg.AuthMethods, nil, nil
	}

	var sources []signerSource
	var closers []io.Closer
	fromAgent, agentConn, agentErr := agentSigners()
	if agentErr == nil {
		sources = append(sources, fromAgent)
		closers = append(closers, agentConn)
	}

	keyPath := resolvePrivateKeyPath(cfg.PrivateKeyPath)
	if keyPath != "" {
		signer, keyErr := signerFromPrivateKey(keyPath)
		switch {
		case keyErr == nil:
			sources = append(sources, func() ([]ssh.Signer, error) { return []ssh.Signer{signer}, nil })
		case agentErr != nil:
			return nil, nil, fmt.Errorf("%w: %v; private key fallback failed: %v", ErrSSHAgentUnavailable, agentErr, keyErr)
		}
	}

	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("%w: %v; no private key found (set --ssh-key or %s)", ErrSSHAgentUnavailable, agentErr, envSSHKeyPath)
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
		var all []ssh.Signer
		for _, src := range sources {
			signers, err := src()
			if err != nil {
				continue
			}
			all = append(all, signers...)
		}
		return all, nil
	})}, closers, nil
}

func agentSigners() (signerSource, io.Closer, error) {
	sockPath := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK"))
	if sockPath == "" {
		return nil, nil, fmt.Errorf("%w: SSH_AUTH_SOCK is not set", ErrSSHAgentUnavailable)
	}
	info, err := os.Lstat(sockPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: inspect SSH_AUTH_SOCK: %v", ErrSSHAgentUnavailable, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return nil, nil, fmt.Errorf("%w: SSH_AUTH_SOCK is not a unix socket", ErrSSHAgentUnavailable)
	}

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: connect SSH_AUTH_SOCK: %v", ErrSSHAgentUnavailable, err)
	}
	client := agent.NewClient(conn)
	signers, err := client.Signers()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%w: list agent signers: %v", ErrSSHAgentUnavailable, err)
	}
	if len(signers) == 0 {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%w: agent holds no keys", ErrSSHAgentUnavailable)
	}
	return client.Signers, conn, nil
}

// resolvePrivateKeyPath returns the first of: explicit path, env override,
// a default key under ~/.ssh. Empty means none was found.
func resolvePrivateKeyPath(explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return filepath.Clean(v)
	}
	if v := strings.TrimSpace(os.Getenv(envSSHKeyPath)); v != "" {
		return filepath.Clean(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Errors name the key by file name only.
func signerFromPrivateKey(path string) (ssh.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("private key %s not found", filepath.Base(path))
		}
		return nil, fmt.Errorf("read private key %s: permission or I/O error", filepath.Base(path))
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("private key %s is passphrase protected; load it into ssh-agent", filepath.Base(path))
		}
		return nil, fmt.Errorf("parse private key %s: %w", filepath.Base(path), err)
	}
	return signer, nil
}

func resolveKnownHostsPath(explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(envKnownHostsPath))
}

func knownHostsCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve user home for known_hosts: %v", ErrSSHHostKey, err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: known_hosts file not found (create it via 'ssh <user>@<host>' or ssh-keyscan)", ErrSSHHostKey)
		}
		return nil, fmt.Errorf("%w: load known_hosts: malformed or unreadable file", ErrSSHHostKey)
	}
	return cb, nil
}
