package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
	xknownhosts "golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultSSHPort = 22
	// Matches the daemon's default bind address and port.
	DefaultRemoteAddr  = "127.0.0.1:3000"
	DefaultDialTimeout = 10 * time.Second
)

type SSHConfig struct {
	ServerURL  string
	RemoteAddr string
	Timeout    time.Duration

	KnownHostsPath string
	PrivateKeyPath string
	// HostKeyCallback replaces known_hosts verification when set.
	HostKeyCallback ssh.HostKeyCallback
	AuthMethods     []ssh.AuthMethod
}

type ServerEndpoint struct {
	User string
	Host string
	Port int
}

func (e ServerEndpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseServerURL parses ssh://user@host[:port].
func ParseServerURL(raw string) (ServerEndpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ServerEndpoint{}, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ServerEndpoint{}, fmt.Errorf("parse server URL %q: %w", raw, err)
	}
	if u.Scheme != "ssh" {
		return ServerEndpoint{}, fmt.Errorf("invalid server URL scheme %q: expected ssh", u.Scheme)
	}
	if u.User == nil || strings.TrimSpace(u.User.Username()) == "" {
		return ServerEndpoint{}, fmt.Errorf("server URL %q must include user (ssh://user@host)", raw)
	}
	host := strings.TrimSpace(u.Hostname())
	if host == "" {
		return ServerEndpoint{}, fmt.Errorf("server URL %q must include host", raw)
	}
	if p := strings.TrimSpace(u.EscapedPath()); p != "" && p != "/" {
		return ServerEndpoint{}, fmt.Errorf("server URL %q must not include path", raw)
	}

	port := DefaultSSHPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return ServerEndpoint{}, fmt.Errorf("server URL %q has invalid port %q", raw, p)
		}
		port = n
	}
	return ServerEndpoint{User: u.User.Username(), Host: host, Port: port}, nil
}

// SSHTransport forwards each HTTP request through a local listener that
// tunnels to RemoteAddr on the SSH host. One tunnel lives for one command.
type SSHTransport struct {
	endpoint   ServerEndpoint
	remoteAddr string

	sshClient *ssh.Client
	listener  net.Listener
	http      *http.Client
	closers   []io.Closer

	closed    atomic.Bool
	closeOnce sync.Once
}

func NewSSHTransport(ctx context.Context, cfg SSHConfig) (*SSHTransport, error) {
	endpoint, err := ParseServerURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	remoteAddr, err := validateRemoteAddr(cfg.RemoteAddr)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hostKeyCB := cfg.HostKeyCallback
	if hostKeyCB == nil {
		hostKeyCB, err = knownHostsCallback(resolveKnownHostsPath(cfg.KnownHostsPath))
		if err != nil {
			return nil, err
		}
	}

	authMethods, closers, err := resolveAuthMethods(cfg)
	if err != nil {
		return nil, err
	}

	sshClient, err := dialSSHClient(dialCtx, endpoint, &ssh.ClientConfig{
		User:            endpoint.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCB,
		Timeout:         timeout,
	})
	if err != nil {
		closeAll(closers...)
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = sshClient.Close()
		closeAll(closers...)
		return nil, fmt.Errorf("%w: open local listener: %v", ErrSSHTunnel, err)
	}

	t := &SSHTransport{
		endpoint:   endpoint,
		remoteAddr: remoteAddr,
		sshClient:  sshClient,
		listener:   listener,
		http: &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		closers: closers,
	}
	go t.acceptLoop()
	return t, nil
}

func validateRemoteAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return DefaultRemoteAddr, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: invalid remote address %q: %v", ErrSSHTunnel, addr, err)
	}
	if strings.TrimSpace(host) == "" {
		return "", fmt.Errorf("%w: invalid remote address %q: host is required", ErrSSHTunnel, addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("%w: invalid remote address %q: port must be in range 1..65535", ErrSSHTunnel, addr)
	}
	return addr, nil
}

func (t *SSHTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, fmt.Errorf("request URL is required")
	}
	if t.closed.Load() {
		return nil, ErrClosed
	}

	outReq := req.Clone(ctx)
	target := *outReq.URL
	target.Scheme = "http"
	target.Host = t.listener.Addr().String()
	outReq.URL = &target
	outReq.Host = target.Host
	outReq.RequestURI = ""

	resp, err := t.http.Do(outReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSSHTunnel, err)
	}
	return resp, nil
}

func (t *SSHTransport) Close() error {
	var outErr error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		outErr = errors.Join(outErr, t.listener.Close())
		outErr = errors.Join(outErr, t.sshClient.Close())
		for _, c := range t.closers {
			outErr = errors.Join(outErr, c.Close())
		}
	})
	if errors.Is(outErr, net.ErrClosed) {
		return nil
	}
	return outErr
}

func (t *SSHTransport) acceptLoop() {
	for {
		localConn, err := t.listener.Accept()
		if err != nil {
			return
		}
		go t.forward(localConn)
	}
}

func (t *SSHTransport) forward(localConn net.Conn) {
	defer localConn.Close()
	remoteConn, err := t.sshClient.Dial("tcp", t.remoteAddr)
	if err != nil {
		return
	}
	defer remoteConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remoteConn, localConn)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(localConn, remoteConn)
		done <- struct{}{}
	}()
	// Either side finishing ends the exchange; the deferred closes unblock the other.
	<-done
}

func dialSSHClient(ctx context.Context, endpoint ServerEndpoint, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return nil, classifySSHConnectError(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, endpoint.Address(), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, classifySSHConnectError(err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(clientConn, chans, reqs), nil
}

func classifySSHConnectError(err error) error {
	var keyErr *xknownhosts.KeyError
	if errors.As(err, &keyErr) {
		return fmt.Errorf("%w: %v", ErrSSHHostKey, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"),
		strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", ErrSSHAuth, err)
	case strings.Contains(msg, "knownhosts"), strings.Contains(msg, "host key"):
		return fmt.Errorf("%w: %v", ErrSSHHostKey, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrSSHUnreachable, err)
	}
	return fmt.Errorf("%w: %v", ErrSSHTunnel, err)
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
