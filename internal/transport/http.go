package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

const DefaultRequestTimeout = 30 * time.Second

// HTTPTransport sends requests straight to the daemon. A path on the server
// URL is kept as a prefix, for daemons mounted behind a reverse proxy.
type HTTPTransport struct {
	base   *url.URL
	client *http.Client
	closed atomic.Bool
}

func NewHTTPTransport(server string, timeout time.Duration) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return nil, fmt.Errorf("parse server URL %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL scheme %q: expected http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL %q must include host", server)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("server URL %q must not include query or fragment", server)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPTransport{
		base:   u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (t *HTTPTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, fmt.Errorf("request URL is required")
	}
	if t.closed.Load() {
		return nil, ErrClosed
	}

	outReq := req.Clone(ctx)
	target := *outReq.URL
	target.Scheme = t.base.Scheme
	target.Host = t.base.Host
	target.Path = t.base.Path + target.Path
	target.RawPath = ""
	outReq.URL = &target
	outReq.Host = t.base.Host
	outReq.RequestURI = ""

	resp, err := t.client.Do(outReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	return resp, nil
}

func (t *HTTPTransport) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.client.CloseIdleConnections()
	}
	return nil
}
