package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/benedict2310/slimlytics/internal/config"
	"github.com/benedict2310/slimlytics/internal/transport"
)

type recordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

type scriptedTransport struct {
	handle   func(call int, req recordedRequest) (*http.Response, error)
	requests []recordedRequest
	closed   bool
	server   string
	opts     transport.Options
}

func (s *scriptedTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
	}
	call := len(s.requests)
	s.requests = append(s.requests, recordedRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   req.URL.RawQuery,
		Headers: req.Header.Clone(),
		Body:    body,
	})
	if s.handle == nil {
		return nil, errors.New("unexpected transport call")
	}
	return s.handle(call, s.requests[call])
}

func (s *scriptedTransport) Close() error {
	s.closed = true
	return nil
}

const testConfigYAML = `current-context: prod
contexts:
  - name: prod
    server: https://stats.example.com
    token: prod-token
    site: site-prod
  - name: tunnel
    server: ssh://root@vps.example.com
    token: tunnel-token
    remotePort: 3300
`

func writeTestConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slimctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// runCommand executes the root command against the default test config
// without a transport.
func runCommand(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	return runCommandWithTransport(t, args, &scriptedTransport{})
}

func runCommandWithTransport(t *testing.T, args []string, tr *scriptedTransport) (string, string, error) {
	t.Helper()
	return runCommandWithConfig(t, writeTestConfigFile(t, testConfigYAML), args, tr)
}

func runCommandWithConfig(t *testing.T, configPath string, args []string, tr *scriptedTransport) (string, string, error) {
	t.Helper()

	t.Setenv(config.EnvConfigPath, configPath)
	t.Setenv(config.EnvServer, "")
	t.Setenv(config.EnvToken, "")

	prevOpen := openTransport
	openTransport = func(ctx context.Context, server string, opts transport.Options) (transport.Transport, error) {
		tr.server = server
		tr.opts = opts
		return tr, nil
	}
	t.Cleanup(func() {
		openTransport = prevOpen
	})

	cmd := NewRootCmd("test")
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func jsonHTTPResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
