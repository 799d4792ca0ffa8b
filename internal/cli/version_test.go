package cli

import (
	"net/http"
	"strings"
	"testing"
)

func TestVersionCommandPrintsVersion(t *testing.T) {
	tr := &scriptedTransport{}
	out, _, err := runCommandWithTransport(t, []string{"version"}, tr)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "test" {
		t.Fatalf("version output = %q, want %q", got, "test")
	}
	if len(tr.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(tr.requests))
	}
}

func TestVersionCommandRemote(t *testing.T) {
	tr := &scriptedTransport{
		handle: func(call int, req recordedRequest) (*http.Response, error) {
			if req.Path != "/version" {
				t.Fatalf("unexpected path %s", req.Path)
			}
			return jsonHTTPResponse(http.StatusOK, `{"version":"v0.4.0"}`), nil
		},
	}
	out, _, err := runCommandWithTransport(t, []string{"version", "--remote"}, tr)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "client: test") || !strings.Contains(out, "server: v0.4.0") {
		t.Fatalf("unexpected output %q", out)
	}
	if !tr.closed {
		t.Fatalf("expected transport to be closed")
	}
}
