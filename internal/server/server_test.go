package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer runs a server on a random loopback port with rate limiting
// disabled. mutate may adjust the config before start.
func startTestServer(t *testing.T, mutate func(*Config)) (*Server, string) {
	t.Helper()
	cfg := Config{BindAddr: "127.0.0.1", Port: 0, DataDir: t.TempDir(), LogLevel: "info", DBWAL: true}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg, testLogger(), "v-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, "http://" + srv.Addr()
}

func TestServerHealthAndVersion(t *testing.T) {
	_, base := startTestServer(t, func(cfg *Config) { cfg.LogLevel = "debug" })

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /healthz, got %d", resp.StatusCode)
	}
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode /healthz response: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("unexpected /healthz payload: %#v", health)
	}

	versionResp, err := http.Get(base + "/version")
	if err != nil {
		t.Fatalf("GET /version error = %v", err)
	}
	defer versionResp.Body.Close()
	if versionResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /version, got %d", versionResp.StatusCode)
	}
	var version map[string]string
	if err := json.NewDecoder(versionResp.Body).Decode(&version); err != nil {
		t.Fatalf("decode /version response: %v", err)
	}
	if version["version"] != "v-test" {
		t.Fatalf("unexpected /version payload: %#v", version)
	}
}

func TestServerHealthIncludesTimestamp(t *testing.T) {
	_, base := startTestServer(t, nil)

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode /health response: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("unexpected /health payload: %#v", health)
	}
	if _, err := time.Parse(time.RFC3339Nano, health["timestamp"]); err != nil {
		t.Fatalf("timestamp %q is not RFC 3339: %v", health["timestamp"], err)
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	_, base := startTestServer(t, nil)

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "slimlytics_") {
		t.Fatalf("expected slimlytics collectors in /metrics output")
	}
}

func TestServerStartPersistsGeneratedSalt(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	raw, err := os.ReadFile(filepath.Join(srv.cfg.DataDir, "ip_salt"))
	if err != nil {
		t.Fatalf("read generated salt: %v", err)
	}
	if len(strings.TrimSpace(string(raw))) != 64 {
		t.Fatalf("unexpected generated salt %q", raw)
	}
}

func TestServerSeedsDemoSite(t *testing.T) {
	_, base := startTestServer(t, func(cfg *Config) { cfg.SeedDemoSite = true })

	resp, err := http.Get(base + "/api/sites/demo")
	if err != nil {
		t.Fatalf("GET /api/sites/demo error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected seeded demo site, got %d", resp.StatusCode)
	}
	var site map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&site); err != nil {
		t.Fatalf("decode site: %v", err)
	}
	if site["domain"] != "localhost" {
		t.Fatalf("unexpected demo site %#v", site)
	}
}

func TestServerRunGracefulShutdownOnContextCancel(t *testing.T) {
	cfg := Config{BindAddr: "127.0.0.1", Port: 0, DataDir: t.TempDir(), LogLevel: "info"}
	srv, err := New(cfg, testLogger(), "v-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == "" {
		cancel()
		t.Fatalf("server never started")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() returned error after cancel: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run() did not exit after cancel")
	}
}

func TestServerPortInUseError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pre-listen failed: %v", err)
	}
	defer ln.Close()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host/port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	cfg := Config{BindAddr: "127.0.0.1", Port: port, DataDir: t.TempDir(), LogLevel: "info"}
	srv, err := New(cfg, testLogger(), "v-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = srv.Start()
	if err == nil {
		t.Fatalf("expected listen error on occupied port")
	}
	if !strings.Contains(err.Error(), "listen on") {
		t.Fatalf("expected listen error message, got %v", err)
	}
	if srv.db != nil {
		t.Fatalf("expected components to be released after failed start")
	}
}

func TestParseLogLevelAndLogger(t *testing.T) {
	cases := []string{"debug", "info", "", "warn", "warning", "error"}
	for _, c := range cases {
		if _, err := parseLogLevel(c); err != nil {
			t.Fatalf("parseLogLevel(%q) unexpected error: %v", c, err)
		}
		if _, err := NewLogger(c); err != nil {
			t.Fatalf("NewLogger(%q) unexpected error: %v", c, err)
		}
	}
	if _, err := parseLogLevel("bogus"); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := NewLogger("bogus"); err == nil {
		t.Fatalf("expected invalid logger level error")
	}
}
