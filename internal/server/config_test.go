package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BindAddr != DefaultBindAddr || cfg.Port != DefaultPort || cfg.DataDir != DefaultDataDir || cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if !cfg.DBWAL {
		t.Fatalf("expected DBWAL default true")
	}
	if cfg.Track.MaxBodyBytes != DefaultMaxBodyBytes || cfg.Track.RateLimitPerMinute != DefaultRateLimit {
		t.Fatalf("unexpected track defaults: %#v", cfg.Track)
	}
	if cfg.Realtime.IdleTimeout != 90*time.Second || cfg.Realtime.WriteTimeout != 10*time.Second {
		t.Fatalf("unexpected realtime defaults: %#v", cfg.Realtime)
	}
	if cfg.SeedDemoSite {
		t.Fatalf("expected demo site seeding to be off by default")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`bind: 127.0.0.2
port: 9500
dataDir: /tmp/slimlytics-data
logLevel: debug
corsOrigins:
  - https://example.com
geoip:
  cityDB: /geo/GeoLite2-City.mmdb
track:
  maxBodyBytes: 4096
  rateLimitPerMinute: 30
realtime:
  workers: 4
  idleTimeout: 2m
retentionDays: 400
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.2" || cfg.Port != 9500 || cfg.DataDir != "/tmp/slimlytics-data" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected file config: %#v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://example.com" {
		t.Fatalf("unexpected cors origins: %#v", cfg.CORSOrigins)
	}
	if cfg.GeoIP.CityDB != "/geo/GeoLite2-City.mmdb" {
		t.Fatalf("unexpected geoip config: %#v", cfg.GeoIP)
	}
	if cfg.Track.MaxBodyBytes != 4096 || cfg.Track.RateLimitPerMinute != 30 {
		t.Fatalf("unexpected track config: %#v", cfg.Track)
	}
	if cfg.Realtime.Workers != 4 || cfg.Realtime.IdleTimeout != 2*time.Minute || cfg.Realtime.QueueSize != 256 {
		t.Fatalf("unexpected realtime config: %#v", cfg.Realtime)
	}
	if cfg.RetentionDays != 400 {
		t.Fatalf("unexpected retention days: %d", cfg.RetentionDays)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("bind: 127.0.0.2\nport: 9500\ndataDir: /tmp/slimlytics-data\nlogLevel: info\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("SLIMLYTICS_BIND", "127.0.0.3")
	t.Setenv("SLIMLYTICS_PORT", "9700")
	t.Setenv("SLIMLYTICS_DATA_DIR", "/tmp/override")
	t.Setenv("SLIMLYTICS_LOG_LEVEL", "WARN")
	t.Setenv("SLIMLYTICS_DB_PATH", "/tmp/override/db.sqlite")
	t.Setenv("SLIMLYTICS_DB_WAL", "false")
	t.Setenv("SLIMLYTICS_API_TOKEN", "tok")
	t.Setenv("SLIMLYTICS_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SLIMLYTICS_TRACK_RATE_LIMIT", "0")
	t.Setenv("SLIMLYTICS_REALTIME_IDLE_TIMEOUT", "45s")
	t.Setenv("SLIMLYTICS_RETENTION_DAYS", "30")
	t.Setenv("SLIMLYTICS_SEED_DEMO_SITE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.3" || cfg.Port != 9700 || cfg.DataDir != "/tmp/override" || cfg.LogLevel != "warn" || cfg.DBPath != "/tmp/override/db.sqlite" || cfg.DBWAL {
		t.Fatalf("unexpected overridden config: %#v", cfg)
	}
	if cfg.APIToken != "tok" || cfg.Track.RateLimitPerMinute != 0 || cfg.Realtime.IdleTimeout != 45*time.Second || cfg.RetentionDays != 30 || !cfg.SeedDemoSite {
		t.Fatalf("unexpected overridden config: %#v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins: %#v", cfg.CORSOrigins)
	}
}

func TestLoadConfigSaltPrecedence(t *testing.T) {
	t.Setenv("SALT", "legacy")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.IPSalt != "legacy" {
		t.Fatalf("expected legacy SALT to apply, got %q", cfg.IPSalt)
	}

	t.Setenv("SLIMLYTICS_IP_SALT", "current")
	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.IPSalt != "current" {
		t.Fatalf("expected SLIMLYTICS_IP_SALT to win, got %q", cfg.IPSalt)
	}
}

func TestLoadEnvFileFeedsLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SLIMLYTICS_PORT=9123\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// godotenv skips variables that are already set; t.Setenv only
	// registers the restore.
	t.Setenv("SLIMLYTICS_PORT", "")
	os.Unsetenv("SLIMLYTICS_PORT")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != 9123 {
		t.Fatalf("expected port from env file, got %d", cfg.Port)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bind 127.0.0.1\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse config error, got %v", err)
	}
}

func TestLoadConfigInvalidEnvPort(t *testing.T) {
	t.Setenv("SLIMLYTICS_PORT", "not-a-number")
	_, err := LoadConfig("")
	if err == nil {
		t.Fatalf("expected port parse error")
	}
	if !strings.Contains(err.Error(), "SLIMLYTICS_PORT") {
		t.Fatalf("expected env var mention in error, got %v", err)
	}
}

func TestLoadConfigInvalidEnvDuration(t *testing.T) {
	t.Setenv("SLIMLYTICS_REALTIME_IDLE_TIMEOUT", "soon")
	_, err := LoadConfig("")
	if err == nil {
		t.Fatalf("expected duration parse error")
	}
	if !strings.Contains(err.Error(), "SLIMLYTICS_REALTIME_IDLE_TIMEOUT") {
		t.Fatalf("expected env var mention in error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []Config{
		{BindAddr: "", Port: 3000, DataDir: "/tmp/x", LogLevel: "info"},
		{BindAddr: "127.0.0.1", Port: -1, DataDir: "/tmp/x", LogLevel: "info"},
		{BindAddr: "127.0.0.1", Port: 70000, DataDir: "/tmp/x", LogLevel: "info"},
		{BindAddr: "127.0.0.1", Port: 3000, DataDir: "", LogLevel: "info"},
		{BindAddr: "127.0.0.1", Port: 3000, DataDir: "/tmp/x", LogLevel: "bad"},
		{BindAddr: "127.0.0.1", Port: 3000, DataDir: "/tmp/x", LogLevel: "info", Track: TrackConfig{RateLimitPerMinute: -1}},
		{BindAddr: "127.0.0.1", Port: 3000, DataDir: "/tmp/x", LogLevel: "info", RetentionDays: -1},
	}
	for i, cfg := range tests {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
