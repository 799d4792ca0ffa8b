package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBindAddr     = "127.0.0.1"
	DefaultPort         = 3000
	DefaultDataDir      = "/var/lib/slimlytics"
	DefaultLogLevel     = "info"
	DefaultMaxBodyBytes = 16 << 10
	DefaultRateLimit    = 600
	DefaultRetention    = 0
	DefaultDemoSiteID   = "demo"
)

type Config struct {
	BindAddr      string         `yaml:"bind"`
	Port          int            `yaml:"port"`
	DataDir       string         `yaml:"dataDir"`
	LogLevel      string         `yaml:"logLevel"`
	DBPath        string         `yaml:"dbPath"`
	DBWAL         bool           `yaml:"dbWAL"`
	APIToken      string         `yaml:"apiToken,omitempty"`
	IPSalt        string         `yaml:"ipSalt,omitempty"`
	CORSOrigins   []string       `yaml:"corsOrigins,omitempty"`
	GeoIP         GeoIPConfig    `yaml:"geoip,omitempty"`
	Track         TrackConfig    `yaml:"track,omitempty"`
	Realtime      RealtimeConfig `yaml:"realtime,omitempty"`
	RetentionDays int            `yaml:"retentionDays"`
	SeedDemoSite  bool           `yaml:"seedDemoSite"`
}

type GeoIPConfig struct {
	CityDB    string `yaml:"cityDB,omitempty"`
	CountryDB string `yaml:"countryDB,omitempty"`
	ASNDB     string `yaml:"asnDB,omitempty"`
}

type TrackConfig struct {
	MaxBodyBytes       int64 `yaml:"maxBodyBytes"`
	RateLimitPerMinute int   `yaml:"rateLimitPerMinute"`
}

type RealtimeConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queueSize"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

func DefaultConfig() Config {
	return Config{
		BindAddr:      DefaultBindAddr,
		Port:          DefaultPort,
		DataDir:       DefaultDataDir,
		LogLevel:      DefaultLogLevel,
		DBPath:        "",
		DBWAL:         true,
		CORSOrigins:   []string{"*"},
		RetentionDays: DefaultRetention,
		Track: TrackConfig{
			MaxBodyBytes:       DefaultMaxBodyBytes,
			RateLimitPerMinute: DefaultRateLimit,
		},
		Realtime: RealtimeConfig{
			Workers:      2,
			QueueSize:    256,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  90 * time.Second,
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(configPath) != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_BIND")); v != "" {
		cfg.BindAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_PORT=%q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_DB_PATH")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_DB_WAL")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_DB_WAL=%q: %w", v, err)
		}
		cfg.DBWAL = parsed
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_API_TOKEN")); v != "" {
		cfg.APIToken = v
	}
	// SALT is what older deployments set.
	if v := strings.TrimSpace(os.Getenv("SALT")); v != "" {
		cfg.IPSalt = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_IP_SALT")); v != "" {
		cfg.IPSalt = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_GEOIP_CITY_DB")); v != "" {
		cfg.GeoIP.CityDB = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_GEOIP_COUNTRY_DB")); v != "" {
		cfg.GeoIP.CountryDB = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_GEOIP_ASN_DB")); v != "" {
		cfg.GeoIP.ASNDB = v
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_TRACK_MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_TRACK_MAX_BODY_BYTES=%q: %w", v, err)
		}
		cfg.Track.MaxBodyBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_TRACK_RATE_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_TRACK_RATE_LIMIT=%q: %w", v, err)
		}
		cfg.Track.RateLimitPerMinute = n
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_REALTIME_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_REALTIME_WORKERS=%q: %w", v, err)
		}
		cfg.Realtime.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_REALTIME_IDLE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_REALTIME_IDLE_TIMEOUT=%q: %w", v, err)
		}
		cfg.Realtime.IdleTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_RETENTION_DAYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_RETENTION_DAYS=%q: %w", v, err)
		}
		cfg.RetentionDays = n
	}
	if v := strings.TrimSpace(os.Getenv("SLIMLYTICS_SEED_DEMO_SITE")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse SLIMLYTICS_SEED_DEMO_SITE=%q: %w", v, err)
		}
		cfg.SeedDemoSite = parsed
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BindAddr) == "" {
		return fmt.Errorf("bind address is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in range 0..65535")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data directory is required")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Track.MaxBodyBytes < 0 {
		return fmt.Errorf("track.maxBodyBytes must be >= 0")
	}
	if c.Track.RateLimitPerMinute < 0 {
		return fmt.Errorf("track.rateLimitPerMinute must be >= 0 (0 disables the limit)")
	}
	if c.Realtime.Workers < 0 || c.Realtime.QueueSize < 0 {
		return fmt.Errorf("realtime.workers and realtime.queueSize must be >= 0")
	}
	if c.Realtime.WriteTimeout < 0 || c.Realtime.IdleTimeout < 0 {
		return fmt.Errorf("realtime timeouts must be >= 0")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays must be >= 0 (0 keeps data forever)")
	}
	return nil
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

func (c Config) maxBodyBytes() int64 {
	if c.Track.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return c.Track.MaxBodyBytes
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
