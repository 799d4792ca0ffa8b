package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/benedict2310/slimlytics/internal/audit"
	dbpkg "github.com/benedict2310/slimlytics/internal/db"
	"github.com/benedict2310/slimlytics/internal/geoip"
	"github.com/benedict2310/slimlytics/internal/ingest"
	"github.com/benedict2310/slimlytics/internal/realtime"
	"github.com/benedict2310/slimlytics/internal/sites"
	"github.com/benedict2310/slimlytics/internal/stats"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg        Config
	logger     *slog.Logger
	version    string
	dataPaths  DataPaths
	db         *sql.DB
	listener   net.Listener
	httpServer *http.Server
	errCh      chan error

	auditLogger audit.Logger
	geo         *geoip.MaxMind
	engine      *stats.Engine
	ingest      *ingest.Service
	sites       *sites.Registry
	hub         *realtime.Hub
	notifier    *realtime.Notifier
	wsHandler   http.Handler

	retentionStop chan struct{}
	retentionDone chan struct{}
}

func New(cfg Config, logger *slog.Logger, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		version: version,
		errCh:   make(chan error, 1),
	}
	srv.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *Server) Start() error {
	paths, err := InitDataDir(s.cfg.DataDir)
	if err != nil {
		return err
	}
	s.dataPaths = paths

	dbPath := s.cfg.DBPath
	if dbPath == "" {
		dbPath = paths.DBPath
	}
	sqlDB, err := dbpkg.Open(dbpkg.Options{
		Path:          dbPath,
		EnableWAL:     s.cfg.DBWAL,
		BusyTimeoutMS: 5000,
		MaxOpenConns:  5,
		MaxIdleConns:  5,
	})
	if err != nil {
		return err
	}
	if err := dbpkg.RunMigrations(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return err
	}
	s.db = sqlDB

	if err := s.initComponents(); err != nil {
		s.closeComponents(context.Background())
		return err
	}

	if s.cfg.SeedDemoSite {
		if err := s.seedDemoSite(context.Background()); err != nil {
			s.closeComponents(context.Background())
			return err
		}
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		s.closeComponents(context.Background())
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.listener = ln

	if !isLoopbackHost(s.cfg.BindAddr) && s.cfg.APIToken == "" {
		s.logger.Warn("binding to non-loopback address without an API token", "bind", s.cfg.BindAddr)
	}

	s.logger.Info("slimlyticsd starting",
		"listen_addr", ln.Addr().String(),
		"data_dir", s.cfg.DataDir,
		"db_path", dbPath,
		"geoip_enabled", s.geo.Enabled(),
		"retention_days", s.cfg.RetentionDays,
		"version", s.version,
	)

	s.startRetentionLoop()

	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
		close(s.errCh)
	}()

	return nil
}

func (s *Server) initComponents() error {
	baseAuditLogger, err := audit.NewSQLiteLogger(s.db)
	if err != nil {
		return fmt.Errorf("initialize audit logger: %w", err)
	}
	s.auditLogger = audit.NewAsyncLogger(baseAuditLogger, 512, func(err error) {
		s.logger.Error("asynchronous audit write failed", "error", err)
	})

	salt := s.cfg.IPSalt
	if salt == "" {
		salt, err = loadOrCreateSalt(s.dataPaths.SaltPath)
		if err != nil {
			return err
		}
	}

	geo, err := geoip.Open(geoip.Options{
		CityDB:    s.cfg.GeoIP.CityDB,
		CountryDB: s.cfg.GeoIP.CountryDB,
		ASNDB:     s.cfg.GeoIP.ASNDB,
	}, s.logger)
	if err != nil {
		return err
	}
	s.geo = geo

	s.engine = stats.NewEngine(s.db, s.logger)
	s.sites = sites.NewRegistry(s.db)
	s.hub = realtime.NewHub(s.logger)
	s.notifier = realtime.NewNotifier(s.hub, s.engine, realtime.NotifierOptions{
		Workers:   s.cfg.Realtime.Workers,
		QueueSize: s.cfg.Realtime.QueueSize,
		Logger:    s.logger,
	})

	svc, err := ingest.NewService(ingest.Options{
		DB:       s.db,
		Resolver: s.geo,
		Hasher:   ingest.NewIPHasher(salt),
		Notifier: s.notifier,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}
	s.ingest = svc
	s.wsHandler = s.newWebsocketHandler()
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	select {
	case err := <-s.errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil && s.db == nil {
		return nil
	}

	s.logger.Info("slimlyticsd shutting down")
	if s.listener != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}

		if err, ok := <-s.errCh; ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		s.listener = nil
	}
	return s.closeComponents(ctx)
}

// closeComponents releases everything Start acquired, in reverse order. It
// tolerates partially initialized servers.
func (s *Server) closeComponents(ctx context.Context) error {
	var errs []error
	if s.hub != nil {
		s.hub.Close()
		s.hub = nil
	}
	if s.notifier != nil {
		if err := s.notifier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close realtime notifier: %w", err))
		}
		s.notifier = nil
	}
	if err := s.stopRetentionLoop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop retention loop: %w", err))
	}
	if closer, ok := s.auditLogger.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close audit logger: %w", err))
		}
	}
	s.auditLogger = nil
	if s.geo != nil {
		if err := s.geo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close geoip databases: %w", err))
		}
		s.geo = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite db: %w", err))
		}
		s.db = nil
	}
	s.ingest = nil
	s.engine = nil
	s.sites = nil
	s.wsHandler = nil
	return errors.Join(errs...)
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

func parseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", level)
	}
}

func NewLogger(level string) (*slog.Logger, error) {
	parsed, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	return slog.New(h), nil
}
