package server

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benedict2310/slimlytics/internal/ingest"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	registerHealthRoutes(r, s)

	r.Group(func(r chi.Router) {
		r.Use(s.trackRateLimit())
		r.Post("/track", s.handleTrack)
		r.Post("/t/{siteId}", s.handleTrack)
		r.Get("/t/{siteId}", s.handleNoscriptBeacon)
	})

	r.With(websocketAuthMiddleware(s.cfg.APIToken, s.logger)).Get("/ws", s.handleWebsocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.cfg.APIToken, s.logger))

		r.Route("/stats/{siteId}", func(r chi.Router) {
			r.Get("/", s.handleDashboardStats)
			r.Get("/timeseries", s.handleTimeSeries)
			r.Get("/realtime", s.handleRealtime)
			r.Get("/recent-visitors", s.handleRecentVisitors)
			r.Get("/search-queries", s.handleSearchQueries)
			r.Delete("/data", s.handleClearData)
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", s.handleListSites)
			r.Post("/", s.handleCreateSite)
			r.Get("/{siteId}", s.handleGetSite)
			r.Put("/{siteId}", s.handleUpdateSite)
			r.Delete("/{siteId}", s.handleDeleteSite)
		})

		r.Get("/audit", s.handleAuditLog)
	})

	return r
}

func registerHealthRoutes(r chi.Router, s *Server) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// trackRateLimit limits ingestion per client IP as the ingest path resolves
// it, so clients behind the same proxy are still told apart.
func (s *Server) trackRateLimit() func(http.Handler) http.Handler {
	perMinute := s.cfg.Track.RateLimitPerMinute
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if ip := ingest.ClientIP(r.Header); ip != ingest.UnknownIP {
				return ip, nil
			}
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				return r.RemoteAddr, nil
			}
			return host, nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeAPIError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
		}),
	)
}
