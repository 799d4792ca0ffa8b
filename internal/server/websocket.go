package server

import (
	"net/http"

	"github.com/benedict2310/slimlytics/internal/realtime"
)

func (s *Server) newWebsocketHandler() http.Handler {
	return realtime.Handler(s.hub, s.notifier, realtime.Options{
		WriteTimeout:   s.cfg.Realtime.WriteTimeout,
		IdleTimeout:    s.cfg.Realtime.IdleTimeout,
		AllowedOrigins: s.cfg.CORSOrigins,
		Logger:         s.logger,
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.wsHandler == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}
	s.wsHandler.ServeHTTP(w, r)
}
