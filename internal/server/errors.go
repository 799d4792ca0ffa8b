package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, message string, details []string) {
	resp := map[string]any{"error": message}
	if len(details) > 0 {
		resp["details"] = details
	}
	writeJSON(w, status, resp)
}

func (s *Server) writeInternalAPIError(w http.ResponseWriter, r *http.Request, message string, err error, attrs ...any) {
	logAttrs := make([]any, 0, len(attrs)+4)
	logAttrs = append(logAttrs, "error", err)
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		logAttrs = append(logAttrs, "request_id", reqID)
	}
	logAttrs = append(logAttrs, attrs...)
	s.logger.ErrorContext(r.Context(), message, logAttrs...)
	writeAPIError(w, http.StatusInternalServerError, message, nil)
}

func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
