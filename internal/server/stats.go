package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/benedict2310/slimlytics/internal/names"
	"github.com/benedict2310/slimlytics/internal/stats"
)

const maxTimeSeriesDaysParam = stats.MaxTimeSeriesDays

type realtimeResponse struct {
	Visitors int64 `json:"visitors"`
}

type recentVisitorsResponse struct {
	Visitors []stats.RecentVisitor `json:"visitors"`
}

type searchQueriesResponse struct {
	Queries []stats.SearchQuery `json:"queries"`
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.requireSite(w, r)
	if !ok {
		return
	}
	start, end, ok := s.parseWindow(w, r)
	if !ok {
		return
	}

	snap, err := s.engine.GetDashboardStats(r.Context(), siteID, start, end)
	if err != nil {
		s.writeStatsError(w, r, "fetch stats failed", err, siteID)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.requireSite(w, r)
	if !ok {
		return
	}

	var start, end time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" && r.URL.Query().Get("start") == "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 || days > maxTimeSeriesDaysParam {
			writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("days must be an integer between 1 and %d", maxTimeSeriesDaysParam), nil)
			return
		}
		end = s.engine.Now()
		start = stats.StartOfDayUTC(end).AddDate(0, 0, -(days - 1))
	} else {
		start, end, ok = s.parseWindow(w, r)
		if !ok {
			return
		}
	}

	series, err := s.engine.GetTimeSeries(r.Context(), siteID, start, end)
	if err != nil {
		s.writeStatsError(w, r, "fetch time series failed", err, siteID)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.requireSite(w, r)
	if !ok {
		return
	}
	n, err := s.engine.GetRealtimeVisitors(r.Context(), siteID)
	if err != nil {
		s.writeStatsError(w, r, "fetch realtime visitors failed", err, siteID)
		return
	}
	writeJSON(w, http.StatusOK, realtimeResponse{Visitors: n})
}

func (s *Server) handleRecentVisitors(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.requireSite(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r, stats.DefaultRecentLimit)
	if !ok {
		return
	}
	start, end, ok := s.parseWindow(w, r)
	if !ok {
		return
	}

	visitors, err := s.engine.GetRecentVisitors(r.Context(), siteID, start, end, limit)
	if err != nil {
		s.writeStatsError(w, r, "fetch recent visitors failed", err, siteID)
		return
	}
	writeJSON(w, http.StatusOK, recentVisitorsResponse{Visitors: visitors})
}

func (s *Server) handleSearchQueries(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.requireSite(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r, stats.DefaultSearchLimit)
	if !ok {
		return
	}
	start, end, ok := s.parseWindow(w, r)
	if !ok {
		return
	}

	queries, err := s.engine.GetSearchQueries(r.Context(), siteID, start, end, limit)
	if err != nil {
		s.writeStatsError(w, r, "fetch search queries failed", err, siteID)
		return
	}
	writeJSON(w, http.StatusOK, searchQueriesResponse{Queries: queries})
}

// requireSite validates the {siteId} path parameter and answers 404 for
// sites that do not exist.
func (s *Server) requireSite(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.engine == nil || s.ingest == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return "", false
	}
	siteID := chi.URLParam(r, "siteId")
	if err := names.ValidateSiteID(siteID); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), nil)
		return "", false
	}
	exists, err := s.ingest.Sites().Exists(r.Context(), siteID)
	if err != nil {
		s.writeInternalAPIError(w, r, "lookup site failed", err, "site_id", siteID)
		return "", false
	}
	if !exists {
		writeAPIError(w, http.StatusNotFound, fmt.Sprintf("site %q not found", siteID), nil)
		return "", false
	}
	return siteID, true
}

// parseWindow reads start and end, defaulting to the trailing 30 days
// ending now.
func (s *Server) parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	end := s.engine.Now()
	if raw := strings.TrimSpace(q.Get("end")); raw != "" {
		parsed, err := parseTimeParam(raw, true)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid end parameter", []string{err.Error()})
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	start := end.Add(-stats.DefaultWindow)
	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		parsed, err := parseTimeParam(raw, false)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid start parameter", []string{err.Error()})
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if start.After(end) {
		writeAPIError(w, http.StatusBadRequest, stats.ErrInvalidWindow.Error(), nil)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// parseTimeParam accepts RFC 3339 timestamps with or without fractional
// seconds and bare YYYY-MM-DD dates. A bare date used as a window end
// covers the whole UTC day.
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", raw)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Millisecond), nil
	}
	return day, nil
}

func parseLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeAPIError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
		return 0, false
	}
	return n, true
}

func (s *Server) writeStatsError(w http.ResponseWriter, r *http.Request, message string, err error, siteID string) {
	switch {
	case errors.Is(err, stats.ErrInvalidWindow), errors.Is(err, stats.ErrWindowTooLarge):
		writeAPIError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		s.writeInternalAPIError(w, r, message, err, "site_id", siteID)
	}
}
