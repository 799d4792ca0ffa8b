package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benedict2310/slimlytics/internal/audit"
	"github.com/benedict2310/slimlytics/internal/names"
)

type auditLogResponse struct {
	Entries []auditEntryResponse `json:"entries"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Actor     string         `json:"actor"`
	Timestamp string         `json:"timestamp"`
	SiteID    *string        `json:"siteId,omitempty"`
	Operation string         `json:"operation"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.auditLogger == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}
	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid query parameters", []string{err.Error()})
		return
	}

	res, err := s.auditLogger.Query(r.Context(), filter)
	if err != nil {
		s.writeInternalAPIError(w, r, "query audit log failed", err)
		return
	}

	entries := make([]auditEntryResponse, 0, len(res.Entries))
	for _, entry := range res.Entries {
		entries = append(entries, auditEntryResponse{
			ID:        entry.ID,
			Actor:     entry.Actor,
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
			SiteID:    entry.SiteID,
			Operation: entry.Operation,
			Summary:   entry.Summary,
			Metadata:  entry.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, auditLogResponse{
		Entries: entries,
		Total:   res.Total,
		Limit:   res.Limit,
		Offset:  res.Offset,
	})
}

func parseAuditFilter(values url.Values) (audit.Filter, error) {
	filter := audit.Filter{}
	if raw := strings.TrimSpace(values.Get("site")); raw != "" {
		if err := names.ValidateSiteID(raw); err != nil {
			return filter, err
		}
		filter.SiteID = &raw
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %w", err)
		}
		if v < 0 {
			return filter, fmt.Errorf("limit must be >= 0")
		}
		filter.Limit = v
	}
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid offset: %w", err)
		}
		if v < 0 {
			return filter, fmt.Errorf("offset must be >= 0")
		}
		filter.Offset = v
	}
	filter.Operation = strings.TrimSpace(values.Get("operation"))
	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = &t
	}
	if raw := strings.TrimSpace(values.Get("until")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid until: %w", err)
		}
		filter.Until = &t
	}
	return filter, nil
}

// logAudit records an admin operation. Failures are logged, never returned:
// the operation itself has already happened.
func (s *Server) logAudit(ctx context.Context, actor, operation string, siteID *string, summary string, metadata map[string]any) {
	if s.auditLogger == nil {
		return
	}
	if err := s.auditLogger.Log(ctx, audit.Entry{
		Actor:     actor,
		SiteID:    siteID,
		Operation: operation,
		Summary:   summary,
		Metadata:  metadata,
	}); err != nil {
		s.logger.Error("failed to write audit entry", "operation", operation, "error", err)
		return
	}
	if flusher, ok := s.auditLogger.(interface{ WaitIdle(context.Context) error }); ok {
		waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		if err := flusher.WaitIdle(waitCtx); err != nil {
			s.logger.Warn("timed out waiting for async audit flush", "operation", operation, "error", err)
		}
		cancel()
	}
}
