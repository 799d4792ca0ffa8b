package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/benedict2310/slimlytics/internal/audit"
	dbpkg "github.com/benedict2310/slimlytics/internal/db"
	"github.com/benedict2310/slimlytics/internal/stats"
)

var errUnknownClearRange = errors.New("range must be one of today, 7days, 30days, all")

type clearDataRequest struct {
	Range string `json:"range"`
}

type clearDataResponse struct {
	Success bool   `json:"success"`
	Deleted int64  `json:"deleted"`
	Message string `json:"message"`
}

// clearRangeSince maps a clear-data range to its lower bound. A nil bound
// means all data.
func clearRangeSince(value string, now time.Time) (*time.Time, error) {
	var since time.Time
	switch value {
	case "", "all":
		return nil, nil
	case "today":
		since = stats.StartOfDayUTC(now)
	case "7days":
		since = now.Add(-7 * 24 * time.Hour)
	case "30days":
		since = now.Add(-30 * 24 * time.Hour)
	default:
		return nil, errUnknownClearRange
	}
	return &since, nil
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.requireSite(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAdminBodyBytes))
	if err != nil {
		if isMaxBytesError(err) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		writeAPIError(w, http.StatusBadRequest, "read request body failed", []string{err.Error()})
		return
	}
	var req clearDataRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
			return
		}
	}
	rangeName := strings.TrimSpace(req.Range)
	if rangeName == "" {
		rangeName = "all"
	}
	since, err := clearRangeSince(rangeName, s.engine.Now())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	params := dbpkg.DeleteRangeParams{SiteID: siteID}
	if since != nil {
		formatted := dbpkg.FormatTimestamp(*since)
		params.Since = &formatted
	}

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		s.writeInternalAPIError(w, r, "clear data failed", err, "site_id", siteID)
		return
	}
	defer func() { _ = tx.Rollback() }()
	q := dbpkg.NewQueries(tx)
	deletedEvents, err := q.DeleteEvents(r.Context(), params)
	if err != nil {
		s.writeInternalAPIError(w, r, "clear data failed", err, "site_id", siteID)
		return
	}
	deletedSessions, err := q.DeleteSessions(r.Context(), params)
	if err != nil {
		s.writeInternalAPIError(w, r, "clear data failed", err, "site_id", siteID)
		return
	}
	if err := tx.Commit(); err != nil {
		s.writeInternalAPIError(w, r, "clear data failed", err, "site_id", siteID)
		return
	}

	s.logger.Info("cleared site data", "site_id", siteID, "range", rangeName, "events", deletedEvents, "sessions", deletedSessions)
	s.logAudit(r.Context(), actorFromRequest(r), audit.OperationDataClear, &siteID,
		fmt.Sprintf("cleared %d events for range %s", deletedEvents, rangeName),
		map[string]any{"range": rangeName, "events": deletedEvents, "sessions": deletedSessions})
	if s.notifier != nil {
		s.notifier.Notify(siteID)
	}

	writeJSON(w, http.StatusOK, clearDataResponse{
		Success: true,
		Deleted: deletedEvents,
		Message: fmt.Sprintf("Successfully cleared %d events", deletedEvents),
	})
}
