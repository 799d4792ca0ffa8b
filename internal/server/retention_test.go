package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	dbpkg "github.com/benedict2310/slimlytics/internal/db"
)

func TestRetentionCleanupRemovesExpiredEvents(t *testing.T) {
	srv, base := startTestServer(t, nil)
	siteID := createSite(t, base, "Blog", "blog.example.com")

	old := dbpkg.FormatTimestamp(time.Now().UTC().AddDate(0, 0, -45))
	if _, err := dbpkg.NewQueries(srv.db).InsertEvent(context.Background(), dbpkg.EventRow{
		SiteID:    siteID,
		PageURL:   "https://blog.example.com/old",
		Timestamp: old,
		EventType: "pageview",
	}); err != nil {
		t.Fatalf("InsertEvent() error = %v", err)
	}
	resp, body := trackJSON(t, base, `{"siteId":"`+siteID+`","url":"https://blog.example.com/new"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("track: expected 200, got %d: %s", resp.StatusCode, body)
	}
	if got := countEvents(t, srv, siteID); got != 2 {
		t.Fatalf("expected 2 events before cleanup, got %d", got)
	}

	srv.runRetentionCleanup(30)

	if got := countEvents(t, srv, siteID); got != 1 {
		t.Fatalf("expected 1 event after cleanup, got %d", got)
	}

	resp, body = doRequest(t, http.MethodGet, base+"/api/audit?operation=retention.cleanup", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", resp.StatusCode)
	}
	var out auditLogResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode audit response: %v", err)
	}
	if out.Total != 1 {
		t.Fatalf("expected 1 retention audit entry, got %d", out.Total)
	}
	if out.Entries[0].Actor != retentionActor {
		t.Fatalf("unexpected retention actor %q", out.Entries[0].Actor)
	}

	// Nothing left to expire: no second audit entry.
	srv.runRetentionCleanup(30)
	_, body = doRequest(t, http.MethodGet, base+"/api/audit?operation=retention.cleanup", "", nil)
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode audit response: %v", err)
	}
	if out.Total != 1 {
		t.Fatalf("expected still 1 retention audit entry, got %d", out.Total)
	}
}
