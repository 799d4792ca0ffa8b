package audit

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbpkg "github.com/benedict2310/slimlytics/internal/db"
)

func TestSQLiteLoggerLogAndQuery(t *testing.T) {
	db := openAuditTestDB(t)
	defer db.Close()
	ctx := context.Background()

	logger, err := NewSQLiteLogger(db)
	if err != nil {
		t.Fatalf("NewSQLiteLogger() error = %v", err)
	}
	siteID := "01hsite"
	now := time.Now().UTC().Add(-time.Minute)
	if err := logger.Log(ctx, Entry{Actor: "bene", SiteID: &siteID, Operation: OperationSiteCreate, Summary: "created example.com", Metadata: map[string]any{"domain": "example.com"}, Timestamp: now}); err != nil {
		t.Fatalf("Log(site.create) error = %v", err)
	}
	if err := logger.Log(ctx, Entry{SiteID: &siteID, Operation: OperationDataClear, Summary: "cleared today", Metadata: map[string]any{"deleted": 3}, Timestamp: now.Add(time.Second)}); err != nil {
		t.Fatalf("Log(data.clear) error = %v", err)
	}
	if err := logger.Log(ctx, Entry{Operation: OperationRetentionCleanup, Summary: "deleted 10 events", Timestamp: now.Add(2 * time.Second)}); err != nil {
		t.Fatalf("Log(retention.cleanup) error = %v", err)
	}

	res, err := logger.Query(ctx, Filter{SiteID: &siteID, Limit: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("expected 2 rows, got total=%d len=%d", res.Total, len(res.Entries))
	}
	if res.Entries[0].Operation != OperationDataClear {
		t.Fatalf("expected newest operation first, got %q", res.Entries[0].Operation)
	}
	if res.Entries[0].Actor != "local" {
		t.Fatalf("expected default actor, got %q", res.Entries[0].Actor)
	}
	if got := res.Entries[0].Metadata["deleted"]; got != float64(3) {
		t.Fatalf("unexpected metadata %#v", res.Entries[0].Metadata)
	}

	all, err := logger.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query(all) error = %v", err)
	}
	if all.Total != 3 || all.Entries[0].SiteID != nil || all.Limit != defaultLimit {
		t.Fatalf("unexpected unfiltered result %#v", all)
	}

	filtered, err := logger.Query(ctx, Filter{Operation: OperationSiteCreate, Limit: 10})
	if err != nil {
		t.Fatalf("Query(filtered) error = %v", err)
	}
	if filtered.Total != 1 || len(filtered.Entries) != 1 || filtered.Entries[0].Summary != "created example.com" {
		t.Fatalf("unexpected filtered rows %#v", filtered)
	}

	since := now.Add(1500 * time.Millisecond)
	recent, err := logger.Query(ctx, Filter{Since: &since})
	if err != nil {
		t.Fatalf("Query(since) error = %v", err)
	}
	if recent.Total != 1 || recent.Entries[0].Operation != OperationRetentionCleanup {
		t.Fatalf("unexpected since rows %#v", recent)
	}
}

func TestSQLiteLoggerRequiresOperation(t *testing.T) {
	db := openAuditTestDB(t)
	defer db.Close()
	logger, err := NewSQLiteLogger(db)
	if err != nil {
		t.Fatalf("NewSQLiteLogger() error = %v", err)
	}
	if err := logger.Log(context.Background(), Entry{Summary: "nothing"}); err == nil {
		t.Fatalf("expected missing operation error")
	}
	if _, err := NewSQLiteLogger(nil); err == nil {
		t.Fatalf("expected nil database error")
	}
}

func TestAsyncLoggerFlushesOnWaitIdleAndClose(t *testing.T) {
	db := openAuditTestDB(t)
	defer db.Close()
	sink, err := NewSQLiteLogger(db)
	if err != nil {
		t.Fatalf("NewSQLiteLogger() error = %v", err)
	}
	var errs []error
	async := NewAsyncLogger(sink, 4, func(err error) { errs = append(errs, err) })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := async.Log(ctx, Entry{Operation: OperationSiteUpdate, Summary: "renamed"}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := async.WaitIdle(waitCtx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	res, err := async.Query(ctx, Filter{Operation: OperationSiteUpdate})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("expected 3 flushed entries, got %d", res.Total)
	}

	if err := async.Close(waitCtx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := async.Log(ctx, Entry{Operation: OperationSiteUpdate}); !errors.Is(err, ErrLoggerClosed) {
		t.Fatalf("expected ErrLoggerClosed, got %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected async errors %v", errs)
	}
}

func openAuditTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := dbpkg.Open(dbpkg.DefaultOptions(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := dbpkg.RunMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("RunMigrations() error = %v", err)
	}
	return db
}

func TestAsyncLoggerStampsEntriesWhenQueued(t *testing.T) {
	db := openAuditTestDB(t)
	defer db.Close()
	sink, err := NewSQLiteLogger(db)
	if err != nil {
		t.Fatalf("NewSQLiteLogger() error = %v", err)
	}
	async := NewAsyncLogger(sink, 4, nil)
	queuedAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	async.now = func() time.Time { return queuedAt }
	ctx := context.Background()

	if err := async.Log(ctx, Entry{Operation: OperationDataClear, Summary: "cleared"}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := async.Close(closeCtx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	res, err := sink.Query(ctx, Filter{Operation: OperationDataClear})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.Entries) != 1 || !res.Entries[0].Timestamp.Equal(queuedAt) {
		t.Fatalf("expected entry stamped at %v, got %#v", queuedAt, res.Entries)
	}
}
