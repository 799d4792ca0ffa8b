package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benedict2310/slimlytics/internal/audit"
	dbpkg "github.com/benedict2310/slimlytics/internal/db"
	"github.com/benedict2310/slimlytics/internal/metrics"
)

const (
	retentionCleanupInterval = time.Hour
	retentionCleanupTimeout  = 30 * time.Second
	retentionActor           = "system"
)

func (s *Server) startRetentionLoop() {
	if s.cfg.RetentionDays <= 0 || s.db == nil {
		return
	}
	retentionDays := s.cfg.RetentionDays

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.retentionStop = stopCh
	s.retentionDone = doneCh

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(retentionCleanupInterval)
		defer ticker.Stop()

		s.runRetentionCleanup(retentionDays)
		for {
			select {
			case <-ticker.C:
				s.runRetentionCleanup(retentionDays)
			case <-stopCh:
				return
			}
		}
	}()
}

func (s *Server) runRetentionCleanup(retentionDays int) {
	if retentionDays <= 0 || s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), retentionCleanupTimeout)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	events, sessions, err := deleteExpired(ctx, s.db, dbpkg.FormatTimestamp(cutoff))
	if err != nil {
		s.logger.Warn("retention cleanup failed", "retention_days", retentionDays, "error", err)
		return
	}
	metrics.RetentionDeleted.WithLabelValues("events").Add(float64(events))
	metrics.RetentionDeleted.WithLabelValues("sessions").Add(float64(sessions))
	if events == 0 && sessions == 0 {
		return
	}
	s.logger.Info("retention cleanup complete", "retention_days", retentionDays, "events", events, "sessions", sessions)
	if err := dbpkg.Checkpoint(ctx, s.db); err != nil {
		s.logger.Debug("wal checkpoint after retention cleanup skipped", "error", err)
	}
	s.logAudit(ctx, retentionActor, audit.OperationRetentionCleanup, nil,
		fmt.Sprintf("removed %d events and %d sessions older than %d days", events, sessions, retentionDays),
		map[string]any{"retentionDays": retentionDays, "cutoff": dbpkg.FormatTimestamp(cutoff), "events": events, "sessions": sessions})
}

func deleteExpired(ctx context.Context, sqlDB *sql.DB, cutoff string) (int64, int64, error) {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin retention transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := dbpkg.NewQueries(tx)
	events, err := q.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	sessions, err := q.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit retention transaction: %w", err)
	}
	return events, sessions, nil
}

func (s *Server) stopRetentionLoop(ctx context.Context) error {
	stopCh := s.retentionStop
	doneCh := s.retentionDone
	if stopCh == nil || doneCh == nil {
		return nil
	}
	s.retentionStop = nil
	s.retentionDone = nil

	close(stopCh)
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
