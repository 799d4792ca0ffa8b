package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// TimestampLayout is the fixed-width UTC text form used for every stored
// timestamp, so lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Options struct {
	Path          string
	EnableWAL     bool
	BusyTimeoutMS int
	MaxOpenConns  int
	MaxIdleConns  int
}

func DefaultOptions(path string) Options {
	return Options{
		Path:          path,
		EnableWAL:     true,
		BusyTimeoutMS: 5000,
		MaxOpenConns:  5,
		MaxIdleConns:  5,
	}
}

// Open opens the event store. Pragmas travel in the DSN so every pooled
// connection gets them, not just the first.
func Open(opts Options) (*sql.DB, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	opts = opts.withDefaults()
	cleanPath := filepath.Clean(opts.Path)

	db, err := sql.Open("sqlite", opts.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxIdleTime(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", cleanPath, err)
	}
	return db, nil
}

func (o Options) withDefaults() Options {
	if o.BusyTimeoutMS <= 0 {
		o.BusyTimeoutMS = 5000
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 5
	}
	if o.MaxIdleConns < 0 {
		o.MaxIdleConns = 0
	}
	return o
}

func (o Options) dsn() string {
	params := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", o.BusyTimeoutMS),
	}
	if o.EnableWAL {
		params = append(params, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	return fmt.Sprintf("file:%s?%s", filepath.Clean(o.Path), strings.Join(params, "&"))
}

// Checkpoint folds the WAL back into the main file and truncates it. Called
// after bulk deletes so the WAL does not keep the freed pages around.
func Checkpoint(ctx context.Context, db *sql.DB) error {
	var busy, logFrames, checkpointed int
	if err := db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);").Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	if busy != 0 {
		return fmt.Errorf("checkpoint wal: database busy")
	}
	return nil
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(TimestampLayout, raw); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func JournalMode(ctx context.Context, db *sql.DB) (string, error) {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		return "", fmt.Errorf("query journal_mode pragma: %w", err)
	}
	return strings.ToLower(mode), nil
}

func ForeignKeysEnabled(ctx context.Context, db *sql.DB) (bool, error) {
	var enabled int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys;").Scan(&enabled); err != nil {
		return false, fmt.Errorf("query foreign_keys pragma: %w", err)
	}
	return enabled == 1, nil
}
