package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	dbpkg "github.com/benedict2310/slimlytics/internal/db"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

type SQLiteLogger struct {
	db *sql.DB
}

func NewSQLiteLogger(db *sql.DB) (*SQLiteLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQLiteLogger{db: db}, nil
}

func (l *SQLiteLogger) Log(ctx context.Context, entry Entry) error {
	operation := strings.TrimSpace(entry.Operation)
	if operation == "" {
		return fmt.Errorf("operation is required")
	}
	actor := strings.TrimSpace(entry.Actor)
	if actor == "" {
		actor = "local"
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	metadataJSON := "{}"
	if entry.Metadata != nil {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	q := dbpkg.NewQueries(l.db)
	_, err := q.InsertAuditLog(ctx, dbpkg.AuditLogRow{
		Actor:        actor,
		Timestamp:    dbpkg.FormatTimestamp(ts),
		SiteID:       entry.SiteID,
		Operation:    operation,
		Summary:      entry.Summary,
		MetadataJSON: metadataJSON,
	})
	if err != nil {
		return fmt.Errorf("insert audit log entry: %w", err)
	}
	return nil
}

func (l *SQLiteLogger) Query(ctx context.Context, filter Filter) (QueryResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	clauses := []string{"1 = 1"}
	args := []any{}
	if filter.SiteID != nil {
		clauses = append(clauses, "site_id = ?")
		args = append(args, *filter.SiteID)
	}
	if strings.TrimSpace(filter.Operation) != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, strings.TrimSpace(filter.Operation))
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, dbpkg.FormatTimestamp(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, dbpkg.FormatTimestamp(*filter.Until))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log WHERE `+where, args...).Scan(&total); err != nil {
		return QueryResult{}, fmt.Errorf("count audit log rows: %w", err)
	}

	query := `
SELECT id, actor, timestamp, site_id, operation, summary, metadata_json
FROM audit_log
WHERE ` + where + `
ORDER BY timestamp DESC, id DESC
LIMIT ? OFFSET ?`
	queryArgs := append(append([]any{}, args...), limit, offset)
	rows, err := l.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query audit log rows: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var row Entry
		var ts string
		var metadataRaw string
		if err := rows.Scan(&row.ID, &row.Actor, &ts, &row.SiteID, &row.Operation, &row.Summary, &metadataRaw); err != nil {
			return QueryResult{}, fmt.Errorf("scan audit log row: %w", err)
		}
		parsedTS, err := dbpkg.ParseTimestamp(ts)
		if err != nil {
			return QueryResult{}, err
		}
		row.Timestamp = parsedTS
		if strings.TrimSpace(metadataRaw) != "" && metadataRaw != "{}" {
			meta := map[string]any{}
			if err := json.Unmarshal([]byte(metadataRaw), &meta); err != nil {
				return QueryResult{}, fmt.Errorf("parse audit metadata json: %w", err)
			}
			row.Metadata = meta
		}
		entries = append(entries, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("iterate audit log rows: %w", err)
	}
	return QueryResult{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}
