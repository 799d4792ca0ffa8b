package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type queryer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db queryer
}

func NewQueries(db queryer) *Queries {
	return &Queries{db: db}
}

const siteColumns = `id, name, domain, created_at, updated_at`

func (q *Queries) InsertSite(ctx context.Context, in SiteRow) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO sites(id, name, domain) VALUES(?, ?, ?)`, in.ID, in.Name, in.Domain)
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func (q *Queries) GetSiteByID(ctx context.Context, id string) (SiteRow, error) {
	var out SiteRow
	err := q.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id).
		Scan(&out.ID, &out.Name, &out.Domain, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return out, fmt.Errorf("get site by id: %w", err)
	}
	return out, nil
}

func (q *Queries) GetSiteByDomain(ctx context.Context, domain string) (SiteRow, error) {
	var out SiteRow
	err := q.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE domain = ?`, domain).
		Scan(&out.ID, &out.Name, &out.Domain, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return out, fmt.Errorf("get site by domain: %w", err)
	}
	return out, nil
}

// SiteExists reports whether a site row with id exists.
func (q *Queries) SiteExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM sites WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check site exists: %w", err)
	}
	return true, nil
}

func (q *Queries) ListSites(ctx context.Context) ([]SiteRow, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	out := []SiteRow{}
	for rows.Next() {
		var row SiteRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Domain, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site rows: %w", err)
	}
	return out, nil
}

func (q *Queries) UpdateSite(ctx context.Context, in SiteRow) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE sites
SET name = ?, domain = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
WHERE id = ?`, in.Name, in.Domain, in.ID)
	if err != nil {
		return false, fmt.Errorf("update site: %w", err)
	}
	return rowsAffectedAtLeastOne("update site", res)
}

// DeleteSite removes the site; events and sessions cascade.
func (q *Queries) DeleteSite(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete site: %w", err)
	}
	return rowsAffectedAtLeastOne("delete site", res)
}

func (q *Queries) InsertEvent(ctx context.Context, in EventRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO events(
    site_id, page_url, referrer, user_agent, ip_hash, screen_resolution, language, timestamp,
    country, country_code, region, city, latitude, longitude, timezone, asn, asn_org,
    visitor_id, session_id, event_type, event_data
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SiteID, in.PageURL, in.Referrer, in.UserAgent, in.IPHash, in.ScreenResolution, in.Language, in.Timestamp,
		in.Country, in.CountryCode, in.Region, in.City, in.Latitude, in.Longitude, in.Timezone, in.ASN, in.ASNOrg,
		in.VisitorID, in.SessionID, in.EventType, in.EventData,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return lastInsertID("insert event", res)
}

func (q *Queries) CountEvents(ctx context.Context, siteID string) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE site_id = ?`, siteID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// UpsertSession creates the session on first sight and otherwise records one
// more page view against it. Context columns are only written on insert. It
// returns the session's page_views after the write.
func (q *Queries) UpsertSession(ctx context.Context, in SessionRow) (int64, error) {
	var pageViews int64
	err := q.db.QueryRowContext(ctx, `
INSERT INTO sessions(
    id, site_id, visitor_id, session_id, started_at, last_activity,
    referrer, utm_source, utm_medium, utm_campaign, utm_term, utm_content, traffic_source,
    language, country, country_code, region, city, latitude, longitude, timezone,
    user_agent, screen_resolution, browser, os, device_type,
    page_views, duration, is_bounce
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, 1)
ON CONFLICT(site_id, session_id) DO UPDATE SET
    page_views = sessions.page_views + 1,
    last_activity = MAX(sessions.last_activity, excluded.last_activity),
    duration = MAX(0, CAST(ROUND((julianday(MAX(sessions.last_activity, excluded.last_activity)) - julianday(sessions.started_at)) * 86400) AS INTEGER)),
    is_bounce = 0
RETURNING page_views`,
		in.ID, in.SiteID, in.VisitorID, in.SessionID, in.StartedAt, in.LastActivity,
		in.Referrer, in.UTMSource, in.UTMMedium, in.UTMCampaign, in.UTMTerm, in.UTMContent, in.TrafficSource,
		in.Language, in.Country, in.CountryCode, in.Region, in.City, in.Latitude, in.Longitude, in.Timezone,
		in.UserAgent, in.ScreenResolution, in.Browser, in.OS, in.DeviceType,
	).Scan(&pageViews)
	if err != nil {
		return 0, fmt.Errorf("upsert session: %w", err)
	}
	return pageViews, nil
}

func (q *Queries) GetSession(ctx context.Context, siteID, sessionID string) (SessionRow, error) {
	var out SessionRow
	var bounce int
	err := q.db.QueryRowContext(ctx, `
SELECT id, site_id, visitor_id, session_id, started_at, last_activity,
       referrer, utm_source, utm_medium, utm_campaign, utm_term, utm_content, traffic_source,
       language, country, country_code, region, city, latitude, longitude, timezone,
       user_agent, screen_resolution, browser, os, device_type,
       page_views, duration, is_bounce
FROM sessions
WHERE site_id = ? AND session_id = ?`, siteID, sessionID).Scan(
		&out.ID, &out.SiteID, &out.VisitorID, &out.SessionID, &out.StartedAt, &out.LastActivity,
		&out.Referrer, &out.UTMSource, &out.UTMMedium, &out.UTMCampaign, &out.UTMTerm, &out.UTMContent, &out.TrafficSource,
		&out.Language, &out.Country, &out.CountryCode, &out.Region, &out.City, &out.Latitude, &out.Longitude, &out.Timezone,
		&out.UserAgent, &out.ScreenResolution, &out.Browser, &out.OS, &out.DeviceType,
		&out.PageViews, &out.Duration, &bounce,
	)
	if err != nil {
		return out, fmt.Errorf("get session: %w", err)
	}
	out.IsBounce = bounce == 1
	return out, nil
}

func (q *Queries) DeleteEvents(ctx context.Context, params DeleteRangeParams) (int64, error) {
	where, args := deleteRangeClause("timestamp", params)
	res, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return rowsAffected("delete events", res)
}

// DeleteSessions removes sessions whose started_at falls in the range.
func (q *Queries) DeleteSessions(ctx context.Context, params DeleteRangeParams) (int64, error) {
	where, args := deleteRangeClause("started_at", params)
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return rowsAffected("delete sessions", res)
}

func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	return rowsAffected("delete expired events", res)
}

func (q *Queries) DeleteSessionsBefore(ctx context.Context, cutoff string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return rowsAffected("delete expired sessions", res)
}

func (q *Queries) InsertAuditLog(ctx context.Context, in AuditLogRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO audit_log(actor, timestamp, site_id, operation, summary, metadata_json)
VALUES(?, ?, ?, ?, ?, ?)`, in.Actor, in.Timestamp, in.SiteID, in.Operation, in.Summary, in.MetadataJSON)
	if err != nil {
		return 0, fmt.Errorf("insert audit log: %w", err)
	}
	return lastInsertID("insert audit log", res)
}

// deleteRangeClause only ever interpolates the fixed column names passed by
// callers in this file.
func deleteRangeClause(column string, params DeleteRangeParams) (string, []any) {
	clauses := []string{"site_id = ?"}
	args := []any{params.SiteID}
	if params.Since != nil {
		clauses = append(clauses, column+" >= ?")
		args = append(args, *params.Since)
	}
	if params.Until != nil {
		clauses = append(clauses, column+" < ?")
		args = append(args, *params.Until)
	}
	return strings.Join(clauses, " AND "), args
}

func lastInsertID(op string, res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s last insert id: %w", op, err)
	}
	return id, nil
}

func rowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n, nil
}

func rowsAffectedAtLeastOne(op string, res sql.Result) (bool, error) {
	n, err := rowsAffected(op, res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
