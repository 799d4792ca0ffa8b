package db

import (
	"context"
	"fmt"
)

// PeriodTotals computes the headline numbers for one window. Visitors and
// bounces are counted from sessions that started in the window, page views
// from events in the window.
func (q *Queries) PeriodTotals(ctx context.Context, p RangeParams) (PeriodTotalsRow, error) {
	var out PeriodTotalsRow
	err := q.db.QueryRowContext(ctx, `
SELECT
    v.visitors,
    pv.page_views,
    COALESCE(b.bounced * 100.0 / NULLIF(v.visitors, 0), 0),
    d.avg_duration
FROM
    (SELECT COUNT(DISTINCT visitor_id) AS visitors
       FROM sessions WHERE site_id = ? AND started_at BETWEEN ? AND ?) v,
    (SELECT COUNT(*) AS page_views
       FROM events WHERE site_id = ? AND timestamp BETWEEN ? AND ?) pv,
    (SELECT COUNT(*) AS bounced
       FROM sessions WHERE site_id = ? AND started_at BETWEEN ? AND ? AND page_views = 1) b,
    (SELECT COALESCE(AVG(duration), 0) AS avg_duration
       FROM sessions WHERE site_id = ? AND started_at BETWEEN ? AND ?) d`,
		p.SiteID, p.Start, p.End,
		p.SiteID, p.Start, p.End,
		p.SiteID, p.Start, p.End,
		p.SiteID, p.Start, p.End,
	).Scan(&out.Visitors, &out.PageViews, &out.BounceRate, &out.AvgSessionDuration)
	if err != nil {
		return out, fmt.Errorf("query period totals: %w", err)
	}
	return out, nil
}

func (q *Queries) TopPages(ctx context.Context, p RangeParams, limit int) ([]PageCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT page_url, COUNT(*) AS views
FROM events
WHERE site_id = ? AND timestamp BETWEEN ? AND ?
GROUP BY page_url
ORDER BY views DESC, page_url ASC
LIMIT ?`, p.SiteID, p.Start, p.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query top pages: %w", err)
	}
	defer rows.Close()

	out := []PageCountRow{}
	for rows.Next() {
		var row PageCountRow
		if err := rows.Scan(&row.URL, &row.Views); err != nil {
			return nil, fmt.Errorf("scan top page row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top page rows: %w", err)
	}
	return out, nil
}

func (q *Queries) TopReferrers(ctx context.Context, p RangeParams, limit int) ([]ReferrerCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT referrer, COUNT(*) AS n
FROM sessions
WHERE site_id = ? AND started_at BETWEEN ? AND ? AND referrer IS NOT NULL AND referrer != ''
GROUP BY referrer
ORDER BY n DESC, referrer ASC
LIMIT ?`, p.SiteID, p.Start, p.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query top referrers: %w", err)
	}
	return scanReferrerCounts(rows, "top referrer")
}

// ReferrerCounts groups every session in the window by referrer; sessions
// without one are reported under the empty string.
func (q *Queries) ReferrerCounts(ctx context.Context, p RangeParams) ([]ReferrerCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT COALESCE(referrer, '') AS ref, COUNT(*) AS n
FROM sessions
WHERE site_id = ? AND started_at BETWEEN ? AND ?
GROUP BY ref
ORDER BY n DESC, ref ASC`, p.SiteID, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("query referrer counts: %w", err)
	}
	return scanReferrerCounts(rows, "referrer count")
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanReferrerCounts(rows rowScanner, what string) ([]ReferrerCountRow, error) {
	defer rows.Close()
	out := []ReferrerCountRow{}
	for rows.Next() {
		var row ReferrerCountRow
		if err := rows.Scan(&row.Referrer, &row.Count); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", what, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return out, nil
}

func (q *Queries) TopCountries(ctx context.Context, p RangeParams, limit int) ([]CountryCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT country, COALESCE(country_code, '') AS code, COUNT(*) AS n
FROM sessions
WHERE site_id = ? AND started_at BETWEEN ? AND ? AND country IS NOT NULL AND country != ''
GROUP BY country, code
ORDER BY n DESC, country ASC
LIMIT ?`, p.SiteID, p.Start, p.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query top countries: %w", err)
	}
	defer rows.Close()

	out := []CountryCountRow{}
	for rows.Next() {
		var row CountryCountRow
		if err := rows.Scan(&row.Country, &row.CountryCode, &row.Count); err != nil {
			return nil, fmt.Errorf("scan top country row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top country rows: %w", err)
	}
	return out, nil
}

func (q *Queries) TopCities(ctx context.Context, p RangeParams, limit int) ([]CityCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT city, COALESCE(country, '') AS ctry, COUNT(*) AS n
FROM sessions
WHERE site_id = ? AND started_at BETWEEN ? AND ? AND city IS NOT NULL AND city != ''
GROUP BY city, ctry
ORDER BY n DESC, city ASC
LIMIT ?`, p.SiteID, p.Start, p.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query top cities: %w", err)
	}
	defer rows.Close()

	out := []CityCountRow{}
	for rows.Next() {
		var row CityCountRow
		if err := rows.Scan(&row.City, &row.Country, &row.Count); err != nil {
			return nil, fmt.Errorf("scan top city row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top city rows: %w", err)
	}
	return out, nil
}

// LanguageCounts returns every locale tag seen on sessions in the window.
func (q *Queries) LanguageCounts(ctx context.Context, p RangeParams) ([]LanguageCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT language, COUNT(*) AS n
FROM sessions
WHERE site_id = ? AND started_at BETWEEN ? AND ? AND language IS NOT NULL AND language != ''
GROUP BY language
ORDER BY n DESC, language ASC`, p.SiteID, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("query language counts: %w", err)
	}
	defer rows.Close()

	out := []LanguageCountRow{}
	for rows.Next() {
		var row LanguageCountRow
		if err := rows.Scan(&row.Language, &row.Count); err != nil {
			return nil, fmt.Errorf("scan language row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language rows: %w", err)
	}
	return out, nil
}

// ActiveVisitors counts distinct visitor identities with an event after
// since. Events without a visitor id fall back to their ip hash.
func (q *Queries) ActiveVisitors(ctx context.Context, siteID, since string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
SELECT COUNT(DISTINCT COALESCE(visitor_id, ip_hash))
FROM events
WHERE site_id = ? AND timestamp > ?`, siteID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query active visitors: %w", err)
	}
	return n, nil
}

func (q *Queries) RecentEvents(ctx context.Context, p RangeParams, limit int) ([]RecentEventRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, COALESCE(visitor_id, ip_hash, ''), page_url, timestamp, country, country_code, city, region, event_type
FROM events
WHERE site_id = ? AND timestamp BETWEEN ? AND ?
ORDER BY timestamp DESC, id DESC
LIMIT ?`, p.SiteID, p.Start, p.End, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	out := []RecentEventRow{}
	for rows.Next() {
		var row RecentEventRow
		if err := rows.Scan(&row.ID, &row.VisitorKey, &row.PageURL, &row.Timestamp, &row.Country, &row.CountryCode, &row.City, &row.Region, &row.EventType); err != nil {
			return nil, fmt.Errorf("scan recent event row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent event rows: %w", err)
	}
	return out, nil
}

// DailyCounts buckets events by UTC calendar day. Days without events are
// absent from the result.
func (q *Queries) DailyCounts(ctx context.Context, p RangeParams) ([]DailyCountRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT substr(timestamp, 1, 10) AS day,
       COUNT(DISTINCT COALESCE(visitor_id, ip_hash)) AS visitors,
       COUNT(*) AS page_views
FROM events
WHERE site_id = ? AND timestamp BETWEEN ? AND ?
GROUP BY day
ORDER BY day ASC`, p.SiteID, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("query daily counts: %w", err)
	}
	defer rows.Close()

	out := []DailyCountRow{}
	for rows.Next() {
		var row DailyCountRow
		if err := rows.Scan(&row.Day, &row.Visitors, &row.PageViews); err != nil {
			return nil, fmt.Errorf("scan daily count row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily count rows: %w", err)
	}
	return out, nil
}
