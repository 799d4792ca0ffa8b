package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/benedict2310/slimlytics/internal/db"
	"github.com/benedict2310/slimlytics/internal/metrics"
)

const (
	DefaultWindow         = 30 * 24 * time.Hour
	RealtimeWindow        = 5 * time.Minute
	MaxTimeSeriesDays     = 366
	topLimit              = 10
	snapshotSearchLimit   = 6
	DefaultSearchLimit    = 10
	DefaultRecentLimit    = 20
	MaxRecentLimit        = 100
	snapshotRecentVisitor = DefaultRecentLimit
)

var (
	ErrInvalidWindow  = errors.New("start must not be after end")
	ErrWindowTooLarge = fmt.Errorf("time series window exceeds %d days", MaxTimeSeriesDays)
)

// Engine answers every aggregate question about a site's traffic. All reads
// for one call run inside a single transaction so the numbers agree with each
// other.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(sqlDB *sql.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: sqlDB, logger: logger, now: time.Now}
}

// Now returns the engine clock in UTC.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// GetDashboardStats computes the full snapshot for [start, end].
func (e *Engine) GetDashboardStats(ctx context.Context, siteID string, start, end time.Time) (Snapshot, error) {
	if start.After(end) {
		return Snapshot{}, ErrInvalidWindow
	}
	defer metrics.ObserveStatsQuery("dashboard", time.Now())

	var out Snapshot
	err := e.read(ctx, func(q *db.Queries) error {
		cur := rangeParams(siteID, start, end)
		prevStart := start.Add(-end.Sub(start))
		prev := rangeParams(siteID, prevStart, start)

		totals, err := q.PeriodTotals(ctx, cur)
		if err != nil {
			return err
		}
		prevTotals, err := q.PeriodTotals(ctx, prev)
		if err != nil {
			return err
		}
		out.Visitors = totals.Visitors
		out.PageViews = totals.PageViews
		out.BounceRate = round2(totals.BounceRate)
		out.AvgSessionDuration = round2(totals.AvgSessionDuration)
		out.VisitorsTrend = trend(totals.Visitors, prevTotals.Visitors)
		out.PageViewsTrend = trend(totals.PageViews, prevTotals.PageViews)

		pages, err := q.TopPages(ctx, cur, topLimit)
		if err != nil {
			return err
		}
		out.TopPages = make([]PageCount, 0, len(pages))
		for _, p := range pages {
			out.TopPages = append(out.TopPages, PageCount{URL: p.URL, Views: p.Views})
		}

		refs, err := q.TopReferrers(ctx, cur, topLimit)
		if err != nil {
			return err
		}
		out.TopReferrers = make([]ReferrerCount, 0, len(refs))
		for _, r := range refs {
			out.TopReferrers = append(out.TopReferrers, ReferrerCount{Referrer: r.Referrer, Count: r.Count})
		}

		countries, err := q.TopCountries(ctx, cur, topLimit)
		if err != nil {
			return err
		}
		out.TopCountries = make([]CountryCount, 0, len(countries))
		for _, c := range countries {
			out.TopCountries = append(out.TopCountries, CountryCount{Country: c.Country, CountryCode: c.CountryCode, Count: c.Count})
		}

		cities, err := q.TopCities(ctx, cur, topLimit)
		if err != nil {
			return err
		}
		out.TopCities = make([]CityCount, 0, len(cities))
		for _, c := range cities {
			out.TopCities = append(out.TopCities, CityCount{City: c.City, Country: c.Country, Count: c.Count})
		}

		languages, err := q.LanguageCounts(ctx, cur)
		if err != nil {
			return err
		}
		out.TopLocales = topLocales(languages, topLimit)

		referrerCounts, err := q.ReferrerCounts(ctx, cur)
		if err != nil {
			return err
		}
		out.TrafficSources = TrafficSources(referrerCounts)
		out.SearchQueries = SearchQueries(referrerCounts, snapshotSearchLimit)

		active, err := q.ActiveVisitors(ctx, siteID, db.FormatTimestamp(e.Now().Add(-RealtimeWindow)))
		if err != nil {
			return err
		}
		out.RealtimeVisitors = active

		recent, err := q.RecentEvents(ctx, cur, snapshotRecentVisitor)
		if err != nil {
			return err
		}
		out.RecentVisitors = recentVisitors(recent)
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard stats for site %s: %w", siteID, err)
	}
	return out, nil
}

// GetTimeSeries returns one point per UTC calendar day from start's day to
// end's day inclusive. Days without events are zero.
func (e *Engine) GetTimeSeries(ctx context.Context, siteID string, start, end time.Time) (TimeSeries, error) {
	if start.After(end) {
		return TimeSeries{}, ErrInvalidWindow
	}
	firstDay := utcDay(start)
	lastDay := utcDay(end)
	days := int(lastDay.Sub(firstDay)/(24*time.Hour)) + 1
	if days > MaxTimeSeriesDays {
		return TimeSeries{}, ErrWindowTooLarge
	}
	defer metrics.ObserveStatsQuery("timeseries", time.Now())

	var rows []db.DailyCountRow
	err := e.read(ctx, func(q *db.Queries) error {
		var err error
		rows, err = q.DailyCounts(ctx, rangeParams(siteID, start, end))
		return err
	})
	if err != nil {
		return TimeSeries{}, fmt.Errorf("time series for site %s: %w", siteID, err)
	}

	byDay := make(map[string]db.DailyCountRow, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}
	out := TimeSeries{
		Labels:    make([]string, 0, days),
		Dates:     make([]string, 0, days),
		Visitors:  make([]int64, 0, days),
		PageViews: make([]int64, 0, days),
	}
	for d := firstDay; !d.After(lastDay); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		row := byDay[key]
		out.Labels = append(out.Labels, d.Format("Jan 2"))
		out.Dates = append(out.Dates, key)
		out.Visitors = append(out.Visitors, row.Visitors)
		out.PageViews = append(out.PageViews, row.PageViews)
	}
	return out, nil
}

// GetRealtimeVisitors counts distinct visitors seen in the trailing five
// minutes.
func (e *Engine) GetRealtimeVisitors(ctx context.Context, siteID string) (int64, error) {
	defer metrics.ObserveStatsQuery("realtime", time.Now())
	since := db.FormatTimestamp(e.Now().Add(-RealtimeWindow))
	n, err := db.NewQueries(e.db).ActiveVisitors(ctx, siteID, since)
	if err != nil {
		return 0, fmt.Errorf("realtime visitors for site %s: %w", siteID, err)
	}
	return n, nil
}

func (e *Engine) GetRecentVisitors(ctx context.Context, siteID string, start, end time.Time, limit int) ([]RecentVisitor, error) {
	if start.After(end) {
		return nil, ErrInvalidWindow
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	defer metrics.ObserveStatsQuery("recent_visitors", time.Now())
	rows, err := db.NewQueries(e.db).RecentEvents(ctx, rangeParams(siteID, start, end), limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors for site %s: %w", siteID, err)
	}
	return recentVisitors(rows), nil
}

func (e *Engine) GetSearchQueries(ctx context.Context, siteID string, start, end time.Time, limit int) ([]SearchQuery, error) {
	if start.After(end) {
		return nil, ErrInvalidWindow
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	defer metrics.ObserveStatsQuery("search_queries", time.Now())
	counts, err := db.NewQueries(e.db).ReferrerCounts(ctx, rangeParams(siteID, start, end))
	if err != nil {
		return nil, fmt.Errorf("search queries for site %s: %w", siteID, err)
	}
	return SearchQueries(counts, limit), nil
}

func (e *Engine) read(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(db.NewQueries(tx))
}

func topLocales(rows []db.LanguageCountRow, limit int) []LocaleCount {
	var total int64
	for _, r := range rows {
		total += r.Count
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]LocaleCount, 0, len(rows))
	for _, r := range rows {
		language, country := LocaleNames(r.Language)
		out = append(out, LocaleCount{
			Locale:     r.Language,
			Language:   language,
			Country:    country,
			Count:      r.Count,
			Percentage: percentage(r.Count, total),
		})
	}
	return out
}

func recentVisitors(rows []db.RecentEventRow) []RecentVisitor {
	out := make([]RecentVisitor, 0, len(rows))
	for _, r := range rows {
		out = append(out, RecentVisitor{
			IPHash:      r.VisitorKey,
			PageURL:     r.PageURL,
			Timestamp:   r.Timestamp,
			Country:     r.Country,
			CountryCode: r.CountryCode,
			City:        r.City,
			Region:      r.Region,
			EventType:   r.EventType,
		})
	}
	return out
}

func rangeParams(siteID string, start, end time.Time) db.RangeParams {
	return db.RangeParams{
		SiteID: siteID,
		Start:  db.FormatTimestamp(start),
		End:    db.FormatTimestamp(end),
	}
}

// trend is the percentage change from prev to cur, 0 when there is nothing
// to compare against.
func trend(cur, prev int64) float64 {
	if prev == 0 {
		return 0
	}
	return round2(float64(cur-prev) / float64(prev) * 100)
}

func percentage(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfDayUTC is midnight UTC of t's calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	return utcDay(t)
}
