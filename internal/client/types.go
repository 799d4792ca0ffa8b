package client

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

type SitesResponse struct {
	Sites []Site `json:"sites"`
}

// SiteRequest is the create/update body. Nil fields are left unchanged on
// update.
type SiteRequest struct {
	Name   *string `json:"name,omitempty"`
	Domain *string `json:"domain,omitempty"`
}

type RealtimeResponse struct {
	Visitors int64 `json:"visitors"`
}

type RecentVisitorsResponse struct {
	Visitors []RecentVisitor `json:"visitors"`
}

type SearchQueriesResponse struct {
	Queries []SearchQuery `json:"queries"`
}

type ClearDataRequest struct {
	Range string `json:"range"`
}

type ClearDataResponse struct {
	Success bool   `json:"success"`
	Deleted int64  `json:"deleted"`
	Message string `json:"message"`
}

type AuditQuery struct {
	Site      string
	Operation string
	Limit     int
	Offset    int
}

type AuditLogResponse struct {
	Entries []AuditLogEntry `json:"entries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type AuditLogEntry struct {
	ID        int64          `json:"id"`
	Actor     string         `json:"actor"`
	Timestamp string         `json:"timestamp"`
	SiteID    *string        `json:"siteId,omitempty"`
	Operation string         `json:"operation"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Site struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Snapshot mirrors the dashboard payload of GET /api/stats/{siteId}.
type Snapshot struct {
	Visitors           int64   `json:"visitors"`
	PageViews          int64   `json:"pageViews"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	BounceRate         float64 `json:"bounceRate"`
	VisitorsTrend      float64 `json:"visitorsTrend"`
	PageViewsTrend     float64 `json:"pageViewsTrend"`
	RealtimeVisitors   int64   `json:"realtimeVisitors"`
	TopPages           []struct {
		URL   string `json:"url"`
		Views int64  `json:"views"`
	} `json:"topPages"`
	TopReferrers []struct {
		Referrer string `json:"referrer"`
		Count    int64  `json:"count"`
	} `json:"topReferrers"`
	TopCountries []struct {
		Country     string `json:"country"`
		CountryCode string `json:"countryCode"`
		Count       int64  `json:"count"`
	} `json:"topCountries"`
	TopCities []struct {
		City    string `json:"city"`
		Country string `json:"country"`
		Count   int64  `json:"count"`
	} `json:"topCities"`
	TopLocales []struct {
		Locale     string  `json:"locale"`
		Language   string  `json:"language"`
		Country    string  `json:"country"`
		Count      int64   `json:"count"`
		Percentage float64 `json:"percentage"`
	} `json:"topLocales"`
	TrafficSources []struct {
		Source     string  `json:"source"`
		Count      int64   `json:"count"`
		Percentage float64 `json:"percentage"`
	} `json:"trafficSources"`
	SearchQueries  []SearchQuery   `json:"searchQueries"`
	RecentVisitors []RecentVisitor `json:"recentVisitors"`
}

type TimeSeries struct {
	Labels    []string `json:"labels"`
	Dates     []string `json:"dates"`
	Visitors  []int64  `json:"visitors"`
	PageViews []int64  `json:"pageViews"`
}

type SearchQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type RecentVisitor struct {
	IPHash      string  `json:"ip_hash"`
	PageURL     string  `json:"page_url"`
	Timestamp   string  `json:"timestamp"`
	Country     *string `json:"country"`
	CountryCode *string `json:"country_code"`
	City        *string `json:"city"`
	Region      *string `json:"region"`
	EventType   string  `json:"event_type"`
}
