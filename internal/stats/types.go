package stats

// Snapshot is the dashboard payload for one site and window. Field names are
// part of the HTTP and realtime wire format.
type Snapshot struct {
	Visitors           int64           `json:"visitors"`
	PageViews          int64           `json:"pageViews"`
	AvgSessionDuration float64         `json:"avgSessionDuration"`
	BounceRate         float64         `json:"bounceRate"`
	VisitorsTrend      float64         `json:"visitorsTrend"`
	PageViewsTrend     float64         `json:"pageViewsTrend"`
	RealtimeVisitors   int64           `json:"realtimeVisitors"`
	TopPages           []PageCount     `json:"topPages"`
	TopReferrers       []ReferrerCount `json:"topReferrers"`
	TopCountries       []CountryCount  `json:"topCountries"`
	TopCities          []CityCount     `json:"topCities"`
	TopLocales         []LocaleCount   `json:"topLocales"`
	TrafficSources     []TrafficSource `json:"trafficSources"`
	SearchQueries      []SearchQuery   `json:"searchQueries"`
	RecentVisitors     []RecentVisitor `json:"recentVisitors"`
}

type PageCount struct {
	URL   string `json:"url"`
	Views int64  `json:"views"`
}

type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

type CountryCount struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Count       int64  `json:"count"`
}

type CityCount struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type LocaleCount struct {
	Locale     string  `json:"locale"`
	Language   string  `json:"language"`
	Country    string  `json:"country"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TrafficSource struct {
	Source     string  `json:"source"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type SearchQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// RecentVisitor is one recent event. IPHash carries the visitor id when the
// event has one and the ip hash otherwise; the key name is kept for existing
// dashboards.
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

type TimeSeries struct {
	Labels    []string `json:"labels"`
	Dates     []string `json:"dates"`
	Visitors  []int64  `json:"visitors"`
	PageViews []int64  `json:"pageViews"`
}
