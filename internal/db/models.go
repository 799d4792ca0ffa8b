package db

type SiteRow struct {
	ID        string
	Name      string
	Domain    string
	CreatedAt string
	UpdatedAt string
}

type EventRow struct {
	ID               int64
	SiteID           string
	PageURL          string
	Referrer         *string
	UserAgent        *string
	IPHash           *string
	ScreenResolution *string
	Language         *string
	Timestamp        string
	Country          *string
	CountryCode      *string
	Region           *string
	City             *string
	Latitude         *float64
	Longitude        *float64
	Timezone         *string
	ASN              *int64
	ASNOrg           *string
	VisitorID        *string
	SessionID        *string
	EventType        string
	EventData        *string
}

type SessionRow struct {
	ID               string
	SiteID           string
	VisitorID        string
	SessionID        string
	StartedAt        string
	LastActivity     string
	Referrer         *string
	UTMSource        *string
	UTMMedium        *string
	UTMCampaign      *string
	UTMTerm          *string
	UTMContent       *string
	TrafficSource    *string
	Language         *string
	Country          *string
	CountryCode      *string
	Region           *string
	City             *string
	Latitude         *float64
	Longitude        *float64
	Timezone         *string
	UserAgent        *string
	ScreenResolution *string
	Browser          *string
	OS               *string
	DeviceType       *string
	PageViews        int64
	Duration         int64
	IsBounce         bool
}

type AuditLogRow struct {
	ID           int64
	Actor        string
	Timestamp    string
	SiteID       *string
	Operation    string
	Summary      string
	MetadataJSON string
}

// RangeParams scopes a query to one site and an inclusive timestamp window.
type RangeParams struct {
	SiteID string
	Start  string
	End    string
}

// DeleteRangeParams selects rows of one site in [Since, Until); nil bounds
// are open.
type DeleteRangeParams struct {
	SiteID string
	Since  *string
	Until  *string
}

type PeriodTotalsRow struct {
	Visitors           int64
	PageViews          int64
	BounceRate         float64
	AvgSessionDuration float64
}

type PageCountRow struct {
	URL   string
	Views int64
}

type ReferrerCountRow struct {
	Referrer string
	Count    int64
}

type CountryCountRow struct {
	Country     string
	CountryCode string
	Count       int64
}

type CityCountRow struct {
	City    string
	Country string
	Count   int64
}

type LanguageCountRow struct {
	Language string
	Count    int64
}

type RecentEventRow struct {
	ID          int64
	VisitorKey  string
	PageURL     string
	Timestamp   string
	Country     *string
	CountryCode *string
	City        *string
	Region      *string
	EventType   string
}

type DailyCountRow struct {
	Day       string
	Visitors  int64
	PageViews int64
}
