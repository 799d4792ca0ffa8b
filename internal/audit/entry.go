package audit

import (
	"context"
	"time"
)

const (
	OperationSiteCreate       = "site.create"
	OperationSiteUpdate       = "site.update"
	OperationSiteDelete       = "site.delete"
	OperationDataClear        = "data.clear"
	OperationRetentionCleanup = "retention.cleanup"
)

type Entry struct {
	ID        int64          `json:"id"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	SiteID    *string        `json:"siteId,omitempty"`
	Operation string         `json:"operation"`
	Summary   string         `json:"summary"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Filter narrows a Query. A nil SiteID matches every entry, including
// entries that are not tied to a site.
type Filter struct {
	SiteID    *string
	Operation string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

type QueryResult struct {
	Entries []Entry
	Total   int
	Limit   int
	Offset  int
}

type Logger interface {
	Log(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) (QueryResult, error)
}
