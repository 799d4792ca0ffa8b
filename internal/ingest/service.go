package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benedict2310/slimlytics/internal/db"
	"github.com/benedict2310/slimlytics/internal/geoip"
	"github.com/benedict2310/slimlytics/internal/ids"
	"github.com/benedict2310/slimlytics/internal/metrics"
	"github.com/benedict2310/slimlytics/internal/stats"
)

var ErrUnknownSite = errors.New("unknown site")

// Notifier is told about every committed write for a site.
type Notifier interface {
	Notify(siteID string)
}

// RequestMeta carries what the HTTP layer knows about the request beyond the
// payload itself.
type RequestMeta struct {
	ClientIP   string
	UserAgent  string
	ReceivedAt time.Time
}

type Result struct {
	EventID        int64
	SessionCreated bool
}

type Options struct {
	DB       *sql.DB
	Resolver geoip.Resolver
	Hasher   *IPHasher
	Sites    *SiteCache
	Notifier Notifier
	Logger   *slog.Logger
}

type Service struct {
	db       *sql.DB
	resolver geoip.Resolver
	hasher   *IPHasher
	sites    *SiteCache
	notifier Notifier
	logger   *slog.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("ingest database is required")
	}
	if opts.Hasher == nil {
		return nil, fmt.Errorf("ingest ip hasher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sites := opts.Sites
	if sites == nil {
		q := db.NewQueries(opts.DB)
		sites = NewSiteCache(q.SiteExists, 0, 0)
	}
	return &Service{
		db:       opts.DB,
		resolver: opts.Resolver,
		hasher:   opts.Hasher,
		sites:    sites,
		notifier: opts.Notifier,
		logger:   logger,
	}, nil
}

// Sites exposes the cache so site deletion can evict entries.
func (s *Service) Sites() *SiteCache {
	return s.sites
}

// Track validates and stores one tracking payload: the event row and its
// session upsert commit together, and subscribers are notified only after
// the commit.
func (s *Service) Track(ctx context.Context, p Payload, meta RequestMeta) (Result, error) {
	ev, err := Normalize(p, meta.UserAgent)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("validation").Inc()
		return Result{}, err
	}
	return s.store(ctx, ev, meta)
}

func (s *Service) store(ctx context.Context, ev Event, meta RequestMeta) (Result, error) {
	ok, err := s.sites.Exists(ctx, ev.SiteID)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("store").Inc()
		return Result{}, fmt.Errorf("check site %s: %w", ev.SiteID, err)
	}
	if !ok {
		metrics.IngestRejected.WithLabelValues("unknown_site").Inc()
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSite, ev.SiteID)
	}

	received := meta.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	received = received.UTC()
	ts := db.FormatTimestamp(received)

	clientIP := meta.ClientIP
	if clientIP == "" {
		clientIP = UnknownIP
	}
	ipHash := s.hasher.Hash(clientIP)
	var loc geoip.Location
	if s.resolver != nil {
		loc = s.resolver.Lookup(ctx, clientIP)
	}

	visitorID := ev.VisitorID
	if visitorID == "" {
		visitorID = ipHash
	}
	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = s.hasher.SessionFallback(ipHash, ev.UserAgent, received.Format(time.DateOnly))
	}

	eventRow := db.EventRow{
		SiteID:           ev.SiteID,
		PageURL:          ev.PageURL,
		Referrer:         optional(ev.Referrer),
		UserAgent:        optional(ev.UserAgent),
		IPHash:           &ipHash,
		ScreenResolution: optional(ev.ScreenResolution),
		Language:         optional(ev.Language),
		Timestamp:        ts,
		Country:          optional(loc.Country),
		CountryCode:      optional(loc.CountryCode),
		Region:           optional(loc.Region),
		City:             optional(loc.City),
		Latitude:         loc.Latitude,
		Longitude:        loc.Longitude,
		Timezone:         optional(loc.Timezone),
		ASNOrg:           optional(loc.ASNOrg),
		VisitorID:        &visitorID,
		SessionID:        &sessionID,
		EventType:        ev.EventType,
		EventData:        optional(ev.EventData),
	}
	if loc.ASN != 0 {
		asn := int64(loc.ASN)
		eventRow.ASN = &asn
	}

	client := ParseUserAgent(ev.UserAgent)
	utm := ParseUTM(ev.PageURL)
	source := stats.ClassifyTrafficSource(ev.Referrer)
	sessionRow := db.SessionRow{
		ID:               ids.NewSessionRowID(),
		SiteID:           ev.SiteID,
		VisitorID:        visitorID,
		SessionID:        sessionID,
		StartedAt:        ts,
		LastActivity:     ts,
		Referrer:         optional(ev.Referrer),
		UTMSource:        optional(utm.Source),
		UTMMedium:        optional(utm.Medium),
		UTMCampaign:      optional(utm.Campaign),
		UTMTerm:          optional(utm.Term),
		UTMContent:       optional(utm.Content),
		TrafficSource:    &source,
		Language:         optional(ev.Language),
		Country:          optional(loc.Country),
		CountryCode:      optional(loc.CountryCode),
		Region:           optional(loc.Region),
		City:             optional(loc.City),
		Latitude:         loc.Latitude,
		Longitude:        loc.Longitude,
		Timezone:         optional(loc.Timezone),
		UserAgent:        optional(ev.UserAgent),
		ScreenResolution: optional(ev.ScreenResolution),
		Browser:          optional(client.Browser),
		OS:               optional(client.OS),
		DeviceType:       optional(client.DeviceType),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("store").Inc()
		return Result{}, fmt.Errorf("begin ingest transaction: %w", err)
	}
	q := db.NewQueries(tx)
	eventID, err := q.InsertEvent(ctx, eventRow)
	if err != nil {
		_ = tx.Rollback()
		metrics.IngestRejected.WithLabelValues("store").Inc()
		return Result{}, err
	}
	pageViews, err := q.UpsertSession(ctx, sessionRow)
	if err != nil {
		_ = tx.Rollback()
		metrics.IngestRejected.WithLabelValues("store").Inc()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		metrics.IngestRejected.WithLabelValues("store").Inc()
		return Result{}, fmt.Errorf("commit ingest transaction: %w", err)
	}

	metrics.EventsIngested.WithLabelValues(eventTypeLabel(ev.EventType)).Inc()
	created := pageViews == 1
	if created {
		metrics.SessionsCreated.Inc()
	}
	if s.notifier != nil {
		s.notifier.Notify(ev.SiteID)
	}
	s.logger.Debug("event stored", "site_id", ev.SiteID, "event_id", eventID, "event_type", ev.EventType, "session_created", created)
	return Result{EventID: eventID, SessionCreated: created}, nil
}

// eventTypeLabel keeps metric cardinality bounded; event types are client
// supplied.
func eventTypeLabel(eventType string) string {
	switch eventType {
	case DefaultEventType, NoscriptEventType:
		return eventType
	default:
		return "custom"
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
