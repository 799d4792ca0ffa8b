package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_events_ingested_total",
			Help: "Events committed to the store.",
		},
		[]string{"event_type"},
	)

	IngestRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_ingest_rejected_total",
			Help: "Tracking requests that were not stored.",
		},
		[]string{"reason"}, // validation, unknown_site, store
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slimlytics_sessions_created_total",
			Help: "Sessions created by the first event carrying a new session id.",
		},
	)

	SiteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_site_cache_lookups_total",
			Help: "Site existence checks on the ingestion path.",
		},
		[]string{"result"}, // hit, miss
	)

	GeoIPLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_geoip_lookups_total",
			Help: "GeoIP resolutions by tier and outcome.",
		},
		[]string{"tier", "result"},
	)

	StatsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slimlytics_stats_query_duration_seconds",
			Help:    "Duration of aggregation engine calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slimlytics_realtime_subscribers",
			Help: "Websocket clients currently subscribed to a site.",
		},
	)

	RealtimeMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_realtime_messages_total",
			Help: "Messages queued to realtime subscribers.",
		},
		[]string{"type"},
	)

	RealtimeEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_realtime_evictions_total",
			Help: "Subscribers dropped by the hub.",
		},
		[]string{"reason"}, // queue_full, write_failed, idle
	)

	NotifyDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slimlytics_notify_dropped_total",
			Help: "Fan-out requests dropped because the notifier queue was full.",
		},
	)

	AuditDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_audit_dropped_total",
			Help: "Audit entries that were not written.",
		},
		[]string{"reason"}, // queue_full, write_failed
	)

	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimlytics_retention_deleted_total",
			Help: "Rows removed by the retention cleanup loop.",
		},
		[]string{"table"},
	)
)

// ObserveStatsQuery records the time elapsed since start under query.
func ObserveStatsQuery(query string, start time.Time) {
	StatsQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
