package realtime

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/benedict2310/slimlytics/internal/stats"
)

const (
	TypeSubscribe   = "subscribe"
	TypeSubscribed  = "subscribed"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeStatsUpdate = "stats-update"
	TypeError       = "error"
)

// Message is every frame the server writes to a dashboard.
type Message struct {
	Type      string          `json:"type"`
	SiteID    string          `json:"siteId,omitempty"`
	Message   string          `json:"message,omitempty"`
	Stats     *stats.Snapshot `json:"stats,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// inbound is what a dashboard may send.
type inbound struct {
	Type   string `json:"type"`
	SiteID string `json:"siteId"`
}

func statsUpdate(siteID string, snap stats.Snapshot, now time.Time) Message {
	return Message{
		Type:      TypeStatsUpdate,
		SiteID:    siteID,
		Stats:     &snap,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
