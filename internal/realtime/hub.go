package realtime

import (
	"log/slog"
	"sync"

	"github.com/benedict2310/slimlytics/internal/metrics"
)

// Hub is the registry of live subscribers, keyed by site. Each client is
// subscribed to at most one site. Sends never block: a client whose queue is
// full is evicted.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	sites   map[string]map[*Client]struct{}
	clients map[*Client]string
	conns   map[*Client]struct{}
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		sites:   map[string]map[*Client]struct{}{},
		clients: map[*Client]string{},
		conns:   map[*Client]struct{}{},
	}
}

// attach tracks a connected client that has not subscribed yet so Close can
// reach it.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

// Subscribe registers c for siteID, moving it off any previous site.
func (h *Hub) Subscribe(c *Client, siteID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.removeLocked(c)
	set, ok := h.sites[siteID]
	if !ok {
		set = map[*Client]struct{}{}
		h.sites[siteID] = set
	}
	set[c] = struct{}{}
	h.clients[c] = siteID
	h.conns[c] = struct{}{}
	metrics.RealtimeSubscribers.Set(float64(len(h.clients)))
	h.logger.Info("realtime client subscribed", "site_id", siteID, "client_id", c.id, "site_subscribers", len(set))
	return true
}

// Unsubscribe forgets c entirely. It is safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	siteID, ok := h.clients[c]
	if !ok {
		return
	}
	delete(h.clients, c)
	if set := h.sites[siteID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.sites, siteID)
		}
	}
	metrics.RealtimeSubscribers.Set(float64(len(h.clients)))
}

// Broadcast queues msg for every subscriber of siteID and returns how many
// clients accepted it.
func (h *Hub) Broadcast(siteID string, msg Message) int {
	payload, err := encode(msg)
	if err != nil {
		h.logger.Error("encode realtime message failed", "site_id", siteID, "type", msg.Type, "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for c := range h.sites[siteID] {
		if h.offerLocked(c, payload) {
			delivered++
		}
	}
	if delivered > 0 {
		metrics.RealtimeMessagesSent.WithLabelValues(msg.Type).Add(float64(delivered))
	}
	return delivered
}

// SendTo queues msg for c alone, provided c is still subscribed to siteID.
func (h *Hub) SendTo(c *Client, siteID string, msg Message) bool {
	payload, err := encode(msg)
	if err != nil {
		h.logger.Error("encode realtime message failed", "site_id", siteID, "type", msg.Type, "error", err)
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[c]; !ok || current != siteID {
		return false
	}
	if !h.offerLocked(c, payload) {
		return false
	}
	metrics.RealtimeMessagesSent.WithLabelValues(msg.Type).Inc()
	return true
}

func (h *Hub) offerLocked(c *Client, payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		h.logger.Warn("realtime client send queue full; evicting", "site_id", h.clients[c], "client_id", c.id)
		metrics.RealtimeEvictions.WithLabelValues("queue_full").Inc()
		delete(h.conns, c)
		h.removeLocked(c)
		c.close()
		return false
	}
}

func (h *Hub) SubscriberCount(siteID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sites[siteID])
}

// Close disconnects every client and rejects later subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.conns {
		c.close()
	}
	h.sites = map[string]map[*Client]struct{}{}
	h.clients = map[*Client]string{}
	h.conns = map[*Client]struct{}{}
	metrics.RealtimeSubscribers.Set(0)
}
