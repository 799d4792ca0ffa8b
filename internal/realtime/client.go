package realtime

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/benedict2310/slimlytics/internal/metrics"
	"github.com/benedict2310/slimlytics/internal/names"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 90 * time.Second
	DefaultSendQueue    = 64
	maxMessageSize      = 4 << 10
)

var clientIDCounter atomic.Uint64

// Primer delivers the first snapshot to a freshly subscribed client.
type Primer interface {
	Prime(c *Client, siteID string)
}

type Options struct {
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	SendQueue      int
	AllowedOrigins []string
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.SendQueue <= 0 {
		o.SendQueue = DefaultSendQueue
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client is one websocket connection. The hub writes encoded frames to send;
// writePump owns all writes to conn and readPump owns all reads.
type Client struct {
	id     uint64
	hub    *Hub
	primer Primer
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	opts   Options
}

func newClient(hub *Hub, primer Primer, conn *websocket.Conn, opts Options) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		hub:    hub,
		primer: primer,
		conn:   conn,
		send:   make(chan []byte, opts.SendQueue),
		done:   make(chan struct{}),
		opts:   opts,
	}
}

func (c *Client) ID() uint64 {
	return c.id
}

// close stops both pumps. The send channel is never closed so concurrent
// non-blocking sends stay safe.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// reply queues msg without going through the hub; used for protocol answers
// on this connection only.
func (c *Client) reply(msg Message) {
	payload, err := encode(msg)
	if err != nil {
		c.opts.Logger.Error("encode realtime reply failed", "client_id", c.id, "error", err)
		return
	}
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		c.opts.Logger.Warn("realtime reply dropped; send queue full", "client_id", c.id, "type", msg.Type)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				metrics.RealtimeEvictions.WithLabelValues("idle").Inc()
				c.opts.Logger.Info("realtime client idle; closing", "client_id", c.id)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.opts.Logger.Warn("unexpected websocket close", "client_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.opts.Logger.Debug("ignoring malformed realtime message", "client_id", c.id, "error", err)
		return
	}
	switch msg.Type {
	case TypeSubscribe:
		siteID := strings.TrimSpace(msg.SiteID)
		if err := names.ValidateSiteID(siteID); err != nil {
			c.reply(Message{Type: TypeError, Message: "invalid siteId: " + err.Error()})
			return
		}
		if !c.hub.Subscribe(c, siteID) {
			return
		}
		c.reply(Message{Type: TypeSubscribed, SiteID: siteID, Message: "Successfully subscribed to real-time updates"})
		if c.primer != nil {
			c.primer.Prime(c, siteID)
		}
	case TypePing:
		c.reply(Message{Type: TypePong})
	default:
		c.opts.Logger.Debug("ignoring unknown realtime message", "client_id", c.id, "type", msg.Type)
	}
}

func (c *Client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.RealtimeEvictions.WithLabelValues("write_failed").Inc()
				c.opts.Logger.Warn("realtime write failed; closing", "client_id", c.id, "error", err)
				c.hub.Unsubscribe(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unsubscribe(c)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// Handler upgrades requests to websocket connections served by hub.
func Handler(hub *Hub, primer Primer, opts Options) http.Handler {
	opts = opts.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	pingPeriod := opts.IdleTimeout * 9 / 10

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			opts.Logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		c := newClient(hub, primer, conn, opts)
		if !hub.attach(c) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
		opts.Logger.Debug("realtime client connected", "client_id", c.id, "remote_addr", r.RemoteAddr)
		go c.writePump(pingPeriod)
		go c.readPump()
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
