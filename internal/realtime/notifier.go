package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benedict2310/slimlytics/internal/metrics"
	"github.com/benedict2310/slimlytics/internal/stats"
)

const (
	DefaultWorkers      = 2
	DefaultQueueSize    = 256
	defaultSnapshotWait = 10 * time.Second
)

// SnapshotSource computes the dashboard snapshot pushed to subscribers.
type SnapshotSource interface {
	GetDashboardStats(ctx context.Context, siteID string, start, end time.Time) (stats.Snapshot, error)
	Now() time.Time
}

type NotifierOptions struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Logger    *slog.Logger
}

type job struct {
	siteID string
	client *Client
}

// Notifier turns "site X changed" signals into stats-update pushes. Notify
// never blocks the caller; a signal for a site that already has a broadcast
// waiting in the queue is folded into it.
type Notifier struct {
	hub     *Hub
	source  SnapshotSource
	logger  *slog.Logger
	timeout time.Duration

	queue   chan job
	closed  bool
	queued  map[string]bool
	mu      sync.Mutex
	once    sync.Once
	wg      sync.WaitGroup
	pending sync.WaitGroup
}

func NewNotifier(hub *Hub, source SnapshotSource, opts NotifierOptions) *Notifier {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSnapshotWait
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	n := &Notifier{
		hub:     hub,
		source:  source,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		queue:   make(chan job, opts.QueueSize),
		queued:  map[string]bool{},
	}
	n.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go n.run()
	}
	return n
}

// Notify schedules a broadcast of siteID's current snapshot.
func (n *Notifier) Notify(siteID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.queued[siteID] {
		return
	}
	if n.enqueueLocked(job{siteID: siteID}) {
		n.queued[siteID] = true
	}
}

// Prime schedules a snapshot for c alone.
func (n *Notifier) Prime(c *Client, siteID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.enqueueLocked(job{siteID: siteID, client: c})
}

func (n *Notifier) enqueueLocked(j job) bool {
	n.pending.Add(1)
	select {
	case n.queue <- j:
		return true
	default:
		n.pending.Done()
		metrics.NotifyDropped.Inc()
		n.logger.Warn("realtime notify queue full; dropping update", "site_id", j.siteID)
		return false
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for j := range n.queue {
		if j.client == nil {
			n.mu.Lock()
			delete(n.queued, j.siteID)
			n.mu.Unlock()
		}
		n.process(j)
		n.pending.Done()
	}
}

func (n *Notifier) process(j job) {
	if j.client == nil && n.hub.SubscriberCount(j.siteID) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	now := n.source.Now()
	snap, err := n.source.GetDashboardStats(ctx, j.siteID, stats.StartOfDayUTC(now), now)
	if err != nil {
		n.logger.Error("compute realtime snapshot failed", "site_id", j.siteID, "error", err)
		return
	}
	msg := statsUpdate(j.siteID, snap, now)
	if j.client != nil {
		n.hub.SendTo(j.client, j.siteID, msg)
		return
	}
	delivered := n.hub.Broadcast(j.siteID, msg)
	n.logger.Debug("realtime snapshot broadcast", "site_id", j.siteID, "delivered", delivered)
}

// Close stops accepting signals, drains the queue and waits for workers.
func (n *Notifier) Close(ctx context.Context) error {
	n.once.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for realtime notifier: %w", ctx.Err())
	}
}

// WaitIdle blocks until every queued signal has been processed.
func (n *Notifier) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.pending.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
