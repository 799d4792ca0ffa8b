package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benedict2310/slimlytics/internal/stats"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	start time.Time
	err   error
	now   time.Time
}

func (f *fakeSource) GetDashboardStats(_ context.Context, siteID string, start, _ time.Time) (stats.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, siteID)
	f.start = start
	if f.err != nil {
		return stats.Snapshot{}, f.err
	}
	return stats.Snapshot{Visitors: 7, PageViews: 9}, nil
}

func (f *fakeSource) Now() time.Time { return f.now }

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitIdle(t *testing.T, n *Notifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
}

func TestNotifierBroadcastsTodaySnapshot(t *testing.T) {
	hub := NewHub(nil)
	source := &fakeSource{now: time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)}
	n := NewNotifier(hub, source, NotifierOptions{Workers: 1})
	t.Cleanup(func() { _ = n.Close(context.Background()) })

	c := newTestClient(hub, 4)
	hub.Subscribe(c, "site1")

	n.Notify("site1")
	waitIdle(t, n)

	if source.callCount() != 1 {
		t.Fatalf("expected one snapshot computation, got %d", source.callCount())
	}
	if want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC); !source.start.Equal(want) {
		t.Fatalf("snapshot start = %v, want %v", source.start, want)
	}
	select {
	case payload := <-c.send:
		msg := decodeMessage(t, payload)
		if msg.Type != TypeStatsUpdate || msg.SiteID != "site1" || msg.Stats == nil || msg.Stats.Visitors != 7 {
			t.Fatalf("unexpected message %#v", msg)
		}
		if msg.Timestamp == "" {
			t.Fatalf("stats-update must carry a timestamp")
		}
	default:
		t.Fatalf("subscriber must receive the update")
	}
}

func TestNotifierSkipsSitesWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	source := &fakeSource{now: time.Now()}
	n := NewNotifier(hub, source, NotifierOptions{})
	t.Cleanup(func() { _ = n.Close(context.Background()) })

	n.Notify("nobody-listens")
	waitIdle(t, n)
	if source.callCount() != 0 {
		t.Fatalf("no snapshot should be computed without subscribers")
	}
}

func TestNotifierErrorsAreNotBroadcast(t *testing.T) {
	hub := NewHub(nil)
	source := &fakeSource{now: time.Now(), err: errors.New("database is locked")}
	n := NewNotifier(hub, source, NotifierOptions{Workers: 1})
	t.Cleanup(func() { _ = n.Close(context.Background()) })

	c := newTestClient(hub, 4)
	hub.Subscribe(c, "site1")
	n.Notify("site1")
	waitIdle(t, n)

	if len(c.send) != 0 {
		t.Fatalf("failed snapshot must not be pushed")
	}
	if hub.SubscriberCount("site1") != 1 {
		t.Fatalf("subscriber must survive a failed snapshot")
	}
}

func TestNotifierPrimeTargetsOneClient(t *testing.T) {
	hub := NewHub(nil)
	source := &fakeSource{now: time.Now()}
	n := NewNotifier(hub, source, NotifierOptions{Workers: 1})
	t.Cleanup(func() { _ = n.Close(context.Background()) })

	fresh := newTestClient(hub, 4)
	existing := newTestClient(hub, 4)
	hub.Subscribe(fresh, "site1")
	hub.Subscribe(existing, "site1")

	n.Prime(fresh, "site1")
	waitIdle(t, n)
	if len(fresh.send) != 1 || len(existing.send) != 0 {
		t.Fatalf("Prime must reach only the new client, fresh=%d existing=%d", len(fresh.send), len(existing.send))
	}
}

func TestNotifierCloseRejectsLaterSignals(t *testing.T) {
	hub := NewHub(nil)
	source := &fakeSource{now: time.Now()}
	n := NewNotifier(hub, source, NotifierOptions{})
	hub.Subscribe(newTestClient(hub, 4), "site1")

	if err := n.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	n.Notify("site1")
	waitIdle(t, n)
	if source.callCount() != 0 {
		t.Fatalf("closed notifier must ignore Notify")
	}
}
