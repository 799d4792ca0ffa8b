package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benedict2310/slimlytics/internal/metrics"
)

const (
	defaultQueueSize = 512
	writeTimeout     = 2 * time.Second
)

var (
	ErrLoggerClosed = errors.New("audit logger is closed")
	ErrQueueFull    = errors.New("audit log queue is full")
)

// AsyncLogger moves audit writes off the request path. Entries are stamped
// when they are queued, so the stored timestamp is the time of the
// operation rather than of the write.
type AsyncLogger struct {
	sink    *SQLiteLogger
	onError func(error)
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan Entry
	pending sync.WaitGroup
	done    chan struct{}
	once    sync.Once
}

func NewAsyncLogger(sink *SQLiteLogger, queueSize int, onError func(error)) *AsyncLogger {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	l := &AsyncLogger{
		sink:    sink,
		onError: onError,
		now:     time.Now,
		queue:   make(chan Entry, queueSize),
		done:    make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *AsyncLogger) drain() {
	defer close(l.done)
	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := l.sink.Log(ctx, entry)
		cancel()
		if err != nil {
			metrics.AuditDropped.WithLabelValues("write_failed").Inc()
			if l.onError != nil {
				l.onError(err)
			}
		}
		l.pending.Done()
	}
}

// Log queues entry without blocking. It fails when the logger is closed or
// the queue is full.
func (l *AsyncLogger) Log(_ context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLoggerClosed
	}
	l.pending.Add(1)
	select {
	case l.queue <- entry:
		return nil
	default:
		l.pending.Done()
		metrics.AuditDropped.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

func (l *AsyncLogger) Query(ctx context.Context, filter Filter) (QueryResult, error) {
	return l.sink.Query(ctx, filter)
}

// Close stops accepting entries and waits until the queued ones are
// written or ctx ends.
func (l *AsyncLogger) Close(ctx context.Context) error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle blocks until every entry queued so far has been written.
func (l *AsyncLogger) WaitIdle(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		l.pending.Wait()
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
