package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
)

const pushTimeout = 5 * time.Second

type pending struct {
	version uint64
	items   []models.CartItem
}

// SyncQueue pushes cart snapshots to the remote one at a time. Only the newest pending
// snapshot is kept and a snapshot older than one already sent is never pushed.
type SyncQueue struct {
	owner   string
	remote  Remote
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	next    *pending
	applied uint64

	wake  chan struct{}
	flush chan chan struct{}
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewSyncQueue(owner string, remote Remote, log *slog.Logger, m *metrics.Metrics) *SyncQueue {
	if log == nil {
		log = slog.Default()
	}
	q := &SyncQueue{
		owner:   owner,
		remote:  remote,
		log:     log.With("svc", "cart.sync", "owner", owner),
		metrics: m,
		wake:    make(chan struct{}, 1),
		flush:   make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *SyncQueue) Offer(version uint64, items []models.CartItem) {
	q.mu.Lock()
	if version <= q.applied || (q.next != nil && q.next.version >= version) {
		q.mu.Unlock()
		return
	}
	if q.next != nil {
		q.metrics.SyncSuperseded()
	}
	q.next = &pending{version: version, items: items}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// MarkApplied records that the remote already holds state at version v,
// dropping any older pending snapshot.
func (q *SyncQueue) MarkApplied(v uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v > q.applied {
		q.applied = v
	}
	if q.next != nil && q.next.version <= q.applied {
		q.next = nil
	}
}

func (q *SyncQueue) LastApplied() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.applied
}

func (q *SyncQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			q.drain()
			return
		case <-q.wake:
			q.drain()
		case ack := <-q.flush:
			q.drain()
			close(ack)
		}
	}
}

func (q *SyncQueue) drain() {
	for {
		q.mu.Lock()
		p := q.next
		q.next = nil
		if p != nil && p.version <= q.applied {
			p = nil
		}
		q.mu.Unlock()
		if p == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := q.remote.PushCart(ctx, q.owner, p.items)
		cancel()

		// A failed push is not retried; the next mutation carries the full state.
		q.MarkApplied(p.version)
		if err != nil {
			q.log.Warn("cart_sync_failed", "version", p.version, "error", err)
			q.metrics.RemoteFailure("cart_push")
			continue
		}
		q.log.Debug("cart_synced", "version", p.version, "lines", len(p.items))
	}
}

func (q *SyncQueue) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case q.flush <- ack:
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close pushes whatever is pending and stops the worker.
func (q *SyncQueue) Close() {
	q.once.Do(func() { close(q.stop) })
	<-q.done
}
