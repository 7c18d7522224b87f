package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
)

type entry struct {
	m     *Manager
	ready chan struct{}
	refs  int
	used  time.Time
}

// Registry hands out one Manager per cart owner, restoring it on first use.
// Idle managers are dropped by Sweep; their state stays in the store.
type Registry struct {
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	carts map[string]*entry
}

func NewRegistry(d Deps) *Registry {
	return &Registry{deps: d, now: time.Now, carts: make(map[string]*entry)}
}

func (r *Registry) Get(ctx context.Context, owner string) *Manager {
	m, release := r.Acquire(ctx, owner)
	release()
	return m
}

// Acquire is Get for callers that hold the manager across slow work.
// Sweep leaves the manager alone until release is called.
func (r *Registry) Acquire(ctx context.Context, owner string) (*Manager, func()) {
	r.mu.Lock()
	e, ok := r.carts[owner]
	if !ok {
		e = &entry{m: NewManager(owner, r.deps), ready: make(chan struct{})}
		r.carts[owner] = e
	}
	e.refs++
	e.used = r.now()
	r.mu.Unlock()

	if ok {
		<-e.ready
	} else {
		// store I/O runs outside the registry lock; other owners are not held up
		e.m.Restore(ctx)
		close(e.ready)
	}

	var once sync.Once
	return e.m, func() {
		once.Do(func() {
			r.mu.Lock()
			e.refs--
			e.used = r.now()
			r.mu.Unlock()
		})
	}
}

// Merge moves every line of the from cart into the to cart and drops from.
// Used when an anonymous shopper signs in.
func (r *Registry) Merge(ctx context.Context, from, to string) (Snapshot, error) {
	dst, release := r.Acquire(ctx, to)
	defer release()
	if from == "" || from == to {
		return dst.Snapshot(), nil
	}
	src, releaseSrc := r.Acquire(ctx, from)
	items := src.Items()
	if len(items) == 0 {
		releaseSrc()
		r.forget(ctx, from)
		return dst.Snapshot(), nil
	}

	var (
		snap Snapshot
		err  error
	)
	for _, it := range items {
		if snap, err = dst.Add(ctx, it.Product, it.Quantity); err != nil {
			releaseSrc()
			return Snapshot{}, err
		}
	}
	if _, err := src.Clear(ctx); err != nil {
		logging.FromContext(ctx).Warn("cart_merge_clear_failed", "owner", from, "error", err)
	}
	releaseSrc()
	r.forget(ctx, from)
	return snap, nil
}

// forget evicts an emptied cart and removes its stored blob.
func (r *Registry) forget(ctx context.Context, owner string) {
	r.mu.Lock()
	e, ok := r.carts[owner]
	if !ok || e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.carts, owner)
	r.mu.Unlock()

	e.m.Close()
	if err := r.deps.Store.Delete(ctx, store.CartKey(owner)); err != nil && !errors.Is(err, store.ErrNotFound) {
		logging.FromContext(ctx).Warn("cart_blob_delete_failed", "owner", owner, "error", err)
	}
}

// Sweep closes managers nobody has touched for idle and returns how many were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Manager
	for owner, e := range r.carts {
		if e.refs > 0 || e.used.After(cutoff) {
			continue
		}
		select {
		case <-e.ready:
		default:
			continue
		}
		stale = append(stale, e.m)
		delete(r.carts, owner)
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Close()
	}
	return len(stale)
}

// Len reports how many managers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

func (r *Registry) Items(ctx context.Context, owner string) []models.CartItem {
	return r.Get(ctx, owner).Items()
}

func (r *Registry) Close() {
	r.mu.Lock()
	carts := make([]*Manager, 0, len(r.carts))
	for _, e := range r.carts {
		carts = append(carts, e.m)
	}
	r.mu.Unlock()

	for _, m := range carts {
		m.Close()
	}
}
