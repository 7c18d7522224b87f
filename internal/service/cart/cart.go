// Package cart keeps each shopper's cart locally authoritative: every mutation is
// persisted before it is committed and then offered to a best-effort remote sync queue.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/store"
)

type Remote interface {
	GetCart(ctx context.Context, owner string) ([]models.CartItem, error)
	PushCart(ctx context.Context, owner string, items []models.CartItem) error
}

type Snapshot struct {
	Items []models.CartItem `json:"items"`
	Count int               `json:"count"`
	Total float64           `json:"total"`
}

type blob struct {
	Items []models.CartItem `json:"items"`
}

type Manager struct {
	owner   string
	store   store.KeyValueStore
	remote  Remote
	queue   *SyncQueue
	events  mykafka.Publisher
	metrics *metrics.Metrics

	mu      sync.Mutex
	items   []models.CartItem
	version uint64
}

type Deps struct {
	Store   store.KeyValueStore
	Remote  Remote
	Events  mykafka.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewManager(owner string, d Deps) *Manager {
	m := &Manager{
		owner:   owner,
		store:   d.Store,
		remote:  d.Remote,
		events:  d.Events,
		metrics: d.Metrics,
		items:   []models.CartItem{},
	}
	if d.Remote != nil {
		m.queue = NewSyncQueue(owner, d.Remote, d.Logger, d.Metrics)
	}
	return m
}

func (m *Manager) Owner() string { return m.owner }

// Restore loads the persisted cart. A missing or malformed blob yields an empty cart;
// a malformed one is quarantined first.
func (m *Manager) Restore(ctx context.Context) {
	l := logging.FromContext(ctx).With("svc", "cart.restore", "owner", m.owner)

	items := []models.CartItem{}
	raw, err := m.store.Get(ctx, store.CartKey(m.owner))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		l.Warn("cart_restore_failed", "error", err)
	default:
		decoded, derr := decodeBlob(raw)
		if derr != nil {
			backup, qerr := store.Quarantine(ctx, m.store, store.CartKey(m.owner), time.Now())
			l.Warn("cart_blob_malformed", "backup", backup, "quarantine_error", qerr, "error", derr)
		} else {
			items = decoded
		}
	}

	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
}

func decodeBlob(raw []byte) ([]models.CartItem, error) {
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		var list []models.CartItem
		if lerr := json.Unmarshal(raw, &list); lerr != nil {
			return nil, err
		}
		b.Items = list
	}
	return normalize(b.Items), nil
}

// normalize merges duplicate product lines and drops non-positive quantities.
func normalize(in []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, 0, len(in))
	idx := make(map[int]int, len(in))
	for _, it := range in {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := idx[it.Product.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.Product.ID] = len(out)
		out = append(out, it)
	}
	return out
}

func (m *Manager) Add(ctx context.Context, p models.Product, qty int) (Snapshot, error) {
	if qty < 1 {
		qty = 1
	}
	return m.mutate(ctx, "add", func(items []models.CartItem) ([]models.CartItem, bool) {
		for i := range items {
			if items[i].Product.ID == p.ID {
				items[i].Quantity += qty
				return items, true
			}
		}
		return append(items, models.CartItem{Product: p, Quantity: qty}), true
	}, map[string]any{"type": "cart_item_added", "product_id": p.ID, "quantity": qty})
}

func (m *Manager) Remove(ctx context.Context, productID int) (Snapshot, error) {
	return m.mutate(ctx, "remove", func(items []models.CartItem) ([]models.CartItem, bool) {
		return removeLine(items, productID)
	}, map[string]any{"type": "cart_item_removed", "product_id": productID})
}

// SetQuantity replaces a line's quantity. Zero or less removes the line.
func (m *Manager) SetQuantity(ctx context.Context, productID, qty int) (Snapshot, error) {
	if qty < 0 {
		qty = 0
	}
	return m.mutate(ctx, "set_quantity", func(items []models.CartItem) ([]models.CartItem, bool) {
		if qty == 0 {
			return removeLine(items, productID)
		}
		for i := range items {
			if items[i].Product.ID == productID {
				if items[i].Quantity == qty {
					return items, false
				}
				items[i].Quantity = qty
				return items, true
			}
		}
		return items, false
	}, map[string]any{"type": "cart_quantity_set", "product_id": productID, "quantity": qty})
}

func (m *Manager) Clear(ctx context.Context) (Snapshot, error) {
	return m.mutate(ctx, "clear", func(items []models.CartItem) ([]models.CartItem, bool) {
		return []models.CartItem{}, len(items) > 0
	}, map[string]any{"type": "cart_cleared"})
}

// Deduct takes the given lines' quantities out of the cart, dropping lines that reach zero.
// Lines added or raised since ordered was read are kept.
func (m *Manager) Deduct(ctx context.Context, ordered []models.CartItem) (Snapshot, error) {
	return m.mutate(ctx, "deduct", func(items []models.CartItem) ([]models.CartItem, bool) {
		take := make(map[int]int, len(ordered))
		for _, it := range ordered {
			take[it.Product.ID] += it.Quantity
		}
		out := items[:0]
		changed := false
		for _, it := range items {
			if n, ok := take[it.Product.ID]; ok && n > 0 {
				it.Quantity -= n
				changed = true
				if it.Quantity <= 0 {
					continue
				}
			}
			out = append(out, it)
		}
		return out, changed
	}, map[string]any{"type": "cart_items_ordered", "lines": len(ordered)})
}

func removeLine(items []models.CartItem, productID int) ([]models.CartItem, bool) {
	for i := range items {
		if items[i].Product.ID == productID {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

func (m *Manager) mutate(
	ctx context.Context,
	op string,
	apply func([]models.CartItem) ([]models.CartItem, bool),
	event map[string]any,
) (Snapshot, error) {
	l := logging.FromContext(ctx).With("svc", "cart."+op, "owner", m.owner)

	m.mu.Lock()
	next, changed := apply(cloneItems(m.items))
	if !changed {
		snap := snapshotOf(m.items)
		m.mu.Unlock()
		return snap, nil
	}

	if err := store.SetJSON(ctx, m.store, store.CartKey(m.owner), blob{Items: next}); err != nil {
		m.mu.Unlock()
		l.Error("cart_persist_failed", "error", err)
		return Snapshot{}, fmt.Errorf("persist cart: %w", err)
	}
	m.items = next
	m.version++
	version := m.version
	snap := snapshotOf(m.items)
	m.mu.Unlock()

	if m.queue != nil {
		m.queue.Offer(version, snap.Items)
	}
	m.metrics.CartMutation(op)
	mykafka.Emit(ctx, m.events, mykafka.TopicCart, m.owner, event)
	l.Debug("cart_mutated", "count", snap.Count, "version", version)
	return snap, nil
}

// PullRemote replaces the local cart with the remote copy unless a local mutation
// happened while the request was in flight. Remote failures keep the local cart.
func (m *Manager) PullRemote(ctx context.Context) (bool, error) {
	if m.remote == nil {
		return false, nil
	}
	l := logging.FromContext(ctx).With("svc", "cart.pull", "owner", m.owner)

	m.mu.Lock()
	started := m.version
	m.mu.Unlock()

	items, err := m.remote.GetCart(ctx, m.owner)
	if err != nil {
		l.Warn("cart_pull_failed", "error", err)
		m.metrics.RemoteFailure("cart_pull")
		return false, nil
	}
	items = normalize(items)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version != started {
		l.Info("cart_pull_discarded", "reason", "local state changed during pull")
		return false, nil
	}
	if err := store.SetJSON(ctx, m.store, store.CartKey(m.owner), blob{Items: items}); err != nil {
		l.Error("cart_persist_failed", "error", err)
		return false, fmt.Errorf("persist cart: %w", err)
	}
	m.items = items
	m.version++
	if m.queue != nil {
		m.queue.MarkApplied(m.version)
	}
	return true, nil
}

func (m *Manager) Items() []models.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneItems(m.items)
}

func (m *Manager) Count() int {
	return m.Snapshot().Count
}

func (m *Manager) Total() float64 {
	return m.Snapshot().Total
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotOf(m.items)
}

func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Flush waits until every offered snapshot has been pushed (or failed).
func (m *Manager) Flush(ctx context.Context) error {
	if m.queue == nil {
		return nil
	}
	return m.queue.Flush(ctx)
}

func (m *Manager) Close() {
	if m.queue != nil {
		m.queue.Close()
	}
}

func snapshotOf(items []models.CartItem) Snapshot {
	count := 0
	total := decimal.Zero
	for _, it := range items {
		count += it.Quantity
		total = total.Add(decimal.NewFromFloat(it.Product.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return Snapshot{
		Items: cloneItems(items),
		Count: count,
		Total: total.Round(2).InexactFloat64(),
	}
}

func cloneItems(in []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, len(in))
	copy(out, in)
	return out
}
