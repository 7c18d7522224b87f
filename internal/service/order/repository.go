package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
)

// Repository keeps the completed-order list as one JSON blob.
type Repository struct {
	store store.KeyValueStore
	mu    sync.Mutex
}

func NewRepository(s store.KeyValueStore) *Repository {
	return &Repository{store: s}
}

func (r *Repository) load(ctx context.Context) ([]models.Order, error) {
	var list []models.Order
	err := store.GetJSON(ctx, r.store, store.KeyCompletedOrders, &list)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return list, nil
}

func (r *Repository) Append(ctx context.Context, o models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.ID == o.ID {
			return fmt.Errorf("order %s already stored", o.ID)
		}
	}
	return store.SetJSON(ctx, r.store, store.KeyCompletedOrders, append(list, o))
}

// List returns every order, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Order, error) {
	r.mu.Lock()
	list, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if list == nil {
		list = []models.Order{}
	}
	return list, nil
}

func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]models.Order, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(list))
	for _, o := range list {
		if o.OwnerID == owner {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return models.Order{}, err
	}
	for _, o := range list {
		if o.ID == id {
			return o, nil
		}
	}
	return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

// Update applies fn to the stored order and saves the result when fn succeeds.
func (r *Repository) Update(ctx context.Context, id string, fn func(*models.Order) error) (models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return models.Order{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		o := list[i]
		if err := fn(&o); err != nil {
			return models.Order{}, err
		}
		list[i] = o
		if err := store.SetJSON(ctx, r.store, store.KeyCompletedOrders, list); err != nil {
			return models.Order{}, err
		}
		return o, nil
	}
	return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
}
