// Package catalog serves the product list and categories, preferring admin overrides
// saved in the store over the seeded defaults.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/metrics"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/remote"
	"github.com/Skotchmaster/storefront/internal/store"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation")
	ErrCategoryInUse = errors.New("category in use")
	ErrSlugTaken     = errors.New("slug already taken")
)

type Remote interface {
	ListProducts(ctx context.Context, f remote.ProductFilters) ([]models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) error
	UpdateProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id int) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) error
	UpdateCategory(ctx context.Context, c models.Category) error
	DeleteCategory(ctx context.Context, id int) error
}

// Indexer mirrors product changes into the search index.
type Indexer interface {
	IndexProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id int) error
}

type Service struct {
	Store   store.KeyValueStore
	Remote  Remote
	Index   Indexer
	Events  mykafka.Publisher
	Metrics *metrics.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	cache []models.Product
	gen   uint64

	// serialises admin read-modify-write cycles on the override lists
	writeMu sync.Mutex
}

// Load returns the product list, cached after the first call until Invalidate.
func (s *Service) Load(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	if s.cache != nil {
		out := cloneProducts(s.cache)
		s.mu.RUnlock()
		return out, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	v, err, _ := s.group.Do("products:"+strconv.FormatUint(gen, 10), func() (any, error) {
		list := s.readProducts(ctx)
		s.mu.Lock()
		if s.gen == gen {
			s.cache = list
		}
		s.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneProducts(v.([]models.Product)), nil
}

func (s *Service) readProducts(ctx context.Context) []models.Product {
	var overrides []models.Product
	err := store.GetJSON(ctx, s.Store, store.KeyAdminProducts, &overrides)
	switch {
	case err == nil && len(overrides) > 0:
		return overrides
	case err != nil && !errors.Is(err, store.ErrNotFound):
		logging.FromContext(ctx).Warn("product_overrides_unreadable", "error", err)
	}
	return DefaultProducts()
}

func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.gen++
	s.mu.Unlock()
}

func (s *Service) Get(ctx context.Context, id int) (models.Product, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return models.Product{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// Search loads the catalog and applies Filter.
func (s *Service) Search(ctx context.Context, q Query) ([]models.Product, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(list, q), nil
}

func (s *Service) saveProducts(ctx context.Context, list []models.Product) error {
	if err := store.SetJSON(ctx, s.Store, store.KeyAdminProducts, list); err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	s.Invalidate()
	return nil
}

func cloneProducts(in []models.Product) []models.Product {
	out := make([]models.Product, len(in))
	copy(out, in)
	return out
}

// bestEffort runs a remote side effect and downgrades its failure to a warning.
func (s *Service) bestEffort(ctx context.Context, call string, fn func() error) {
	if err := fn(); err != nil {
		logging.FromContext(ctx).Warn("remote_call_failed", "call", call, "error", err)
		s.Metrics.RemoteFailure(call)
	}
}
