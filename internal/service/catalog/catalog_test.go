package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/remote"
	"github.com/Skotchmaster/storefront/internal/store"
)

type countingStore struct {
	*store.MemoryStore
	gets atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	return c.MemoryStore.Get(ctx, key)
}

type fakeRemote struct {
	mu       sync.Mutex
	calls    []string
	err      error
	products []models.Product
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeRemote) ListProducts(context.Context, remote.ProductFilters) ([]models.Product, error) {
	if err := f.record("list_products"); err != nil {
		return nil, err
	}
	return f.products, nil
}
func (f *fakeRemote) CreateProduct(context.Context, models.Product) error { return f.record("create_product") }
func (f *fakeRemote) UpdateProduct(context.Context, models.Product) error { return f.record("update_product") }
func (f *fakeRemote) DeleteProduct(context.Context, int) error            { return f.record("delete_product") }
func (f *fakeRemote) ListCategories(context.Context) ([]models.Category, error) {
	return nil, f.record("list_categories")
}
func (f *fakeRemote) CreateCategory(context.Context, models.Category) error {
	return f.record("create_category")
}
func (f *fakeRemote) UpdateCategory(context.Context, models.Category) error {
	return f.record("update_category")
}
func (f *fakeRemote) DeleteCategory(context.Context, int) error { return f.record("delete_category") }

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[int]models.Product
}

func (f *fakeIndex) IndexProduct(_ context.Context, p models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexed == nil {
		f.indexed = map[int]models.Product{}
	}
	f.indexed[p.ID] = p
	return nil
}

func (f *fakeIndex) DeleteProduct(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, id)
	return nil
}

func newTestService() (*Service, *store.MemoryStore, *fakeRemote, *fakeIndex) {
	s := store.NewMemory()
	r := &fakeRemote{}
	idx := &fakeIndex{}
	return &Service{Store: s, Remote: r, Index: idx}, s, r, idx
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, s, _, _ := newTestService()

	list, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 12)

	require.NoError(t, store.SetJSON(ctx, s, store.KeyAdminProducts, []models.Product{{ID: 99, Name: "Override", Category: "x"}}))
	cached, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 12, "cache is kept until invalidated")

	svc.Invalidate()
	list, err = svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 99, list[0].ID)
}

func TestLoad_EmptyOrMalformedOverridesFallBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, raw := range []string{`[]`, `{broken`, `{"id":1}`} {
		svc, s, _, _ := newTestService()
		require.NoError(t, s.Set(ctx, store.KeyAdminProducts, []byte(raw)))

		list, err := svc.Load(ctx)
		require.NoError(t, err, raw)
		assert.Len(t, list, 12, raw)
	}
}

func TestLoad_ConcurrentCallersShareOneRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cs := &countingStore{MemoryStore: store.NewMemory()}
	svc := &Service{Store: cs}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := svc.Load(ctx)
			assert.NoError(t, err)
			assert.Len(t, list, 12)
		}()
	}
	wg.Wait()

	_, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, cs.gets.Load(), int64(32))
	before := cs.gets.Load()
	_, _ = svc.Load(ctx)
	assert.Equal(t, before, cs.gets.Load(), "cached load does not touch the store")
}

func TestLoad_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _, _ := newTestService()
	list, err := svc.Load(ctx)
	require.NoError(t, err)
	list[0].Name = "mutated"

	again, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T-Shirt Basic", again[0].Name)
}

func TestGet(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestService()
	p, err := svc.Get(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "Orologio Classico", p.Name)

	_, err = svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, s, r, idx := newTestService()

	p, err := svc.CreateProduct(ctx, ProductInput{Name: " Zaino ", Category: "men's clothing", Price: 35, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, 13, p.ID)
	assert.Equal(t, "Zaino", p.Name)

	var saved []models.Product
	require.NoError(t, store.GetJSON(ctx, s, store.KeyAdminProducts, &saved))
	assert.Len(t, saved, 13)

	list, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 13)

	assert.Contains(t, r.calls, "create_product")
	assert.Contains(t, idx.indexed, 13)
}

func TestCreateProduct_Validation(t *testing.T) {
	t.Parallel()

	orig := 10.0
	tests := []struct {
		name string
		in   ProductInput
	}{
		{name: "no name", in: ProductInput{Category: "c", Price: 1}},
		{name: "no category", in: ProductInput{Name: "n", Price: 1}},
		{name: "negative price", in: ProductInput{Name: "n", Category: "c", Price: -1}},
		{name: "negative stock", in: ProductInput{Name: "n", Category: "c", Stock: -1}},
		{name: "original price without sale", in: ProductInput{Name: "n", Category: "c", OriginalPrice: &orig}},
		{name: "empty colors", in: ProductInput{Name: "n", Category: "c", Colors: []string{}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, s, _, _ := newTestService()
			_, err := svc.CreateProduct(context.Background(), tt.in)
			require.ErrorIs(t, err, ErrValidation)

			_, gerr := s.Get(context.Background(), store.KeyAdminProducts)
			assert.ErrorIs(t, gerr, store.ErrNotFound)
		})
	}
}

func TestCreateProduct_RemoteFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	svc, _, r, _ := newTestService()
	r.err = remote.ErrRemoteUnavailable

	_, err := svc.CreateProduct(context.Background(), ProductInput{Name: "n", Category: "c", Price: 1})
	require.NoError(t, err)
}

func TestUpdateProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, r, idx := newTestService()

	price := 15.0
	sale := false
	p, err := svc.UpdateProduct(ctx, 2, ProductPatch{Price: &price, IsSale: &sale})
	require.NoError(t, err)
	assert.InDelta(t, 15.0, p.Price, 1e-9)
	assert.False(t, p.IsSale)
	assert.Nil(t, p.OriginalPrice, "original price is dropped with the sale flag")
	assert.Equal(t, "Giacca Leggera", p.Name)

	got, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got.Price, 1e-9)
	assert.Contains(t, r.calls, "update_product")
	assert.Contains(t, idx.indexed, 2)

	_, err = svc.UpdateProduct(ctx, 404, ProductPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	neg := -1.0
	_, err = svc.UpdateProduct(ctx, 2, ProductPatch{Price: &neg})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteProduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, r, idx := newTestService()
	require.NoError(t, idx.IndexProduct(ctx, models.Product{ID: 5}))

	require.NoError(t, svc.DeleteProduct(ctx, 5))
	_, err := svc.Get(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotContains(t, idx.indexed, 5)
	assert.Contains(t, r.calls, "delete_product")

	assert.ErrorIs(t, svc.DeleteProduct(ctx, 5), ErrNotFound)
}

func TestImportRemote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, r, idx := newTestService()
	r.products = []models.Product{
		{ID: 100, Name: "Remote One", Category: "electronics", Price: 10},
		{ID: 101, Name: "", Category: "electronics", Price: 10},
	}

	list, err := svc.ImportRemote(ctx, remote.ProductFilters{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	loaded, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{100}, ids(loaded))
	assert.Contains(t, idx.indexed, 100)

	r.err = errors.New("down")
	_, err = svc.ImportRemote(ctx, remote.ProductFilters{})
	require.Error(t, err)
}

func TestReindex(t *testing.T) {
	t.Parallel()

	svc, _, _, idx := newTestService()
	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Len(t, idx.indexed, 12)
}
