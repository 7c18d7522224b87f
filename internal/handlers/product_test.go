package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

type productPage struct {
	Data []models.Product `json:"data"`
	Meta struct {
		Page       int   `json:"page"`
		Size       int   `json:"size"`
		Total      int64 `json:"total"`
		TotalPages int64 `json:"total_pages"`
		HasPrev    bool  `json:"has_prev"`
		HasNext    bool  `json:"has_next"`
	} `json:"meta"`
}

func TestGetProducts(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &CatalogHandler{Catalog: s.catalog}

	rec, err := s.call(h.GetProducts, jsonRequest(http.MethodGet, "/api/v1/products?page=2&size=5", nil))
	require.NoError(t, err)
	page := decode[productPage](t, rec)
	assert.Len(t, page.Data, 5)
	assert.Equal(t, 6, page.Data[0].ID)
	assert.EqualValues(t, 12, page.Meta.Total)
	assert.EqualValues(t, 3, page.Meta.TotalPages)
	assert.True(t, page.Meta.HasPrev)
	assert.True(t, page.Meta.HasNext)

	rec, err = s.call(h.GetProducts, jsonRequest(http.MethodGet, "/api/v1/products?category=electronics&sort=price-asc&maxPrice=400", nil))
	require.NoError(t, err)
	page = decode[productPage](t, rec)
	require.Len(t, page.Data, 2)
	assert.Equal(t, 9, page.Data[0].ID)
	assert.Equal(t, 12, page.Data[1].ID)
	assert.False(t, page.Meta.HasNext)

	_, err = s.call(h.GetProducts, jsonRequest(http.MethodGet, "/api/v1/products?minPrice=abc", nil))
	requireStatus(t, err, http.StatusBadRequest)
}

func TestGetProduct(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &CatalogHandler{Catalog: s.catalog}

	rec, err := s.call(h.GetProduct, jsonRequest(http.MethodGet, "/api/v1/products/3", nil), "id", "3")
	require.NoError(t, err)
	assert.Equal(t, "Sneakers Urban", decode[models.Product](t, rec).Name)

	_, err = s.call(h.GetProduct, jsonRequest(http.MethodGet, "/api/v1/products/99", nil), "id", "99")
	requireStatus(t, err, http.StatusNotFound)

	_, err = s.call(h.GetProduct, jsonRequest(http.MethodGet, "/api/v1/products/abc", nil), "id", "abc")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestGetCategories(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &CatalogHandler{Catalog: s.catalog}

	rec, err := s.call(h.GetCategories, jsonRequest(http.MethodGet, "/api/v1/categories", nil))
	require.NoError(t, err)
	all := decode[[]models.Category](t, rec)
	require.NotEmpty(t, all)

	rec, err = s.call(h.GetCategories, jsonRequest(http.MethodGet, "/api/v1/categories?parent=root", nil))
	require.NoError(t, err)
	for _, c := range decode[[]models.Category](t, rec) {
		assert.Nil(t, c.ParentID)
	}

	_, err = s.call(h.GetCategories, jsonRequest(http.MethodGet, "/api/v1/categories?parent=x", nil))
	requireStatus(t, err, http.StatusBadRequest)
}

func TestAdminProductLifecycle(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &CatalogHandler{Catalog: s.catalog}

	_, err := s.call(h.CreateProduct, jsonRequest(http.MethodPost, "/api/v1/admin/products", map[string]any{"name": "", "price": 10, "category": "electronics"}))
	requireStatus(t, err, http.StatusBadRequest)

	rec, err := s.call(h.CreateProduct, jsonRequest(http.MethodPost, "/api/v1/admin/products", map[string]any{
		"name": "Tablet 10", "price": 299.0, "category": "electronics", "stock": 4,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Product](t, rec)
	assert.Equal(t, 13, created.ID)

	rec, err = s.call(h.PatchProduct, jsonRequest(http.MethodPatch, "/api/v1/admin/products/13", map[string]any{"price": 279.0}), "id", "13")
	require.NoError(t, err)
	assert.InDelta(t, 279.0, decode[models.Product](t, rec).Price, 0.001)

	rec, err = s.call(h.DeleteProduct, jsonRequest(http.MethodDelete, "/api/v1/admin/products/13", nil), "id", "13")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = s.call(h.GetProduct, jsonRequest(http.MethodGet, "/api/v1/products/13", nil), "id", "13")
	requireStatus(t, err, http.StatusNotFound)
}

func TestAdminCategoryInUse(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &CatalogHandler{Catalog: s.catalog}

	rec, err := s.call(h.GetCategories, jsonRequest(http.MethodGet, "/api/v1/categories", nil))
	require.NoError(t, err)
	var electronics models.Category
	for _, c := range decode[[]models.Category](t, rec) {
		if c.Slug == "electronics" {
			electronics = c
		}
	}
	require.NotZero(t, electronics.ID)

	id := strconv.Itoa(electronics.ID)
	_, err = s.call(h.DeleteCategory, jsonRequest(http.MethodDelete, "/api/v1/admin/categories/"+id, nil), "id", id)
	requireStatus(t, err, http.StatusConflict)
}

func TestImportWithoutRemote(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &CatalogHandler{Catalog: s.catalog}

	_, err := s.call(h.ImportProducts, jsonRequest(http.MethodPost, "/api/v1/admin/products/import", nil))
	requireStatus(t, err, http.StatusBadGateway)

	rec, err := s.call(h.Reindex, jsonRequest(http.MethodPost, "/api/v1/admin/products/reindex", nil))
	require.NoError(t, err)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["indexed"])
}
