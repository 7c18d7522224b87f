package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/models"
)

type ProductFilters struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Featured *bool
}

func (f ProductFilters) values() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Featured != nil {
		q.Set("featured", strconv.FormatBool(*f.Featured))
	}
	return q
}

// ListProducts accepts either a bare array or a {"products": [...]} envelope.
func (c *Client) ListProducts(ctx context.Context, f ProductFilters) ([]models.Product, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.url("/prodotti"), nil, &raw, requestOpts{query: f.values()}); err != nil {
		return nil, err
	}
	var list []models.Product
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var env struct {
		Products []models.Product `json:"products"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode products: %w: %w", ErrRemoteUnavailable, err)
	}
	return env.Products, nil
}

func (c *Client) CreateProduct(ctx context.Context, p models.Product) error {
	return c.do(ctx, http.MethodPost, c.url("/prodotti"), p, nil, requestOpts{})
}

func (c *Client) UpdateProduct(ctx context.Context, p models.Product) error {
	return c.do(ctx, http.MethodPut, c.url("/prodotti/"+strconv.Itoa(p.ID)), p, nil, requestOpts{})
}

func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, c.url("/prodotti/"+strconv.Itoa(id)), nil, nil, requestOpts{})
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var list []models.Category
	if err := c.do(ctx, http.MethodGet, c.url("/categorie"), nil, &list, requestOpts{}); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateCategory(ctx context.Context, cat models.Category) error {
	return c.do(ctx, http.MethodPost, c.url("/categorie"), cat, nil, requestOpts{})
}

func (c *Client) UpdateCategory(ctx context.Context, cat models.Category) error {
	return c.do(ctx, http.MethodPut, c.url("/categorie/"+strconv.Itoa(cat.ID)), cat, nil, requestOpts{})
}

func (c *Client) DeleteCategory(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, c.url("/categorie/"+strconv.Itoa(id)), nil, nil, requestOpts{})
}
