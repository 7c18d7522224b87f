package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (c *Client) ListOrders(ctx context.Context, bearer string) ([]models.Order, error) {
	var list []models.Order
	if err := c.do(ctx, http.MethodGet, c.url("/ordini"), nil, &list, requestOpts{bearer: bearer}); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateOrder(ctx context.Context, bearer string, o models.Order) error {
	return c.do(ctx, http.MethodPost, c.url("/ordini"), o, nil, requestOpts{bearer: bearer})
}

func (c *Client) CancelOrder(ctx context.Context, bearer, id string) error {
	return c.do(ctx, http.MethodPut, c.url("/ordini/"+url.PathEscape(id)+"/cancel"), nil, nil, requestOpts{bearer: bearer})
}

func (c *Client) NotifyOrderCompleted(ctx context.Context, o models.Order) error {
	return c.do(ctx, http.MethodPost, c.webhookURL, o, nil, requestOpts{})
}

func (c *Client) NotifyUserRegistered(ctx context.Context, u models.User) error {
	return c.do(ctx, http.MethodPost, c.url("/utente"), u, nil, requestOpts{})
}
