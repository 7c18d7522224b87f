package remote

import (
	"context"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/models"
)

const HeaderCartOwner = "X-Cart-Owner"

type cartEnvelope struct {
	Cart []models.CartItem `json:"cart"`
}

type cartPush struct {
	Items []models.CartItem `json:"items"`
}

func ownerHeader(owner string) http.Header {
	if owner == "" {
		return nil
	}
	return http.Header{HeaderCartOwner: []string{owner}}
}

func (c *Client) GetCart(ctx context.Context, owner string) ([]models.CartItem, error) {
	var env cartEnvelope
	if err := c.do(ctx, http.MethodGet, c.url("/carrello"), nil, &env, requestOpts{header: ownerHeader(owner)}); err != nil {
		return nil, err
	}
	if env.Cart == nil {
		return []models.CartItem{}, nil
	}
	return env.Cart, nil
}

func (c *Client) PushCart(ctx context.Context, owner string, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}
	return c.do(ctx, http.MethodPost, c.url("/carrello"), cartPush{Items: items}, nil, requestOpts{header: ownerHeader(owner)})
}
