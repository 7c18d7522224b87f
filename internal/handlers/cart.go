package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/service/cart"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	cartCookie    = "cartID"
	cartCookieTTL = 30 * 24 * time.Hour
)

type CartHandler struct {
	Carts   *cart.Registry
	Catalog *catalog.Service
}

type addItemRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"qty"`
}

type setQuantityRequest struct {
	Quantity int `json:"qty"`
}

const anonPrefix = "anon:"

// anonOwner maps a cart cookie to its owner key. Only uuids are accepted and the key is
// prefixed so it can never name a registered user's cart.
func anonOwner(value string) (string, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		return "", false
	}
	return anonPrefix + id.String(), true
}

// owner is the signed-in user, otherwise the anonymous cart cookie, issued on first use.
func owner(c echo.Context) string {
	if id := auth.UserID(c); id != "" {
		return id
	}
	if ck, err := c.Cookie(cartCookie); err == nil {
		if o, ok := anonOwner(ck.Value); ok {
			return o
		}
	}
	id := uuid.NewString()
	c.SetCookie(tokens.CreateCookie(cartCookie, id, "/", time.Now().Add(cartCookieTTL)))
	// later reads in the same request must see the new id
	c.Request().AddCookie(&http.Cookie{Name: cartCookie, Value: id})
	return anonPrefix + id
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.Carts.Get(ctx, owner(c)).Snapshot())
}

func (h *CartHandler) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_item_error", "invalid body", err)
	}

	p, err := h.Catalog.Get(ctx, req.ProductID)
	if err != nil {
		return failure(l, "add_item_error", err)
	}

	snap, err := h.Carts.Get(ctx, owner(c)).Add(ctx, p, req.Quantity)
	if err != nil {
		return failure(l, "add_item_error", err)
	}

	l.Info("add_item_success", "product_id", p.ID)
	return c.JSON(http.StatusOK, snap)
}

func (h *CartHandler) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "set_quantity_error", "id is not an integer", err)
	}
	var req setQuantityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_quantity_error", "invalid body", err)
	}

	snap, err := h.Carts.Get(ctx, owner(c)).SetQuantity(ctx, id, req.Quantity)
	if err != nil {
		return failure(l, "set_quantity_error", err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	id, err := intParam(c, "id")
	if err != nil {
		return badRequest(l, "remove_item_error", "id is not an integer", err)
	}

	snap, err := h.Carts.Get(ctx, owner(c)).Remove(ctx, id)
	if err != nil {
		return failure(l, "remove_item_error", err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *CartHandler) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	snap, err := h.Carts.Get(ctx, owner(c)).Clear(ctx)
	if err != nil {
		return failure(l, "clear_cart_error", err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Sync pulls the remote copy of the cart. Remote failures leave the local cart as is.
func (h *CartHandler) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.sync")

	m := h.Carts.Get(ctx, owner(c))
	applied, err := m.PullRemote(ctx)
	if err != nil {
		return failure(l, "sync_cart_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"applied": applied,
		"cart":    m.Snapshot(),
	})
}
