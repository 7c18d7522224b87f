package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/payment"
)

// CheckoutHandler serves authenticated shoppers only; the cart owner is the user id.
type CheckoutHandler struct {
	Checkout *checkout.Service
}

func (h *CheckoutHandler) Quote(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, h.Checkout.Quote(ctx, auth.UserID(c)))
}

func (h *CheckoutHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Checkout.State(auth.UserID(c)))
}

func (h *CheckoutHandler) SelectMethod(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.select_method")

	var req payment.Method
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "select_method_error", "invalid body", err)
	}

	st, err := h.Checkout.SelectMethod(auth.UserID(c), req)
	if err != nil {
		return failure(l, "select_method_error", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *CheckoutHandler) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.place_order")

	var req checkout.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "place_order_error", "invalid body", err)
	}

	o, err := h.Checkout.PlaceOrder(ctx, auth.UserID(c), req)
	if err != nil {
		return failure(l, "place_order_error", err)
	}

	l.Info("place_order_success", "order_id", o.ID)
	return c.JSON(http.StatusCreated, o)
}
