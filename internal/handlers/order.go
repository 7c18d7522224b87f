package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/order"
)

type OrderHandler struct {
	Orders *order.Service
}

type setStatusRequest struct {
	Status         models.OrderStatus `json:"status"`
	TrackingNumber string             `json:"trackingNumber"`
}

func (h *OrderHandler) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	list, err := h.Orders.Fetch(ctx, auth.Token(c), auth.UserID(c))
	if err != nil {
		return failure(l, "get_orders_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	o, err := h.Orders.Get(ctx, auth.UserID(c), c.Param("id"))
	if err != nil {
		return failure(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	o, err := h.Orders.Cancel(ctx, auth.Token(c), auth.UserID(c), c.Param("id"))
	if err != nil {
		return failure(l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", o.ID)
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) AdminGetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.admin_get_orders")

	list, err := h.Orders.Repo.List(ctx)
	if err != nil {
		return failure(l, "admin_get_orders_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) AdminSetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.admin_set_status")

	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_status_error", "invalid body", err)
	}
	if req.Status == "" {
		return badRequest(l, "set_status_error", "status is required", nil)
	}

	o, err := h.Orders.SetStatus(ctx, c.Param("id"), req.Status, req.TrackingNumber)
	if err != nil {
		return failure(l, "set_status_error", err)
	}

	l.Info("set_status_success", "order_id", o.ID, "order_status", o.Status)
	return c.JSON(http.StatusOK, o)
}
