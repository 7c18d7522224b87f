package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service/payment"
)

type PaymentHandler struct {
	Payments *payment.Simulator
}

func (h *PaymentHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.stats")

	st, err := h.Payments.Stats(ctx, time.Now())
	if err != nil {
		return failure(l, "payment_stats_error", err)
	}
	return c.JSON(http.StatusOK, st)
}
