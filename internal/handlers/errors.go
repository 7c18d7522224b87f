// Package handlers exposes the storefront services over echo.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/remote"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/order"
	"github.com/Skotchmaster/storefront/internal/service/payment"
	"github.com/Skotchmaster/storefront/internal/service/session"
)

type statusRule struct {
	target error
	status int
	reason string
}

var statusRules = []statusRule{
	{catalog.ErrNotFound, http.StatusNotFound, "not found"},
	{order.ErrNotFound, http.StatusNotFound, "order not found"},

	{catalog.ErrValidation, http.StatusBadRequest, "invalid body"},
	{session.ErrValidation, http.StatusBadRequest, "invalid body"},
	{payment.ErrInvalidMethod, http.StatusBadRequest, "invalid payment method"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "cart is empty"},

	{session.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
	{session.ErrNotAuthenticated, http.StatusUnauthorized, "authentication required"},

	{payment.ErrPaymentDeclined, http.StatusPaymentRequired, "payment declined"},

	{catalog.ErrCategoryInUse, http.StatusConflict, "category in use"},
	{catalog.ErrSlugTaken, http.StatusConflict, "slug already taken"},
	{session.ErrEmailAlreadyRegistered, http.StatusConflict, "email already registered"},
	{checkout.ErrCheckoutInProgress, http.StatusConflict, "checkout already in progress"},
	{checkout.ErrInvalidTransition, http.StatusConflict, "invalid checkout state"},
	{order.ErrInvalidTransition, http.StatusConflict, "invalid order status transition"},

	{remote.ErrRemoteUnavailable, http.StatusBadGateway, "remote unavailable"},
}

// failure logs err under event and turns it into the matching HTTP error.
// Unknown errors become a 500 without leaking their text.
func failure(l *slog.Logger, event string, err error) error {
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		l.Warn(event, "status", http.StatusBadRequest, "reason", "invalid form", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"message": "invalid form",
			"fields":  ve.Fields,
		})
	}

	var de *payment.DeclineError
	if errors.As(err, &de) {
		l.Warn(event, "status", http.StatusPaymentRequired, "reason", de.Reason, "error", err)
		return echo.NewHTTPError(http.StatusPaymentRequired, de.Reason)
	}

	for _, r := range statusRules {
		if errors.Is(err, r.target) {
			l.Warn(event, "status", r.status, "reason", r.reason, "error", err)
			return echo.NewHTTPError(r.status, r.reason)
		}
	}

	l.Error(event, "status", http.StatusInternalServerError, "reason", "internal error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

func intParam(c echo.Context, name string) (int, error) {
	return strconv.Atoi(c.Param(name))
}

// optFloat parses an optional query value; empty yields nil.
func optFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optBool(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func optInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
