package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/remote"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/order"
	"github.com/Skotchmaster/storefront/internal/service/payment"
	"github.com/Skotchmaster/storefront/internal/service/session"
)

func seedOrder(t *testing.T, s *shop, id, owner string) {
	t.Helper()
	require.NoError(t, s.orders.Place(context.Background(), models.Order{
		ID:        id,
		OwnerID:   owner,
		Status:    models.OrderCompleted,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestOrders_OwnerScoped(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &OrderHandler{Orders: s.orders}
	tok := s.login(t, userEmail, userPass)
	seedOrder(t, s, "ORD-MINE", "2")
	seedOrder(t, s, "ORD-OTHER", "someone-else")

	rec, err := s.call(s.guard.RequireAuth(h.GetOrders), withBearer(jsonRequest(http.MethodGet, "/api/v1/orders", nil), tok))
	require.NoError(t, err)
	list := decode[[]models.Order](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "ORD-MINE", list[0].ID)

	_, err = s.call(s.guard.RequireAuth(h.GetOrder), withBearer(jsonRequest(http.MethodGet, "/api/v1/orders/ORD-OTHER", nil), tok), "id", "ORD-OTHER")
	requireStatus(t, err, http.StatusNotFound)

	rec, err = s.call(s.guard.RequireAuth(h.CancelOrder), withBearer(jsonRequest(http.MethodPost, "/api/v1/orders/ORD-MINE/cancel", nil), tok), "id", "ORD-MINE")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, decode[models.Order](t, rec).Status)

	_, err = s.call(s.guard.RequireAuth(h.CancelOrder), withBearer(jsonRequest(http.MethodPost, "/api/v1/orders/ORD-MINE/cancel", nil), tok), "id", "ORD-MINE")
	requireStatus(t, err, http.StatusConflict)
}

func TestOrders_AdminFulfilment(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &OrderHandler{Orders: s.orders}
	admin := s.login(t, adminEmail, adminPass)
	user := s.login(t, userEmail, userPass)
	seedOrder(t, s, "ORD-1", "2")

	_, err := s.call(s.guard.RequireAdmin(h.AdminGetOrders), withBearer(jsonRequest(http.MethodGet, "/api/v1/admin/orders", nil), user))
	requireStatus(t, err, http.StatusForbidden)

	rec, err := s.call(s.guard.RequireAdmin(h.AdminGetOrders), withBearer(jsonRequest(http.MethodGet, "/api/v1/admin/orders", nil), admin))
	require.NoError(t, err)
	assert.Len(t, decode[[]models.Order](t, rec), 1)

	set := func(status string) (*models.Order, error) {
		req := withBearer(jsonRequest(http.MethodPatch, "/api/v1/admin/orders/ORD-1/status", map[string]string{
			"status": status, "trackingNumber": "TRK-42",
		}), admin)
		rec, err := s.call(s.guard.RequireAdmin(h.AdminSetStatus), req, "id", "ORD-1")
		if err != nil {
			return nil, err
		}
		o := decode[models.Order](t, rec)
		return &o, nil
	}

	_, err = set("delivered")
	requireStatus(t, err, http.StatusConflict)

	_, err = set("")
	requireStatus(t, err, http.StatusBadRequest)

	o, err := set("processing")
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, o.Status)

	o, err = set("shipped")
	require.NoError(t, err)
	assert.Equal(t, "TRK-42", o.TrackingNumber)
	assert.NotNil(t, o.ShippedAt)
}

func TestPaymentStats(t *testing.T) {
	t.Parallel()

	s := newShop(t)
	h := &PaymentHandler{Payments: payment.NewSimulator(s.store, 0, nil)}

	rec, err := s.call(h.Stats, jsonRequest(http.MethodGet, "/api/v1/admin/payments/stats", nil))
	require.NoError(t, err)
	st := decode[payment.Stats](t, rec)
	assert.Zero(t, st.TotalPayments)
	assert.Len(t, st.Monthly, 6)
}

func TestFailureMapping(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("product 9: %w", catalog.ErrNotFound), http.StatusNotFound},
		{order.ErrNotFound, http.StatusNotFound},
		{catalog.ErrValidation, http.StatusBadRequest},
		{checkout.ErrEmptyCart, http.StatusBadRequest},
		{payment.ErrInvalidMethod, http.StatusBadRequest},
		{session.ErrInvalidCredentials, http.StatusUnauthorized},
		{session.ErrEmailAlreadyRegistered, http.StatusConflict},
		{checkout.ErrCheckoutInProgress, http.StatusConflict},
		{catalog.ErrSlugTaken, http.StatusConflict},
		{fmt.Errorf("list: %w", remote.ErrRemoteUnavailable), http.StatusBadGateway},
		{&payment.DeclineError{Reason: "fondi insufficienti"}, http.StatusPaymentRequired},
		{&checkout.ValidationError{Fields: map[string]string{"nome": "required"}}, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			he := requireStatus(t, failure(l, "op_error", tc.err), tc.code)
			if tc.code == http.StatusInternalServerError {
				assert.Equal(t, "internal error", he.Message)
			}
		})
	}
}
