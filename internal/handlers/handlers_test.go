package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/service/cart"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/internal/service/order"
	"github.com/Skotchmaster/storefront/internal/service/payment"
	"github.com/Skotchmaster/storefront/internal/service/session"
	"github.com/Skotchmaster/storefront/internal/store"
)

const (
	adminEmail = "admin@manuzon.com"
	adminPass  = "admin123"
	userEmail  = "user@example.com"
	userPass   = "user123"
)

type stubGateway struct {
	err error
}

func (g *stubGateway) Charge(_ context.Context, amount decimal.Decimal, m payment.Method) (payment.Receipt, error) {
	if g.err != nil {
		return payment.Receipt{}, g.err
	}
	return payment.Receipt{
		PaymentID: "PAY-TEST",
		Status:    "COMPLETED",
		Amount:    amount.InexactFloat64(),
		Currency:  "EUR",
		Method:    m.Kind,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type shop struct {
	e        *echo.Echo
	store    *store.MemoryStore
	sessions *session.Manager
	carts    *cart.Registry
	catalog  *catalog.Service
	orders   *order.Service
	checkout *checkout.Service
	gateway  *stubGateway
	guard    *auth.Guard
}

func newShop(t *testing.T) *shop {
	t.Helper()

	st := store.NewMemory()
	s := &shop{
		e:        echo.New(),
		store:    st,
		sessions: session.NewManager(session.Deps{Store: st}, session.Config{Secret: []byte("test-secret")}),
		carts:    cart.NewRegistry(cart.Deps{Store: st}),
		catalog:  &catalog.Service{Store: st},
		orders:   &order.Service{Repo: order.NewRepository(st)},
		gateway:  &stubGateway{},
	}
	s.checkout = checkout.New(checkout.Deps{Carts: s.carts, Gateway: s.gateway, Orders: s.orders})
	s.guard = auth.NewGuard(s.sessions)
	t.Cleanup(s.carts.Close)
	return s
}

func (s *shop) login(t *testing.T, email, password string) string {
	t.Helper()
	res, err := s.sessions.Login(context.Background(), email, password)
	require.NoError(t, err)
	return res.Token
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

// call runs h against req; params are name/value pairs for path parameters.
func (s *shop) call(h echo.HandlerFunc, req *http.Request, params ...string) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return rec, h(c)
}

func requireStatus(t *testing.T, err error, status int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, status, he.Code)
	return he
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func validCustomer() map[string]string {
	return map[string]string{
		"nome":      "Mario",
		"cognome":   "Rossi",
		"email":     "mario.rossi@example.com",
		"telefono":  "3331234567",
		"indirizzo": "Via Roma 1",
		"citta":     "Milano",
		"cap":       "20100",
		"provincia": "MI",
	}
}
