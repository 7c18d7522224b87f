package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service/session"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	ctxSession = "session"
	ctxToken   = "access_token"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (session.Session, error)
}

// Guard resolves the caller's session from a bearer header or the access cookie.
type Guard struct {
	Sessions Authenticator
}

func NewGuard(a Authenticator) *Guard {
	return &Guard{Sessions: a}
}

func tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	if ck, err := c.Cookie(tokens.AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

func (g *Guard) resolve(c echo.Context) (session.Session, bool) {
	tok := tokenFrom(c)
	if tok == "" {
		return session.Session{}, false
	}
	s, err := g.Sessions.Authenticate(c.Request().Context(), tok)
	if err != nil {
		return session.Session{}, false
	}
	c.Set(ctxSession, s)
	c.Set(ctxToken, tok)

	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("user_id", s.User.ID)
	c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
	return s, true
}

func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := g.resolve(c); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

func (g *Guard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, ok := g.resolve(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if !session.IsAdmin(s.User) {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}

// OptionalAuth attaches the session when there is a valid one and never rejects.
func (g *Guard) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		g.resolve(c)
		return next(c)
	}
}

func SessionFrom(c echo.Context) (session.Session, bool) {
	s, ok := c.Get(ctxSession).(session.Session)
	return s, ok
}

func UserID(c echo.Context) string {
	if s, ok := SessionFrom(c); ok {
		return s.User.ID
	}
	return ""
}

// Token returns the raw access token of an authenticated request, for forwarding to the remote.
func Token(c echo.Context) string {
	t, _ := c.Get(ctxToken).(string)
	return t
}
