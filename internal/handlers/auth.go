package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/cart"
	"github.com/Skotchmaster/storefront/internal/service/session"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

type AuthHandler struct {
	Sessions *session.Manager
	Carts    *cart.Registry
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	res, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return failure(l, "login_error", err)
	}

	h.startSession(c, res)
	l.Info("login_success", "user_id", res.Session.User.ID)
	return c.JSON(http.StatusOK, authResponse{User: res.Session.User, Token: res.Token, ExpiresAt: res.Session.ExpiresAt})
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req session.RegisterData
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	res, err := h.Sessions.Register(ctx, req)
	if err != nil {
		return failure(l, "register_error", err)
	}

	h.startSession(c, res)
	l.Info("register_success", "user_id", res.Session.User.ID)
	return c.JSON(http.StatusCreated, authResponse{User: res.Session.User, Token: res.Token, ExpiresAt: res.Session.ExpiresAt})
}

// startSession sets the access cookie and folds the anonymous cart into the user's one.
func (h *AuthHandler) startSession(c echo.Context, res session.Result) {
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.Token, "/", res.Session.ExpiresAt))

	ck, err := c.Cookie(cartCookie)
	if err != nil || h.Carts == nil {
		return
	}
	c.SetCookie(tokens.DeleteCookie(cartCookie, "/"))
	from, ok := anonOwner(ck.Value)
	if !ok {
		return
	}
	ctx := c.Request().Context()
	if _, err := h.Carts.Merge(ctx, from, res.Session.User.ID); err != nil {
		logging.FromContext(ctx).Warn("cart_merge_failed", "from", from, "error", err)
	}
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if s, ok := auth.SessionFrom(c); ok {
		if err := h.Sessions.Logout(ctx, s.ID); err != nil {
			return failure(l, "logout_error", err)
		}
	}
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))

	l.Info("logout_success")
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	s, ok := auth.SessionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, s.User)
}

func (h *AuthHandler) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.update_me")

	s, ok := auth.SessionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var patch session.ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(l, "update_profile_error", "invalid body", err)
	}

	u, err := h.Sessions.UpdateProfile(ctx, s.ID, patch)
	if err != nil {
		return failure(l, "update_profile_error", err)
	}

	l.Info("update_profile_success")
	return c.JSON(http.StatusOK, u)
}
