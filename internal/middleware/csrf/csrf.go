// Package csrf guards the cookie-authenticated storefront API with a double-submit token.
// The SPA reads the token from the sf_csrf cookie (or the response header on any GET) and
// echoes it back in X-Storefront-CSRF on writes.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
)

const (
	CookieName = "sf_csrf"
	HeaderName = "X-Storefront-CSRF"

	contextKey = "csrf_token"
	tokenBytes = 32
	cookieTTL  = 12 * time.Hour
)

type Config struct {
	// TrustedOrigins may post besides the API's own origin, e.g. the SPA dev server.
	TrustedOrigins []string
	// SkipPaths are exact paths, typically login and register where no session exists yet.
	SkipPaths []string
	// SkipPrefixes cover whole subtrees such as /health.
	SkipPrefixes []string
	Secure       bool
}

// Token returns the token checked for this request, or "" when the check was skipped.
func Token(c echo.Context) string {
	s, _ := c.Get(contextKey).(string)
	return s
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	trusted := make(map[string]struct{}, len(cfg.TrustedOrigins))
	for _, o := range cfg.TrustedOrigins {
		if o = strings.TrimRight(strings.ToLower(o), "/"); o != "" && o != "*" {
			trusted[o] = struct{}{}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if skipped(req, skip, cfg.SkipPrefixes) {
				return next(c)
			}
			l := logging.FromContext(req.Context()).With("mw", "csrf")

			token := ""
			if ck, err := req.Cookie(CookieName); err == nil {
				token = ck.Value
			}
			if token == "" {
				var err error
				if token, err = newToken(); err != nil {
					l.Error("csrf_token_failed", "error", err)
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
				}
				c.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    token,
					Path:     "/",
					Secure:   cfg.Secure,
					MaxAge:   int(cookieTTL.Seconds()),
					SameSite: http.SameSiteLaxMode,
				})
			}

			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				c.Response().Header().Set(HeaderName, token)
				return next(c)
			}

			if !originAllowed(req, trusted) {
				l.Warn("csrf_rejected", "reason", "origin", "origin", req.Header.Get(echo.HeaderOrigin))
				return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
			}
			provided := req.Header.Get(HeaderName)
			if provided == "" || subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
				l.Warn("csrf_rejected", "reason", "token mismatch")
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}

			c.Set(contextKey, token)
			return next(c)
		}
	}
}

func skipped(req *http.Request, paths map[string]struct{}, prefixes []string) bool {
	// bearer clients send no ambient credentials
	if strings.HasPrefix(req.Header.Get(echo.HeaderAuthorization), "Bearer ") {
		return true
	}
	if _, ok := paths[req.URL.Path]; ok {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(req.URL.Path, p) {
			return true
		}
	}
	return false
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// originAllowed accepts the API's own origin and the trusted ones. Origin wins over Referer.
func originAllowed(r *http.Request, trusted map[string]struct{}) bool {
	raw := r.Header.Get(echo.HeaderOrigin)
	if raw == "" {
		raw = r.Header.Get("Referer")
	}
	u, err := url.Parse(raw)
	if raw == "" || err != nil || u.Host == "" {
		return false
	}
	origin := strings.ToLower(u.Scheme + "://" + u.Host)
	if _, ok := trusted[origin]; ok {
		return true
	}
	return strings.EqualFold(u.Scheme, scheme(r)) && strings.EqualFold(u.Host, r.Host)
}

func scheme(r *http.Request) string {
	if p := r.Header.Get(echo.HeaderXForwardedProto); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
