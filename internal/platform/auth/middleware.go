package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hems/hems/internal/platform/apperror"
)

type contextKey string

const principalKey contextKey = "principal"

// Cookie names accepted as token carriers alongside the Authorization
// header, plus the cookies the server itself sets.
const (
	AuthTokenCookie   = "auth_token"
	TokenCookie       = "token"
	RefreshCookie     = "refreshToken"
	RedirectURLCookie = "redirect_url"

	redirectCookieTTL = 5 * time.Minute
)

// Middleware authenticates every request from a bearer header or token
// cookie and stores the resulting principal on the request context.
// Refresh tokens are rejected here; only the refresh endpoint accepts them.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := extractToken(c)
			if tokenStr == "" {
				setRedirectCookie(c)
				return apperror.Unauthenticated("missing credentials")
			}

			claims, err := VerifyToken(secret, tokenStr)
			if err != nil {
				return err
			}
			if claims.Refresh {
				return apperror.Unauthenticated("invalid token")
			}

			p, err := NewPrincipal(claims)
			if err != nil {
				return err
			}

			ctx := context.WithValue(c.Request().Context(), principalKey, p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	for _, name := range []string{AuthTokenCookie, TokenCookie} {
		if cookie, err := c.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// setRedirectCookie remembers where an unauthenticated browser was headed
// so the login flow can send it back.
func setRedirectCookie(c echo.Context) {
	if c.Request().Method != http.MethodGet {
		return
	}
	if !strings.Contains(c.Request().Header.Get("Accept"), "text/html") {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:    RedirectURLCookie,
		Value:   c.Request().URL.RequestURI(),
		Path:    "/",
		Expires: time.Now().Add(redirectCookieTTL),
	})
}

// SetRefreshCookie attaches the httpOnly refresh token cookie.
func SetRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(RefreshTokenTTL),
	})
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// WithPrincipal returns a context carrying the principal. Used by tests
// and the refresh endpoint.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
