package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// SessionCookie is the admin panel session cookie name.
const SessionCookie = "admin_session"

// SessionResolver returns the active, elevated identity behind a panel session.
type SessionResolver interface {
	SessionIdentity(ctx context.Context, sessionID string) (*domain.Identity, error)
}

// AdminSession guards the admin panel. It reads the session cookie, never a
// bearer token, and applies the same existence, active and elevated checks.
func AdminSession(sessions SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				return domain.ErrUnauthorized
			}

			identity, err := sessions.SessionIdentity(c.Request().Context(), cookie.Value)
			if err != nil {
				return err
			}

			bind(c, identity)
			return next(c)
		}
	}
}

// SetSessionCookie writes the panel session cookie.
func SetSessionCookie(c echo.Context, sess *domain.AdminSession, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/admin",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the panel session cookie.
func ClearSessionCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
