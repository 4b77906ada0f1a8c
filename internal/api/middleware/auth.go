package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/api/metrics"
	"github.com/crudkit/identity-api/internal/core/domain"
)

// ContextSubjectID is the echo context key holding the validated token subject.
const ContextSubjectID = "subject_id"

// TokenValidator validates a bearer token and returns its subject id.
type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

// PublicPaths is a request path allowlist. "/" matches only the root; every
// other entry matches itself and anything below it on a segment boundary.
type PublicPaths []string

// Match reports whether path may be served without a token.
func (p PublicPaths) Match(path string) bool {
	for _, entry := range p {
		if entry == "/" {
			if path == "/" || path == "" {
				return true
			}
			continue
		}
		if path == entry || strings.HasPrefix(path, strings.TrimRight(entry, "/")+"/") {
			return true
		}
	}
	return false
}

// Auth is the global bearer token gate. Requests outside the public
// allowlist need a valid "Authorization: Bearer <token>" header; the subject
// id is stored under ContextSubjectID. Active and role checks are left to
// the per-route middleware.
func Auth(tokens TokenValidator, public PublicPaths) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if public.Match(c.Request().URL.Path) {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				metrics.TokenRejectionsTotal.WithLabelValues("missing").Inc()
				return domain.ErrUnauthorized
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				metrics.TokenRejectionsTotal.WithLabelValues("scheme").Inc()
				return domain.ErrUnauthorized
			}

			id, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				metrics.TokenRejectionsTotal.WithLabelValues("invalid").Inc()
				return domain.ErrUnauthorized
			}

			c.Set(ContextSubjectID, id)
			return next(c)
		}
	}
}
