package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// ContextIdentity is the echo context key holding the loaded *domain.Identity.
const ContextIdentity = "identity"

// Resolver loads the identity behind a validated subject and applies the
// active and elevated gates.
type Resolver interface {
	ResolveSubject(ctx context.Context, id int64) (*domain.Identity, error)
	Authorize(identity *domain.Identity, elevated bool) error
}

// RequireActive loads the caller's identity and rejects inactive accounts.
// It must run after Auth.
func RequireActive(resolver Resolver) echo.MiddlewareFunc {
	return gate(resolver, false)
}

// RequireElevated additionally rejects identities without the admin role.
func RequireElevated(resolver Resolver) echo.MiddlewareFunc {
	return gate(resolver, true)
}

func gate(resolver Resolver, elevated bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(ContextSubjectID).(int64)
			if !ok || id <= 0 {
				return domain.ErrUnauthorized
			}

			identity, err := resolver.ResolveSubject(c.Request().Context(), id)
			if err != nil {
				return err
			}
			if err := resolver.Authorize(identity, elevated); err != nil {
				return err
			}

			bind(c, identity)
			return next(c)
		}
	}
}

// bind stores identity on the echo context and marks it as the actor on the
// request context, where the service layer reads it for self-guards.
func bind(c echo.Context, identity *domain.Identity) {
	c.Set(ContextIdentity, identity)
	req := c.Request()
	c.SetRequest(req.WithContext(ports.WithActor(req.Context(), identity.ID)))
}
