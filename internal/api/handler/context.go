package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/api/middleware"
	"github.com/crudkit/identity-api/internal/core/domain"
)

// currentIdentity returns the identity bound by the RequireActive,
// RequireElevated or AdminSession middleware. Its absence means the route
// was mounted without a gate, which is reported as unauthorized.
func currentIdentity(c echo.Context) (*domain.Identity, error) {
	identity, ok := c.Get(middleware.ContextIdentity).(*domain.Identity)
	if !ok || identity == nil {
		return nil, domain.ErrUnauthorized
	}
	return identity, nil
}
