package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// UserHandler serves /users: the self-service /me routes plus the generic
// CRUD routes over identities.
type UserHandler struct {
	identities ports.IdentityService
	crud       *CRUDHandler[domain.Identity, ports.CreateIdentityInput, ports.UpdateIdentityInput]
}

func NewUserHandler(identities ports.IdentityService) *UserHandler {
	h := &UserHandler{
		identities: identities,
		crud:       NewCRUDHandler[domain.Identity, ports.CreateIdentityInput, ports.UpdateIdentityInput](identities, "users"),
	}
	h.crud.ReadGuard = h.selfOrElevated
	return h
}

// Mount registers the routes on g. active and elevated are the RBAC gates.
func (h *UserHandler) Mount(g *echo.Group, active, elevated echo.MiddlewareFunc) {
	g.GET("/me", h.Me, active)
	g.PUT("/me", h.UpdateMe, active)
	h.crud.Mount(g, Gates{
		List:   []echo.MiddlewareFunc{elevated},
		Read:   []echo.MiddlewareFunc{active},
		Create: []echo.MiddlewareFunc{elevated},
		Update: []echo.MiddlewareFunc{elevated},
		Delete: []echo.MiddlewareFunc{elevated},
	})
}

// Me returns the caller's identity.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Identity
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	me, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

// UpdateMe applies a sparse update to the caller's own identity. Status and
// role flags cannot be changed here.
//
// @Summary      Update current user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateMeRequest  true  "Fields to change"
// @Success      200   {object}  domain.Identity
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /users/me [put]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	me, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req updateMeRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	updated, err := h.identities.Update(c.Request().Context(), me.ID, ports.UpdateIdentityInput{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// selfOrElevated lets a caller read its own record; anyone else's requires
// the admin role.
func (h *UserHandler) selfOrElevated(c echo.Context, id int64) error {
	me, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if me.ID != id && !h.identities.IsElevated(me) {
		return domain.ErrForbidden
	}
	return nil
}
