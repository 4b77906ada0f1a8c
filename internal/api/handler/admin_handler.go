package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/service"
)

// AdminOperations is the administrative surface shared by the admin API and
// the admin panel.
type AdminOperations interface {
	Dashboard(ctx context.Context) (*service.DashboardStats, error)
	SetActive(ctx context.Context, actorID, targetID int64, active bool) (bool, error)
	SetElevated(ctx context.Context, actorID, targetID int64, elevated bool) (bool, error)
	Delete(ctx context.Context, actorID, targetID int64) (*domain.Identity, error)
}

// AppInfo identifies the running application on the dashboards.
type AppInfo struct {
	Name    string `json:"app_name"`
	Version string `json:"version"`
}

type dashboardResponse struct {
	*service.DashboardStats
	AppInfo
}

// AdminHandler serves {prefix}/admin for bearer-authenticated administrators.
type AdminHandler struct {
	admin AdminOperations
	users Lister[domain.Identity]
	info  AppInfo
}

// NewAdminHandler wires the handler. users backs the paged user listing.
func NewAdminHandler(admin AdminOperations, users Lister[domain.Identity], info AppInfo) *AdminHandler {
	return &AdminHandler{admin: admin, users: users, info: info}
}

// Mount registers the routes on g, all behind the elevated gate.
func (h *AdminHandler) Mount(g *echo.Group, elevated echo.MiddlewareFunc) {
	g.Use(elevated)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/users", h.Users)
	g.POST("/users/:id/activate", h.Activate)
	g.POST("/users/:id/deactivate", h.Deactivate)
	g.POST("/users/:id/make-admin", h.MakeAdmin)
	g.POST("/users/:id/remove-admin", h.RemoveAdmin)
}

// Dashboard reports identity counts.
//
// @Summary      Admin dashboard
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dashboardResponse
// @Failure      403  {object}  map[string]string
// @Router       /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c echo.Context) error {
	stats, err := h.admin.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{DashboardStats: stats, AppInfo: h.info})
}

// Users lists identities with the pagination envelope.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query     int  false  "Offset"
// @Param        limit  query     int  false  "Page size (max 100)"
// @Success      200  {object}  Page[domain.Identity]
// @Router       /admin/users [get]
func (h *AdminHandler) Users(c echo.Context) error {
	return listPage(c, h.users, "users")
}

// @Summary      Activate user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  adminActionResponse
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/activate [post]
func (h *AdminHandler) Activate(c echo.Context) error {
	return h.toggle(c, func(ctx context.Context, actor, target int64) (bool, error) {
		return h.admin.SetActive(ctx, actor, target, true)
	}, "user activated", "user is already active")
}

// @Summary      Deactivate user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  adminActionResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/deactivate [post]
func (h *AdminHandler) Deactivate(c echo.Context) error {
	return h.toggle(c, func(ctx context.Context, actor, target int64) (bool, error) {
		return h.admin.SetActive(ctx, actor, target, false)
	}, "user deactivated", "user is already inactive")
}

// @Summary      Grant admin role
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  adminActionResponse
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/make-admin [post]
func (h *AdminHandler) MakeAdmin(c echo.Context) error {
	return h.toggle(c, func(ctx context.Context, actor, target int64) (bool, error) {
		return h.admin.SetElevated(ctx, actor, target, true)
	}, "user promoted to admin", "user is already an admin")
}

// @Summary      Revoke admin role
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  adminActionResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/remove-admin [post]
func (h *AdminHandler) RemoveAdmin(c echo.Context) error {
	return h.toggle(c, func(ctx context.Context, actor, target int64) (bool, error) {
		return h.admin.SetElevated(ctx, actor, target, false)
	}, "admin role removed", "user is not an admin")
}

func (h *AdminHandler) toggle(
	c echo.Context,
	apply func(ctx context.Context, actor, target int64) (bool, error),
	changedMsg, unchangedMsg string,
) error {
	me, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	changed, err := apply(c.Request().Context(), me.ID, id)
	if err != nil {
		return err
	}
	msg := changedMsg
	if !changed {
		msg = unchangedMsg
	}
	return c.JSON(http.StatusOK, adminActionResponse{Message: msg, UserID: id})
}
