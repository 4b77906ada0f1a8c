package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/api/middleware"
	"github.com/crudkit/identity-api/internal/core/domain"
)

// PanelSessions opens and closes admin panel sessions.
type PanelSessions interface {
	Login(ctx context.Context, login, password string) (*domain.AdminSession, *domain.Identity, error)
	Logout(ctx context.Context, sessionID string) error
	middleware.SessionResolver
}

// PanelHandler serves the cookie-authenticated admin panel under /admin.
type PanelHandler struct {
	sessions     PanelSessions
	admin        AdminOperations
	users        Lister[domain.Identity]
	info         AppInfo
	cookieSecure bool
}

func NewPanelHandler(sessions PanelSessions, admin AdminOperations, users Lister[domain.Identity], info AppInfo, cookieSecure bool) *PanelHandler {
	return &PanelHandler{
		sessions:     sessions,
		admin:        admin,
		users:        users,
		info:         info,
		cookieSecure: cookieSecure,
	}
}

// Mount registers the panel routes. Everything except login and logout
// requires a live session.
func (h *PanelHandler) Mount(g *echo.Group) {
	gate := middleware.AdminSession(h.sessions)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me, gate)
	g.GET("/dashboard", h.Dashboard, gate)
	g.GET("/users", h.Users, gate)
	g.DELETE("/users/:id", h.DeleteUser, gate)
}

// Login opens a panel session for an active administrator.
//
// @Summary      Admin panel login
// @Tags         admin-panel
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true  "Email or username"
// @Param        password  formData  string  true  "Password"
// @Success      200  {object}  domain.Identity
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /admin/login [post]
func (h *PanelHandler) Login(c echo.Context) error {
	var form loginForm
	if err := bindBody(c, &form); err != nil {
		return err
	}

	sess, identity, err := h.sessions.Login(c.Request().Context(), form.Username, form.Password)
	recordLogin("admin", err)
	if err != nil {
		return err
	}

	middleware.SetSessionCookie(c, sess, h.cookieSecure)
	return c.JSON(http.StatusOK, identity)
}

// Logout drops the session and clears the cookie. It succeeds without a session.
//
// @Summary      Admin panel logout
// @Tags         admin-panel
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /admin/logout [post]
func (h *PanelHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.SessionCookie); err == nil {
		if err := h.sessions.Logout(c.Request().Context(), cookie.Value); err != nil {
			return err
		}
	}
	middleware.ClearSessionCookie(c, h.cookieSecure)
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *PanelHandler) Me(c echo.Context) error {
	me, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

func (h *PanelHandler) Dashboard(c echo.Context) error {
	stats, err := h.admin.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{DashboardStats: stats, AppInfo: h.info})
}

func (h *PanelHandler) Users(c echo.Context) error {
	return listPage(c, h.users, "users")
}

// DeleteUser removes an identity. Administrators cannot delete themselves.
func (h *PanelHandler) DeleteUser(c echo.Context) error {
	me, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := h.admin.Delete(c.Request().Context(), me.ID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adminActionResponse{Message: "user deleted", UserID: id})
}
