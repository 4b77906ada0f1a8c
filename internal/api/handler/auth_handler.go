package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/api/metrics"
	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// RegistrationPolicy controls the public registration endpoint.
type RegistrationPolicy struct {
	Open          bool
	AllowElevated bool
}

type AuthHandler struct {
	identities ports.IdentityService
	policy     RegistrationPolicy
}

func NewAuthHandler(identities ports.IdentityService, policy RegistrationPolicy) *AuthHandler {
	return &AuthHandler{identities: identities, policy: policy}
}

// Register creates a new identity through open registration.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      ports.CreateIdentityInput  true  "User registration details"
// @Success      201   {object}  domain.Identity
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	if !h.policy.Open {
		return domain.ErrRegistrationClosed
	}

	var req ports.CreateIdentityInput
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if req.IsSuperuser != nil && *req.IsSuperuser && !h.policy.AllowElevated {
		return domain.ErrForbidden
	}

	identity, err := h.identities.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.Inc()
	return c.JSON(http.StatusCreated, identity)
}

// Login exchanges form credentials for a bearer token. The username field
// accepts either an email or a username.
//
// @Summary      Login
// @Tags         auth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true  "Email or username"
// @Param        password  formData  string  true  "Password"
// @Success      200   {object}  domain.AccessToken
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var form loginForm
	if err := bindBody(c, &form); err != nil {
		return err
	}

	identity, err := h.identities.Authenticate(c.Request().Context(), form.Username, form.Password)
	if err != nil {
		recordLogin("api", err)
		return err
	}
	if !h.identities.IsActive(identity) {
		recordLogin("api", domain.ErrInactiveAccount)
		return domain.ErrInactiveAccount
	}

	token, err := h.identities.IssueAccessToken(identity.ID)
	if err != nil {
		recordLogin("api", err)
		return err
	}

	recordLogin("api", nil)
	return c.JSON(http.StatusOK, token)
}

func recordLogin(surface string, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidCredentials):
		result = "invalid_credentials"
	case errors.Is(err, domain.ErrInactiveAccount):
		result = "inactive"
	case errors.Is(err, domain.ErrForbidden):
		result = "forbidden"
	default:
		result = "error"
	}
	metrics.LoginAttemptsTotal.WithLabelValues(surface, result).Inc()
}
