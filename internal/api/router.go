package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/crudkit/identity-api/docs"
	"github.com/crudkit/identity-api/internal/api/handler"
	"github.com/crudkit/identity-api/internal/api/middleware"
	"github.com/crudkit/identity-api/internal/core/ports"
	"github.com/crudkit/identity-api/internal/core/service"
	"github.com/crudkit/identity-api/internal/infrastructure/http/handlers"
	"github.com/crudkit/identity-api/internal/pkg/config"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Identities *service.IdentityService
	Resolver   *service.AccessResolver
	Admin      *service.AdminService
	Tasks      ports.TaskService
	// Health lists the dependencies pinged by the readiness probe.
	Health  map[string]ports.Pinger
	Version string
	// Registry receives the HTTP metrics. Nil uses the default registry.
	Registry *prometheus.Registry
}

// PublicPaths is the token-free allowlist for the given API prefix.
func PublicPaths(prefix string) middleware.PublicPaths {
	return middleware.PublicPaths{
		"/",
		"/docs",
		"/health",
		prefix + "/health",
		prefix + "/auth/login",
		prefix + "/auth/register",
		"/metrics",
		"/admin",
	}
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	cfg := d.Config
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "identity_http",
		Registerer: registerer,
	}))
	e.Use(middleware.Auth(d.Resolver, PublicPaths(cfg.APIPrefix)))

	active := middleware.RequireActive(d.Resolver)
	elevated := middleware.RequireElevated(d.Resolver)
	info := handler.AppInfo{Name: cfg.ProjectName, Version: d.Version}

	// --- Public surface ---
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to " + cfg.ProjectName})
	})
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/docs/*", echoSwagger.WrapHandler)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Health)
	e.GET("/health", healthHandler.Liveness)
	api := e.Group(cfg.APIPrefix)
	api.GET("/health", healthHandler.Liveness)
	api.GET("/health/ready", healthDepsHandler.Readiness)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Identities, handler.RegistrationPolicy{
		Open:          cfg.Auth.OpenRegistration,
		AllowElevated: cfg.Auth.AllowElevatedRegistration,
	})
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)

	// --- Users ---
	handler.NewUserHandler(d.Identities).Mount(api.Group("/users"), active, elevated)

	// --- Admin API (bearer) and admin panel (session cookie) ---
	handler.NewAdminHandler(d.Admin, d.Identities, info).Mount(api.Group("/admin"), elevated)
	handler.NewPanelHandler(d.Admin, d.Admin, d.Identities, info, cfg.Admin.CookieSecure).Mount(e.Group("/admin"))

	// --- Background tasks ---
	if d.Tasks != nil {
		handler.NewTaskHandler(d.Tasks).Mount(api.Group("/tasks"), active)
	}

	return e
}

// requestLogger emits one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Warn()
			}
			if v.Error != nil {
				ev = ev.Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
