package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/api/handler"
	"github.com/ayo6706/twinvest-bridge/internal/api/middleware"
	"github.com/ayo6706/twinvest-bridge/internal/api/spec"
	"github.com/ayo6706/twinvest-bridge/internal/candid"
	"github.com/ayo6706/twinvest-bridge/internal/config"
	"github.com/ayo6706/twinvest-bridge/internal/session"
)

// Deps are the collaborators the gateway routes need.
type Deps struct {
	Bridge    handler.Authenticator
	Registry  *session.Registry
	Interface *candid.Service
	// Transport is consulted on readiness checks.
	Transport func() config.Transport
	// Redis is pinged on readiness when set.
	Redis redis.Cmdable
}

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	deps   Deps
}

func NewRouter(cfg *config.Config, logger *zap.Logger, deps Deps) *Router {
	if logger == nil {
		logger = zap.L()
	}
	if deps.Transport == nil {
		deps.Transport = config.TransportFromEnv
	}
	return &Router{cfg: cfg, logger: logger, deps: deps}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	authHandler := handler.NewAuthHandler(api.deps.Bridge, api.deps.Registry, api.logger)
	callHandler := handler.NewCallHandler(api.deps.Interface)
	ledgerHandler := handler.NewLedgerHandler()
	healthHandler := handler.NewHealthHandler(api.deps.Transport, api.deps.Redis)

	// Operational routes
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/auth/login", authHandler.Login)
		r.Get("/v1/interface", callHandler.Interface)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))
		r.Use(middleware.SessionMiddleware(api.deps.Registry))

		r.Get("/v1/session", authHandler.Session)
		r.Post("/v1/auth/logout", authHandler.Logout)
		r.Post("/v1/calls/{method}", callHandler.Invoke)

		r.Get("/v1/me", ledgerHandler.Profile)
		r.Get("/v1/invoices", ledgerHandler.Invoices)
		r.Get("/v1/portfolio", ledgerHandler.Portfolio)
		r.Get("/v1/dashboard", ledgerHandler.Dashboard)
	})

	return r
}
