package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fly-pay/corporate-banking-backend/pkg/health"
	"github.com/fly-pay/corporate-banking-backend/pkg/middleware"

	"github.com/fly-pay/corporate-banking-backend/internal/domain"
	"github.com/fly-pay/corporate-banking-backend/internal/service"
	"github.com/fly-pay/corporate-banking-backend/internal/token"
)

// NewRouter creates a chi router with all identity service routes registered.
func NewRouter(
	authService *service.AuthService,
	userService *service.UserService,
	validator *token.Validator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
	pprofAllowedCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("identity"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("identity"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Profiling endpoints, restricted by source IP.
	middleware.RegisterPprof(r, pprofAllowedCIDRs, logger)

	// Token validator that bridges to the local signature check.
	tokenValidator := func(tokenString string) (*middleware.Claims, error) {
		result := validator.Validate(tokenString)
		if !result.Valid {
			return nil, errors.New(result.Reason)
		}
		role := ""
		if len(result.Identity.Roles) > 0 {
			role = result.Identity.Roles[0]
		}
		return &middleware.Claims{
			UserID: result.Identity.UserID,
			Email:  result.Identity.Email,
			Role:   role,
		}, nil
	}

	authHandler := NewAuthHandler(authService, logger)

	// Auth endpoints (public). Token responses must never be cached.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/validate", authHandler.Validate)
		r.Post("/check-permission", authHandler.CheckPermission)
	})

	// Auth endpoints that require a bearer token.
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/api/v1/auth/userinfo", authHandler.UserInfo)
		r.With(ContentTypeJSON).Post("/api/v1/auth/logout", authHandler.Logout)
	})

	// User directory endpoints (auth required; writes are admin-only).
	userHandler := NewUserHandler(userService, logger)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/{id}", userHandler.Get)
		r.Put("/{id}", userHandler.Update)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(domain.RoleAdmin)))

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Delete("/{id}", userHandler.Delete)
		})
	})

	return r
}
