package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fly-pay/corporate-banking-backend/internal/gateway/config"
	gwmiddleware "github.com/fly-pay/corporate-banking-backend/internal/gateway/middleware"
	"github.com/fly-pay/corporate-banking-backend/internal/gateway/proxy"
	"github.com/fly-pay/corporate-banking-backend/internal/token"
	"github.com/fly-pay/corporate-banking-backend/pkg/health"
	pkgmiddleware "github.com/fly-pay/corporate-banking-backend/pkg/middleware"
)

// NewRouter creates a chi router with the gateway middleware stack, health
// endpoints, and proxied routes to the identity service.
func NewRouter(cfg *config.Config, validator *token.Validator, sp *proxy.ServiceProxy, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack (applied in order).
	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         3600,
		Environment:    cfg.Environment,
	}))
	r.Use(gwmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics("gateway"))
	r.Use(pkgmiddleware.Tracing("gateway"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	// Health check endpoints (no auth required).
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Metrics endpoint restricted to operator networks.
	metricsHandler := pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)(promhttp.Handler())
	r.Get("/metrics", metricsHandler.ServeHTTP)

	// Pprof debug endpoints with IP allowlist.
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Everything under /api goes through the bearer token gate before being
	// proxied to the identity service.
	r.Route("/api", func(r chi.Router) {
		r.Use(gwmiddleware.BearerAuth(validator, logger))

		r.Handle("/v1/auth", sp.Handler("identity"))
		r.Handle("/v1/auth/*", sp.Handler("identity"))
		r.Handle("/v1/users", sp.Handler("identity"))
		r.Handle("/v1/users/*", sp.Handler("identity"))
	})

	return r
}
