package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fly-pay/corporate-banking-backend/internal/gateway/config"
	"github.com/fly-pay/corporate-banking-backend/internal/gateway/handler"
	"github.com/fly-pay/corporate-banking-backend/internal/gateway/proxy"
	"github.com/fly-pay/corporate-banking-backend/internal/token"
	"github.com/fly-pay/corporate-banking-backend/pkg/health"
	"github.com/fly-pay/corporate-banking-backend/pkg/tracing"
)

// App wires together all dependencies and runs the API gateway.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing the token
// validator, the reverse proxy, and the HTTP router. The gateway holds no
// database or broker connections.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "gateway",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// The gateway only parses tokens, so the signing TTLs carried by the
	// codec are irrelevant here; validation trusts the exp claim inside
	// each token.
	codec := token.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, time.Hour, 168*time.Hour)
	validator := token.NewValidator(codec)

	sp := proxy.NewServiceProxy(cfg, logger)

	// Readiness reports identity service reachability without failing the
	// probe outright; token validation works even when the backend is down.
	healthHandler := health.NewHandler()
	healthHandler.RegisterNonCritical("identity", func(ctx context.Context) error {
		u, err := url.Parse(cfg.IdentityServiceURL)
		if err != nil {
			return fmt.Errorf("parse identity service URL: %w", err)
		}
		d := net.Dialer{Timeout: 2 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return fmt.Errorf("identity service unreachable: %w", err)
		}
		_ = conn.Close()
		return nil
	})

	router := handler.NewRouter(cfg, validator, sp, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown drains in-flight HTTP requests, then flushes pending trace spans
// so spans from drained requests are captured.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
