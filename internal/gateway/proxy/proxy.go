package proxy

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/fly-pay/corporate-banking-backend/internal/gateway/config"
)

// ServiceProxy manages reverse proxies to the backend services behind the
// gateway. Today the identity service is the only backend; the routing table
// keeps room for more.
type ServiceProxy struct {
	routes map[string]*httputil.ReverseProxy
	logger *slog.Logger
}

// newTransport builds the shared upstream transport. Defaults from
// http.DefaultTransport are too lax for a gateway sitting in front of
// latency-sensitive backends.
func newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}

// NewServiceProxy creates reverse proxies for each configured backend.
func NewServiceProxy(cfg *config.Config, logger *slog.Logger) *ServiceProxy {
	sp := &ServiceProxy{
		routes: make(map[string]*httputil.ReverseProxy),
		logger: logger,
	}

	transport := newTransport()

	serviceURLs := map[string]string{
		"identity": cfg.IdentityServiceURL,
	}

	for name, rawURL := range serviceURLs {
		target, err := url.Parse(rawURL)
		if err != nil {
			logger.Error("invalid service URL",
				slog.String("service", name),
				slog.String("url", rawURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		rp := httputil.NewSingleHostReverseProxy(target)
		rp.Transport = transport
		rp.ErrorHandler = sp.errorHandler(name)
		sp.routes[name] = rp

		logger.Info("registered service proxy",
			slog.String("service", name),
			slog.String("target", rawURL),
		)
	}

	return sp
}

// Handler returns an http.Handler that proxies requests to the named backend.
// An unknown name yields a handler that always answers 502; it means the
// router and the proxy table disagree, which is a deployment bug.
func (sp *ServiceProxy) Handler(serviceName string) http.Handler {
	rp, ok := sp.routes[serviceName]
	if !ok {
		sp.logger.Error("no proxy registered for service", slog.String("service", serviceName))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeProxyError(w, "SERVICE_UNAVAILABLE", "service not configured")
		})
	}
	return rp
}

// errorHandler logs upstream failures and answers with a JSON 502 so clients
// never see a bare proxy error page.
func (sp *ServiceProxy) errorHandler(serviceName string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		sp.logger.Error("proxy error",
			slog.String("service", serviceName),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeProxyError(w, "BAD_GATEWAY", "upstream service unavailable")
	}
}

func writeProxyError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"code":"` + code + `","message":"` + message + `"}`))
}
