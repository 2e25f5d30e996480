package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fly-pay/corporate-banking-backend/internal/token"
)

// Headers the gateway injects into proxied requests after validating the
// bearer token. Backends trust these and must never receive client-supplied
// values, so the middleware strips any inbound copies first.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// publicRoutes defines method + path prefix combinations that do not require
// a bearer token. Only the credential-exchange and token-inspection endpoints
// are open; everything else behind /api needs a valid access token.
var publicRoutes = []struct {
	method string
	prefix string
}{
	{method: http.MethodPost, prefix: "/api/v1/auth/signup"},
	{method: http.MethodPost, prefix: "/api/v1/auth/login"},
	{method: http.MethodPost, prefix: "/api/v1/auth/refresh"},
	{method: http.MethodPost, prefix: "/api/v1/auth/validate"},
	{method: http.MethodPost, prefix: "/api/v1/auth/check-permission"},
	{method: http.MethodGet, prefix: "/health"},
}

// isPublicRoute checks whether a given method + path combination is public.
func isPublicRoute(method, path string) bool {
	for _, route := range publicRoutes {
		if method == route.method && strings.HasPrefix(path, route.prefix) {
			return true
		}
	}
	// OPTIONS requests are always allowed (for CORS preflight).
	if method == http.MethodOptions {
		return true
	}
	return false
}

// BearerAuth returns middleware that validates access tokens from the
// Authorization header against the shared signing secret. Validation is
// local; no call to the identity service is made. Public routes pass through
// unauthenticated. For valid tokens the authenticated identity is forwarded
// to the backend via X-User-ID, X-User-Email, and X-User-Role headers.
func BearerAuth(validator *token.Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Inbound identity headers are never trusted, on any route.
			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderUserEmail)
			r.Header.Del(HeaderUserRole)

			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			result := validator.Validate(parts[1])
			if !result.Valid {
				logger.Warn("rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.String("reason", result.Reason),
				)
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", result.Reason)
				return
			}

			identity := result.Identity
			r.Header.Set(HeaderUserID, identity.UserID)
			if identity.Email != "" {
				r.Header.Set(HeaderUserEmail, identity.Email)
			}
			if len(identity.Roles) > 0 {
				r.Header.Set(HeaderUserRole, identity.Roles[0])
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
