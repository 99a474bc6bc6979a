package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mikhailbahdashych/identity-core/internal/logging"
	"github.com/mikhailbahdashych/identity-core/internal/server/tokens"
)

type contextKey string

const claimsContextKey contextKey = "accessClaims"

// claimsFrom returns the access-token claims installed by the auth
// middleware, or nil on unauthenticated routes.
func claimsFrom(ctx context.Context) *tokens.AccessClaims {
	claims, _ := ctx.Value(claimsContextKey).(*tokens.AccessClaims)
	return claims
}

// authMiddleware extracts the Bearer token, verifies it as an access token,
// and installs its claims into the request context. The user identifier in
// the claims stays encrypted; services unwrap it.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.sendError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			h.sendError(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := h.tokens.VerifyAccess(parts[1])
		if err != nil {
			h.sendError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs method, path, status, and duration per request.
func loggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info(r.Context(), "request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// recoveryMiddleware converts handler panics into 500 responses.
func recoveryMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error(r.Context(), "handler panic", "panic", rec, "path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
