package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/neighborly/directory-api/services/auth-service/internal/model"
	"github.com/neighborly/directory-api/services/auth-service/pkg/types"
)

type contextKey struct{ name string }

var (
	requestIDKey = &contextKey{"request_id"}
	claimsKey    = &contextKey{"claims"}
)

// claimsFromContext returns the validated access-token claims attached by
// the authenticate middleware, or nil on unauthenticated routes.
func claimsFromContext(ctx context.Context) *types.AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey).(*types.AccessTokenClaims)
	return claims
}

// requestID tags every request with a fresh id, echoed back in the
// X-Request-Id header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestLogger logs one line per request with status, duration and the
// request id.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			id, _ := r.Context().Value(requestIDKey).(string)
			logger.Info().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

// authenticate requires a valid bearer access token and attaches its claims
// to the request context.
func (h *AuthHTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims := &types.AccessTokenClaims{}
		if err := h.jwtAuth.ValidateTokenWithClaims(parts[1], h.authServiceCfg.Token.AccessTokenSecret, claims); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireRole rejects authenticated callers whose role is not in the
// allowed set.
func requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[string(role)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil || !allowed[claims.Role] {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
